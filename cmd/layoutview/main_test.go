package main

import (
	"strings"
	"testing"

	"cstruct2yaml/pkg/analyze"
	"cstruct2yaml/pkg/config"
)

const header = `
struct a { char x; };
struct b { int y; };
union c { int i; char ch; };
`

func TestViewerWiring(t *testing.T) {
	u, err := analyze.LoadSource("view.h", header, config.Default())
	if err != nil {
		t.Fatalf("LoadSource failed: %v", err)
	}
	res, err := u.ResolveAll(t.Context())
	if err != nil {
		t.Fatalf("ResolveAll failed: %v", err)
	}

	v := NewViewer("view.h", res, 4)
	if len(v.types) != 3 {
		t.Fatalf("expected 3 types, got %d", len(v.types))
	}

	v.step(-1)
	if v.types[v.index].Name != "c" {
		t.Errorf("stepping back from the first type should wrap, got %s", v.types[v.index].Name)
	}
	v.step(1)
	if v.index != 0 {
		t.Errorf("expected index 0, got %d", v.index)
	}

	if !v.selectByName("b") || !strings.Contains(v.title(), "[2/3] struct b, 32 bits") {
		t.Errorf("unexpected title %q", v.title())
	}
	if v.selectByName("missing") {
		t.Error("selectByName should fail for an unknown type")
	}

	if w, h := v.Layout(0, 0); w != screenWidth || h != screenHeight {
		t.Errorf("unexpected layout %dx%d", w, h)
	}
}
