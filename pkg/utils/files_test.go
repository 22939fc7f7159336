package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGetPathInfo(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	abs, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		in       string
		wantFull string
	}{
		{"a.h", filepath.Join(abs, "a.h")},
		{"sub/../b.h", filepath.Join(abs, "b.h")},
		{filepath.Join(abs, "c.h"), filepath.Join(abs, "c.h")},
	}

	for _, tc := range tests {
		full, root, name, err := GetPathInfo(tc.in)
		if err != nil {
			t.Fatalf("GetPathInfo(%q) failed: %v", tc.in, err)
		}
		if full != tc.wantFull {
			t.Errorf("GetPathInfo(%q) full = %q; want %q", tc.in, full, tc.wantFull)
		}
		if strings.Contains(name, `\`) || strings.HasPrefix(name, "/") {
			t.Errorf("GetPathInfo(%q) name %q is not a relative slash path", tc.in, name)
		}
		if got := HostPath(root, name); got != full {
			t.Errorf("HostPath(%q, %q) = %q; want %q", root, name, got, full)
		}
	}
}
