package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"cstruct2yaml/pkg/analyze"
	"cstruct2yaml/pkg/config"
	"cstruct2yaml/pkg/emit"
)

const typesHeader = `typedef unsigned short u16;
`

const mainHeader = `#include "types.h"

struct pt {
    char a;
    int b;
};

struct rec {
    u16 id;
    unsigned int flags : 3;
};
`

func writeHeaders(t *testing.T) (dir, input string) {
	t.Helper()
	dir = t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "types.h"), []byte(typesHeader), 0o644); err != nil {
		t.Fatal(err)
	}
	input = filepath.Join(dir, "main.h")
	if err := os.WriteFile(input, []byte(mainHeader), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir, input
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestGenerateSingle(t *testing.T) {
	dir, input := writeHeaders(t)
	tests := []struct {
		name     string
		args     []string
		wantBits int
	}{
		{"Default pack", nil, 40},
		{"Pack 4", []string{"-p", "4"}, 64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := filepath.Join(dir, "pt.json")
			args := append([]string{input, "-s", "pt", "-f", "json", "-o", output}, tt.args...)
			out, err := run(t, args...)
			if err != nil {
				t.Fatalf("run failed: %v", err)
			}
			if !strings.Contains(out, "Wrote "+output) {
				t.Errorf("summary missing, got:\n%s", out)
			}

			data, err := os.ReadFile(output)
			if err != nil {
				t.Fatal(err)
			}
			var doc struct {
				StructInfo struct {
					TotalSizeBits int `json:"total_size_bits"`
				} `json:"struct_info"`
			}
			if err := json.Unmarshal(data, &doc); err != nil {
				t.Fatalf("output is not JSON: %v", err)
			}
			if doc.StructInfo.TotalSizeBits != tt.wantBits {
				t.Errorf("expected %d bits, got %d", tt.wantBits, doc.StructInfo.TotalSizeBits)
			}
		})
	}
}

func TestGenerateAll(t *testing.T) {
	dir, input := writeHeaders(t)
	output := filepath.Join(dir, "all.yml")
	out, err := run(t, input, "-o", output)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !strings.Contains(out, "Structs:") {
		t.Errorf("summary missing, got:\n%s", out)
	}
	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"structs:", "pt:", "rec:", "total_structs: 2"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("output missing %q:\n%s", want, data)
		}
	}
}

func TestQuery(t *testing.T) {
	_, input := writeHeaders(t)
	out, err := run(t, input, "-s", "rec", "-q", ".struct_definition.members[] | select(.is_bitfield) | .name")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if strings.TrimSpace(out) != `"flags"` {
		t.Errorf("unexpected query output: %q", out)
	}
}

func TestConfigFileAndFlags(t *testing.T) {
	dir, input := writeHeaders(t)
	cfgPath := filepath.Join(dir, "cfg.yml")
	if err := os.WriteFile(cfgPath, []byte("pack_alignment: 32\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"File value", []string{"--config", cfgPath}, "64"},
		{"Flag wins", []string{"--config", cfgPath, "-p", "1"}, "40"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{input, "-s", "pt", "-q", ".struct_info.total_size_bits"}, tt.args...)
			out, err := run(t, args...)
			if err != nil {
				t.Fatalf("run failed: %v", err)
			}
			if strings.TrimSpace(out) != tt.want {
				t.Errorf("expected %s, got %q", tt.want, out)
			}
		})
	}
}

func TestFlattenFlag(t *testing.T) {
	input := filepath.Join(t.TempDir(), "pkt.h")
	src := "struct pkt { char tag; union { int i; float f; }; };\n"
	if err := os.WriteFile(input, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"Nested", nil, "2"},
		{"Flattened", []string{"--flatten"}, "3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{input, "-s", "pkt", "-q", ".struct_definition.members | length"}, tt.args...)
			out, err := run(t, args...)
			if err != nil {
				t.Fatalf("run failed: %v", err)
			}
			if strings.TrimSpace(out) != tt.want {
				t.Errorf("expected %s members, got %q", tt.want, out)
			}
		})
	}
}

func TestGenerateErrors(t *testing.T) {
	dir, input := writeHeaders(t)
	tests := []struct {
		name string
		args []string
	}{
		{"Unknown struct", []string{input, "-s", "missing", "-o", filepath.Join(dir, "x.yml")}},
		{"Bad pack", []string{input, "-p", "0"}},
		{"Bad format", []string{input, "-f", "xml"}},
		{"Diagram without struct", []string{input, "--diagram", filepath.Join(dir, "x.png"), "-o", filepath.Join(dir, "x.yml")}},
		{"Missing input", []string{filepath.Join(dir, "nope.h")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, tt.args...); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestDiagramFlag(t *testing.T) {
	dir, input := writeHeaders(t)
	png := filepath.Join(dir, "pt.png")
	if _, err := run(t, input, "-s", "pt", "-o", filepath.Join(dir, "pt.yml"), "--diagram", png); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if fi, err := os.Stat(png); err != nil || fi.Size() == 0 {
		t.Errorf("diagram was not written")
	}
}

func TestDump(t *testing.T) {
	_, input := writeHeaders(t)
	out, err := run(t, "dump", input, "--only", "catalog,decls")
	if err != nil {
		t.Fatalf("dump failed: %v", err)
	}
	for _, want := range []string{"Catalog (pack 8 bits, pointers 32 bits)", "structs  pt rec", "typedefs u16", "Declarations ("} {
		if !strings.Contains(out, want) {
			t.Errorf("dump output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Tokens (") {
		t.Error("tokens section should be filtered out")
	}

	if _, err := run(t, "dump", input, "--only", "bogus"); err == nil {
		t.Error("expected an error for an unknown section")
	}
}

func TestSourceFiles(t *testing.T) {
	dir, input := writeHeaders(t)
	u, err := analyze.LoadPath(input, config.Default())
	if err != nil {
		t.Fatal(err)
	}
	files, err := sourceFiles(input, u)
	if err != nil {
		t.Fatal(err)
	}
	abs, _ := filepath.Abs(dir)
	for _, name := range []string{"main.h", "types.h"} {
		if !files[filepath.Join(abs, name)] {
			t.Errorf("%s not watched: %v", name, files)
		}
	}

	files, err = sourceFiles(input, nil)
	if err != nil || len(files) != 1 {
		t.Errorf("expected only the input for a failed run, got %v", files)
	}
}

func TestRenderSummary(t *testing.T) {
	s := emit.Summary{Name: "pt", SizeBits: 40, PackBits: 8, Members: 2}
	got := renderSummary("pt.yml", s, false)
	want := "Wrote pt.yml\n" +
		"  Name:       pt\n" +
		"  Total size: 40 bits (5 bytes)\n" +
		"  Alignment:  8 bits\n" +
		"  Members:    2\n"
	if got != want {
		t.Errorf("expected:\n%s\ngot:\n%s", want, got)
	}
}

func TestBrowseModel(t *testing.T) {
	_, input := writeHeaders(t)
	u, err := analyze.LoadPath(input, config.Default())
	if err != nil {
		t.Fatal(err)
	}
	res, err := u.ResolveAll(t.Context())
	if err != nil {
		t.Fatal(err)
	}

	m := newBrowseModel(u.Name, res)
	key := func(s string) {
		var msg tea.KeyMsg
		switch s {
		case "down":
			msg = tea.KeyMsg{Type: tea.KeyDown}
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		}
		m.Update(msg)
	}

	key("down")
	key("down")
	if m.selected != 1 {
		t.Errorf("selection should stop at the last type, got %d", m.selected)
	}
	key("enter")
	if m.state != stateMembers || len(m.rows) != 2 {
		t.Fatalf("expected the members of rec, got state %d with %d rows", m.state, len(m.rows))
	}
	if !strings.Contains(m.View(), "flags") {
		t.Errorf("member view missing flags:\n%s", m.View())
	}
	key("esc")
	if m.state != stateList {
		t.Error("esc should return to the list")
	}
}
