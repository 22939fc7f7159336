package diag

import (
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"testing"
)

func TestErrorString(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "Phase and kind only",
			err:  New(PhaseResolve, KindNotFound).Build(),
			want: "[resolve] not_found",
		},
		{
			name: "Full location",
			err: New(PhaseParse, KindSyntax).
				File("a.h").
				Line(3).
				Symbol("x").
				Detail("expected %s", ";").
				Snippet("int x").
				Build(),
			want: "[parse] syntax at a.h:line 3 (x): expected ;\n  |> int x",
		},
		{
			name: "Line without file",
			err:  UnparseableCondition(7, "A <"),
			want: `[preprocess] unparseable_condition at line 7: cannot evaluate "A <", treating as false`,
		},
		{
			name: "Cause",
			err:  New(PhaseConfig, KindInvalidConfig).Cause(fs.ErrNotExist).Build(),
			want: "[config] invalid_config (caused by: file does not exist)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestIsAndUnwrap(t *testing.T) {
	err := fmt.Errorf("layout rec: %w", New(PhaseResolve, KindNotFound).Symbol("rec").Cause(fs.ErrNotExist).Build())

	if !errors.Is(err, &Error{Phase: PhaseResolve, Kind: KindNotFound}) {
		t.Error("expected phase and kind to match")
	}
	if errors.Is(err, &Error{Phase: PhaseParse, Kind: KindNotFound}) {
		t.Error("a different phase must not match")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Error("expected the cause to be reachable")
	}

	var de *Error
	if !errors.As(err, &de) || de.Symbol != "rec" {
		t.Errorf("errors.As failed: %v", de)
	}
}

func TestRecoverable(t *testing.T) {
	tests := []struct {
		kind Kind
		want bool
	}{
		{KindUnresolvedType, true},
		{KindUnsupportedConstant, true},
		{KindMissingDefinition, true},
		{KindUnparseableCondition, true},
		{KindIncludeNotFound, true},
		{KindRedefinition, true},
		{KindSyntax, false},
		{KindNotFound, false},
		{KindInvalidConfig, false},
	}
	for _, tt := range tests {
		if got := tt.kind.Recoverable(); got != tt.want {
			t.Errorf("%s.Recoverable() = %v; want %v", tt.kind, got, tt.want)
		}
	}
}

func TestCollector(t *testing.T) {
	c := NewCollector()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Report(MissingDefinition("node"))
			c.Report(UnresolvedType("u24"))
		}()
	}
	wg.Wait()
	c.Report(UnparseableCondition(2, "X ?"))
	c.Report(nil)

	if c.Len() != 3 {
		t.Fatalf("expected 3 distinct diagnostics, got %d", c.Len())
	}
	list := c.List()
	if list[0].Kind != KindUnparseableCondition {
		t.Errorf("preprocess diagnostics should sort first, got %s", list[0].Kind)
	}
	if list[1].Kind != KindMissingDefinition || list[2].Kind != KindUnresolvedType {
		t.Errorf("resolve diagnostics out of order: %s, %s", list[1].Kind, list[2].Kind)
	}

	var nilCollector *Collector
	nilCollector.Report(UnresolvedType("x"))
	if nilCollector.Len() != 0 || nilCollector.List() != nil {
		t.Error("a nil collector should discard everything")
	}
}
