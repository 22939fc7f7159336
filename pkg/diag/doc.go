// Package diag defines the structured errors shared by the preprocessing,
// parsing and layout stages.
//
// Only syntax errors from the front-end (and invalid configuration) abort a
// run. Every other condition is recoverable: the stage substitutes a
// documented default and reports an *Error to a Collector so callers can show
// it as a warning.
//
//	err := diag.New(diag.PhaseParse, diag.KindSyntax).
//		Line(12).
//		Detail("expected ';'").
//		Build()
//
//	if errors.Is(err, &diag.Error{Phase: diag.PhaseParse, Kind: diag.KindSyntax}) { ... }
package diag
