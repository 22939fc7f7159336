package emit

import (
	"github.com/itchyny/gojq"

	"cstruct2yaml/pkg/diag"
)

// Query runs the jq expression expr over doc and returns every value it
// produces.
//
//	emit.Query(doc, `.struct_definition.members[] | select(.is_bitfield) | .name`)
func Query(doc *Map, expr string) ([]any, error) {
	q, err := gojq.Parse(expr)
	if err != nil {
		return nil, diag.New(diag.PhaseEmit, diag.KindSyntax).
			Snippet(expr).
			Detail("invalid query").
			Cause(err).
			Build()
	}

	var out []any
	iter := q.Run(doc.Plain())
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := v.(error); ok {
			if herr, ok := err.(*gojq.HaltError); ok && herr.Value() == nil {
				break
			}
			return nil, diag.New(diag.PhaseEmit, diag.KindSyntax).
				Snippet(expr).
				Detail("query failed").
				Cause(err).
				Build()
		}
		out = append(out, v)
	}
	return out, nil
}
