// Package cparse is a declaration-only C front-end.
//
// It lexes preprocessed C text and parses typedefs, struct/union/enum
// specifiers and declarators into a small closed tree (see TypeNode). Function
// bodies and initializers are skipped, so any header or source file whose
// declarations use standard C syntax can be read without a full compiler.
//
//	tokens, err := cparse.Lex(text)
//	if err != nil {
//		return err
//	}
//	file, err := cparse.Parse(tokens, text)
package cparse
