// Package analyze runs the whole pipeline for one translation unit: read the
// root file and inline its includes, preprocess, lex, parse, build the type
// catalog and bind a layout resolver to the effective alignment policy.
//
//	u, err := analyze.LoadPath("include/device.h", config.Default())
//	if err != nil {
//		return err
//	}
//	fd, err := u.Layout("DeviceManager")
//
// Recoverable problems end up in Unit.Diags; only unreadable input, syntax
// errors and invalid configuration fail a load.
package analyze
