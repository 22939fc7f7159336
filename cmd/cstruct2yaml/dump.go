package main

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"cstruct2yaml/pkg/analyze"
)

var dumpSections = []string{"source", "macros", "tokens", "decls", "catalog", "diagnostics"}

func newDumpCmd(opts *options) *cobra.Command {
	var only []string
	cmd := &cobra.Command{
		Use:   "dump <header.h>",
		Short: "Print every intermediate stage of the analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, s := range only {
				if !slices.Contains(dumpSections, s) {
					return fmt.Errorf("unknown section %q (want one of %s)", s, strings.Join(dumpSections, ", "))
				}
			}
			cfg, err := opts.config(cmd.Root())
			if err != nil {
				return err
			}
			u, err := analyze.LoadPath(args[0], cfg)
			if err != nil {
				return err
			}
			dump(cmd.OutOrStdout(), u, only)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&only, "only", nil, "sections to print: "+strings.Join(dumpSections, ", "))
	return cmd
}

func dump(w io.Writer, u *analyze.Unit, only []string) {
	show := func(s string) bool { return len(only) == 0 || slices.Contains(only, s) }

	if show("source") {
		fmt.Fprintf(w, "Source (%s, includes %v)\n%s\n\n", u.Name, u.Source.Includes, u.Source.Text)
	}

	if show("macros") {
		fmt.Fprintf(w, "Macros (%d)\n", u.Source.Macros.Len())
		for _, name := range u.Source.Macros.Names() {
			m, _ := u.Source.Macros.Lookup(name)
			switch {
			case m.FunctionLike():
				fmt.Fprintf(w, "  %s(%s) %s\n", m.Name, strings.Join(m.Params, ", "), m.Body)
			case m.Numeric:
				fmt.Fprintf(w, "  %s = %d\n", m.Name, m.Value)
			default:
				fmt.Fprintf(w, "  %s %s\n", m.Name, m.Raw)
			}
		}
		fmt.Fprintln(w)
	}

	if show("tokens") {
		fmt.Fprintf(w, "Tokens (%d)\n", len(u.Tokens))
		for _, tok := range u.Tokens {
			fmt.Fprintln(w, " ", tok)
		}
		fmt.Fprintln(w)
	}

	if show("decls") {
		fmt.Fprintf(w, "Declarations (%d)\n", len(u.File.Decls))
		for _, d := range u.File.Decls {
			fmt.Fprintln(w, " ", d)
		}
		fmt.Fprintln(w)
	}

	if show("catalog") {
		fmt.Fprintf(w, "Catalog (pack %d bits, pointers %d bits)\n", u.Policy.PackBits, u.Policy.PointerBits)
		list := func(label string, names []string) {
			fmt.Fprintf(w, "  %-9s%s\n", label, strings.Join(names, " "))
		}
		list("structs", u.Catalog.StructNames())
		list("unions", u.Catalog.UnionNames())
		list("enums", u.Catalog.EnumNames())
		list("typedefs", u.Catalog.TypedefNames())
		fmt.Fprintln(w)
	}

	if show("diagnostics") {
		diags := u.Diags.List()
		fmt.Fprintf(w, "Diagnostics (%d)\n", len(diags))
		for _, d := range diags {
			fmt.Fprintln(w, " ", d)
		}
	}
}
