package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cstruct2yaml/pkg/analyze"
	"cstruct2yaml/pkg/config"
	"cstruct2yaml/pkg/diagram"
	"cstruct2yaml/pkg/emit"
	"cstruct2yaml/pkg/layout"
)

// options holds the raw flag values. Only flags the user set override the
// configuration file.
type options struct {
	structName  string
	output      string
	format      string
	query       string
	diagram     string
	configPath  string
	pack        int
	pointerSize int
	verbose     bool
	watch       bool

	noBitfields    bool
	noOffsets      bool
	noChildren     bool
	noAnonymous    bool
	noBitPrecision bool
	flatten        bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "cstruct2yaml <header.h>",
		Short: "Describe C struct and union layouts as YAML or JSON",
		Long: `cstruct2yaml reads a C header, resolves the memory layout of its structs
and unions at bit precision, and writes the result as a YAML or JSON document.

Commands:
  dump    Print the preprocessed source, tokens, declarations and catalog
  browse  Explore the resolved layouts interactively
`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(opts.verbose)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config(cmd)
			if err != nil {
				return err
			}
			if opts.watch {
				return watch(cmd.Context(), cmd.OutOrStdout(), args[0], cfg, opts)
			}
			_, err = generate(cmd.Context(), cmd.OutOrStdout(), args[0], cfg, opts)
			return err
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.structName, "struct", "s", "", "struct or union to analyze (default: all)")
	f.StringVarP(&opts.output, "output", "o", "", "output file (default: <struct>.yml or <input>_structs.yml)")
	f.StringVarP(&opts.format, "format", "f", config.FormatYAML, "output format: yaml or json")
	f.StringVarP(&opts.query, "query", "q", "", "jq expression to run over the document instead of writing it")
	f.StringVar(&opts.diagram, "diagram", "", "also draw the selected layout to a .png or .svg file")
	f.IntVarP(&opts.pack, "pack", "p", 1, "pack alignment in bytes")
	f.IntVar(&opts.pointerSize, "pointer-size", config.Default().PointerSize, "pointer size in bits")
	f.BoolVar(&opts.watch, "watch", false, "regenerate whenever the header or one of its includes changes")
	f.BoolVar(&opts.noBitfields, "no-bitfields", false, "omit bitfield details")
	f.BoolVar(&opts.noOffsets, "no-offsets", false, "omit member offsets")
	f.BoolVar(&opts.noChildren, "no-children", false, "omit nested members")
	f.BoolVar(&opts.noAnonymous, "no-anonymous", false, "omit the anonymous member marker")
	f.BoolVar(&opts.noBitPrecision, "no-bit-precision", false, "omit the byte/bit breakdown of offsets and sizes")
	f.BoolVar(&opts.flatten, "flatten", false, "list members of anonymous structs and unions directly in their parent")

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "YAML configuration file")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "verbose logging")

	cmd.AddCommand(newDumpCmd(opts), newBrowseCmd(opts))
	return cmd
}

// config loads the configuration file, if any, and applies the flags that
// were set explicitly.
func (o *options) config(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		var err error
		if cfg, err = config.Load(o.configPath); err != nil {
			return cfg, err
		}
	}

	changed := func(name string) bool {
		fl := cmd.Flags().Lookup(name)
		return fl != nil && fl.Changed
	}
	if changed("pack") {
		cfg.PackAlignment = o.pack * 8
	}
	if changed("pointer-size") {
		cfg.PointerSize = o.pointerSize
	}
	if changed("format") {
		cfg.OutputFormat = o.format
	}
	if changed("verbose") {
		cfg.Verbose = o.verbose
	}
	if changed("no-bitfields") {
		cfg.IncludeBitfields = !o.noBitfields
	}
	if changed("no-offsets") {
		cfg.IncludeOffsets = !o.noOffsets
	}
	if changed("no-children") {
		cfg.IncludeChildren = !o.noChildren
	}
	if changed("no-anonymous") {
		cfg.IncludeAnonymous = !o.noAnonymous
	}
	if changed("no-bit-precision") {
		cfg.BitPrecision = !o.noBitPrecision
	}
	if changed("flatten") {
		cfg.FlattenAnonymous = o.flatten
	}
	return cfg, cfg.Validate()
}

// generate runs one full pass over input and returns the analysed unit.
func generate(ctx context.Context, out io.Writer, input string, cfg config.Config, opts *options) (*analyze.Unit, error) {
	u, err := analyze.LoadPath(input, cfg)
	if err != nil {
		return nil, err
	}

	eopts := emit.NewOptions(cfg, u.Policy.PackBits)
	var (
		doc     *emit.Map
		summary emit.Summary
		target  *layout.FieldDescriptor
	)
	if opts.structName != "" {
		fd, err := u.Layout(opts.structName)
		if err != nil {
			return u, err
		}
		doc = emit.Single(fd, eopts)
		summary = emit.SingleSummary(fd, u.Policy.PackBits)
		target = fd
	} else {
		res, err := u.ResolveAll(ctx)
		if err != nil {
			return u, err
		}
		doc = emit.All(res.Structs, res.Unions, eopts)
		summary = emit.AllSummary(res.Structs, res.Unions, u.Policy.PackBits)
	}
	reportDiagnostics(u)

	if opts.diagram != "" {
		if target == nil {
			return u, errors.New("--diagram needs --struct")
		}
		if err := diagram.Build(target, 0).WriteFile(opts.diagram); err != nil {
			return u, err
		}
	}

	if opts.query != "" {
		results, err := emit.Query(doc, opts.query)
		if err != nil {
			return u, err
		}
		for _, r := range results {
			if err := emit.Write(out, r, config.FormatJSON); err != nil {
				return u, err
			}
		}
		return u, nil
	}

	path := opts.output
	if path == "" {
		path = analyze.DefaultOutputName(input, opts.structName, cfg.Extension())
	}
	if err := writeDocument(path, doc, cfg.OutputFormat); err != nil {
		return u, err
	}
	printSummary(out, path, summary)
	return u, nil
}

func writeDocument(path string, doc *emit.Map, format string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := emit.Write(f, doc, format); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func reportDiagnostics(u *analyze.Unit) {
	for _, d := range u.Diags.List() {
		zap.L().Warn(d.Error(), zap.String("file", u.Name))
	}
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, context.Canceled) {
		return 130
	}
	return 1
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(exitCode(err))
}
