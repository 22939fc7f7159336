package analyze

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"cstruct2yaml/pkg/config"
	"cstruct2yaml/pkg/cparse"
	"cstruct2yaml/pkg/diag"
	"cstruct2yaml/pkg/layout"
	"cstruct2yaml/pkg/preprocess"
	"cstruct2yaml/pkg/utils"
)

// Unit is one analysed translation unit: the preprocessed text, the parsed
// declarations, the catalog built from them and a resolver bound to the
// effective alignment policy.
type Unit struct {
	Name     string
	Source   *preprocess.Result
	Tokens   []cparse.Token
	File     *cparse.File
	Catalog  *layout.Catalog
	Policy   layout.Policy
	Resolver *layout.Resolver
	Diags    *diag.Collector
}

// LoadFile analyses the file at name in fsys, inlining its local includes.
func LoadFile(fsys fs.FS, name string, cfg config.Config) (*Unit, error) {
	diags := diag.NewCollector()
	res, err := preprocess.New(fsys, diags).ProcessFile(name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return build(name, res, cfg, diags)
}

// LoadSource analyses src as a translation unit called name. Includes are
// not resolved.
func LoadSource(name, src string, cfg config.Config) (*Unit, error) {
	diags := diag.NewCollector()
	res := preprocess.New(nil, diags).Process(src)
	return build(name, res, cfg, diags)
}

// LoadPath analyses a file on the local disk. Includes may reach any
// directory, including parents of the file's own.
func LoadPath(filename string, cfg config.Config) (*Unit, error) {
	fsys, name, err := RootFS(filename)
	if err != nil {
		return nil, err
	}
	u, err := LoadFile(fsys, name, cfg)
	if err != nil {
		return nil, err
	}
	u.Name = filename
	return u, nil
}

// RootFS returns a file system rooted at the volume holding filename, and
// the slash-separated name of the file within it.
func RootFS(filename string) (fs.FS, string, error) {
	_, root, name, err := utils.GetPathInfo(filename)
	if err != nil {
		return nil, "", err
	}
	return os.DirFS(root), name, nil
}

func build(name string, res *preprocess.Result, cfg config.Config, diags *diag.Collector) (*Unit, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	policy, err := cfg.Policy(res.PackBits)
	if err != nil {
		return nil, err
	}

	tokens, err := cparse.Lex(res.Text)
	if err != nil {
		return nil, diag.New(diag.PhaseParse, diag.KindSyntax).
			File(name).
			Detail("cannot tokenise preprocessed source").
			Cause(err).
			Build()
	}
	file, err := cparse.Parse(tokens, res.Text)
	if err != nil {
		var de *diag.Error
		if errors.As(err, &de) && de.File == "" {
			de.File = name
		}
		return nil, err
	}

	catalog := layout.BuildCatalog(file, diags)
	Logger().Info("translation unit analysed",
		zap.String("file", name),
		zap.Int("structs", len(catalog.StructNames())),
		zap.Int("unions", len(catalog.UnionNames())),
		zap.Int("pack_bits", policy.PackBits),
		zap.Strings("includes", res.Includes))

	return &Unit{
		Name:     name,
		Source:   res,
		Tokens:   tokens,
		File:     file,
		Catalog:  catalog,
		Policy:   policy,
		Resolver: layout.NewResolver(catalog, policy, diags),
		Diags:    diags,
	}, nil
}

// Layout resolves the struct or union called name.
func (u *Unit) Layout(name string) (*layout.FieldDescriptor, error) {
	fd, err := u.Resolver.Layout(name)
	if err != nil {
		var de *diag.Error
		if errors.As(err, &de) && de.File == "" {
			de.File = u.Name
		}
		return nil, err
	}
	return fd, nil
}

// Results holds every top-level layout of a unit in catalog order.
type Results struct {
	Structs []*layout.FieldDescriptor
	Unions  []*layout.FieldDescriptor
}

// ResolveAll lays out every cataloged struct and union. Types are resolved
// concurrently; the results keep catalog order.
func (u *Unit) ResolveAll(ctx context.Context) (*Results, error) {
	structNames := u.Catalog.StructNames()
	unionNames := u.Catalog.UnionNames()
	res := &Results{
		Structs: make([]*layout.FieldDescriptor, len(structNames)),
		Unions:  make([]*layout.FieldDescriptor, len(unionNames)),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	schedule := func(names []string, out []*layout.FieldDescriptor, resolve func(string) (*layout.FieldDescriptor, error)) {
		for i, name := range names {
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				fd, err := resolve(name)
				if err != nil {
					return fmt.Errorf("layout %s: %w", name, err)
				}
				out[i] = fd
				return nil
			})
		}
	}
	schedule(structNames, res.Structs, u.Resolver.LayoutStruct)
	schedule(unionNames, res.Unions, u.Resolver.LayoutUnion)

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return res, nil
}

// DefaultOutputName returns "<target>.yml" for a single type, or
// "<input-base>_structs.yml" for all types, using ext as the extension.
func DefaultOutputName(input, target, ext string) string {
	if target != "" {
		return target + ext
	}
	base := path.Base(filepath.ToSlash(input))
	return strings.TrimSuffix(base, path.Ext(base)) + "_structs" + ext
}
