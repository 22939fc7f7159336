package preprocess

import (
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"cstruct2yaml/pkg/diag"
)

var includePattern = regexp.MustCompile(`^\s*#\s*include\s*"([^"]+)"`)

// inliner expands #include "file" directives against an fs.FS. Each file is
// inlined at most once per unit, which also breaks include cycles.
type inliner struct {
	fsys    fs.FS
	diags   *diag.Collector
	inlined map[string]bool
	order   []string
}

func newInliner(fsys fs.FS, diags *diag.Collector) *inliner {
	return &inliner{fsys: fsys, diags: diags, inlined: make(map[string]bool)}
}

// file reads name and returns its text with every local include replaced
// by the included file's own inlined text.
func (in *inliner) file(name string) (string, error) {
	name = path.Clean(name)
	data, err := fs.ReadFile(in.fsys, name)
	if err != nil {
		return "", err
	}
	in.inlined[name] = true
	in.order = append(in.order, name)
	return in.text(string(data), path.Dir(name)), nil
}

// text inlines the includes of src. Includes resolve relative to dir.
func (in *inliner) text(src, dir string) string {
	lines := strings.Split(src, "\n")
	var result strings.Builder

	for i, line := range lines {
		if i > 0 {
			result.WriteByte('\n')
		}
		m := includePattern.FindStringSubmatch(line)
		if m == nil {
			result.WriteString(line)
			continue
		}

		target := path.Join(dir, m[1])
		if in.inlined[target] {
			Logger().Debug("include already inlined", zap.String("file", target))
			continue
		}

		content, err := in.file(target)
		if err != nil {
			Logger().Warn("include not found", zap.String("file", m[1]), zap.Error(err))
			in.diags.Report(diag.New(diag.PhasePreprocess, diag.KindIncludeNotFound).
				Symbol(m[1]).
				Detail("include %q not found, replaced by a comment", m[1]).
				Cause(err).
				Build())
			fmt.Fprintf(&result, "// Include not found: %s", m[1])
			continue
		}
		result.WriteString(content)
	}
	return result.String()
}
