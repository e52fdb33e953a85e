package script

import (
	"embed"
	"io/fs"
	"path"
	"path/filepath"
	"sort"

	"github.com/wippyai/sharedref/errors"
)

//go:embed scenarios/*.yaml
var scenarioFS embed.FS

// Builtin returns the bundled scenarios sorted by name.
func Builtin() ([]*Script, error) {
	entries, err := fs.ReadDir(scenarioFS, "scenarios")
	if err != nil {
		return nil, errors.Wrap(errors.PhaseScript, errors.KindNotFound, err, "read bundled scenarios")
	}

	scripts := make([]*Script, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".yaml" {
			continue
		}
		data, err := scenarioFS.ReadFile(path.Join("scenarios", e.Name()))
		if err != nil {
			return nil, errors.Wrap(errors.PhaseScript, errors.KindNotFound, err, "read "+e.Name())
		}
		s, err := Parse(data)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseScript, errors.KindInvalidData, err, e.Name())
		}
		scripts = append(scripts, s)
	}
	sort.Slice(scripts, func(i, j int) bool { return scripts[i].Name < scripts[j].Name })
	return scripts, nil
}

// Lookup returns the bundled scenario called name.
func Lookup(name string) (*Script, error) {
	scripts, err := Builtin()
	if err != nil {
		return nil, err
	}
	for _, s := range scripts {
		if s.Name == name {
			return s, nil
		}
	}
	return nil, errors.NotFound(errors.PhaseScript, "scenario", name)
}

// LoadDir parses every .yaml file in dir, sorted by scenario name.
func LoadDir(dir string) ([]*Script, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseScript, errors.KindInvalidInput, err, "glob "+dir)
	}
	scripts := make([]*Script, 0, len(matches))
	for _, m := range matches {
		s, err := Load(m)
		if err != nil {
			return nil, err
		}
		scripts = append(scripts, s)
	}
	sort.Slice(scripts, func(i, j int) bool { return scripts[i].Name < scripts[j].Name })
	return scripts, nil
}
