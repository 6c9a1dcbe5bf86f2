package policy

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/drblury/routeflow/internal/rules"
)

//go:embed defaults/*.yaml
var defaultsFS embed.FS

// DefaultPolicyName is the built-in policy that defaults the tracking
// process name.
const DefaultPolicyName = "tracking-defaults"

// Defaults compiles the policies embedded in the binary.
func Defaults() ([]*rules.Policy, error) {
	return LoadFS(defaultsFS, "defaults/*.yaml")
}

// LoadFile reads and compiles a single document.
func LoadFile(path string) ([]*rules.Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	policies, err := Parse(data, DetectFormat(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return policies, nil
}

// LoadFS compiles every document in fsys matching pattern, in lexical order.
func LoadFS(fsys fs.FS, pattern string) ([]*rules.Policy, error) {
	matches, err := fs.Glob(fsys, pattern)
	if err != nil {
		return nil, err
	}
	slices.Sort(matches)

	var out []*rules.Policy
	for _, name := range matches {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, err
		}
		policies, err := Parse(data, DetectFormat(name))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out = append(out, policies...)
	}
	return out, nil
}

// Sources lists where policies come from. Paths may name files or
// directories; directories contribute their *.yaml, *.yml and *.json files.
type Sources struct {
	Embedded bool
	Paths    []string
}

// Load compiles every source. Policy names must be unique across sources.
func (s Sources) Load() ([]*rules.Policy, error) {
	var all []*rules.Policy
	if s.Embedded {
		defaults, err := Defaults()
		if err != nil {
			return nil, err
		}
		all = append(all, defaults...)
	}

	for _, path := range s.Paths {
		files, err := expand(path)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			policies, err := LoadFile(f)
			if err != nil {
				return nil, err
			}
			all = append(all, policies...)
		}
	}

	seen := make(map[string]struct{}, len(all))
	for _, p := range all {
		if _, dup := seen[p.Name()]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicatePolicy, p.Name())
		}
		seen[p.Name()] = struct{}{}
	}
	return all, nil
}

func expand(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !isPolicyFile(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(path, e.Name()))
	}
	return files, nil
}

func isPolicyFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}
