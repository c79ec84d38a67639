package serve

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v2"
)

// Group is a named list of files that is served as one response. Type is optional and overrides the type derived
// from the file extensions.
type Group struct {
	Type  string   `yaml:"type"`
	Files []string `yaml:"files"`
}

// UnmarshalYAML accepts either a list of files or a mapping with type and files.
func (g *Group) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var files []string
	if err := unmarshal(&files); err == nil {
		*g = Group{Files: files}
		return nil
	}

	type group Group
	var v group
	if err := unmarshal(&v); err != nil {
		return err
	}
	*g = Group(v)
	return nil
}

// Groups maps group names to groups.
type Groups map[string]Group

// ParseGroups parses a YAML groups configuration, such as
//
//	base: [js/jquery.js, js/site.js]
//	print:
//	  type: text/css
//	  files: [css/print.css]
func ParseGroups(b []byte) (Groups, error) {
	groups := Groups{}
	if err := yaml.UnmarshalStrict(b, &groups); err != nil {
		return nil, fmt.Errorf("groups: %w", err)
	}
	for name, g := range groups {
		if !validName(name) {
			return nil, fmt.Errorf("groups: invalid group name %q", name)
		} else if len(g.Files) == 0 {
			return nil, fmt.Errorf("groups: group %q has no files", name)
		} else if g.Type != "" && separators[g.Type] == nil {
			return nil, fmt.Errorf("groups: group %q has unsupported type %q", name, g.Type)
		}
	}
	return groups, nil
}

// LoadGroups reads and parses a YAML groups configuration file. Relative file paths are resolved against root.
func LoadGroups(filename, root string) (Groups, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	groups, err := ParseGroups(b)
	if err != nil {
		return nil, err
	}
	for name, g := range groups {
		for i, file := range g.Files {
			if !filepath.IsAbs(file) {
				g.Files[i] = filepath.Join(root, file)
			}
		}
		groups[name] = g
	}
	return groups, nil
}

// Names returns the sorted group names.
func (groups Groups) Names() []string {
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func validName(name string) bool {
	if name == "" {
		return false
	}
	for _, c := range name {
		if !('a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9' || c == '-' || c == '_' || c == '.') {
			return false
		}
	}
	return name != "." && name != ".."
}
