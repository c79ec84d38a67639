package main

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tdewolff/jsmin"
	"go.uber.org/zap"
)

// defaultExtensions maps filename extensions to the filetypes that have a registered minifier.
var defaultExtensions = map[string]string{
	"cjs": "application/javascript",
	"css": "text/css",
	"js":  "application/javascript",
	"mjs": "application/javascript",
}

// options holds the parsed command line together with the state derived from it.
type options struct {
	inputs      []string
	output      string
	mimetype    string
	matches     []string
	filters     []pathFilter
	extensions  map[string]string
	recursive   bool
	hidden      bool
	list        bool
	quiet       bool
	verbose     int
	version     bool
	watch       bool
	synchronize bool
	bundle      bool
	preserve    []string

	extMap    map[string]string
	matchRes  []*regexp.Regexp
	preserved preserveFlags
	m         *jsmin.M
	log       *zap.SugaredLogger
}

func newOptions() *options {
	o := &options{
		extMap: map[string]string{},
		log:    zap.NewNop().Sugar(),
	}
	for ext, filetype := range defaultExtensions {
		o.extMap[ext] = filetype
	}
	o.preserve = []string{"mode", "timestamps"}
	if supportsGetOwnership {
		o.preserve = []string{"mode", "ownership", "timestamps"}
	}
	return o
}

// compile resolves the extension mapping, the path patterns and the preserve list.
func (o *options) compile() error {
	for ext, filetype := range o.extensions {
		if mimetype, ok := o.extMap[filetype]; ok {
			filetype = mimetype
		}
		o.extMap[ext] = filetype
	}

	o.matchRes = o.matchRes[:0]
	for _, pattern := range o.matches {
		re, err := compilePattern(pattern)
		if err != nil {
			return err
		}
		o.matchRes = append(o.matchRes, re)
	}
	for i := range o.filters {
		re, err := compilePattern(o.filters[i].pattern)
		if err != nil {
			return err
		}
		o.filters[i].re = re
	}

	var err error
	o.preserved, err = parsePreserve(o.preserve)
	return err
}

// filetype returns the mimetype for a filename by its extension.
func (o *options) filetype(filename string) (string, bool) {
	ext := strings.TrimPrefix(filepath.Ext(filename), ".")
	mimetype, ok := o.extMap[ext]
	return mimetype, ok
}

// selected reports whether a path passes the --match patterns on its base name and the --include/--exclude
// patterns on its full path. The last matching include or exclude pattern decides.
func (o *options) selected(filename string) bool {
	if 0 < len(o.matchRes) {
		base := filepath.Base(filename)
		match := false
		for _, re := range o.matchRes {
			if re.MatchString(base) {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}
	selected := true
	for _, filter := range o.filters {
		if filter.re.MatchString(filename) {
			selected = filter.include
		}
	}
	return selected
}

// minifiable reports whether a file found while walking a directory is minified rather than copied or skipped.
func (o *options) minifiable(filename string) bool {
	if !o.selected(filename) {
		return false
	} else if o.mimetype != "" {
		return true
	}
	_, ok := o.filetype(filename)
	return ok
}

type pathFilter struct {
	pattern string
	include bool
	re      *regexp.Regexp
}

// filterFlag appends comma-separated path patterns to the filters, it implements argp.Custom.
type filterFlag struct {
	filters *[]pathFilter
	include bool
}

func (f filterFlag) Help() (string, string) {
	return "", "[]string"
}

func (f filterFlag) Scan(name string, s []string) (int, error) {
	if len(s) == 0 || s[0] == "" {
		return 0, fmt.Errorf("missing pattern for --%s", name)
	}
	for _, pattern := range strings.Split(s[0], ",") {
		*f.filters = append(*f.filters, pathFilter{pattern: pattern, include: f.include})
	}
	return 1, nil
}

// compilePattern compiles a glob, or a regular expression when prefixed by ~. A single * or ? does not cross
// directory separators while ** does.
func compilePattern(pattern string) (*regexp.Regexp, error) {
	if strings.HasPrefix(pattern, "~") {
		return regexp.Compile(pattern[1:])
	}
	if strings.HasPrefix(pattern, `\~`) {
		pattern = pattern[1:]
	}
	sep := regexp.QuoteMeta(string(filepath.Separator))
	replacer := strings.NewReplacer(
		`\*\*`, `.*`,
		`\*`, `[^`+sep+`]*`,
		`\?`, `[^`+sep+`]?`,
	)
	return regexp.Compile("^" + replacer.Replace(regexp.QuoteMeta(pattern)) + "$")
}

type preserveFlags struct {
	mode       bool
	ownership  bool
	timestamps bool
	links      bool
}

func parsePreserve(names []string) (preserveFlags, error) {
	p := preserveFlags{}
	for _, name := range names {
		switch strings.TrimSpace(name) {
		case "all":
			p = preserveFlags{true, true, true, true}
		case "mode":
			p.mode = true
		case "ownership":
			p.ownership = true
		case "timestamps":
			p.timestamps = true
		case "links":
			p.links = true
		case "":
		default:
			return p, fmt.Errorf("unknown preserve option %q", name)
		}
	}
	return p, nil
}
