package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/tdewolff/argp"
	"github.com/tdewolff/jsmin/js"
)

// Version is the current jsmin version.
var Version = "built from source"

func main() {
	// deferred calls in run are executed before exiting
	os.Exit(run())
}

func run() int {
	o := newOptions()
	jsMinifier := js.Minifier{}
	jsOpts := jsOptions{}
	serveOpts := serveOptions{Root: ".", MaxAge: 1800}

	f := argp.New("jsmin")
	f.AddRest(&o.inputs, "inputs", "Input files or directories, leave blank to use stdin")
	f.AddOpt(&o.output, "o", "output", "Output file or directory, leave blank to use stdout")
	f.AddOpt(&o.mimetype, "", "type", "Filetype (eg. js or application/javascript), optional when specifying inputs")
	f.AddOpt(argp.Append{I: &o.matches}, "", "match", "Filename matching pattern, only matching filenames are processed")
	f.AddOpt(filterFlag{&o.filters, true}, "", "include", "Path inclusion pattern, includes paths previously excluded")
	f.AddOpt(filterFlag{&o.filters, false}, "", "exclude", "Path exclusion pattern, excludes paths from being processed")
	f.AddOpt(&o.extensions, "", "ext", "Filename extension mapping to filetype (eg. js or application/javascript)")
	f.AddOpt(&o.recursive, "r", "recursive", "Recursively minify directories")
	f.AddOpt(&o.hidden, "a", "all", "Minify all files, including hidden files and files in hidden directories")
	f.AddOpt(&o.list, "l", "list", "List all accepted filetypes")
	f.AddOpt(&o.quiet, "q", "quiet", "Quiet mode to suppress all output")
	f.AddOpt(argp.Count{I: &o.verbose}, "v", "verbose", "Verbose mode, set twice for more verbosity")
	f.AddOpt(&o.watch, "w", "watch", "Watch files and minify upon changes")
	f.AddOpt(&o.synchronize, "s", "sync", "Copy all files to destination directory and minify when filetype matches")
	f.AddOpt(&o.preserve, "p", "preserve", "Preserve options (mode, ownership, timestamps, links, all)")
	f.AddOpt(&o.bundle, "b", "bundle", "Bundle files by concatenation into a single file")
	f.AddOpt(&o.version, "", "version", "Version")

	f.AddOpt(&jsMinifier.KeepLicenseComments, "", "js-keep-license", "Preserve /*! license comments */ on their own line")
	f.AddOpt(&jsOpts.Cmd, "", "js-cmd", "External command that minifies JS from stdin to stdout (eg. \"java -jar compiler.jar\")")
	f.AddOpt(&jsOpts.Esbuild, "", "js-esbuild", "Minify JS whitespace with esbuild, falling back to the built-in minifier on syntax errors")
	f.AddOpt(&jsOpts.Closure, "", "js-closure", "Minify JS with a Closure Compiler service URL, falling back to the built-in minifier")

	f.AddOpt(&serveOpts.Addr, "", "serve", "Serve groups and files over HTTP on this address (eg. :8080)")
	f.AddOpt(&serveOpts.Groups, "", "groups", "YAML file with groups of files to serve")
	f.AddOpt(&serveOpts.Root, "", "root", "Root directory of files requested with ?f=")
	f.AddOpt(&serveOpts.NoFiles, "", "no-files", "Only serve groups, disallow requesting files with ?f=")
	f.AddOpt(&serveOpts.CacheDir, "", "cache-dir", "Directory of the file cache, leave blank to disable caching")
	f.AddOpt(&serveOpts.Memcached, "", "memcached", "Comma-separated memcached server addresses (host:port) for caching")
	f.AddOpt(&serveOpts.MaxAge, "", "max-age", "Cache-Control max-age in seconds of served responses")
	f.Parse()

	if o.version {
		if !o.quiet {
			fmt.Printf("jsmin %s\n", Version)
		}
		return 0
	}

	logger, err := newLogger(o.quiet, o.verbose, serveOpts.Addr == "")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer logger.Sync()
	o.log = logger.Sugar()

	if err := o.compile(); err != nil {
		o.log.Error(err)
		return 1
	}
	if o.list {
		if !o.quiet {
			o.printExtensions()
		}
		return 0
	}
	if o.m, err = newMinifier(&jsMinifier, jsOpts); err != nil {
		o.log.Error(err)
		return 1
	}

	if serveOpts.Addr != "" {
		if 0 < len(o.inputs) || o.output != "" || o.watch || o.synchronize || o.bundle {
			o.log.Error("--serve cannot be used together with inputs, output, --watch, --sync or --bundle")
			return 1
		} else if err := runServer(serveOpts, o.m, logger); err != nil {
			o.log.Error(err)
			return 1
		}
		return 0
	}

	if err := o.validate(f.IsSet("preserve")); err != nil {
		o.log.Error(err)
		return 1
	}

	useStdin := len(o.inputs) == 0
	dirDst, err := o.resolveOutput()
	if err != nil {
		o.log.Error(err)
		return 1
	}

	var tasks []task
	var roots []string
	if useStdin {
		o.log.Info("minify from stdin")
		tasks = []task{{srcs: []string{""}, dst: o.output}}
	} else if tasks, roots, err = o.createTasks(localFS{}, o.inputs, o.output); err != nil {
		o.log.Error(err)
		return 1
	}
	if o.bundle {
		tasks = bundle(tasks)
	}

	if dirDst {
		if err := os.MkdirAll(o.output, 0777); err != nil {
			o.log.Error(err)
			return 1
		}
	}

	fails := 0
	if o.watch {
		fails = o.watchTasks(tasks, roots, o.output)
	} else {
		start := time.Now()
		fails = o.runTasks(tasks)
		o.log.Infof("finished in %v", time.Since(start))
	}
	if 0 < fails {
		return 1
	}
	return 0
}

func (o *options) printExtensions() {
	width := 0
	exts := make([]string, 0, len(o.extMap))
	for ext := range o.extMap {
		exts = append(exts, ext)
		if width < len(ext) {
			width = len(ext)
		}
	}
	sort.Strings(exts)
	for _, ext := range exts {
		fmt.Printf("%-*s  %s\n", width, ext, o.extMap[ext])
	}
}

// validate checks the combination of inputs, output and flags, and resolves --type to a mimetype.
func (o *options) validate(preserveSet bool) error {
	if len(o.inputs) == 1 && o.inputs[0] == "-" {
		o.inputs = o.inputs[:0]
	} else if o.output == "-" {
		o.output = ""
	}
	useStdin := len(o.inputs) == 0
	useStdout := o.output == ""

	if o.mimetype != "" && !strings.Contains(o.mimetype, "/") {
		mimetype, ok := o.extMap[o.mimetype]
		if !ok {
			return fmt.Errorf("unknown filetype %s", o.mimetype)
		}
		o.mimetype = mimetype
	}

	switch {
	case o.watch && (useStdin || useStdout):
		return errors.New("--watch doesn't work with stdin and stdout, specify input and output")
	case o.synchronize && (useStdin || useStdout):
		return errors.New("--sync doesn't work with stdin and stdout, specify input and output")
	case o.bundle && useStdin:
		return errors.New("--bundle doesn't work with stdin, specify input")
	case o.recursive && useStdin:
		return errors.New("--recursive doesn't work with stdin, specify input")
	case o.recursive && useStdout && !o.bundle:
		return errors.New("--recursive doesn't work with stdout, specify output or use --bundle")
	case o.mimetype == "" && useStdin:
		return errors.New("must specify --type for stdin")
	case o.mimetype != "" && o.synchronize:
		return errors.New("must specify either --sync or --type")
	case preserveSet && o.bundle:
		return errors.New("--preserve cannot be used together with --bundle")
	case preserveSet && (useStdin || useStdout):
		return errors.New("--preserve cannot be used together with stdin or stdout")
	}

	if o.mimetype == "" && !o.recursive {
		var unknown []string
		for _, input := range o.inputs {
			if _, ok := o.filetype(input); !ok {
				unknown = append(unknown, input)
			}
		}
		if 0 < len(unknown) {
			return fmt.Errorf("cannot infer mimetype from extension in %s, set --type explicitly", strings.Join(unknown, ", "))
		}
	}
	if o.mimetype == "" {
		o.log.Info("infer mimetype from file extensions")
	} else {
		o.log.Infof("use mimetype %s", o.mimetype)
	}
	if o.preserved.ownership && !supportsGetOwnership {
		o.log.Warn("preserve ownership not supported on platform")
	}

	for i, input := range o.inputs {
		if input == "-" {
			return errors.New("cannot mix files and stdin as input")
		}
		// a trailing separator is kept, it selects the directory contents instead of the directory
		o.inputs[i] = filepath.Clean(input)
		if input[len(input)-1] == os.PathSeparator {
			o.inputs[i] += string(os.PathSeparator)
		}
	}
	return nil
}

// resolveOutput decides whether the output is a directory, in which case it gets a trailing separator, and
// reports it.
func (o *options) resolveOutput() (bool, error) {
	if o.output == "" {
		if 1 < len(o.inputs) && !o.bundle {
			return false, errors.New("must specify --bundle for multiple input files with stdout destination")
		}
		o.log.Info("minify to stdout")
		return false, nil
	}

	dirDst := isDirPath(o.output)
	if !dirDst && !o.bundle {
		if 1 < len(o.inputs) {
			return false, fmt.Errorf("stat %v: no such file or directory", o.output)
		} else if len(o.inputs) == 1 && isDirPath(filepath.Clean(o.inputs[0])) {
			dirDst = true
		}
	}
	if dirDst && o.bundle {
		return false, errors.New("--bundle requires destination to be stdout or a file")
	}

	o.output = filepath.Clean(o.output)
	if !dirDst {
		o.log.Infof("minify to output file %s", o.output)
		return false, nil
	}
	o.output += string(os.PathSeparator)
	if o.output == "."+string(os.PathSeparator) {
		o.log.Info("minify to current working directory")
	} else {
		o.log.Infof("minify to output directory %s", o.output)
	}
	return true, nil
}
