package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// task minifies one or more sources, concatenated, into a destination. Empty paths stand for stdin and stdout.
// A copy-only task transfers the source untouched, it is used by --sync for files that are not minified.
type task struct {
	root     string
	srcs     []string
	dst      string
	copyOnly bool
}

// newTask returns a task for input. When output is a directory the destination mirrors the path of input relative
// to root.
func newTask(root, input, output string, copyOnly bool) (task, error) {
	if output == "." || output != "" && output[len(output)-1] == os.PathSeparator {
		rel, err := filepath.Rel(root, input)
		if err != nil {
			return task{}, err
		}
		output = filepath.Join(output, rel)
	}
	return task{root: root, srcs: []string{input}, dst: output, copyOnly: copyOnly}, nil
}

// taskList collects the tasks for the inputs of a single run.
type taskList struct {
	o      *options
	fsys   fs.FS
	output string
	tasks  []task
	roots  []string
}

// createTasks returns the tasks for the inputs and the roots of the input directories, which are used to map
// changed files back to their destination in watch mode.
func (o *options) createTasks(fsys fs.FS, inputs []string, output string) ([]task, []string, error) {
	l := &taskList{o: o, fsys: fsys, output: output, tasks: []task{}}
	for _, input := range inputs {
		if err := l.addInput(input); err != nil {
			return nil, nil, err
		}
	}
	return l.tasks, l.roots, nil
}

func (l *taskList) add(root, input string, copyOnly bool) error {
	t, err := newTask(root, input, l.output, copyOnly)
	if err != nil {
		return err
	}
	l.tasks = append(l.tasks, t)
	return nil
}

// addLink adds a task that recreates a symbolic link, which only happens when synchronizing.
func (l *taskList) addLink(root, input string) error {
	if !l.o.synchronize {
		l.o.log.Warnf("--sync not specified, omitting symbolic link %s", input)
		return nil
	}
	return l.add(root, input, true)
}

// addInput adds the tasks for an input file or directory. An input with a trailing separator is its own root, so
// that its contents are written directly into the output directory.
func (l *taskList) addInput(input string) error {
	root := filepath.Dir(input)
	input = filepath.Clean(input)

	var info fs.FileInfo
	var err error
	if l.o.preserved.links {
		info, err = os.Lstat(input)
	} else {
		info, err = fs.Stat(l.fsys, input)
	}
	if err != nil {
		return err
	}

	switch mode := info.Mode(); {
	case mode&fs.ModeSymlink != 0:
		return l.addLink(root, input)
	case mode.IsRegular():
		// an explicit input is not filtered on its filetype
		selected := l.o.selected(input)
		if selected || l.o.synchronize {
			return l.add(root, input, !selected)
		}
		return nil
	case mode.IsDir():
		if !l.o.recursive {
			l.o.log.Warnf("--recursive not specified, omitting directory %s", input)
			return nil
		}
		if err := l.walk(root, input); err != nil {
			return err
		}
		l.roots = append(l.roots, root)
		return nil
	}
	return fmt.Errorf("not a file or directory %s", input)
}

func (l *taskList) walk(root, dir string) error {
	return fs.WalkDir(l.fsys, dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if name == "." || name == ".." {
			return nil
		} else if name == "" || !l.o.hidden && name[0] == '.' {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			if l.o.preserved.links {
				return l.addLink(root, path)
			}
			// dereference
			info, err := fs.Stat(l.fsys, path)
			if err != nil {
				return err
			} else if info.IsDir() {
				return l.walk(root, path)
			}
			d = fs.FileInfoToDirEntry(info)
		}

		if d.Type().IsRegular() {
			minifiable := l.o.minifiable(path)
			if minifiable || l.o.synchronize {
				return l.add(root, path, !minifiable)
			}
		}
		return nil
	})
}

// bundle merges all tasks into the first, concatenating their sources into a single destination.
func bundle(tasks []task) []task {
	if len(tasks) < 2 {
		return tasks
	}
	for _, t := range tasks[1:] {
		tasks[0].srcs = append(tasks[0].srcs, t.srcs...)
	}
	return tasks[:1]
}
