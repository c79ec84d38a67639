package main

import (
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher is a wrapper for watching file changes in directories.
type Watcher struct {
	watcher   *fsnotify.Watcher
	dirs      map[string]bool
	paths     map[string]bool
	recursive bool
	log       *zap.SugaredLogger

	mu     sync.Mutex // guards dirs, paths and ignore
	ignore map[string]bool
}

// NewWatcher returns a new Watcher.
func NewWatcher(recursive bool, log *zap.SugaredLogger) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		watcher:   watcher,
		dirs:      map[string]bool{},
		paths:     map[string]bool{},
		recursive: recursive,
		log:       log,
		ignore:    map[string]bool{},
	}, nil
}

// Close closes the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// IgnoreNext skips the next change of filename, used for output files that are written by a task.
func (w *Watcher) IgnoreNext(filename string) {
	if filename == "" {
		return
	}
	w.mu.Lock()
	w.ignore[filepath.Clean(filename)] = true
	w.mu.Unlock()
}

func (w *Watcher) ignored(filename string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ignore[filename] {
		delete(w.ignore, filename)
		return true
	}
	return false
}

// AddPath adds a new path to watch.
func (w *Watcher) AddPath(root string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.paths[root] = true

	info, err := os.Lstat(root)
	if err != nil {
		return err
	}

	if info.Mode().IsRegular() {
		root = filepath.Dir(root)
		if w.dirs[root] {
			return nil
		}
		if err := w.watcher.Add(root); err != nil {
			return err
		}
		w.dirs[root] = true
	} else if info.Mode().IsDir() && w.recursive {
		return filepath.WalkDir(filepath.Clean(root), func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if w.dirs[path] {
					return fs.SkipDir
				}
				if err := w.watcher.Add(path); err != nil {
					return err
				}
				w.dirs[path] = true
			}
			return nil
		})
	}
	return nil
}

// Run watches for file changes.
func (w *Watcher) Run() chan string {
	files := make(chan string, 10)
	go func() {
		changetimes := map[string]time.Time{}
		for w.watcher.Events != nil && w.watcher.Errors != nil {
			select {
			case event, ok := <-w.watcher.Events:
				if !ok {
					w.watcher.Events = nil
					break
				}

				name := filepath.Clean(event.Name)
				if !w.watched(name) {
					break
				}

				if info, err := os.Lstat(name); err == nil {
					if info.Mode().IsDir() && w.recursive {
						if event.Op&fsnotify.Create == fsnotify.Create {
							if err := w.AddPath(name); err != nil {
								w.log.Error(err)
							}
						}
					} else if info.Mode().IsRegular() {
						if event.Op&fsnotify.Write == fsnotify.Write {
							if w.ignored(name) {
								break
							}
							if t, ok := changetimes[name]; !ok || 100*time.Millisecond < time.Since(t) {
								time.Sleep(100 * time.Millisecond) // wait to make sure write is finished
								files <- name
								changetimes[name] = time.Now()
							}
						}
					}
				}
			case err, ok := <-w.watcher.Errors:
				if !ok {
					w.watcher.Errors = nil
					break
				}
				w.log.Error(err)
			}
		}
		close(files)
	}()
	return files
}

// watched returns true if the file is being watched, either directly or through one of its parent directories.
func (w *Watcher) watched(name string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path := range w.paths {
		if !isDirPath(path) {
			if filepath.Clean(path) == name {
				return true
			}
		} else if rel, err := filepath.Rel(path, name); err == nil && !strings.HasPrefix(rel, "..") {
			return true
		}
	}
	return false
}

// watchTasks runs the initial tasks and then reruns a task for every changed input until interrupted. It returns
// the number of failed tasks.
func (o *options) watchTasks(tasks []task, roots []string, output string) int {
	w, err := NewWatcher(o.recursive, o.log)
	if err != nil {
		o.log.Error(err)
		return 1
	}
	defer w.Close()
	changes := w.Run()
	for _, input := range o.inputs {
		if err := w.AddPath(input); err != nil {
			o.log.Error(err)
			return 1
		}
	}

	queue := make(chan task, 20)
	results := o.startWorkers(queue)
	for _, t := range tasks {
		w.IgnoreNext(t.dst)
		queue <- t
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)

	fails := 0
	for changes != nil {
		select {
		case <-interrupt:
			w.Close()
		case file, ok := <-changes:
			if !ok {
				changes = nil
				break
			}
			file = filepath.Clean(file)
			t, err := newTask(closestRoot(roots, file), file, output, !o.minifiable(file))
			if err != nil {
				o.log.Error(err)
				fails++
				break
			}
			w.IgnoreNext(t.dst)
			queue <- t
		}
	}
	close(queue)
	for n := range results {
		fails += n
	}
	return fails
}

// closestRoot returns the root that file is nearest to, such that its destination mirrors the same relative path
// as when the root was walked initially.
func closestRoot(roots []string, file string) string {
	root := ""
	for _, candidate := range roots {
		relCandidate, err1 := filepath.Rel(candidate, file)
		relRoot, err2 := filepath.Rel(root, file)
		if err1 == nil && (err2 != nil || len(relCandidate) < len(relRoot)) {
			root = candidate
		}
	}
	return root
}
