package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/djherbis/atime"
	humanize "github.com/dustin/go-humanize"
)

// jsSeparator is written between concatenated JS sources so that a missing trailing semicolon cannot join
// statements of two files.
var jsSeparator = []byte(";\n")

// process runs a single task and reports whether it succeeded. Failures are logged.
func (o *options) process(t task) bool {
	if t.copyOnly {
		return o.copyFile(t)
	}

	mimetype, err := o.taskMimetype(t)
	if err != nil {
		o.log.Warn(err)
		return false
	}

	srcName := strings.Join(t.srcs, " + ")
	if 1 < len(t.srcs) {
		srcName = "(" + srcName + ")"
	} else if srcName == "" {
		srcName = "stdin"
	}
	dstName := t.dst
	if dstName == "" {
		dstName = "stdout"
	}

	// the destination overwrites one of the sources, which is read from a backup instead
	backup := ""
	for i, src := range t.srcs {
		if t.dst != "" && sameFile(src, t.dst) {
			backup = src + ".bak"
			if err := rename(t.dst, backup); err != nil {
				o.log.Error(err)
				return false
			}
			t.srcs[i] = backup
			break
		}
	}

	var sep []byte
	if mimetype == o.extMap["js"] {
		sep = jsSeparator
	}
	r, err := openInputs(t.srcs, sep)
	if err != nil {
		o.log.Error(err)
		return false
	}
	src, err := io.ReadAll(r)
	r.Close()
	if err != nil {
		o.log.Errorf("cannot minify %s: %v", srcName, err)
		return false
	}

	ok := true
	start := time.Now()
	out := bytes.NewBuffer(make([]byte, 0, len(src)))
	if err := o.m.Minify(mimetype, out, bytes.NewReader(src)); err != nil {
		o.log.Errorf("cannot minify %s: %v", srcName, err)
		out = bytes.NewBuffer(src)
		ok = false
	}
	dur := time.Since(start)
	size := out.Len()

	err = o.writeOutput(t.dst, out)
	if backup != "" {
		if err == nil {
			err = os.Remove(backup)
		} else if rerr := rename(backup, t.dst); rerr != nil {
			o.log.Error(rerr)
		}
		for i := range t.srcs {
			if t.srcs[i] == backup {
				t.srcs[i] = t.dst
			}
		}
	}
	if err != nil {
		o.log.Error(err)
		return false
	}

	if !o.quiet {
		o.printStats(srcName, dstName, len(src), size, dur)
	}
	o.preserveAttributes(t)
	return ok
}

func (o *options) writeOutput(dst string, r io.Reader) error {
	w, err := openOutput(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// copyFile transfers a file that is synchronized but not minified.
func (o *options) copyFile(t task) bool {
	src := t.srcs[0]
	if src == t.dst {
		return true
	}
	if info, err := os.Lstat(src); err == nil && info.Mode()&os.ModeSymlink != 0 && o.preserved.links {
		if err := copyLink(src, t.dst); err != nil {
			o.log.Error(err)
			return false
		}
		return true
	}

	r, err := openInputs(t.srcs, nil)
	if err != nil {
		o.log.Error(err)
		return false
	}
	defer r.Close()
	if err := o.writeOutput(t.dst, r); err != nil {
		o.log.Error(err)
		return false
	}
	o.preserveAttributes(t)
	o.log.Infof("copy %s to %s", src, t.dst)
	return true
}

// taskMimetype returns the --type mimetype or the one inferred from the source extensions, which must agree when
// sources are concatenated.
func (o *options) taskMimetype(t task) (string, error) {
	if o.mimetype != "" {
		return o.mimetype, nil
	}
	mimetype := ""
	for _, src := range t.srcs {
		srcMimetype, ok := o.filetype(src)
		if !ok {
			return "", fmt.Errorf("cannot infer mimetype from extension in %s, set --type explicitly", src)
		} else if mimetype != "" && srcMimetype != mimetype {
			return "", fmt.Errorf("inferred mimetype %s of %s for concatenation unequal to previous mimetypes, set --type explicitly", srcMimetype, src)
		}
		mimetype = srcMimetype
	}
	return mimetype, nil
}

func (o *options) printStats(srcName, dstName string, srcSize, dstSize int, dur time.Duration) {
	speed := "Inf MB"
	if 0 < dur {
		speed = humanize.Bytes(uint64(float64(srcSize) / dur.Seconds()))
	}
	ratio := 1.0
	if 0 < srcSize {
		ratio = float64(dstSize) / float64(srcSize)
	}
	stats := fmt.Sprintf("(%9v, %6v, %6v, %5.1f%%, %6v/s)", dur, humanize.Bytes(uint64(srcSize)), humanize.Bytes(uint64(dstSize)), ratio*100, speed)
	if srcName == dstName {
		fmt.Fprintln(os.Stderr, stats, "-", srcName)
	} else {
		fmt.Fprintln(os.Stderr, stats, "-", srcName, "to", dstName)
	}
}

// preserveAttributes copies the mode, ownership and timestamps of the source to the destination, and of each
// source directory below the root to the corresponding destination directory.
func (o *options) preserveAttributes(t task) {
	p := o.preserved
	if t.srcs[0] == "" || t.dst == "" || !p.mode && !p.ownership && !p.timestamps {
		return
	}
	rel, err := filepath.Rel(t.root, t.srcs[0])
	if err != nil {
		o.log.Errorf("source %s is not inside root %s", t.srcs[0], t.root)
		return
	}

	dst := t.dst
	for rel != "." {
		info, err := os.Stat(filepath.Join(t.root, rel))
		if err != nil {
			o.log.Warn(err)
			return
		}
		if p.mode {
			if err := os.Chmod(dst, info.Mode().Perm()); err != nil {
				o.log.Warn(err)
			}
		}
		if p.ownership {
			if uid, gid, ok := getOwnership(info); ok {
				if err := os.Chown(dst, uid, gid); err != nil {
					o.log.Warn(err)
				}
			}
		}
		if p.timestamps {
			if err := os.Chtimes(dst, atime.Get(info), info.ModTime()); err != nil {
				o.log.Warn(err)
			}
		}
		rel, dst = filepath.Dir(rel), filepath.Dir(dst)
	}
}

// runTasks processes the tasks, in parallel unless verbose output should stay ordered, and returns the number of
// failed tasks.
func (o *options) runTasks(tasks []task) int {
	fails := 0
	if len(tasks) == 1 || 0 < o.verbose {
		for _, t := range tasks {
			if !o.process(t) {
				fails++
			}
		}
		return fails
	}

	queue := make(chan task, 20)
	results := o.startWorkers(queue)
	for _, t := range tasks {
		queue <- t
	}
	close(queue)
	for n := range results {
		fails += n
	}
	return fails
}

// startWorkers starts a pool of workers that process tasks from queue until it is closed. The returned channel
// receives the number of failures of each worker and is closed when all have finished.
func (o *options) startWorkers(queue <-chan task) <-chan int {
	workers := runtime.NumCPU()
	if 0 < o.verbose {
		workers = 1
	} else if workers < 4 {
		workers = 4
	}

	results := make(chan int, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fails := 0
			for t := range queue {
				if !o.process(t) {
					fails++
				}
			}
			results <- fails
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()
	return results
}
