package build

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/maruel/natural"
	"go.uber.org/zap"
)

// Editors usually produce several events for a single save, changes are
// collected for this long before processing.
const settleDelay = 100 * time.Millisecond

// watchSet knows which file system events are relevant to sources.
type watchSet struct {
	files map[string]bool // sources which are files
	roots []string        // sources which are directories
	dst   string          // generated stylesheet
}

// output reports whether name is the stylesheet or temporary file Save
// creates next to it.
func (ws *watchSet) output(name string) bool {
	if ws.dst == "" || filepath.Dir(name) != filepath.Dir(ws.dst) {
		return false
	}
	base := filepath.Base(name)
	return name == ws.dst || strings.HasPrefix(base, "."+filepath.Base(ws.dst)+".")
}

func (ws *watchSet) relevant(name string) bool {
	if ws.output(name) {
		return false
	}
	if ws.files[name] {
		return true
	}
	for _, root := range ws.roots {
		if name == root || strings.HasPrefix(name, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// Watch observes sources and calls changed after every processed batch of
// modifications which added rules or documents or removed documents. Events
// for dst (stylesheet written by changed) are ignored. It returns when ctx is
// done.
func (c *Compiler) Watch(ctx context.Context, srcs []string, dst string, changed func() error) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	ws := &watchSet{files: make(map[string]bool), dst: dst}
	for _, src := range srcs {
		fi, err := os.Stat(src)
		if err != nil {
			c.log.Warn("Unable to watch source", zap.String("source", src), zap.Error(err))
			continue
		}
		if fi.IsDir() {
			ws.roots = append(ws.roots, src)
			c.watchTree(fw, src)
			continue
		}
		// files are replaced by many editors, so parent directory is watched
		ws.files[src] = true
		if err := fw.Add(filepath.Dir(src)); err != nil {
			c.log.Warn("Unable to watch source", zap.String("source", src), zap.Error(err))
		}
	}

	pending := make(map[string]bool)
	timer := time.NewTimer(settleDelay)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Debug("Watching stopped")
			return nil

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			c.log.Warn("File system watcher error", zap.Error(err))

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
				continue
			}
			if !ws.relevant(ev.Name) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					c.watchTree(fw, ev.Name)
				}
			}
			pending[ev.Name] = true
			timer.Reset(settleDelay)

		case <-timer.C:
			names := make([]string, 0, len(pending))
			for name := range pending {
				names = append(names, name)
			}
			clear(pending)
			sort.Sort(natural.StringSlice(names))

			rules, docs := c.sheet.Len(), c.Sources()
			for _, name := range names {
				if ctx.Err() != nil {
					return nil
				}
				c.refresh(ctx, name)
			}
			if c.sheet.Len() == rules && slices.Equal(c.Sources(), docs) {
				c.log.Debug("Nothing changed", zap.Int("events", len(names)))
				continue
			}
			if err := changed(); err != nil {
				c.log.Error("Unable to save stylesheet", zap.Error(err))
			}
		}
	}
}

// watchTree adds dir and all its subdirectories to fw, fsnotify is not
// recursive.
func (c *Compiler) watchTree(fw *fsnotify.Watcher, dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if err := fw.Add(path); err != nil {
			c.log.Warn("Unable to watch directory", zap.String("dir", path), zap.Error(err))
		}
		return nil
	})
}

// refresh reloads changed path, or forgets it when it is gone.
func (c *Compiler) refresh(ctx context.Context, name string) {
	fi, err := os.Stat(name)
	if err != nil {
		if n := c.Forget(name); n > 0 {
			c.log.Info("Source removed", zap.String("source", name), zap.Int("documents", n))
		}
		return
	}
	if fi.Mode().IsRegular() {
		if arc, err := isArchiveFile(name); err != nil || (!arc && !c.accepts(name)) {
			return
		}
	} else if !fi.IsDir() {
		return
	}

	before := c.sheet.Len()
	if err := c.Add(ctx, name); err != nil {
		c.log.Error("Unable to process changed source", zap.String("source", name), zap.Error(err))
	}
	c.log.Info("Source changed", zap.String("source", name), zap.Int("new rules", c.sheet.Len()-before))
}
