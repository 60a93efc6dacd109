// Package build compiles utility tokens found in markup sources (files,
// directories and zip archives) into a single stylesheet.
package build

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/beevik/etree"
	"github.com/maruel/natural"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"

	"jitcss/archive"
	"jitcss/config"
	"jitcss/css"
	"jitcss/dom"
	"jitcss/jit"
	"jitcss/misc"
	"jitcss/state"
)

// Compiler accumulates documents from all sources in a single page observed
// by one engine, so every distinct token is compiled once no matter how many
// documents use it.
// NOTE: presently not to be used concurrently!
type Compiler struct {
	log    *zap.Logger
	rpt    *config.Report
	cp     encoding.Encoding
	exts   []string
	header bool

	sheet  *css.Sheet
	engine *jit.Engine
	page   *dom.Document
	parts  map[string]*etree.Element // source name -> page section
}

// NewCompiler creates compiler configured from env.
func NewCompiler(env *state.LocalEnv) *Compiler {
	log := env.Log
	if log == nil {
		log = zap.NewNop()
	}
	c := &Compiler{
		log:    log.Named("build"),
		rpt:    env.Rpt,
		cp:     env.CodePage,
		header: true,
		parts:  make(map[string]*etree.Element),
	}
	if env.Cfg != nil {
		c.exts = env.Cfg.Input.Extensions
		c.header = env.Cfg.Output.Header
	}
	c.sheet = css.NewSheet(css.NewParser(log))
	c.engine = env.NewEngine(c.sheet)
	c.page = dom.NewDocument(log)
	c.engine.Init(c.page, nil)
	return c
}

// Close stops engine watcher.
func (c *Compiler) Close() {
	c.engine.Close()
}

// Engine returns compiler engine.
func (c *Compiler) Engine() *jit.Engine {
	return c.engine
}

// Sheet returns generated stylesheet.
func (c *Compiler) Sheet() *css.Sheet {
	return c.sheet
}

// Sources returns names of loaded documents in natural order.
func (c *Compiler) Sources() []string {
	names := make([]string, 0, len(c.parts))
	for name := range c.parts {
		names = append(names, name)
	}
	sort.Sort(natural.StringSlice(names))
	return names
}

// accepts reports whether file found while walking directory or archive
// should be treated as markup document.
func (c *Compiler) accepts(name string) bool {
	if _, ok := dom.FormatOf(name); !ok {
		return false
	}
	if len(c.exts) == 0 {
		return true
	}
	return slices.Contains(c.exts, strings.ToLower(filepath.Ext(name)))
}

// AddAll processes every source. Failure of one source does not prevent
// processing of others, all errors are returned together.
func (c *Compiler) AddAll(ctx context.Context, srcs []string) (err error) {
	for _, src := range srcs {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		err = multierr.Append(err, c.Add(ctx, src))
	}
	return err
}

// Add processes single source: markup file, directory (recursively) or zip
// archive.
func (c *Compiler) Add(ctx context.Context, src string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fi, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("input source was not found: %w", err)
	}
	c.snapshot(src)

	if fi.IsDir() {
		if err := c.addDir(ctx, src); err != nil {
			return fmt.Errorf("unable to process directory (%s): %w", src, err)
		}
		return nil
	}
	if !fi.Mode().IsRegular() {
		return fmt.Errorf("unexpected path mode for (%s)", src)
	}

	arc, err := isArchiveFile(src)
	if err != nil {
		return fmt.Errorf("unable to check archive type: %w", err)
	}
	if arc {
		if err := c.addArchive(ctx, src); err != nil {
			return fmt.Errorf("unable to process archive (%s): %w", src, err)
		}
		return nil
	}

	format, ok := dom.FormatOf(src)
	if !ok {
		return fmt.Errorf("input was not recognized as markup document (%s)", src)
	}
	return c.addFile(src, format)
}

// addDir processes all documents and archives under dir in natural order.
func (c *Compiler) addDir(ctx context.Context, dir string) (err error) {
	var paths []string
	werr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			c.log.Warn("Skipping path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if d.Type().IsRegular() {
			paths = append(paths, path)
		}
		return nil
	})
	if werr != nil {
		return werr
	}
	sort.Sort(natural.StringSlice(paths))

	count := 0
	defer func() {
		if err == nil && count == 0 {
			c.log.Debug("Nothing to process", zap.String("dir", dir))
		}
	}()

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}

		arc, aerr := isArchiveFile(path)
		if aerr != nil {
			c.log.Warn("Skipping file", zap.String("file", path), zap.Error(aerr))
			continue
		}
		if arc {
			count++
			if aerr := c.addArchive(ctx, path); aerr != nil {
				c.log.Error("Unable to process archive", zap.String("file", path), zap.Error(aerr))
				err = multierr.Append(err, aerr)
			}
			continue
		}

		if !c.accepts(path) {
			c.log.Debug("Skipping file, not recognized as document or archive", zap.String("file", path))
			continue
		}
		count++
		format, _ := dom.FormatOf(path)
		if ferr := c.addFile(path, format); ferr != nil {
			c.log.Error("Unable to process file", zap.String("file", path), zap.Error(ferr))
			err = multierr.Append(err, ferr)
		}
	}
	return err
}

// addArchive processes every document in zip archive. Entries are named by
// archive path joined with path inside archive.
func (c *Compiler) addArchive(ctx context.Context, path string) (err error) {
	count := 0
	defer func() {
		if err == nil && count == 0 {
			c.log.Debug("Nothing to process", zap.String("archive", path))
		}
	}()

	opts := archive.Options{Match: c.accepts, NameEncoding: c.cp}
	return archive.Walk(path, opts, func(arc, name string, f *zip.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		count++

		format, _ := dom.FormatOf(name)
		r, err := f.Open()
		if err != nil {
			c.log.Error("Unable to process file in archive", zap.String("archive", arc), zap.String("file", name), zap.Error(err))
			return nil
		}
		defer r.Close()

		if err := c.addReader(r, filepath.Join(arc, filepath.FromSlash(name)), format); err != nil {
			c.log.Error("Unable to process file in archive", zap.String("archive", arc), zap.String("file", name), zap.Error(err))
		}
		return nil
	})
}

func (c *Compiler) addFile(path string, format dom.Format) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return c.addReader(f, path, format)
}

func (c *Compiler) addReader(r io.Reader, name string, format dom.Format) error {
	doc, err := dom.Read(r, format, c.log)
	if err != nil {
		return fmt.Errorf("unable to load %s document (%s): %w", format, name, err)
	}
	c.Update(name, doc)
	return nil
}

// Update replaces content of named source with doc. Page mutations are
// flushed immediately, so new tokens are compiled before Update returns.
// It returns number of rules added to the sheet.
func (c *Compiler) Update(name string, doc *dom.Document) int {
	if old, ok := c.parts[name]; ok {
		c.page.Remove(old)
	}
	section := c.page.Append(c.page.Body(), "section", "")
	c.page.SetAttr(section, "data-source", name)
	c.page.Adopt(section, doc)
	c.parts[name] = section

	before := c.sheet.Len()
	c.page.Flush()
	added := c.sheet.Len() - before

	c.log.Debug("Document scanned", zap.String("source", name), zap.Int("new rules", added))
	return added
}

// Forget removes named source and everything loaded from under it (files in
// directory, entries in archive). Rules already generated stay in the sheet.
func (c *Compiler) Forget(name string) int {
	n := 0
	for key, section := range c.parts {
		if key == name || strings.HasPrefix(key, name+string(filepath.Separator)) {
			c.page.Remove(section)
			delete(c.parts, key)
			n++
		}
	}
	if n > 0 {
		c.page.Flush()
		c.log.Debug("Documents forgotten", zap.String("source", name), zap.Int("count", n))
	}
	return n
}

// WriteTo writes generated stylesheet, implementing io.WriterTo.
func (c *Compiler) WriteTo(w io.Writer) (int64, error) {
	var total int64
	if c.header {
		n, err := fmt.Fprintf(w, "/* %s %s */\n", misc.GetAppName(), misc.GetVersion())
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	n, err := c.sheet.WriteTo(w)
	return total + n, err
}

// Save writes stylesheet to dst replacing it atomically, or to STDOUT when
// dst is empty.
func (c *Compiler) Save(dst string) error {
	if dst == "" {
		_, err := c.WriteTo(os.Stdout)
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*")
	if err != nil {
		return fmt.Errorf("unable to create output: %w", err)
	}
	if _, err := c.WriteTo(tmp); err != nil {
		return multierr.Combine(fmt.Errorf("unable to write stylesheet: %w", err), tmp.Close(), os.Remove(tmp.Name()))
	}
	// temporary files are created private
	if err := tmp.Chmod(0644); err != nil {
		return multierr.Combine(fmt.Errorf("unable to set output permissions: %w", err), tmp.Close(), os.Remove(tmp.Name()))
	}
	if err := tmp.Close(); err != nil {
		return multierr.Append(err, os.Remove(tmp.Name()))
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return multierr.Append(fmt.Errorf("unable to replace output: %w", err), os.Remove(tmp.Name()))
	}
	c.log.Debug("Stylesheet saved", zap.String("file", dst), zap.Int("rules", c.sheet.Len()))
	return nil
}

// Report puts generated stylesheet and engine state into debug report.
func (c *Compiler) Report() {
	if c.rpt == nil {
		return
	}
	c.rpt.StoreData("stylesheet.css", []byte(c.sheet.String()))
	c.rpt.StoreData("engine.txt", []byte(c.engine.Dump()))
}

// snapshot keeps copy of the source as it was when processed.
func (c *Compiler) snapshot(src string) {
	if c.rpt == nil {
		return
	}
	if err := c.rpt.StoreCopy("sources/"+config.CleanFileName(filepath.Base(src)), src); err != nil {
		c.log.Warn("Unable to store source in report", zap.String("source", src), zap.Error(err))
	}
}

// LookupEncoding resolves IANA character set name. Since zip "standard" does
// not define file name encoding old archives may need archaic code page.
func LookupEncoding(name string) (encoding.Encoding, error) {
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, err
	}
	if enc == nil {
		return nil, fmt.Errorf("character set %q is not supported", name)
	}
	return enc, nil
}
