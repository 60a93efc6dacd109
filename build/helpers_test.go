package build

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"

	"jitcss/config"
	"jitcss/state"
)

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
	return path
}

// writeZip creates archive with entries given as name, content pairs.
func writeZip(t *testing.T, path string, entries ...string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create zip file: %v", err)
	}
	defer f.Close()

	w := zip.NewWriter(f)
	for i := 0; i+1 < len(entries); i += 2 {
		fw, err := w.Create(entries[i])
		if err != nil {
			t.Fatalf("Failed to create %s in zip: %v", entries[i], err)
		}
		if _, err := fw.Write([]byte(entries[i+1])); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close zip: %v", err)
	}
	return path
}

func testEnv(t *testing.T) *state.LocalEnv {
	t.Helper()
	cfg, err := config.LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	return &state.LocalEnv{Cfg: cfg, Log: zaptest.NewLogger(t)}
}

// sampleTree creates directory with documents of every supported kind,
// an archive and a file which must be ignored.
func sampleTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.html"), `<!DOCTYPE html><html><body><p class="w-[1px] c-[red]">a</p></body></html>`)
	writeFile(t, filepath.Join(dir, "b.md"), "# Title\n\n<div class=\"w-[1px] m-[2px]\">b</div>\n")
	writeFile(t, filepath.Join(dir, "notes.txt"), "w-[9px]")
	writeFile(t, filepath.Join(dir, "sub", "c.xhtml"), `<html xmlns="http://www.w3.org/1999/xhtml"><body class="p-[3px]"/></html>`)
	writeZip(t, filepath.Join(dir, "docs.zip"),
		"x/index.html", `<section class="h-[4px]"></section>`,
		"x/readme.txt", `<section class="h-[9px]"></section>`,
	)
	return dir
}
