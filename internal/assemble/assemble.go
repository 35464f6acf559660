// Package assemble writes rendered files under the output root.
package assemble

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Annany2002/nebula-apigen/internal/core"
	"github.com/Annany2002/nebula-apigen/internal/domain"
	"github.com/Annany2002/nebula-apigen/internal/logger"
)

var customLog = logger.NewLogger()

const (
	dirPerm  fs.FileMode = 0o755
	filePerm fs.FileMode = 0o644
)

// Assembler places generated files on disk.
type Assembler struct {
	Root      string
	Overwrite bool
}

// New returns an assembler for root.
func New(root string, overwrite bool) *Assembler {
	return &Assembler{Root: root, Overwrite: overwrite}
}

// Write checks every path, then writes the files in order and returns the
// absolute paths written. Files already written stay in place when a later
// write fails.
func (a *Assembler) Write(files []domain.RenderedFile) ([]string, error) {
	root, err := filepath.Abs(a.Root)
	if err != nil {
		return nil, &core.FileSystemError{Path: a.Root, Op: "resolve", Err: err}
	}
	if err := a.checkRoot(root); err != nil {
		return nil, err
	}

	targets := make([]string, len(files))
	seen := make(map[string]bool, len(files))
	for i, f := range files {
		target, err := resolve(root, f.Path)
		if err != nil {
			return nil, err
		}
		if seen[target] {
			return nil, &core.FileSystemError{Path: f.Path, Op: "write", Err: errors.New("duplicate output path")}
		}
		seen[target] = true
		targets[i] = target
	}

	if err := os.MkdirAll(root, dirPerm); err != nil {
		return nil, &core.FileSystemError{Path: root, Op: "mkdir", Err: err}
	}

	written := make([]string, 0, len(files))
	for i, f := range files {
		target := targets[i]
		if err := os.MkdirAll(filepath.Dir(target), dirPerm); err != nil {
			return written, &core.FileSystemError{Path: filepath.Dir(target), Op: "mkdir", Err: err}
		}
		if err := os.WriteFile(target, f.Content, filePerm); err != nil {
			return written, &core.FileSystemError{Path: target, Op: "write", Err: err}
		}
		customLog.Debugf("Assemble: Wrote %s (%d bytes)", f.Path, len(f.Content))
		written = append(written, target)
	}

	customLog.Printf("Assemble: Wrote %d files under %s", len(written), root)
	return written, nil
}

// checkRoot refuses a non-empty output root unless overwriting is allowed.
func (a *Assembler) checkRoot(root string) error {
	info, err := os.Stat(root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return &core.FileSystemError{Path: root, Op: "stat", Err: err}
	}
	if !info.IsDir() {
		return &core.FileSystemError{Path: root, Op: "stat", Err: errors.New("output path is not a directory")}
	}
	if a.Overwrite {
		return nil
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return &core.FileSystemError{Path: root, Op: "read", Err: err}
	}
	if len(entries) > 0 {
		return &core.FileSystemError{Path: root, Op: "write", Err: errors.New("output directory is not empty (set OVERWRITE to replace it)")}
	}
	return nil
}

// resolve joins rel onto root, rejecting absolute paths and paths that
// climb out of root.
func resolve(root, rel string) (string, error) {
	if rel == "" || filepath.IsAbs(rel) || strings.HasPrefix(rel, "/") {
		return "", &core.FileSystemError{Path: rel, Op: "write", Err: fmt.Errorf("path must be relative to the output root")}
	}
	target := filepath.Join(root, filepath.FromSlash(rel))
	back, err := filepath.Rel(root, target)
	if err != nil || back == "." || back == ".." || strings.HasPrefix(back, ".."+string(filepath.Separator)) {
		return "", &core.FileSystemError{Path: rel, Op: "write", Err: errors.New("path escapes the output root")}
	}
	return target, nil
}
