package blobstore

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/wmlabtx/imgmzx/internal/fs"
)

// replacement replaces the file at path without ever leaving the path
// empty-handed: stage parks the current file at path+".original", commit
// sends the parked file to the trash once the new file is in place, and
// rollback puts the parked file back.
type replacement struct {
	s      *Store
	path   string
	begun  bool // stage completed; path may hold new bytes
	staged bool
	done   bool
}

func (s *Store) replace(path string) *replacement {
	return &replacement{s: s, path: path}
}

func (r *replacement) stagedPath() string {
	return r.path + stagedSuffix
}

// stage prepares path for a new file. A leftover staged file from an
// interrupted earlier attempt is recovered first: it is restored when the
// path is empty and trashed otherwise.
func (r *replacement) stage() error {
	if err := r.s.fs.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return err
	}

	staged := r.stagedPath()
	if fs.Exists(r.s.fs, staged) {
		if !fs.Exists(r.s.fs, r.path) {
			r.s.log.Warn("restoring leftover staged file", "path", r.path)
			if err := r.s.fs.Rename(staged, r.path); err != nil {
				return fmt.Errorf("restore leftover: %w", err)
			}
		} else {
			r.s.log.Warn("trashing leftover staged file", "path", staged)
			if err := r.s.trash(staged); err != nil {
				return fmt.Errorf("trash leftover: %w", err)
			}
		}
	}

	if fs.Exists(r.s.fs, r.path) {
		if err := r.s.fs.Rename(r.path, staged); err != nil {
			return err
		}
		r.staged = true
	}
	r.begun = true
	return nil
}

// commit discards the staged file. The new file must be in place.
func (r *replacement) commit() error {
	if r.staged {
		if err := r.s.trash(r.stagedPath()); err != nil {
			return err
		}
		r.staged = false
	}
	r.done = true
	return nil
}

// rollback restores the staged file over whatever was written since stage.
// Without a staged file, a partially written new file is removed.
func (r *replacement) rollback() error {
	if r.done || !r.begun {
		return nil
	}
	r.done = true

	if r.staged {
		if err := r.s.fs.Rename(r.stagedPath(), r.path); err != nil {
			return fmt.Errorf("restore %s: %w", r.path, err)
		}
		r.staged = false
		return nil
	}

	if err := r.s.fs.Remove(r.path); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("remove partial %s: %w", r.path, err)
	}
	return nil
}

// trash moves src into <trash>/<yyyy-MM-dd>/<uuid>.<basename>.
func (s *Store) trash(src string) error {
	dir := filepath.Join(s.cfg.Trash, s.now().Format(time.DateOnly))
	base := filepath.Base(src)
	if ext := filepath.Ext(base); ext == stagedSuffix {
		base = base[:len(base)-len(ext)]
	}
	dst := filepath.Join(dir, uuid.NewString()+"."+base)
	if err := s.move(src, dst); err != nil {
		return fmt.Errorf("trash %s: %w", src, err)
	}
	s.log.Debug("moved to trash", slog.String("from", src), slog.String("to", dst))
	return nil
}

// move renames src to dst, creating dst's directory. Across volumes it
// falls back to copy and remove.
func (s *Store) move(src, dst string) error {
	if err := s.fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	err := s.fs.Rename(src, dst)
	if err == nil || !isCrossDevice(err) {
		return err
	}
	if err := fs.CopyFile(s.fs, src, dst); err != nil {
		return err
	}
	return s.fs.Remove(src)
}
