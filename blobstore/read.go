package blobstore

import (
	"context"
	"errors"
	"log/slog"

	"github.com/wmlabtx/imgmzx/codec"
	"github.com/wmlabtx/imgmzx/internal/fs"
	"github.com/wmlabtx/imgmzx/model"
)

// Source tells which copy satisfied a read.
type Source int

const (
	// SourceNone means no copy verified.
	SourceNone Source = iota
	// SourcePrimary is the file under Root.
	SourcePrimary
	// SourceBackup is the file under Backup; the primary was healed from it.
	SourceBackup
	// SourceMirror is the offsite copy; both local files were healed from it.
	SourceMirror
)

func (s Source) String() string {
	switch s {
	case SourcePrimary:
		return "primary"
	case SourceBackup:
		return "backup"
	case SourceMirror:
		return "mirror"
	default:
		return "none"
	}
}

// Read returns the plaintext stored under hash. The second result is false
// when no copy decrypts and hashes back to hash; callers treat that as a
// lost object. Read repairs copies that failed verification.
func (s *Store) Read(ctx context.Context, hash model.ContentHash) ([]byte, bool) {
	plain, src := s.Fetch(ctx, hash)
	return plain, src != SourceNone
}

// Fetch is Read reporting which copy was used.
func (s *Store) Fetch(ctx context.Context, hash model.ContentHash) ([]byte, Source) {
	if hash.Validate() != nil {
		return nil, SourceNone
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.codec.DeriveKey(string(hash))
	defer key.Destroy()

	target, backup := s.Path(hash), s.BackupPath(hash)
	if plain, _, ok := s.load(key, hash, target); ok {
		return plain, SourcePrimary
	}

	if plain, _, ok := s.load(key, hash, backup); ok {
		s.heal(hash, target, func() error {
			return fs.CopyFile(s.fs, backup, target)
		})
		return plain, SourceBackup
	}

	if s.mirror == nil {
		return nil, SourceNone
	}
	sealed, err := s.mirror.Get(ctx, MirrorKey(hash, s.cfg.Ext))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.log.Warn("mirror get failed", slog.String("hash", hash.Short()), slog.Any("error", err))
		}
		return nil, SourceNone
	}
	plain, ok := verify(key, hash, sealed)
	if !ok {
		s.log.Warn("mirror copy failed verification", slog.String("hash", hash.Short()))
		return nil, SourceNone
	}
	if s.heal(hash, target, func() error { return fs.WriteFile(s.fs, target, sealed) }) {
		s.heal(hash, backup, func() error { return fs.CopyFile(s.fs, target, backup) })
	} else {
		s.heal(hash, backup, func() error { return fs.WriteFile(s.fs, backup, sealed) })
	}
	return plain, SourceMirror
}

// load reads and verifies one copy. It also returns the raw bytes.
func (s *Store) load(key *codec.Key, hash model.ContentHash, path string) ([]byte, []byte, bool) {
	sealed, err := s.fs.ReadFile(path)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.log.Warn("blob read failed", slog.String("path", path), slog.Any("error", err))
		}
		return nil, nil, false
	}
	plain, ok := verify(key, hash, sealed)
	if !ok {
		s.log.Warn("blob failed verification", slog.String("path", path))
		return nil, sealed, false
	}
	return plain, sealed, true
}

func verify(key *codec.Key, hash model.ContentHash, sealed []byte) ([]byte, bool) {
	plain, ok := key.Open(nil, sealed)
	if !ok || !hash.Matches(plain) {
		return nil, false
	}
	return plain, true
}

// heal replaces path through write. Failures are logged; the read that
// triggered the heal still succeeds.
func (s *Store) heal(hash model.ContentHash, path string, write func() error) bool {
	r := s.replace(path)
	err := r.stage()
	if err == nil {
		err = write()
	}
	if err == nil {
		err = r.commit()
	}
	if err != nil {
		s.log.Warn("self-heal failed", slog.String("path", path), slog.Any("error", errors.Join(err, r.rollback())))
		return false
	}
	s.log.Info("self-healed copy", slog.String("hash", hash.Short()), slog.String("path", path))
	return true
}
