package blobstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/wmlabtx/imgmzx/codec"
	"github.com/wmlabtx/imgmzx/internal/fs"
	"github.com/wmlabtx/imgmzx/model"
)

// Write encrypts plaintext under hash and stores it at the primary and
// backup paths, replacing any existing copies. On failure every staged file
// is restored and a *WriteError is returned.
//
// Write does not check that hash is the digest of plaintext; callers that
// compute the hash themselves should use model.Sum.
func (s *Store) Write(ctx context.Context, hash model.ContentHash, plaintext []byte) error {
	if err := hash.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	target, backup := s.Path(hash), s.BackupPath(hash)
	size := uint64(codec.SealedSize(len(plaintext))) //nolint:gosec
	for _, p := range []string{target, backup} {
		if err := s.ensureSpace(filepath.Dir(p), size); err != nil {
			return &WriteError{Hash: hash, Step: "space", Err: err}
		}
	}

	key := s.codec.DeriveKey(string(hash))
	sealed, err := key.Seal(nil, plaintext)
	key.Destroy()
	if err != nil {
		return &WriteError{Hash: hash, Step: "encrypt", Err: err}
	}

	if err := s.writeLocked(hash, sealed); err != nil {
		return err
	}

	s.log.Debug("blob written", slog.String("hash", hash.Short()), slog.Int("bytes", len(sealed)))

	if s.mirror != nil {
		if err := s.mirror.Put(ctx, MirrorKey(hash, s.cfg.Ext), sealed); err != nil {
			s.log.Warn("mirror put failed", slog.String("hash", hash.Short()), slog.Any("error", err))
		}
	}
	return nil
}

// writeLocked stores sealed at the primary path, then copies the primary
// over the backup.
func (s *Store) writeLocked(hash model.ContentHash, sealed []byte) error {
	target, backup := s.Path(hash), s.BackupPath(hash)
	primary := s.replace(target)
	replica := s.replace(backup)

	fail := func(step string, err error) error {
		rbErr := errors.Join(replica.rollback(), primary.rollback())
		if rbErr != nil {
			s.log.Error("write rollback failed", slog.String("hash", hash.Short()), slog.Any("error", rbErr))
		}
		return &WriteError{Hash: hash, Step: step, Err: err, Rollback: rbErr}
	}

	if err := primary.stage(); err != nil {
		return fail("stage primary", err)
	}
	if err := fs.WriteFile(s.fs, target, sealed); err != nil {
		return fail("write primary", err)
	}
	if err := primary.commit(); err != nil {
		return fail("commit primary", err)
	}

	if err := replica.stage(); err != nil {
		return fail("stage backup", err)
	}
	if err := fs.CopyFile(s.fs, target, backup); err != nil {
		return fail("copy backup", err)
	}
	if err := replica.commit(); err != nil {
		return fail("commit backup", err)
	}
	return nil
}

// ensureSpace checks that the volume holding dir can take n more bytes and
// still keep MinFreeBytes free. dir is created if needed.
func (s *Store) ensureSpace(dir string, n uint64) error {
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	free, err := s.fs.FreeSpace(dir)
	if err != nil {
		return fmt.Errorf("free space of %s: %w", dir, err)
	}
	if need := n + s.cfg.MinFreeBytes; free < need {
		return fmt.Errorf("%w: %s has %d bytes free, need %d", ErrInsufficientSpace, dir, free, need)
	}
	return nil
}
