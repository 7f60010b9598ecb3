package blobstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wmlabtx/imgmzx/internal/fs"
	"github.com/wmlabtx/imgmzx/model"
)

// Delete soft-deletes hash at time now. The primary copy, or the backup
// when the primary is missing, moves to the dated archive slot; a remaining
// backup and any staged leftovers move to the trash. The mirror copy is
// removed. Deleting an absent object is a no-op.
func (s *Store) Delete(ctx context.Context, hash model.ContentHash, now time.Time) error {
	if err := hash.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	target, backup := s.Path(hash), s.BackupPath(hash)
	for _, p := range []string{target + stagedSuffix, backup + stagedSuffix} {
		if fs.Exists(s.fs, p) {
			if err := s.trash(p); err != nil {
				return fmt.Errorf("blobstore: delete %s: %w", hash.Short(), err)
			}
		}
	}

	archive := s.ArchivePath(hash, now)
	var archived string
	switch {
	case fs.Exists(s.fs, target):
		if err := s.move(target, archive); err != nil {
			return fmt.Errorf("blobstore: delete %s: archive: %w", hash.Short(), err)
		}
		archived = target
		if fs.Exists(s.fs, backup) {
			if err := s.trash(backup); err != nil {
				return fmt.Errorf("blobstore: delete %s: %w", hash.Short(), err)
			}
		}
	case fs.Exists(s.fs, backup):
		if err := s.move(backup, archive); err != nil {
			return fmt.Errorf("blobstore: delete %s: archive: %w", hash.Short(), err)
		}
		archived = backup
	}

	if s.mirror != nil {
		if err := s.mirror.Delete(ctx, MirrorKey(hash, s.cfg.Ext)); err != nil {
			s.log.Warn("mirror delete failed", slog.String("hash", hash.Short()), slog.Any("error", err))
		}
	}

	if archived != "" {
		s.log.Info("blob deleted", slog.String("hash", hash.Short()), slog.String("archive", archive))
	}
	return nil
}
