package blobstore

import (
	"github.com/wmlabtx/imgmzx/internal/fs"
	"github.com/wmlabtx/imgmzx/model"
)

// CopyState describes one on-disk copy.
type CopyState int

const (
	// CopyMissing means no file exists.
	CopyMissing CopyState = iota
	// CopyCorrupt means the file exists but fails decryption or hash verification.
	CopyCorrupt
	// CopyOK means the file verifies.
	CopyOK
)

func (c CopyState) String() string {
	switch c {
	case CopyOK:
		return "ok"
	case CopyCorrupt:
		return "corrupt"
	default:
		return "missing"
	}
}

// Report is the verification state of both local copies.
type Report struct {
	Hash    model.ContentHash
	Primary CopyState
	Backup  CopyState
	// Size is the plaintext size of a verified copy.
	Size int
}

// Healthy reports whether both copies verify.
func (r Report) Healthy() bool {
	return r.Primary == CopyOK && r.Backup == CopyOK
}

// Check verifies both local copies of hash without repairing anything.
func (s *Store) Check(hash model.ContentHash) (Report, error) {
	rep := Report{Hash: hash}
	if err := hash.Validate(); err != nil {
		return rep, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.codec.DeriveKey(string(hash))
	defer key.Destroy()

	check := func(path string) CopyState {
		if !fs.Exists(s.fs, path) {
			return CopyMissing
		}
		plain, _, ok := s.load(key, hash, path)
		if !ok {
			return CopyCorrupt
		}
		rep.Size = len(plain)
		return CopyOK
	}
	rep.Primary = check(s.Path(hash))
	rep.Backup = check(s.BackupPath(hash))
	return rep, nil
}
