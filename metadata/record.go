package metadata

import (
	"slices"
	"time"

	"github.com/wmlabtx/imgmzx/model"
)

// Record is the metadata of one stored object.
//
// The orchestrator reads Hash, History and Vector and writes only Next,
// Distance and Vector. The remaining fields belong to the presentation layer.
type Record struct {
	Hash model.ContentHash `msgpack:"hash"`
	// Next is the nearest neighbor not yet in History, empty when none.
	Next model.ContentHash `msgpack:"next"`
	// Distance is the cosine distance to Next, 1 when Next is empty.
	Distance float32 `msgpack:"dist"`
	// History holds the objects already compared against this one.
	History []model.ContentHash `msgpack:"history"`
	// Vector is the embedding. It is persisted separately as raw
	// little-endian float32.
	Vector    []float32 `msgpack:"-"`
	Score     int       `msgpack:"score"`
	LastView  time.Time `msgpack:"last_view"`
	LastCheck time.Time `msgpack:"last_check"`
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	r.History = slices.Clone(r.History)
	r.Vector = slices.Clone(r.Vector)
	return r
}

// Visited reports whether h is in the history.
func (r Record) Visited(h model.ContentHash) bool {
	return slices.Contains(r.History, h)
}

// HasVector reports whether the record carries a finite vector of
// dimension dim.
func (r Record) HasVector(dim int) bool {
	if dim <= 0 || len(r.Vector) != dim {
		return false
	}
	for _, x := range r.Vector {
		if x-x != 0 {
			return false
		}
	}
	return true
}
