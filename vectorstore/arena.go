package vectorstore

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/wmlabtx/imgmzx/internal/mem"
	"github.com/wmlabtx/imgmzx/model"
)

// DefaultGrowthStep is the number of slots added by each growth.
const DefaultGrowthStep = 1000

var (
	// ErrWrongDimension is returned when a vector doesn't match the arena dimension.
	ErrWrongDimension = errors.New("vectorstore: wrong vector dimension")

	// ErrNotFound is returned by Change for a hash that was never added.
	ErrNotFound = errors.New("vectorstore: hash not found")

	// ErrDuplicate is returned by Insert for a hash that is already present.
	ErrDuplicate = errors.New("vectorstore: hash already present")

	// ErrInvalidDimension is returned by New for a non-positive dimension.
	ErrInvalidDimension = errors.New("vectorstore: dimension must be positive")

	// ErrNonFinite is returned for vectors containing NaN or Inf.
	ErrNonFinite = errors.New("vectorstore: vector is not finite")
)

// MemoryAcquirer reserves memory for backing blocks before they are allocated.
// *resource.Controller satisfies it.
type MemoryAcquirer interface {
	AcquireMemory(bytes int64) error
	ReleaseMemory(bytes int64)
}

// Option configures an Arena.
type Option func(*options)

type options struct {
	initialCapacity int
	growthStep      int
	memory          MemoryAcquirer
}

// WithInitialCapacity preallocates room for n vectors.
func WithInitialCapacity(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.initialCapacity = n
		}
	}
}

// WithGrowthStep sets the number of slots added when the arena is full.
func WithGrowthStep(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.growthStep = n
		}
	}
}

// WithMemoryAcquirer makes the arena reserve every backing block through m.
func WithMemoryAcquirer(m MemoryAcquirer) Option {
	return func(o *options) {
		o.memory = m
	}
}

// Block is a read-only view of the occupied part of an arena.
// Data holds len(Hashes) vectors of Dim floats, slot i at Data[i*Dim:(i+1)*Dim].
type Block struct {
	Data   []float32
	Hashes []model.ContentHash
	Dim    int
}

// Vector returns the vector stored at slot.
func (b Block) Vector(slot int) []float32 {
	start := slot * b.Dim
	end := start + b.Dim
	return b.Data[start:end:end]
}

// Len returns the number of vectors in the block.
func (b Block) Len() int {
	return len(b.Hashes)
}

// Arena is a growable, contiguous store of fixed-dimension vectors.
//
// Thread safety: mutations take the write lock; reads share the read lock.
type Arena struct {
	dim  int
	step int
	mem  MemoryAcquirer

	mu       sync.RWMutex
	data     []float32 // capacity × dim
	slots    map[model.ContentHash]int
	hashes   []model.ContentHash
	reserved int64
	closed   bool

	generation atomic.Uint64
}

// New creates an arena for vectors of dimension dim.
func New(dim int, opts ...Option) (*Arena, error) {
	if dim <= 0 {
		return nil, ErrInvalidDimension
	}

	o := options{growthStep: DefaultGrowthStep}
	for _, opt := range opts {
		opt(&o)
	}

	a := &Arena{
		dim:   dim,
		step:  o.growthStep,
		mem:   o.memory,
		slots: make(map[model.ContentHash]int, o.initialCapacity),
	}

	if o.initialCapacity > 0 {
		if err := a.resize(o.initialCapacity); err != nil {
			return nil, err
		}
		a.hashes = make([]model.ContentHash, 0, o.initialCapacity)
	}

	return a, nil
}

// Dimension returns the vector dimensionality.
func (a *Arena) Dimension() int {
	return a.dim
}

// Len returns the number of stored vectors.
func (a *Arena) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.hashes)
}

// Cap returns the number of slots in the current backing block.
func (a *Arena) Cap() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.capacity()
}

// Generation returns a counter incremented by every growth.
func (a *Arena) Generation() uint64 {
	return a.generation.Load()
}

// Size returns the bytes held by the backing block.
func (a *Arena) Size() int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return mem.Float32Bytes(len(a.data))
}

// Add stores vec under hash. It returns false, leaving the arena untouched,
// when hash is already present, the dimension is wrong, or growth fails.
func (a *Arena) Add(hash model.ContentHash, vec []float32) bool {
	return a.Insert(hash, vec) == nil
}

// Insert is Add with the reason for a rejection: ErrDuplicate,
// ErrWrongDimension, ErrNonFinite, or the memory acquirer's error.
func (a *Arena) Insert(hash model.ContentHash, vec []float32) error {
	if err := a.check(vec); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.slots[hash]; ok {
		return ErrDuplicate
	}

	slot := len(a.hashes)
	if slot == a.capacity() {
		if err := a.resize(a.capacity() + a.step); err != nil {
			return err
		}
	}

	copy(a.data[slot*a.dim:(slot+1)*a.dim], vec)
	a.hashes = append(a.hashes, hash)
	a.slots[hash] = slot
	return nil
}

// Change overwrites the vector of an existing hash in place.
func (a *Arena) Change(hash model.ContentHash, vec []float32) error {
	if err := a.check(vec); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	slot, ok := a.slots[hash]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, hash.Short())
	}
	copy(a.data[slot*a.dim:(slot+1)*a.dim], vec)
	return nil
}

// Put adds vec under hash or overwrites the existing vector.
func (a *Arena) Put(hash model.ContentHash, vec []float32) error {
	err := a.Insert(hash, vec)
	if errors.Is(err, ErrDuplicate) {
		return a.Change(hash, vec)
	}
	return err
}

// Contains reports whether hash has a vector.
func (a *Arena) Contains(hash model.ContentHash) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.slots[hash]
	return ok
}

// Get returns a copy of the vector stored under hash.
func (a *Arena) Get(hash model.ContentHash) ([]float32, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	slot, ok := a.slots[hash]
	if !ok {
		return nil, false
	}
	return slices.Clone(a.vector(slot)), true
}

// View calls fn with the stored vector of hash without copying it. The read
// lock is held while fn runs: fn must not call mutating arena methods and
// must not retain vec. View reports whether hash was found.
func (a *Arena) View(hash model.ContentHash, fn func(vec []float32)) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	slot, ok := a.slots[hash]
	if !ok {
		return false
	}
	fn(a.vector(slot))
	return true
}

// ViewAll calls fn with the occupied block under the read lock.
func (a *Arena) ViewAll(fn func(b Block)) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	n := len(a.hashes)
	fn(Block{
		Data:   a.data[: n*a.dim : n*a.dim],
		Hashes: a.hashes[:n:n],
		Dim:    a.dim,
	})
}

// Slot returns the slot index of hash.
func (a *Arena) Slot(hash model.ContentHash) (int, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	slot, ok := a.slots[hash]
	return slot, ok
}

// Hash returns the hash stored at slot.
func (a *Arena) Hash(slot int) (model.ContentHash, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if slot < 0 || slot >= len(a.hashes) {
		return "", false
	}
	return a.hashes[slot], true
}

// Range calls fn for every slot in order until fn returns false.
// The read lock is held throughout; vec must not be retained.
func (a *Arena) Range(fn func(slot int, hash model.ContentHash, vec []float32) bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	for slot, hash := range a.hashes {
		if !fn(slot, hash, a.vector(slot)) {
			return
		}
	}
}

// Close releases the backing block and its memory reservation.
// The arena is empty afterwards.
func (a *Arena) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true
	if a.mem != nil {
		a.mem.ReleaseMemory(a.reserved)
	}
	a.reserved = 0
	a.data = nil
	a.hashes = nil
	a.slots = make(map[model.ContentHash]int)
	return nil
}

func (a *Arena) check(vec []float32) error {
	if len(vec) != a.dim {
		return fmt.Errorf("%w: got %d, want %d", ErrWrongDimension, len(vec), a.dim)
	}
	if !Finite(vec) {
		return ErrNonFinite
	}
	return nil
}

// Finite reports whether every component of vec is neither NaN nor Inf.
func Finite(vec []float32) bool {
	for _, x := range vec {
		if x-x != 0 {
			return false
		}
	}
	return true
}

func (a *Arena) capacity() int {
	return len(a.data) / a.dim
}

func (a *Arena) vector(slot int) []float32 {
	start := slot * a.dim
	end := start + a.dim
	return a.data[start:end:end]
}

// resize swaps in a block of n slots. Must be called with the write lock
// held (or before the arena is shared).
func (a *Arena) resize(n int) error {
	size := mem.Float32Bytes(n * a.dim)
	if a.mem != nil {
		if err := a.mem.AcquireMemory(size); err != nil {
			return fmt.Errorf("vectorstore: grow to %d slots: %w", n, err)
		}
		a.mem.ReleaseMemory(a.reserved)
	}
	a.reserved = size
	a.data = mem.GrowFloat32(a.data, n*a.dim)
	a.closed = false
	a.generation.Add(1)
	return nil
}
