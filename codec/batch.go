package codec

import (
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Item is one (data, password) pair of a batch.
type Item struct {
	Data     []byte
	Password string
}

// Result is the outcome of decrypting one batch item.
type Result struct {
	Data []byte
	OK   bool
}

// EncryptBatch seals every item in parallel. out[i] is the blob for items[i].
// The first RNG failure is returned; other items still complete.
func (c *Codec) EncryptBatch(items []Item) ([][]byte, error) {
	out := make([][]byte, len(items))
	var g errgroup.Group
	g.SetLimit(c.workers)
	for i := range items {
		g.Go(func() error {
			blob, err := c.Encrypt(items[i].Data, items[i].Password)
			if err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
			out[i] = blob
			return nil
		})
	}
	return out, g.Wait()
}

// DecryptBatch opens every item in parallel. out[i] is the result for items[i].
func (c *Codec) DecryptBatch(items []Item) []Result {
	out := make([]Result, len(items))
	var g errgroup.Group
	g.SetLimit(c.workers)
	for i := range items {
		g.Go(func() error {
			data, ok := c.Decrypt(items[i].Data, items[i].Password)
			out[i] = Result{Data: data, OK: ok}
			return nil
		})
	}
	_ = g.Wait()
	return out
}
