package codec

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchRoundTrip(t *testing.T) {
	c := fastCodec(WithWorkers(4))

	items := make([]Item, 32)
	for i := range items {
		items[i] = Item{
			Data:     []byte(fmt.Sprintf("payload-%d", i)),
			Password: fmt.Sprintf("pw-%d", i),
		}
	}

	blobs, err := c.EncryptBatch(items)
	require.NoError(t, err)
	require.Len(t, blobs, len(items))

	sealed := make([]Item, len(items))
	for i, b := range blobs {
		sealed[i] = Item{Data: b, Password: items[i].Password}
	}
	// Item 3 gets the wrong password and must fail alone.
	sealed[3].Password = "wrong"

	results := c.DecryptBatch(sealed)
	require.Len(t, results, len(items))
	for i, r := range results {
		if i == 3 {
			assert.False(t, r.OK)
			continue
		}
		require.True(t, r.OK, "item %d", i)
		assert.Equal(t, items[i].Data, r.Data)
	}
}

func TestBatchEmpty(t *testing.T) {
	c := fastCodec()
	blobs, err := c.EncryptBatch(nil)
	require.NoError(t, err)
	assert.Empty(t, blobs)
	assert.Empty(t, c.DecryptBatch(nil))
}

func TestEncryptBatchRandFailure(t *testing.T) {
	c := fastCodec(WithRand(failingReader{}))
	_, err := c.EncryptBatch([]Item{{Data: []byte("a"), Password: "p"}})
	assert.Error(t, err)
}
