package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryClient_SetGet(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryClient(10)

	require.NoError(t, c.Set(ctx, "k", []byte("hello"), time.Minute))

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)

	_, err = c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryClient_Expiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryClient(10)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "short", []byte("a"), time.Second))
	require.NoError(t, c.Set(ctx, "forever", []byte("b"), 0))

	now = now.Add(2 * time.Second)

	_, err := c.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrCacheMiss)

	got, err := c.Get(ctx, "forever")
	require.NoError(t, err)
	assert.Equal(t, []byte("b"), got)
}

func TestMemoryClient_EvictsWhenFull(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryClient(2)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "first", []byte("1"), time.Minute))
	require.NoError(t, c.Set(ctx, "second", []byte("2"), time.Hour))
	require.NoError(t, c.Set(ctx, "third", []byte("3"), time.Hour))

	assert.Equal(t, 2, c.Len())
	_, err := c.Get(ctx, "first")
	assert.ErrorIs(t, err, ErrCacheMiss, "entry expiring first is evicted")
}

func TestMemoryClient_ValueIsCopied(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryClient(10)

	buf := []byte("abc")
	require.NoError(t, c.Set(ctx, "k", buf, 0))
	buf[0] = 'z'

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestMemoryClient_DeleteByPrefix(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryClient(10)

	require.NoError(t, c.Set(ctx, Key("ocr", "vision/large", "aa"), []byte("1"), 0))
	require.NoError(t, c.Set(ctx, Key("ocr", "vision/large", "bb"), []byte("2"), 0))
	require.NoError(t, c.Set(ctx, Key("ocr", "tesseract/base", "aa"), []byte("3"), 0))

	require.NoError(t, c.DeleteByPrefix(ctx, "ocr:vision/"))
	assert.Equal(t, 1, c.Len())

	require.NoError(t, c.Delete(ctx, Key("ocr", "tesseract/base", "aa")))
	assert.Equal(t, 0, c.Len())
}

func TestExtractionKey(t *testing.T) {
	a := ExtractionKey("vision/large", "m1", []byte{1, 2, 3})
	b := ExtractionKey("vision/large", "m1", []byte{1, 2, 3})
	c := ExtractionKey("vision/tiny", "m1", []byte{1, 2, 3})
	d := ExtractionKey("vision/large", "m1", []byte{1, 2, 4})
	e := ExtractionKey("vision/large", "m2", []byte{1, 2, 3})

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, d)
	assert.NotEqual(t, a, e)
	assert.True(t, strings.HasPrefix(a, "ocr:vision/large:m1:"))
	assert.True(t, strings.HasPrefix(ExtractionKey("layout/base", "", nil), "ocr:layout/base:default:"))
}
