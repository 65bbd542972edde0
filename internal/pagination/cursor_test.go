package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	encoded := Encode(1_739_615_400_000, "7f1c0c9e-6d1d-4b39-9d7e-1f0a2b3c4d5e")
	assert.NotEmpty(t, encoded)

	cursor, err := Decode(encoded)
	require.NoError(t, err)
	require.NotNil(t, cursor)
	assert.Equal(t, int64(1_739_615_400_000), cursor.Timestamp)
	assert.Equal(t, "7f1c0c9e-6d1d-4b39-9d7e-1f0a2b3c4d5e", cursor.ID)
}

func TestDecode_Empty(t *testing.T) {
	cursor, err := Decode("")
	assert.NoError(t, err)
	assert.Nil(t, cursor)
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode("not-base64!!!")
	assert.ErrorIs(t, err, ErrInvalidCursor)
}

func TestDecode_MalformedPayload(t *testing.T) {
	_, err := Decode("bm9waXBl") // "nopipe"
	assert.ErrorIs(t, err, ErrInvalidCursor)

	_, err = Decode(Encode(1, "")) // empty id
	assert.ErrorIs(t, err, ErrInvalidCursor)
}

func TestCursor_After(t *testing.T) {
	c := &Cursor{Timestamp: 100, ID: "m"}

	assert.True(t, c.After(99, "z"))
	assert.False(t, c.After(101, "a"))
	assert.True(t, c.After(100, "a"))
	assert.False(t, c.After(100, "m"))
	assert.False(t, c.After(100, "z"))

	var none *Cursor
	assert.True(t, none.After(0, ""))
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, ClampLimit(0))
	assert.Equal(t, DefaultLimit, ClampLimit(-3))
	assert.Equal(t, 10, ClampLimit(10))
	assert.Equal(t, MaxLimit, ClampLimit(10_000))
}

type item struct {
	ts int64
	id string
}

func key(i item) (int64, string) { return i.ts, i.id }

func TestComputePage_NoMore(t *testing.T) {
	items := []item{{3, "a"}, {2, "b"}, {1, "c"}}
	page, next := ComputePage(items, 5, key)
	assert.Len(t, page, 3)
	assert.Empty(t, next)
}

func TestComputePage_HasMore(t *testing.T) {
	items := []item{{4, "a"}, {3, "b"}, {2, "c"}, {1, "d"}}
	page, next := ComputePage(items, 3, key)
	assert.Len(t, page, 3)
	require.NotEmpty(t, next)

	c, err := Decode(next)
	require.NoError(t, err)
	assert.Equal(t, "c", c.ID)
	assert.Equal(t, int64(2), c.Timestamp)
}

func TestComputePage_ExactLimit(t *testing.T) {
	items := []item{{3, "a"}, {2, "b"}, {1, "c"}}
	page, next := ComputePage(items, 3, key)
	assert.Len(t, page, 3)
	assert.Empty(t, next)
}
