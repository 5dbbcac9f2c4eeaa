package memory

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oops/internal/assets/core"
)

func TestStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()
	assert.Equal(t, core.DriverMemory, s.Driver())

	ok, err := s.Exists(ctx, "plank.png")
	require.NoError(t, err)
	assert.False(t, ok)

	md := map[string]string{core.MetaRunID: "r1"}
	_, err = s.Put(ctx, "plank.png", bytes.NewReader([]byte("abc")), core.PutOptions{Metadata: md})
	require.NoError(t, err)
	md[core.MetaRunID] = "mutated"

	head, err := s.Head(ctx, "plank.png")
	require.NoError(t, err)
	assert.Equal(t, int64(3), head.Size)
	assert.Equal(t, "r1", head.Metadata[core.MetaRunID], "metadata is copied on Put")

	s.Seed("bird_dog.png", []byte("seeded"))
	assert.Equal(t, []string{"bird_dog.png", "plank.png"}, s.Keys())
	assert.Equal(t, 1, s.Puts())

	data, ok := s.Data("bird_dog.png")
	require.True(t, ok)
	assert.Equal(t, "seeded", string(data))

	_, err = s.Head(ctx, "nope.png")
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = s.Put(ctx, "a/b.png", bytes.NewReader(nil), core.PutOptions{})
	assert.ErrorIs(t, err, core.ErrInvalidKey)
}
