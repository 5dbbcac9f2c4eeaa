package assets

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oops/internal/assets/core"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()

	store, err := Open(ctx, Options{Dir: filepath.Join(t.TempDir(), "icons")})
	require.NoError(t, err)
	assert.Equal(t, core.DriverFilesystem, store.Driver())

	store, err = Open(ctx, Options{Driver: core.DriverMemory})
	require.NoError(t, err)
	assert.Equal(t, core.DriverMemory, store.Driver())

	_, err = Open(ctx, Options{Driver: core.DriverS3})
	assert.Error(t, err, "s3 needs a bucket")

	_, err = Open(ctx, Options{Driver: core.DriverGCS})
	assert.Error(t, err, "gcs needs a bucket")

	_, err = Open(ctx, Options{Driver: "ftp"})
	assert.Error(t, err)

	_, err = Open(ctx, Options{Driver: core.DriverFilesystem})
	assert.Error(t, err, "fs needs a directory")
}
