package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trendzee/live-trends/internal/config"
)

func TestLocalArchive_RoundTrip(t *testing.T) {
	ctx := context.Background()
	a, err := NewLocalArchive(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, a.Store(ctx, "runs/2025-01-01/a.json", []byte(`{"a":1}`)))
	require.NoError(t, a.Store(ctx, "runs/2025-01-02/b.json", []byte(`{"b":2}`)))
	require.NoError(t, a.Store(ctx, "other.json", []byte(`{}`)))

	data, err := a.Retrieve(ctx, "runs/2025-01-01/a.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(data))

	names, err := a.List(ctx, "runs/")
	require.NoError(t, err)
	assert.Equal(t, []string{"runs/2025-01-01/a.json", "runs/2025-01-02/b.json"}, names)

	require.NoError(t, a.Delete(ctx, "other.json"))
	_, err = a.Retrieve(ctx, "other.json")
	assert.Error(t, err)
}

func TestLocalArchive_NamesStayInsideRoot(t *testing.T) {
	ctx := context.Background()
	parent := t.TempDir()
	root := filepath.Join(parent, "archive")
	a, err := NewLocalArchive(root)
	require.NoError(t, err)

	require.NoError(t, a.Store(ctx, "../escape.json", []byte(`{}`)))

	_, err = os.Stat(filepath.Join(parent, "escape.json"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(root, "escape.json"))
	assert.NoError(t, err)

	assert.Error(t, a.Store(ctx, "", []byte(`{}`)))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	a, err := Open(ctx, &config.Config{ArchiveDriver: "none"})
	require.NoError(t, err)
	assert.Nil(t, a)

	a, err = Open(ctx, &config.Config{ArchiveDriver: "local", ArchiveDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalArchive{}, a)

	_, err = Open(ctx, &config.Config{ArchiveDriver: "ftp"})
	assert.Error(t, err)
}
