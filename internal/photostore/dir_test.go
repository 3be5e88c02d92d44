package photostore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/septivank/submetering-worker/internal/photostore"
)

func TestUpload(t *testing.T) {
	root := t.TempDir()
	store := photostore.NewDir(root, "/meter-photos/", zap.NewNop())

	url, err := store.Upload(context.Background(), []byte("jpeg"), "readings/m-1.jpg")
	require.NoError(t, err)
	assert.Equal(t, "/meter-photos/readings/m-1.jpg", url)

	data, err := os.ReadFile(filepath.Join(root, "readings", "m-1.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(data))
}

func TestUpload_StaysInsideRoot(t *testing.T) {
	root := t.TempDir()
	store := photostore.NewDir(filepath.Join(root, "photos"), "https://cdn.example.com/p", zap.NewNop())

	url, err := store.Upload(context.Background(), []byte("x"), "../../escape.jpg")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/p/escape.jpg", url)

	_, err = os.Stat(filepath.Join(root, "photos", "escape.jpg"))
	assert.NoError(t, err)
}

func TestUpload_RejectsEmptyName(t *testing.T) {
	store := photostore.NewDir(t.TempDir(), "/p", zap.NewNop())

	_, err := store.Upload(context.Background(), []byte("x"), "")
	assert.Error(t, err)
}

func TestUpload_CancelledContext(t *testing.T) {
	store := photostore.NewDir(t.TempDir(), "/p", zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Upload(ctx, []byte("x"), "a.jpg")
	assert.ErrorIs(t, err, context.Canceled)
}
