package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectKeySanitisesFilename(t *testing.T) {
	key := ObjectKey("job-photos", `..\..\etc/pass wd?.jpg`)
	assert.True(t, strings.HasPrefix(key, "job-photos/"))
	assert.True(t, strings.HasSuffix(key, "_pass_wd_.jpg"))
	assert.NotContains(t, key, "..")

	assert.True(t, strings.HasSuffix(ObjectKey("x", "..."), "_file"))
}

func TestLocalStorageRoundTrip(t *testing.T) {
	root := t.TempDir()
	s := NewLocalStorage(root, "uploads")
	ctx := context.Background()

	url, err := s.Save(ctx, "job-photos", "roof.png", "image/png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "/uploads/job-photos/"))

	onDisk := filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(url, "/uploads/")))
	data, err := os.ReadFile(onDisk)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	require.NoError(t, s.Delete(ctx, url))
	_, err = os.Stat(onDisk)
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, s.Delete(ctx, url), "deleting a missing file is a no-op")
	assert.Error(t, s.Delete(ctx, "https://elsewhere/x.png"))
	assert.Error(t, s.Delete(ctx, "/uploads/../secret"))
}
