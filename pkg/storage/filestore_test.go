package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFileStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test"+FileExtension)
	fs, err := NewFileStore(path, zerolog.Nop())
	require.NoError(t, err)
	return fs, path
}

func TestFileStore_SetGetDelete(t *testing.T) {
	fs, _ := newTestFileStore(t)

	require.NoError(t, fs.Set("k1", "v1"))
	value, exists := fs.Get("k1")
	assert.True(t, exists)
	assert.Equal(t, "v1", value)

	require.NoError(t, fs.Delete("k1"))
	_, exists = fs.Get("k1")
	assert.False(t, exists)
}

func TestFileStore_PersistsAcrossReopen(t *testing.T) {
	fs, path := newTestFileStore(t)

	require.NoError(t, fs.Set("token:primary", map[string]interface{}{
		"name":  "primary",
		"value": "#ff0000",
	}))
	require.NoError(t, fs.Set("count", int64(7)))

	reopened, err := NewFileStore(path, zerolog.Nop())
	require.NoError(t, err)

	value, exists := reopened.Get("token:primary")
	require.True(t, exists)
	doc, ok := value.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "primary", doc["name"])

	count, exists := reopened.Get("count")
	require.True(t, exists)
	assert.EqualValues(t, 7, count)
}

func TestFileStore_MissingFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fresh"+FileExtension)
	fs, err := NewFileStore(path, zerolog.Nop())
	require.NoError(t, err)
	assert.Empty(t, fs.Keys())
}

func TestFileStore_RejectsBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt"+FileExtension)
	require.NoError(t, os.WriteFile(path, []byte("NOPE----garbage"), 0o644))

	_, err := NewFileStore(path, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid file header")
}

func TestFileStore_Clear(t *testing.T) {
	fs, path := newTestFileStore(t)

	require.NoError(t, fs.Set("k1", "v1"))
	require.NoError(t, fs.Set("k2", "v2"))
	require.NoError(t, fs.Clear())
	assert.Empty(t, fs.Keys())

	reopened, err := NewFileStore(path, zerolog.Nop())
	require.NoError(t, err)
	assert.Empty(t, reopened.Keys())
}

func TestHeader_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHeader(&buf))

	header, err := ReadHeader(&buf)
	require.NoError(t, err)
	assert.Equal(t, MagicBytes, string(header.Magic[:]))
	assert.EqualValues(t, FormatVersion, header.Version)
}
