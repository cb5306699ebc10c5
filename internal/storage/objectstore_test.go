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

func TestDiskObjectStore_Put(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDiskObjectStore(dir, "/media/", NewStaticCredentialProvider("tok"))
	require.NoError(t, err)

	url, err := store.Put(context.Background(), []byte("jpeg-bytes"), "image/jpeg", "reading 2026-08-30")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(url, "/media/reading_2026-08-30_"))
	assert.True(t, strings.HasSuffix(url, ".jpg"))

	// The file behind the URL exists and holds the original bytes.
	name := strings.TrimPrefix(url, "/media/")
	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), data)
}

func TestDiskObjectStore_PutUniqueNames(t *testing.T) {
	store, err := NewDiskObjectStore(t.TempDir(), "/media", NewStaticCredentialProvider("tok"))
	require.NoError(t, err)

	first, err := store.Put(context.Background(), []byte("a"), "image/png", "same")
	require.NoError(t, err)
	second, err := store.Put(context.Background(), []byte("a"), "image/png", "same")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestDiskObjectStore_MissingCredential(t *testing.T) {
	store, err := NewDiskObjectStore(t.TempDir(), "/media", NewStaticCredentialProvider(""))
	require.NoError(t, err)

	_, err = store.Put(context.Background(), []byte("a"), "image/jpeg", "x")
	assert.Error(t, err)
}

func TestDiskObjectStore_NilCredentialProviderSkipsCheck(t *testing.T) {
	store, err := NewDiskObjectStore(t.TempDir(), "/media", nil)
	require.NoError(t, err)

	url, err := store.Put(context.Background(), []byte("a"), "image/heic", "x")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(url, ".heic"))
}

func TestSanitizeHint(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{input: "", expected: "photo"},
		{input: "front porch", expected: "front_porch"},
		{input: "a/b\\c", expected: "a_b_c"},
		{input: strings.Repeat("x", 60), expected: strings.Repeat("x", 40)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, sanitizeHint(tt.input), "input %q", tt.input)
	}
}

func TestExtensionFor(t *testing.T) {
	assert.Equal(t, ".png", extensionFor("image/png"))
	assert.Equal(t, ".heic", extensionFor("image/heif"))
	assert.Equal(t, ".jpg", extensionFor("image/jpeg"))
	assert.Equal(t, ".jpg", extensionFor("application/octet-stream"))
}
