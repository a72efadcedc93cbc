package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/scanocr/internal/imageio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteSamples(t *testing.T) {
	dir := t.TempDir()

	n, err := writeSamples(dir, samples(), false)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	dec := imageio.NewDecoder(imageio.DefaultMaxPixels)
	for _, name := range []string{"hello.png", "words.jpg", "blank.png"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		_, err = dec.Decode(data, "")
		assert.NoError(t, err, name)
	}

	corrupt, err := os.ReadFile(filepath.Join(dir, "corrupt.png"))
	require.NoError(t, err)
	_, err = dec.Decode(corrupt, "")
	assert.Error(t, err)
}

func TestWriteSamples_SkipsExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hello.png")
	require.NoError(t, os.WriteFile(path, []byte("keep"), 0o600))

	n, err := writeSamples(dir, samples()[:1], false)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	data, _ := os.ReadFile(path)
	assert.Equal(t, "keep", string(data))

	n, err = writeSamples(dir, samples()[:1], true)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
