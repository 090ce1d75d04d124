package infrastructure

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
}

func TestListArchiveVolumes_Split(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "app_730.7z")
	touch(t, base+".001")
	touch(t, base+".002")
	touch(t, base+".003")
	// A gap stops the probe even if later volumes exist.
	touch(t, base+".005")

	volumes := ListArchiveVolumes(base)
	assert.Equal(t, []string{base + ".001", base + ".002", base + ".003"}, volumes)
}

func TestListArchiveVolumes_SingleFile(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "app_440.7z")
	touch(t, base)

	assert.Equal(t, []string{base}, ListArchiveVolumes(base))
}

func TestListArchiveVolumes_Missing(t *testing.T) {
	assert.Nil(t, ListArchiveVolumes(filepath.Join(t.TempDir(), "nope.7z")))
}

func TestListOutputFiles(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "app_730.7z.001"))
	touch(t, filepath.Join(dir, "app_730.7z.002"))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0755))

	files, err := ListOutputFiles(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	for _, f := range files {
		assert.NotEmpty(t, f.SizeText)
		assert.NotEmpty(t, f.Modified)
	}
}

func TestListOutputFiles_MissingDir(t *testing.T) {
	files, err := ListOutputFiles(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestResolveOutputFile(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "app_730.7z"))

	path, err := ResolveOutputFile(dir, "app_730.7z")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "app_730.7z"), path)

	_, err = ResolveOutputFile(dir, "../etc/passwd")
	assert.Error(t, err)

	_, err = ResolveOutputFile(dir, "absent.7z")
	assert.Error(t, err)
}
