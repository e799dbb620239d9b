package assets

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func TestFingerprint_Deterministic(t *testing.T) {
	a := t.TempDir()
	b := t.TempDir()
	files := map[string]string{
		"bootstrap":       "binary",
		"lib/helper.txt":  "helper",
		"lib/nested/x.md": "x",
	}
	writeFiles(t, a, files)
	writeFiles(t, b, files)

	ha, err := Fingerprint(a, Options{})
	require.NoError(t, err)
	hb, err := Fingerprint(b, Options{})
	require.NoError(t, err)

	assert.Equal(t, ha, hb)
	assert.Len(t, ha, 64)
}

func TestFingerprint_ChangesWithContentAndMode(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"bootstrap": "v1"})

	h1, err := Fingerprint(dir, Options{})
	require.NoError(t, err)

	require.NoError(t, os.Chmod(filepath.Join(dir, "bootstrap"), 0o755))
	h2, err := Fingerprint(dir, Options{})
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)

	writeFiles(t, dir, map[string]string{"bootstrap": "v2"})
	h3, err := Fingerprint(dir, Options{})
	require.NoError(t, err)
	assert.NotEqual(t, h2, h3)
}

func TestFingerprint_Exclude(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"bootstrap": "binary"})
	base, err := Fingerprint(dir, Options{})
	require.NoError(t, err)

	writeFiles(t, dir, map[string]string{
		"notes.md":         "ignored",
		"tests/a_test.txt": "ignored",
	})

	tests := []struct {
		name    string
		exclude []string
		same    bool
	}{
		{"no excludes", nil, false},
		{"partial", []string{"*.md"}, false},
		{"all extras", []string{"*.md", "tests/**"}, true},
		{"dot slash prefix", []string{"./*.md", "./tests"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := Fingerprint(dir, Options{Exclude: tt.exclude})
			require.NoError(t, err)
			if tt.same {
				assert.Equal(t, base, h)
			} else {
				assert.NotEqual(t, base, h)
			}
		})
	}
}

func TestFingerprint_Errors(t *testing.T) {
	empty := t.TempDir()
	_, err := Fingerprint(empty, Options{})
	assert.True(t, errors.Is(err, ErrEmptyAsset))

	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"only.md": "x"})
	_, err = Fingerprint(dir, Options{Exclude: []string{"**/*.md"}})
	assert.True(t, errors.Is(err, ErrEmptyAsset))

	_, err = Fingerprint(filepath.Join(dir, "missing"), Options{})
	assert.Error(t, err)

	_, err = Fingerprint(filepath.Join(dir, "only.md"), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), ".zip")
}

func TestStage_Directory(t *testing.T) {
	src := t.TempDir()
	out := t.TempDir()
	writeFiles(t, src, map[string]string{
		"bootstrap":    "binary",
		"conf/app.txt": "conf",
		"skip.log":     "log",
	})
	require.NoError(t, os.Chmod(filepath.Join(src, "bootstrap"), 0o755))

	opts := Options{Exclude: []string{"*.log"}}
	asset, err := Stage(src, out, opts)
	require.NoError(t, err)

	hash, err := Fingerprint(src, opts)
	require.NoError(t, err)
	assert.Equal(t, hash, asset.Hash)
	assert.Equal(t, "asset."+hash+".zip", asset.FileName)
	assert.Equal(t, PackagingZipDirectory, asset.Packaging)
	assert.Positive(t, asset.Size)

	zr, err := zip.OpenReader(filepath.Join(out, asset.FileName))
	require.NoError(t, err)
	defer zr.Close()

	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
		if f.Name == "bootstrap" {
			assert.Equal(t, os.FileMode(0o755), f.Mode().Perm())
		}
		assert.Equal(t, zipEpoch.Year(), f.Modified.Year())
	}
	assert.Equal(t, []string{"bootstrap", "conf/app.txt"}, names)
}

func TestStage_Idempotent(t *testing.T) {
	src := t.TempDir()
	out := t.TempDir()
	writeFiles(t, src, map[string]string{"bootstrap": "binary"})

	first, err := Stage(src, out, Options{})
	require.NoError(t, err)
	firstBytes, err := os.ReadFile(filepath.Join(out, first.FileName))
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(out, first.FileName)))
	second, err := Stage(src, out, Options{})
	require.NoError(t, err)
	secondBytes, err := os.ReadFile(filepath.Join(out, second.FileName))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, firstBytes, secondBytes, "zip output is byte-for-byte reproducible")

	third, err := Stage(src, out, Options{})
	require.NoError(t, err)
	assert.Equal(t, second, third)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestStage_PrebuiltArchive(t *testing.T) {
	dir := t.TempDir()
	out := t.TempDir()
	archive := filepath.Join(dir, "handler.zip")
	require.NoError(t, os.WriteFile(archive, []byte("PK-not-really"), 0o644))

	asset, err := Stage(archive, out, Options{})
	require.NoError(t, err)
	assert.Equal(t, PackagingFile, asset.Packaging)
	assert.Equal(t, int64(len("PK-not-really")), asset.Size)

	hash, err := Fingerprint(archive, Options{})
	require.NoError(t, err)
	assert.Equal(t, hash, asset.Hash)

	data, err := os.ReadFile(filepath.Join(out, asset.FileName))
	require.NoError(t, err)
	assert.Equal(t, "PK-not-really", string(data))
}
