package assets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManifest_WriteLoad(t *testing.T) {
	m := NewManifest()
	m.Add(FileAsset{Hash: "abc", FileName: "asset.abc.zip", Packaging: PackagingZipDirectory}, Destination{
		BucketName: "wetwire-assets-${AWS::AccountId}-${AWS::Region}",
		ObjectKey:  "abc.zip",
		Region:     "${AWS::Region}",
	})

	path := filepath.Join(t.TempDir(), "stack.assets.json")
	require.NoError(t, m.Write(path))

	loaded, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, m, loaded)

	entry := loaded.Files["abc"]
	assert.Equal(t, "asset.abc.zip", entry.Source.Path)
	assert.Equal(t, PackagingFile, entry.Source.Packaging)
	assert.Equal(t, "abc.zip", entry.Destinations["current_account-current_region"].ObjectKey)
}

func TestLoadManifest_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadManifest(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o644))
	_, err = LoadManifest(bad)
	assert.Error(t, err)

	future := filepath.Join(dir, "future.json")
	require.NoError(t, os.WriteFile(future, []byte(`{"version": "99", "files": {}}`), 0o644))
	_, err = LoadManifest(future)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported manifest version")

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte(`{"version": "1"}`), 0o644))
	m, err := LoadManifest(empty)
	require.NoError(t, err)
	assert.NotNil(t, m.Files)
}
