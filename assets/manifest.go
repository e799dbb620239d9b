package assets

import (
	"encoding/json"
	"fmt"
	"os"
)

// ManifestVersion is the schema version written to asset manifests.
const ManifestVersion = "1"

// Manifest lists the staged files of one stack and where they are published.
type Manifest struct {
	Version string               `json:"version"`
	Files   map[string]FileEntry `json:"files"`
}

// FileEntry is one staged file.
type FileEntry struct {
	Source       FileSource             `json:"source"`
	Destinations map[string]Destination `json:"destinations"`
}

// FileSource locates a staged file relative to the manifest.
type FileSource struct {
	Path      string    `json:"path"`
	Packaging Packaging `json:"packaging"`
}

// Destination is an S3 location. BucketName and Region may contain the
// ${AWS::AccountId} and ${AWS::Region} placeholders.
type Destination struct {
	BucketName    string `json:"bucketName"`
	ObjectKey     string `json:"objectKey"`
	Region        string `json:"region,omitempty"`
	AssumeRoleArn string `json:"assumeRoleArn,omitempty"`
}

// NewManifest returns an empty manifest.
func NewManifest() *Manifest {
	return &Manifest{Version: ManifestVersion, Files: make(map[string]FileEntry)}
}

// Add records a staged asset and its destination. The staged zip is always
// uploaded as a file.
func (m *Manifest) Add(asset FileAsset, dest Destination) {
	m.Files[asset.Hash] = FileEntry{
		Source:       FileSource{Path: asset.FileName, Packaging: PackagingFile},
		Destinations: map[string]Destination{"current_account-current_region": dest},
	}
}

// Write saves the manifest as indented JSON.
func (m *Manifest) Write(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadManifest reads a manifest written by Write.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if m.Version != ManifestVersion {
		return nil, fmt.Errorf("%s: unsupported manifest version %q", path, m.Version)
	}
	if m.Files == nil {
		m.Files = make(map[string]FileEntry)
	}
	return &m, nil
}
