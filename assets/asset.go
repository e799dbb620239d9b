// Package assets fingerprints, stages and publishes Lambda code bundles.
//
// A directory is zipped deterministically (sorted entries, fixed timestamps)
// so the same content always produces the same asset.<sha256>.zip. A
// prebuilt .zip file is staged as-is.
package assets

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// Packaging describes how a source becomes the staged file.
type Packaging string

const (
	// PackagingZipDirectory zips a directory.
	PackagingZipDirectory Packaging = "zip"
	// PackagingFile copies a prebuilt archive.
	PackagingFile Packaging = "file"
)

// ErrEmptyAsset is returned for directories with no files left after excludes.
var ErrEmptyAsset = errors.New("asset has no files")

// zipEpoch is the timestamp written for every zip entry.
var zipEpoch = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// Options controls fingerprinting and staging.
type Options struct {
	// Exclude holds doublestar globs matched against slash-separated paths
	// relative to the source directory.
	Exclude []string
}

// FileAsset is a staged asset.
type FileAsset struct {
	Hash       string    `json:"hash"`
	SourcePath string    `json:"sourcePath"`
	FileName   string    `json:"fileName"`
	Size       int64     `json:"size"`
	Packaging  Packaging `json:"packaging"`
}

// FileNameFor returns the staged file name for a hash.
func FileNameFor(hash string) string {
	return "asset." + hash + ".zip"
}

type entry struct {
	rel  string
	abs  string
	mode fs.FileMode
}

// Fingerprint returns the sha256 hash identifying source's content.
func Fingerprint(source string, opts Options) (string, error) {
	info, err := os.Stat(source)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		if err := checkArchive(source); err != nil {
			return "", err
		}
		return hashFile(source)
	}
	entries, err := collect(source, opts)
	if err != nil {
		return "", err
	}
	return hashEntries(entries)
}

// Stage writes source's bundle into outdir and returns the staged asset.
// Staging content that is already present is a no-op.
func Stage(source, outdir string, opts Options) (FileAsset, error) {
	info, err := os.Stat(source)
	if err != nil {
		return FileAsset{}, err
	}

	var (
		hash    string
		entries []entry
		pkg     = PackagingZipDirectory
	)
	if info.IsDir() {
		if entries, err = collect(source, opts); err != nil {
			return FileAsset{}, err
		}
		if hash, err = hashEntries(entries); err != nil {
			return FileAsset{}, err
		}
	} else {
		pkg = PackagingFile
		if err := checkArchive(source); err != nil {
			return FileAsset{}, err
		}
		if hash, err = hashFile(source); err != nil {
			return FileAsset{}, err
		}
	}

	asset := FileAsset{Hash: hash, SourcePath: source, FileName: FileNameFor(hash), Packaging: pkg}
	target := filepath.Join(outdir, asset.FileName)

	if st, err := os.Stat(target); err == nil {
		asset.Size = st.Size()
		return asset, nil
	}

	if err := os.MkdirAll(outdir, 0o755); err != nil {
		return FileAsset{}, err
	}
	tmp, err := os.CreateTemp(outdir, ".asset-*")
	if err != nil {
		return FileAsset{}, err
	}
	defer os.Remove(tmp.Name())

	if pkg == PackagingFile {
		err = copyFile(tmp, source)
	} else {
		err = writeZip(tmp, entries)
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return FileAsset{}, fmt.Errorf("writing %s: %w", asset.FileName, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return FileAsset{}, err
	}

	st, err := os.Stat(target)
	if err != nil {
		return FileAsset{}, err
	}
	asset.Size = st.Size()
	return asset, nil
}

func checkArchive(path string) error {
	if !strings.EqualFold(filepath.Ext(path), ".zip") {
		return fmt.Errorf("%s: file assets must be .zip archives", path)
	}
	return nil
}

func collect(dir string, opts Options) ([]entry, error) {
	var entries []entry
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		excluded, err := isExcluded(rel, opts.Exclude)
		if err != nil {
			return err
		}
		if excluded {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return fmt.Errorf("%s: unsupported file type %s", rel, info.Mode().Type())
		}
		entries = append(entries, entry{rel: rel, abs: path, mode: info.Mode().Perm()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%s: %w", dir, ErrEmptyAsset)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].rel < entries[j].rel })
	return entries, nil
}

func isExcluded(rel string, patterns []string) (bool, error) {
	for _, pattern := range patterns {
		pattern = strings.TrimPrefix(filepath.ToSlash(pattern), "./")
		ok, err := doublestar.PathMatch(pattern, rel)
		if err != nil {
			return false, fmt.Errorf("exclude pattern %q: %w", pattern, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func hashEntries(entries []entry) (string, error) {
	h := sha256.New()
	for _, e := range entries {
		fmt.Fprintf(h, "%s\x00%o\x00", e.rel, e.mode)
		f, err := os.Open(e.abs)
		if err != nil {
			return "", err
		}
		_, err = io.Copy(h, f)
		f.Close()
		if err != nil {
			return "", err
		}
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func writeZip(w io.Writer, entries []entry) error {
	zw := zip.NewWriter(w)
	for _, e := range entries {
		header := &zip.FileHeader{
			Name:     e.rel,
			Method:   zip.Deflate,
			Modified: zipEpoch,
		}
		header.SetMode(e.mode)
		fw, err := zw.CreateHeader(header)
		if err != nil {
			return err
		}
		f, err := os.Open(e.abs)
		if err != nil {
			return err
		}
		_, err = io.Copy(fw, f)
		f.Close()
		if err != nil {
			return err
		}
	}
	return zw.Close()
}

func copyFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}
