// Package ops archives and restores a dayparty data directory. Archives are
// tar.gz files carrying a manifest entry so a restore can be checked before
// anything is unpacked.
package ops

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// ManifestName is the first entry of every archive this package writes.
const ManifestName = "dayparty-manifest.json"

var ErrNoManifest = errors.New("archive has no dayparty manifest")

// Manifest records what an archive holds and when it was taken.
type Manifest struct {
	Service   string    `json:"service"`
	CreatedAt time.Time `json:"createdAt"`
	SourceDir string    `json:"sourceDir"`
	FileCount int       `json:"fileCount"`
}

// BackupDataDir archives srcDir into a gzipped tar at archivePath. Symlinks
// and transient files (editor droppings, *.tmp write remnants) are left out;
// the manifest goes in first.
func BackupDataDir(srcDir, archivePath string) error {
	srcDir = filepath.Clean(strings.TrimSpace(srcDir))
	archivePath = filepath.Clean(strings.TrimSpace(archivePath))
	if srcDir == "" || archivePath == "" {
		return fmt.Errorf("srcDir and archivePath are required")
	}
	info, err := os.Stat(srcDir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("source is not a directory: %s", srcDir)
	}

	entries, err := collectEntries(srcDir)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(archivePath), 0o755); err != nil {
		return err
	}
	f, err := os.Create(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	defer gz.Close()
	tw := tar.NewWriter(gz)
	defer tw.Close()

	files := 0
	for _, e := range entries {
		if !e.info.IsDir() {
			files++
		}
	}
	if err := writeManifest(tw, Manifest{
		Service:   "dayparty",
		CreatedAt: time.Now().UTC(),
		SourceDir: filepath.Base(srcDir),
		FileCount: files,
	}); err != nil {
		return err
	}

	for _, e := range entries {
		if err := writeEntry(tw, e); err != nil {
			return err
		}
	}
	return nil
}

// RestoreDataDir unpacks an archive written by BackupDataDir into targetDir.
// Entries with absolute or traversing paths abort the restore.
func RestoreDataDir(archivePath, targetDir string) error {
	archivePath = filepath.Clean(strings.TrimSpace(archivePath))
	targetDir = filepath.Clean(strings.TrimSpace(targetDir))
	if archivePath == "" || targetDir == "" {
		return fmt.Errorf("archivePath and targetDir are required")
	}
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return err
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if hdr.Name == ManifestName {
			continue
		}

		rel, err := sanitizeArchiveRelPath(hdr.Name)
		if err != nil {
			return err
		}
		outPath := filepath.Join(targetDir, rel)

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(outPath, os.FileMode(hdr.Mode)); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := restoreFile(outPath, os.FileMode(hdr.Mode), tr); err != nil {
				return err
			}
		default:
			// Symlinks and specials never make it into our archives.
		}
	}
}

// ReadManifest pulls the manifest out of an archive without unpacking it.
func ReadManifest(archivePath string) (Manifest, error) {
	f, err := os.Open(filepath.Clean(strings.TrimSpace(archivePath)))
	if err != nil {
		return Manifest{}, err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return Manifest{}, err
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return Manifest{}, ErrNoManifest
		}
		if err != nil {
			return Manifest{}, err
		}
		if hdr.Name != ManifestName {
			continue
		}
		var m Manifest
		if err := json.NewDecoder(io.LimitReader(tr, 1<<16)).Decode(&m); err != nil {
			return Manifest{}, fmt.Errorf("decode manifest: %w", err)
		}
		return m, nil
	}
}

type archiveEntry struct {
	path string
	rel  string
	info fs.FileInfo
}

func collectEntries(srcDir string) ([]archiveEntry, error) {
	var entries []archiveEntry
	err := filepath.WalkDir(srcDir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if p == srcDir {
			return nil
		}
		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}
		rel, err := filepath.Rel(srcDir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !d.IsDir() && isTransient(rel) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		entries = append(entries, archiveEntry{path: p, rel: rel, info: info})
		return nil
	})
	return entries, err
}

// isTransient filters files that never belong in a backup: in-flight write
// remnants and OS metadata droppings.
func isTransient(rel string) bool {
	base := path.Base(rel)
	return strings.HasSuffix(base, ".tmp") ||
		strings.HasSuffix(base, ".bak") ||
		base == ".DS_Store"
}

func writeManifest(tw *tar.Writer, m Manifest) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	if err := tw.WriteHeader(&tar.Header{
		Name:     ManifestName,
		Typeflag: tar.TypeReg,
		Mode:     0o644,
		Size:     int64(len(b)),
		ModTime:  m.CreatedAt,
	}); err != nil {
		return err
	}
	_, err = tw.Write(b)
	return err
}

func writeEntry(tw *tar.Writer, e archiveEntry) error {
	hdr, err := tar.FileInfoHeader(e.info, "")
	if err != nil {
		return err
	}
	hdr.Name = e.rel
	if e.info.IsDir() && !strings.HasSuffix(hdr.Name, "/") {
		hdr.Name += "/"
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	if e.info.IsDir() {
		return nil
	}

	src, err := os.Open(e.path)
	if err != nil {
		return err
	}
	defer src.Close()
	_, err = io.Copy(tw, src)
	return err
}

func restoreFile(outPath string, mode os.FileMode, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}
	dst, err := os.OpenFile(outPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, r); err != nil {
		_ = dst.Close()
		return err
	}
	return dst.Close()
}

func sanitizeArchiveRelPath(name string) (string, error) {
	name = filepath.Clean(strings.TrimSpace(name))
	if name == "." || name == "" {
		return "", fmt.Errorf("invalid archive entry path")
	}
	if filepath.IsAbs(name) {
		return "", fmt.Errorf("invalid absolute archive entry path: %s", name)
	}
	if strings.HasPrefix(name, ".."+string(filepath.Separator)) || name == ".." {
		return "", fmt.Errorf("invalid archive entry path traversal: %s", name)
	}
	return name, nil
}
