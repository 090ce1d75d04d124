package infrastructure

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
)

// ListArchiveVolumes returns the files produced for basePath. With volume
// splitting, 7z writes basePath.001, basePath.002, and so on; without it
// the archive is basePath itself. Volumes are probed in order until the
// first gap.
func ListArchiveVolumes(basePath string) []string {
	var volumes []string
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s.%03d", basePath, i)
		if _, err := os.Stat(candidate); err != nil {
			break
		}
		volumes = append(volumes, candidate)
	}
	if len(volumes) > 0 {
		return volumes
	}
	if _, err := os.Stat(basePath); err == nil {
		return []string{basePath}
	}
	return nil
}

// ArchiveFile describes one file in the output directory
type ArchiveFile struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	SizeText string `json:"size_text"`
	Modified string `json:"modified"`
}

// ListOutputFiles lists regular files in dir, newest first
func ListOutputFiles(dir string) ([]ArchiveFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []ArchiveFile{}, nil
		}
		return nil, fmt.Errorf("failed to read output directory: %w", err)
	}

	files := make([]ArchiveFile, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, ArchiveFile{
			Name:     entry.Name(),
			Size:     info.Size(),
			SizeText: humanize.Bytes(uint64(info.Size())),
			Modified: info.ModTime().Format(time.RFC3339),
		})
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].Modified > files[j].Modified
	})
	return files, nil
}

// ResolveOutputFile maps a bare file name to a path inside dir, rejecting
// anything that would escape it
func ResolveOutputFile(dir, name string) (string, error) {
	if name == "" || name != filepath.Base(name) {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	path := filepath.Join(dir, name)
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("file not found: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%q is a directory", name)
	}
	return path, nil
}
