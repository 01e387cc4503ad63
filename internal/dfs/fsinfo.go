// Utility functions for querying the filesystem a scan root lives on.
package dfs

import (
	"fmt"
	"path/filepath"
	"strings"

	sigar "github.com/cloudfoundry/gosigar"
)

// Volume summarises the mounted filesystem holding a path. Sizes are bytes.
type Volume struct {
	MountPoint string
	Device     string
	Type       string
	Total      uint64
	Avail      uint64
}

// UsePercent returns the used share of the volume, 0 when unknown.
func (v Volume) UsePercent() float64 {
	if v.Total == 0 {
		return 0
	}
	return float64(v.Total-v.Avail) / float64(v.Total) * 100
}

// VolumeInfo finds the mount with the longest prefix of path and returns
// its usage.
func VolumeInfo(path string) (Volume, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Volume{}, fmt.Errorf("resolve %s: %w", path, err)
	}

	fsList := sigar.FileSystemList{}
	if err := fsList.Get(); err != nil {
		return Volume{}, fmt.Errorf("list filesystems: %w", err)
	}

	var best *sigar.FileSystem
	for i := range fsList.List {
		fs := &fsList.List[i]
		if !withinMount(abs, fs.DirName) {
			continue
		}
		if best == nil || len(fs.DirName) > len(best.DirName) {
			best = fs
		}
	}
	if best == nil {
		return Volume{}, fmt.Errorf("no mounted filesystem holds %s", abs)
	}

	usage := sigar.FileSystemUsage{}
	if err := usage.Get(best.DirName); err != nil {
		return Volume{}, fmt.Errorf("usage of %s: %w", best.DirName, err)
	}

	// sigar reports KiB.
	vol := Volume{
		MountPoint: best.DirName,
		Device:     best.DevName,
		Type:       best.SysTypeName,
		Total:      usage.Total * 1024,
		Avail:      usage.Avail * 1024,
	}
	if vol.Type == "" {
		if name, err := detectFilesystem(abs); err == nil {
			vol.Type = name
		}
	}
	return vol, nil
}

func withinMount(path, mount string) bool {
	if mount == "" {
		return false
	}
	if mount == "/" || path == mount {
		return true
	}
	return strings.HasPrefix(path, strings.TrimSuffix(mount, string(filepath.Separator))+string(filepath.Separator))
}
