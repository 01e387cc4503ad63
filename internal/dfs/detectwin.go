//go:build windows

package dfs

import (
	"path/filepath"

	"golang.org/x/sys/windows"
)

// detectFilesystem asks the volume holding path for its filesystem name
// (NTFS, ReFS, exFAT...).
func detectFilesystem(path string) (string, error) {
	full, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	root := filepath.VolumeName(full) + `\`
	p, err := windows.UTF16PtrFromString(root)
	if err != nil {
		return "", err
	}

	fsName := make([]uint16, windows.MAX_PATH+1)
	if err := windows.GetVolumeInformation(p, nil, 0, nil, nil, nil, &fsName[0], uint32(len(fsName))); err != nil {
		return "", err
	}
	return windows.UTF16ToString(fsName), nil
}
