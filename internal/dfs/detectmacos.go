//go:build darwin || freebsd

package dfs

import (
	"golang.org/x/sys/unix"
)

// detectFilesystem reads the filesystem type name straight out of statfs.
func detectFilesystem(path string) (string, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return "", err
	}
	return unix.ByteSliceToString(stat.Fstypename[:]), nil
}
