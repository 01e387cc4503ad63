//go:build unix

package dmap

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// openFileSecure creates the report relative to an open handle on its
// parent directory and refuses to write through a symlink, so a link
// planted at the report path cannot redirect it.
func openFileSecure(absPath, dirPath, fileName string) (*os.File, error) {
	if fileName == "" || fileName == "." || fileName == ".." {
		return nil, fmt.Errorf("invalid output filename %q", fileName)
	}

	dirFd, err := unix.Open(dirPath, unix.O_RDONLY|unix.O_DIRECTORY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open directory %s: %w", dirPath, err)
	}
	defer unix.Close(dirFd)

	fd, err := unix.Openat(dirFd, fileName, unix.O_WRONLY|unix.O_CREAT|unix.O_TRUNC|unix.O_NOFOLLOW|unix.O_CLOEXEC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open output file %s: %w", absPath, err)
	}

	return os.NewFile(uintptr(fd), absPath), nil
}
