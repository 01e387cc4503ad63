//go:build !linux && !darwin && !freebsd && !windows

package dfs

import "errors"

func detectFilesystem(string) (string, error) {
	return "", errors.New("filesystem detection not supported on this OS")
}
