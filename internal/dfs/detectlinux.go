//go:build linux

package dfs

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Superblock magic numbers of the filesystems people usually keep
// duplicate piles on.
var linuxFsMagic = map[int64]string{
	0xEF53:     "ext4",
	0x9123683E: "btrfs",
	0x58465342: "xfs",
	0x5346544e: "ntfs",
	0x4d44:     "vfat",
	0x01021994: "tmpfs",
	0x2fc12fc1: "zfs",
	0x62656572: "f2fs",
	0x6969:     "nfs",
	0xFF534D42: "cifs",
	0x65735546: "fuse",
	0x794c7630: "overlay",
}

// detectFilesystem names the filesystem holding path from its statfs magic.
func detectFilesystem(path string) (string, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return "", err
	}

	if name, ok := linuxFsMagic[int64(stat.Type)]; ok { // #nosec G115
		return name, nil
	}
	return fmt.Sprintf("unknown (magic=0x%x)", stat.Type), nil
}
