// DFileSizeCache is a simple KV store of file sizes seen so far. A file
// whose size nobody else has cannot have a duplicate and never needs hashing.
package dmap

const (
	kInitMapEntries = 1000
)

type DFileSizeCache struct {
	// size in bytes -> number of files with that size.
	sizeMap map[int64]uint64
}

func NewDFileSizeCache() *DFileSizeCache {
	return &DFileSizeCache{
		sizeMap: make(map[int64]uint64, kInitMapEntries),
	}
}

// Add records one more file of the given size.
func (b *DFileSizeCache) Add(size int64) {
	b.sizeMap[size]++
}

// Count returns how many files of the given size were recorded.
func (b *DFileSizeCache) Count(size int64) uint64 {
	return b.sizeMap[size]
}

// Len returns the number of distinct sizes.
func (b *DFileSizeCache) Len() int {
	return len(b.sizeMap)
}
