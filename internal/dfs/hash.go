package dfs

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/afero"
	"lukechampine.com/blake3"
)

// HashAlgorithm selects which digest is used when hashing file contents.
type HashAlgorithm string

const (
	HashSHA256 HashAlgorithm = "sha256"
	HashBLAKE3 HashAlgorithm = "blake3"
)

// DigestSize is the length in bytes of every supported fingerprint.
const DigestSize = 32

// PrefixSize is how much of a file QuickDigest reads.
const PrefixSize = 4 * 1024

// Digest is a full-content fingerprint.
type Digest [DigestSize]byte

// String returns the digest as lowercase hex.
func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// Short returns the first 4 bytes as 8 hex chars, enough for display.
func (d Digest) Short() string { return hex.EncodeToString(d[:4]) }

// ParseDigest converts a 64 character hex string back to a Digest.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	if len(s) != hex.EncodedLen(DigestSize) {
		return d, fmt.Errorf("digest %q: want %d hex chars, got %d", s, hex.EncodedLen(DigestSize), len(s))
	}
	if _, err := hex.Decode(d[:], []byte(s)); err != nil {
		return d, fmt.Errorf("digest %q: %w", s, err)
	}
	return d, nil
}

// ParseHashAlgorithm accepts the names used in the config file. The empty
// string selects SHA-256.
func ParseHashAlgorithm(name string) (HashAlgorithm, error) {
	switch HashAlgorithm(strings.ToLower(strings.TrimSpace(name))) {
	case "", HashSHA256:
		return HashSHA256, nil
	case HashBLAKE3:
		return HashBLAKE3, nil
	default:
		return "", fmt.Errorf("unknown hash algorithm %q", name)
	}
}

func newHasher(algo HashAlgorithm) (hash.Hash, error) {
	switch algo {
	case "", HashSHA256:
		return sha256.New(), nil
	case HashBLAKE3:
		return blake3.New(DigestSize, nil), nil
	default:
		return nil, fmt.Errorf("unknown hash algorithm %q", algo)
	}
}

// QuickDigest hashes at most the first PrefixSize bytes of a file with xxhash.
// Two files with different quick digests cannot be identical; equal quick
// digests prove nothing.
func QuickDigest(fs afero.Fs, path string) (uint64, error) {
	f, err := fs.Open(path)
	if err != nil {
		return 0, &ReadError{Path: path, Err: err}
	}
	defer f.Close()

	buf := make([]byte, PrefixSize)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return 0, &ReadError{Path: path, Err: err}
	}

	return xxhash.Sum64(buf[:n]), nil
}
