package utils

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Our size constants. Powers of two!
const (
	_   = iota
	KiB = 1 << (10 * iota)
	MiB
	GiB
	TiB
	PiB
	EiB
)

// Suffixes are binary regardless of spelling: "k", "kb" and "kib" all mean KiB.
var sizeSuffixMultipliers = map[string]uint64{
	"":  1,
	"b": 1,
	"k": KiB,
	"m": MiB,
	"g": GiB,
	"t": TiB,
	"p": PiB,
	"e": EiB,
}

// ParseSize converts human-readable size strings (e.g. "10M", "4GiB", "1.5T") to bytes.
func ParseSize(input string) (uint64, error) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	normalized = strings.NewReplacer(" ", "", "_", "", ",", "").Replace(normalized)
	if normalized == "" {
		return 0, fmt.Errorf("size string is empty")
	}

	// Plain numbers, including exponent forms like 1e3.
	if f, err := strconv.ParseFloat(normalized, 64); err == nil {
		return toBytes(input, f, 1)
	}

	idx := strings.IndexFunc(normalized, func(r rune) bool {
		return !unicode.IsDigit(r) && r != '.' && r != '+' && r != '-'
	})
	if idx <= 0 {
		return 0, fmt.Errorf("invalid size %q", input)
	}

	value, err := strconv.ParseFloat(normalized[:idx], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", input, err)
	}

	multiplier, err := lookupMultiplier(normalized[idx:])
	if err != nil {
		return 0, err
	}

	return toBytes(input, value, multiplier)
}

func toBytes(input string, value float64, multiplier uint64) (uint64, error) {
	product := value * float64(multiplier)
	switch {
	case math.IsInf(product, 0) || math.IsNaN(product):
		return 0, fmt.Errorf("size %s is not a finite number", input)
	case product < 0:
		return 0, fmt.Errorf("size must be non-negative: %s", input)
	case product > float64(math.MaxUint64):
		return 0, fmt.Errorf("size %s overflows uint64", input)
	}
	return uint64(product), nil
}

func lookupMultiplier(suffix string) (uint64, error) {
	s := strings.TrimSuffix(strings.TrimSuffix(suffix, "s"), "byte")
	s = strings.TrimSuffix(s, "b")
	s = strings.TrimSuffix(s, "i")

	if multiplier, ok := sizeSuffixMultipliers[s]; ok {
		return multiplier, nil
	}
	return 0, fmt.Errorf("unknown size suffix %q", suffix)
}

// DisplaySize takes a number of bytes and returns a human-readable string
func DisplaySize(bytes uint64) string {

	switch {
	case bytes < KiB:
		return fmt.Sprintf("%d B", bytes)
	case bytes < MiB:
		return fmt.Sprintf("%.2f KiB", float64(bytes)/float64(KiB))
	case bytes < GiB:
		return fmt.Sprintf("%.2f MiB", float64(bytes)/float64(MiB))
	case bytes < TiB:
		return fmt.Sprintf("%.2f GiB", float64(bytes)/float64(GiB))
	case bytes < PiB:
		return fmt.Sprintf("%.2f TiB", float64(bytes)/float64(TiB))
	case bytes < EiB:
		return fmt.Sprintf("%.2f PiB", float64(bytes)/float64(PiB))
	default:
		return fmt.Sprintf("%.2f EiB", float64(bytes)/float64(EiB))
	}
}

// IsAlphanumeric checks if a rune is an ASCII letter or digit.
func IsAlphanumeric(r rune) bool {
	return r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))
}
