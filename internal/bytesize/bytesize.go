// Package bytesize parses and formats sizes such as "8Mi" or "10GB" for
// configuration files.
package bytesize

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ByteSize is a size in bytes. In text form it is a number with an optional
// unit: binary (Ki, Mi, Gi, Ti, optionally followed by B) or decimal (K, M,
// G, T, optionally followed by B). Units are case-insensitive.
type ByteSize uint64

const (
	B  ByteSize = 1
	KB ByteSize = 1000
	MB ByteSize = 1000 * KB
	GB ByteSize = 1000 * MB
	TB ByteSize = 1000 * GB

	KiB ByteSize = 1024
	MiB ByteSize = 1024 * KiB
	GiB ByteSize = 1024 * MiB
	TiB ByteSize = 1024 * GiB
)

type unit struct {
	suffix string
	size   ByteSize
}

// units is ordered largest first within each family; String relies on it.
var units = []unit{
	{"Ti", TiB}, {"Gi", GiB}, {"Mi", MiB}, {"Ki", KiB},
	{"TB", TB}, {"GB", GB}, {"MB", MB}, {"KB", KB},
}

var errEmpty = errors.New("empty byte size")

// ParseByteSize parses s. Fractions are allowed with a unit ("1.5Gi") and
// rounded down to a whole byte.
func ParseByteSize(s string) (ByteSize, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errEmpty
	}

	i := 0
	for i < len(s) && (s[i] >= '0' && s[i] <= '9' || s[i] == '.') {
		i++
	}
	number, suffix := s[:i], strings.TrimSpace(s[i:])
	if number == "" {
		return 0, fmt.Errorf("invalid byte size %q: no number", s)
	}

	mult, err := multiplier(suffix)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q: %w", s, err)
	}

	if !strings.Contains(number, ".") {
		n, err := strconv.ParseUint(number, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid byte size %q: %w", s, err)
		}
		if n > math.MaxUint64/uint64(mult) {
			return 0, fmt.Errorf("invalid byte size %q: overflows 64 bits", s)
		}
		return ByteSize(n) * mult, nil
	}

	f, err := strconv.ParseFloat(number, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q: %w", s, err)
	}
	v := f * float64(mult)
	if v >= math.MaxUint64 {
		return 0, fmt.Errorf("invalid byte size %q: overflows 64 bits", s)
	}
	return ByteSize(v), nil
}

func multiplier(suffix string) (ByteSize, error) {
	u := strings.ToLower(suffix)
	if u == "" || u == "b" {
		return B, nil
	}
	binary := strings.HasSuffix(strings.TrimSuffix(u, "b"), "i")
	base := KB
	if binary {
		base = KiB
	}
	switch strings.TrimSuffix(strings.TrimSuffix(u, "b"), "i") {
	case "k":
		return base, nil
	case "m":
		return base * base, nil
	case "g":
		return base * base * base, nil
	case "t":
		return base * base * base * base, nil
	}
	return 0, fmt.Errorf("unknown unit %q", suffix)
}

// String returns the exact size using the unit that gives the smallest
// whole number, e.g. "8Mi" or "10GB". Sizes that no unit divides are
// returned as a plain number of bytes.
func (b ByteSize) String() string {
	best, bestN := "", uint64(b)
	if b != 0 {
		for _, u := range units {
			if b%u.size == 0 && uint64(b/u.size) < bestN {
				best, bestN = u.suffix, uint64(b/u.size)
			}
		}
	}
	return strconv.FormatUint(bestN, 10) + best
}

// MarshalText writes the String form, so YAML and JSON output stays
// readable and parses back to the same value.
func (b ByteSize) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *ByteSize) UnmarshalText(text []byte) error {
	size, err := ParseByteSize(string(text))
	if err != nil {
		return err
	}
	*b = size
	return nil
}
