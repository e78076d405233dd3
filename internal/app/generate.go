package app

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"
)

// ErrInvalidSize is returned by ParseSize and GenerateFile.
var ErrInvalidSize = errors.New("invalid size")

// sizeUnits maps suffixes accepted by ParseSize to their multipliers.
var sizeUnits = []struct {
	suffix string
	mult   int
}{
	{"GIB", 1 << 30},
	{"MIB", 1 << 20},
	{"KIB", 1 << 10},
	{"GB", 1000 * 1000 * 1000},
	{"MB", 1000 * 1000},
	{"KB", 1000},
	{"G", 1 << 30},
	{"M", 1 << 20},
	{"K", 1 << 10},
	{"B", 1},
}

// ParseSize parses a byte count such as "2MiB", "512K" or "1000".
func ParseSize(s string) (int, error) {
	raw := strings.ToUpper(strings.TrimSpace(s))
	mult := 1
	for _, u := range sizeUnits {
		if strings.HasSuffix(raw, u.suffix) {
			raw = strings.TrimSpace(strings.TrimSuffix(raw, u.suffix))
			mult = u.mult
			break
		}
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}
	return n * mult, nil
}

// GenerateFile writes size random bytes to path.
func GenerateFile(path string, size int) error {
	if size <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}

	r := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	data := make([]byte, size+7)
	for i := 0; i < size; i += 8 {
		binary.LittleEndian.PutUint64(data[i:], r.Uint64())
	}

	if err := os.WriteFile(path, data[:size], 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
