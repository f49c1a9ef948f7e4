package ir

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// Runtime holds the resource requirements of a task. Every field is
// optional; a nil or empty field means "unconstrained", never zero.
type Runtime struct {
	CPU         *int
	Memory      string // quantity with unit, e.g. "4G", "2048M", "4 GiB"
	Disk        string
	Container   string // container image reference
	MaxRetries  *int
	Preemptible *int

	// Extra carries surface attributes with no IR field of their own
	// (e.g. WDL "zones"). Writers that cannot express them drop them
	// with a diagnostic.
	Extra map[string]string
}

// Empty reports whether no constraint is set at all.
func (r *Runtime) Empty() bool {
	return r == nil || (r.CPU == nil && r.Memory == "" && r.Disk == "" &&
		r.Container == "" && r.MaxRetries == nil && r.Preemptible == nil &&
		len(r.Extra) == 0)
}

// MemoryMiB returns the memory quantity normalized to mebibytes.
// The second result is false when no memory constraint is set or the
// quantity cannot be parsed.
func (r *Runtime) MemoryMiB() (int64, bool) {
	return parseQuantityMiB(r.Memory)
}

// DiskMiB returns the disk quantity normalized to mebibytes.
func (r *Runtime) DiskMiB() (int64, bool) {
	return parseQuantityMiB(r.Disk)
}

// FormatMiB renders a mebibyte quantity for human-facing reports,
// e.g. 4096 -> "4.0 GiB".
func FormatMiB(mib int64) string {
	return humanize.IBytes(uint64(mib) * 1024 * 1024)
}

// parseQuantityMiB accepts the quantity spellings the two surface
// languages use: "4G", "4GB", "4 GiB", "2048M", "2048MiB", "1T", or a
// bare number of mebibytes.
func parseQuantityMiB(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	i := 0
	for i < len(s) && (s[i] >= '0' && s[i] <= '9' || s[i] == '.') {
		i++
	}
	num, unit := s[:i], strings.TrimSpace(s[i:])
	value, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, false
	}

	unit = strings.ToUpper(unit)
	unit = strings.TrimSuffix(strings.TrimSuffix(unit, "IB"), "B")
	switch unit {
	case "":
		return int64(value), true
	case "K":
		return int64(value / 1024), true
	case "M":
		return int64(value), true
	case "G":
		return int64(value * 1024), true
	case "T":
		return int64(value * 1024 * 1024), true
	default:
		return 0, false
	}
}

// MiBQuantity renders a mebibyte count back into a compact surface
// quantity ("4G" when whole gibibytes, otherwise "NM").
func MiBQuantity(mib int64) string {
	if mib > 0 && mib%1024 == 0 {
		return fmt.Sprintf("%dG", mib/1024)
	}
	return fmt.Sprintf("%dM", mib)
}
