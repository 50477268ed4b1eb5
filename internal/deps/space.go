package deps

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// MinFreeBytes is the floor below which the daemon refuses to start.
// Source downloads plus intermediate renders for one 1080p job can take
// several gigabytes.
const MinFreeBytes = 5 << 30

// CheckFreeSpace reports the free bytes available at the given directory.
// The directory is created if it does not exist yet.
func CheckFreeSpace(dir string) (uint64, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create %s: %w", dir, err)
	}
	var stat unix.Statfs_t
	if err := unix.Statfs(dir, &stat); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", dir, err)
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}

// VerifyFreeSpace returns an error when the artifacts volume is below the
// minimum working headroom.
func VerifyFreeSpace(dir string, minBytes uint64) error {
	free, err := CheckFreeSpace(dir)
	if err != nil {
		return err
	}
	if free < minBytes {
		return fmt.Errorf("%s has %.1f GiB free, need at least %.1f GiB",
			dir, float64(free)/(1<<30), float64(minBytes)/(1<<30))
	}
	return nil
}
