// Package diskstat provides a free-space probe the LTB driver consults
// before staging a file into its data pool, a supplemented feature absent from the
// original fixed-flash-budget implementation (SPEC_FULL.md §11).
package diskstat

import (
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/derMihai/condalf/pkg/cderrors"
)

// FreeBytes returns the free space on the filesystem backing path.
func FreeBytes(path string) (uint64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, cderrors.Wrap(cderrors.Invalid, err)
	}
	return usage.Free, nil
}

// HasRoom reports whether at least need bytes are free under path. A
// probe failure is treated as "cannot tell" rather than "no room":
// callers fall back to discovering real ENOSPC at write time.
func HasRoom(path string, need uint64) bool {
	free, err := FreeBytes(path)
	if err != nil {
		return true
	}
	return free >= need
}
