// Package datapool implements the Data Pool (spec.md §4.E): a
// directory whose entries are files named by 8-digit lowercase hex
// integers, supporting atomic move-in, oldest-lookup, drain and size.
// Non-conforming names are ignored by every operation here and never
// removed, with one exception: Drain also removes the ".sum" checksum
// companion of each conforming entry it unlinks.
package datapool

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/derMihai/condalf/pkg/cderrors"
)

// NameWidth is the fixed width of a conforming pool filename.
const NameWidth = 8

// MaxID is the largest id a conforming filename can hold.
const MaxID = 0xffffffff

// sumSuffix names the companion checksum file written alongside each
// pool entry (a supplemented feature; SPEC_FULL.md §11).
const sumSuffix = ".sum"

// isConforming reports whether name is exactly an 8-digit lowercase
// hex integer and returns its value.
func isConforming(name string) (uint32, bool) {
	if len(name) != NameWidth {
		return 0, false
	}
	v, err := strconv.ParseUint(name, 16, 32)
	if err != nil {
		return 0, false
	}
	if fmt.Sprintf("%0*x", NameWidth, v) != name {
		return 0, false
	}
	return uint32(v), true
}

// findFile scans dir for the conforming entry with the
// lowest (newer=false) or highest (newer=true) id.
func findFile(dir string, newer bool) (name string, id uint32, found bool, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", 0, false, err
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		candidate, ok := isConforming(e.Name())
		if !ok {
			continue
		}
		if !found {
			id, name, found = candidate, e.Name(), true
			continue
		}
		if newer && candidate > id {
			id, name = candidate, e.Name()
		} else if !newer && candidate < id {
			id, name = candidate, e.Name()
		}
	}

	return name, id, found, nil
}

// Oldest returns the path of the lowest-id conforming file in dir, or
// NoEntry if the pool is empty.
func Oldest(dir string) (string, error) {
	name, _, found, err := findFile(dir, false)
	if err != nil {
		return "", cderrors.Wrap(cderrors.Invalid, err)
	}
	if !found {
		return "", cderrors.NoEntry
	}
	return filepath.Join(dir, name), nil
}

// Size counts the conforming entries in dir.
func Size(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, cderrors.Wrap(cderrors.Invalid, err)
	}
	n := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := isConforming(e.Name()); ok {
			n++
		}
	}
	return n, nil
}

// Drain unlinks every conforming entry in dir. It stops on the first
// unlink failure, leaving the pool partially drained — the adopted
// resolution of spec.md §9's open question on this behavior.
func Drain(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return cderrors.Wrap(cderrors.Invalid, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := isConforming(e.Name()); !ok {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if err := os.Remove(p); err != nil {
			return cderrors.Wrap(cderrors.Invalid, err)
		}
		_ = os.Remove(p + sumSuffix)
	}
	return nil
}

// MoveInto finds the current maximum conforming id in pooldir (or
// treats an empty pool as id -1) and renames sourcePath to
// pooldir/<max+1>, formatted as %08x. Filename overflow at 2^32 is
// refused with NoSpace rather than silently wrapped (spec.md §9 open
// question, resolved in DESIGN.md).
func MoveInto(pooldir, sourcePath string) (string, error) {
	_, newestID, found, err := findFile(pooldir, true)
	if err != nil {
		return "", cderrors.Wrap(cderrors.Invalid, err)
	}

	var nextID uint32
	if found {
		if newestID == MaxID {
			return "", cderrors.NoSpace
		}
		nextID = newestID + 1
	}

	name := fmt.Sprintf("%0*x", NameWidth, nextID)
	dst := filepath.Join(pooldir, name)
	if err := os.Rename(sourcePath, dst); err != nil {
		return "", cderrors.Wrap(cderrors.Invalid, err)
	}

	writeChecksum(dst)

	return dst, nil
}

// writeChecksum writes a best-effort xxhash64 companion file next to
// path; a failure here never fails the move it accompanies.
func writeChecksum(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	sum := strconv.FormatUint(xxhash.Sum64(data), 16)
	_ = os.WriteFile(path+sumSuffix, []byte(sum), 0o644)
}

// VerifyChecksum reports whether path's contents match its companion
// .sum file. A missing companion is treated as "cannot verify" (true)
// rather than "corrupt", since the checksum is a supplemented
// convenience, not part of the pool's file-naming contract.
func VerifyChecksum(path string) bool {
	want, err := os.ReadFile(path + sumSuffix)
	if err != nil {
		return true
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	got := strconv.FormatUint(xxhash.Sum64(data), 16)
	return got == string(want)
}
