// Package pathcase resolves a case-insensitive path guess onto the exact
// directory entries of a case-sensitive volume. The boot medium tolerates any
// casing, the target filesystem does not, so the conventional loader path has
// to be matched component by component against what is actually on disk.
package pathcase

import (
	"strings"

	"github.com/danmuck/bridgectl/internal/efi"
)

const sep = `\`

// Resolve walks path from root, replacing every component with the entry
// that matches it case-insensitively. It returns the case-exact path with a
// leading separator. NotFound if any component has no match.
func Resolve(root efi.File, path string) (string, efi.Status) {
	trimmed := strings.Trim(path, sep)
	if trimmed == "" {
		return "", efi.InvalidParameter
	}
	parts := strings.Split(trimmed, sep)
	resolved := make([]string, len(parts))

	dir := root
	for i, part := range parts {
		entries, st := dir.ReadDir()
		if st.IsError() {
			closeUnlessRoot(dir, root)
			return "", st
		}

		actual, isDir, found := match(entries, part)
		if !found {
			closeUnlessRoot(dir, root)
			return "", efi.NotFound
		}
		resolved[i] = actual

		last := i == len(parts)-1
		if last {
			closeUnlessRoot(dir, root)
			break
		}
		if !isDir {
			closeUnlessRoot(dir, root)
			return "", efi.NotFound
		}
		next, st := dir.Open(actual)
		closeUnlessRoot(dir, root)
		if st.IsError() || next == nil {
			return "", efi.NotFound
		}
		dir = next
	}

	return sep + strings.Join(resolved, sep), efi.Success
}

func match(entries []efi.DirEntry, name string) (string, bool, bool) {
	// An exact match wins over a fold match when a directory carries both.
	for _, e := range entries {
		if e.Name == name {
			return e.Name, e.IsDir, true
		}
	}
	for _, e := range entries {
		if strings.EqualFold(e.Name, name) {
			return e.Name, e.IsDir, true
		}
	}
	return "", false, false
}

func closeUnlessRoot(dir, root efi.File) {
	if dir != root {
		dir.Close()
	}
}
