package store

import (
	"path"
	"strings"
	"unicode"
)

// NormalizePath converts a share-relative SMB path into a clean,
// slash-separated path rooted at "/". Repeated separators collapse. "."
// and ".." components, stream suffixes and characters invalid in Windows
// names are rejected with ErrInvalidPath.
func NormalizePath(p string) (string, error) {
	p = strings.ReplaceAll(p, `\`, "/")
	p = strings.Trim(p, "/")
	if p == "" {
		return "/", nil
	}
	for _, part := range strings.Split(p, "/") {
		if part != "" && !validComponent(part) {
			return "", NewPathError("normalize", p, ErrInvalidPath)
		}
	}
	return path.Clean("/" + p), nil
}

func validComponent(name string) bool {
	if name == "." || name == ".." {
		return false
	}
	for _, r := range name {
		if r < 0x20 || strings.ContainsRune(`:*?"<>|`, r) || r == unicode.ReplacementChar {
			return false
		}
	}
	return true
}

// ToSMBPath renders a normalised path with backslashes and no leading separator.
func ToSMBPath(p string) string {
	return strings.ReplaceAll(strings.TrimPrefix(p, "/"), "/", `\`)
}

// Parent returns the normalised parent of p; the parent of "/" is "/".
func Parent(p string) string { return path.Dir(p) }

// Base returns the last element of p, or "" for the root.
func Base(p string) string {
	if p == "/" {
		return ""
	}
	return path.Base(p)
}
