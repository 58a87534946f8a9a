package ofd

import "strings"

// NormalizePath converts backslashes to forward slashes and strips leading
// slashes. It does not touch "." or ".." segments.
func NormalizePath(p string) string {
	return strings.TrimLeft(strings.ReplaceAll(p, "\\", "/"), "/")
}

// Dir returns the directory part of an archive path, or "" at the root.
func Dir(p string) string {
	p = NormalizePath(p)
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[:i]
	}
	return ""
}

// ResolvePath resolves ref relative to the directory of base, the archive
// entry that contains the reference. A ref starting with "/" is taken from the
// archive root. "." segments are dropped and ".." pops one segment but never
// climbs above the root.
func ResolvePath(base, ref string) string {
	ref = strings.ReplaceAll(ref, "\\", "/")
	combined := ref
	if !strings.HasPrefix(ref, "/") {
		combined = Dir(base) + "/" + ref
	}
	var stack []string
	for _, seg := range strings.Split(combined, "/") {
		switch strings.TrimSpace(seg) {
		case "", ".":
			continue
		case "..":
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			continue
		}
		stack = append(stack, seg)
	}
	return strings.Join(stack, "/")
}

// topDir returns the first segment of p when p lies inside a directory.
func topDir(p string) (string, bool) {
	i := strings.IndexByte(p, '/')
	if i <= 0 {
		return "", false
	}
	return p[:i], true
}

func baseName(p string) string {
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[i+1:]
	}
	return p
}
