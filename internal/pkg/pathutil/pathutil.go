package pathutil

import "strings"

// Separator is the canonical path separator used for virtual paths and
// physical object keys.
const Separator = "/"

// Normalize canonicalizes a relative virtual path: backslashes become
// slashes, redundant slashes collapse, and leading/trailing slashes are
// trimmed. The empty string is the (implicit) root.
//
// Normalize is idempotent: Normalize(Normalize(p)) == Normalize(p).
func Normalize(path string) string {
	if path == "" {
		return ""
	}

	path = strings.ReplaceAll(path, "\\", Separator)

	for strings.Contains(path, Separator+Separator) {
		path = strings.ReplaceAll(path, Separator+Separator, Separator)
	}

	return strings.Trim(path, Separator)
}

// ParentOf returns the path of the immediate ancestor folder of path,
// or "" for a root-level path.
func ParentOf(path string) string {
	path = Normalize(path)

	idx := strings.LastIndex(path, Separator)
	if idx < 0 {
		return ""
	}
	return path[:idx]
}

// NameOf returns the last segment of path, or "" for the root.
func NameOf(path string) string {
	path = Normalize(path)

	idx := strings.LastIndex(path, Separator)
	if idx < 0 {
		return path
	}
	return path[idx+1:]
}

// Join appends name under base, normalizing both parts. An empty base
// yields the normalized name; an empty name yields the normalized base.
//
// For any normalized base p and non-empty name n:
// ParentOf(Join(p, n)) == p and NameOf(Join(p, n)) == Normalize(n).
func Join(base, name string) string {
	base = Normalize(base)
	name = Normalize(name)

	if base == "" {
		return name
	}
	if name == "" {
		return base
	}
	return base + Separator + name
}

// Segments splits a normalized path into its segments. The root path
// yields a nil slice.
func Segments(path string) []string {
	path = Normalize(path)
	if path == "" {
		return nil
	}
	return strings.Split(path, Separator)
}

// Prefixes returns every proper and improper prefix of path, shortest
// first: "a/b/c" yields ["a", "a/b", "a/b/c"]. The root yields nil.
func Prefixes(path string) []string {
	segs := Segments(path)
	if len(segs) == 0 {
		return nil
	}

	out := make([]string, len(segs))
	for i := range segs {
		out[i] = strings.Join(segs[:i+1], Separator)
	}
	return out
}

// HasPrefix reports whether path lies at or under prefix in the
// hierarchy. Both sides are normalized; every path lies under the root.
func HasPrefix(path, prefix string) bool {
	path = Normalize(path)
	prefix = Normalize(prefix)

	if prefix == "" {
		return true
	}
	return path == prefix || strings.HasPrefix(path, prefix+Separator)
}

// ReplacePrefix rewrites the oldPrefix portion of path with newPrefix.
// path must lie at or under oldPrefix; callers check with HasPrefix.
func ReplacePrefix(path, oldPrefix, newPrefix string) string {
	path = Normalize(path)
	oldPrefix = Normalize(oldPrefix)
	newPrefix = Normalize(newPrefix)

	if path == oldPrefix {
		return newPrefix
	}
	return Join(newPrefix, strings.TrimPrefix(path, oldPrefix+Separator))
}

// BuildKey derives the physical object key for an entry from its
// logical coordinates: root/tenant/path, with a trailing separator
// appended iff the entry is a folder. When tenant is empty that segment
// is omitted. This is the single source of physical keys; the formula
// is part of the on-disk contract with already-stored objects.
func BuildKey(root, tenant, path string, isFolder bool) string {
	key := Join(Join(Normalize(root), Normalize(tenant)), Normalize(path))
	if isFolder {
		key += Separator
	}
	return key
}

// BuildPrefix derives the physical listing prefix for a folder path.
// It is BuildKey with isFolder=true.
func BuildPrefix(root, tenant, path string) string {
	return BuildKey(root, tenant, path, true)
}
