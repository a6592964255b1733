package fsutil

import "strings"

// Normalize returns the canonical form of a path.
//
// Backslashes are treated as forward slashes, repeated separators collapse,
// "." segments are dropped and ".." pops the previous segment. A leading ".."
// on a relative path is kept; on a rooted path it is discarded because the
// root is never removed. Drive prefixes such as "C:" are preserved as a unit.
// A relative path whose first segment looks like a drive prefix keeps a
// leading "./". The result is always safe to pass through Normalize again
// unchanged.
func Normalize(pathValue string) string {
	if pathValue == "" {
		return ""
	}

	slashPath := strings.ReplaceAll(pathValue, "\\", "/")
	volume, rest := splitVolume(slashPath)
	rooted := strings.HasPrefix(rest, "/")

	segments := make([]string, 0, strings.Count(rest, "/")+1)
	for _, segment := range strings.Split(rest, "/") {
		switch segment {
		case "", ".":
			continue
		case "..":
			if count := len(segments); count > 0 && segments[count-1] != ".." {
				segments = segments[:count-1]
				continue
			}
			if rooted {
				continue
			}
			segments = append(segments, segment)
		default:
			segments = append(segments, segment)
		}
	}

	builder := strings.Builder{}
	builder.Grow(len(slashPath) + 2)
	builder.WriteString(volume)
	if rooted {
		builder.WriteByte('/')
	} else if volume == "" && len(segments) > 0 && looksLikeVolume(segments[0]) {
		// A relative first segment such as "C:x" must not turn into a
		// drive prefix on the next pass.
		builder.WriteString("./")
	}
	builder.WriteString(strings.Join(segments, "/"))
	return builder.String()
}

// Join joins path elements and normalizes the result.
func Join(elements ...string) string {
	nonEmpty := make([]string, 0, len(elements))
	for _, element := range elements {
		if element != "" {
			nonEmpty = append(nonEmpty, element)
		}
	}
	return Normalize(strings.Join(nonEmpty, "/"))
}

// IsAbs reports whether a path is rooted, with or without a drive prefix.
func IsAbs(pathValue string) bool {
	_, rest := splitVolume(Normalize(pathValue))
	return strings.HasPrefix(rest, "/")
}

// Base returns the last element of a normalized path.
func Base(pathValue string) string {
	normalized := Normalize(pathValue)
	_, rest := splitVolume(normalized)
	if index := strings.LastIndexByte(rest, '/'); index >= 0 {
		return rest[index+1:]
	}
	return rest
}

func splitVolume(pathValue string) (string, string) {
	if len(pathValue) >= 2 && pathValue[1] == ':' && isDriveLetter(pathValue[0]) {
		return pathValue[:2], pathValue[2:]
	}
	return "", pathValue
}

func looksLikeVolume(segment string) bool {
	volume, _ := splitVolume(segment)
	return volume != ""
}

func isDriveLetter(value byte) bool {
	return ('a' <= value && value <= 'z') || ('A' <= value && value <= 'Z')
}

// Dir returns all but the last element of a normalized path. The parent of a
// single relative element is "" and the parent of a root is the root itself.
func Dir(pathValue string) string {
	normalized := Normalize(pathValue)
	volume, rest := splitVolume(normalized)
	index := strings.LastIndexByte(rest, '/')
	switch {
	case index < 0:
		return volume
	case index == 0:
		return volume + "/"
	case rest[:index] == ".":
		return ""
	default:
		return volume + rest[:index]
	}
}

// Rel returns target relative to root when target lies inside root.
func Rel(root, target string) (string, bool) {
	root = Normalize(root)
	target = Normalize(target)
	if root == target {
		return "", true
	}
	prefix := root
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	if root == "" {
		if IsAbs(target) || target == ".." || strings.HasPrefix(target, "../") {
			return "", false
		}
		return target, true
	}
	if !strings.HasPrefix(target, prefix) {
		return "", false
	}
	return target[len(prefix):], true
}
