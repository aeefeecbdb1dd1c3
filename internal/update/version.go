package update

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/mod/semver"
)

// Version is a dotted version string parsed into numeric components.
type Version []uint64

// ParseVersion strips any leading non-digit prefix ("v", "V", "release-")
// and parses each dot-separated component. Components that are not plain
// non-negative integers count as 0.
func ParseVersion(s string) Version {
	s = strings.TrimLeftFunc(strings.TrimSpace(s), func(r rune) bool { return !unicode.IsDigit(r) })
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ".")
	v := make(Version, len(parts))
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			n = 0
		}
		v[i] = n
	}
	return v
}

// Compare returns -1, 0 or 1. Missing trailing components count as 0, so
// "1.0" and "1.0.0" are equal.
func (v Version) Compare(other Version) int {
	n := max(len(v), len(other))
	for i := 0; i < n; i++ {
		var a, b uint64
		if i < len(v) {
			a = v[i]
		}
		if i < len(other) {
			b = other[i]
		}
		if a != b {
			if a > b {
				return 1
			}
			return -1
		}
	}
	return 0
}

// String renders the components joined by dots.
func (v Version) String() string {
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = strconv.FormatUint(n, 10)
	}
	return strings.Join(parts, ".")
}

// IsNewer reports whether remote is strictly newer than local using
// component-wise numeric comparison. Pre-release and build metadata are not
// understood: "1.2.3-beta" compares as "1.2.0".
func IsNewer(remote, local string) bool {
	return ParseVersion(remote).Compare(ParseVersion(local)) > 0
}

// Prerelease returns the semver pre-release suffix of tag ("-beta.1"), or
// "" when there is none or tag is not valid semver. It only feeds
// diagnostics; IsNewer ignores pre-release ordering.
func Prerelease(tag string) string {
	tag = strings.TrimSpace(tag)
	if !strings.HasPrefix(tag, "v") {
		tag = "v" + strings.TrimPrefix(tag, "V")
	}
	if !semver.IsValid(tag) {
		return ""
	}
	return semver.Prerelease(tag)
}
