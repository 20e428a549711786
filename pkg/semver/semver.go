// Package semver implements parsing and ordering of semantic versions
// (semver.org 2.0.0) for release tags and alias resolution.
package semver

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is a parsed semantic version: MAJOR.MINOR.PATCH[-PRERELEASE][+BUILD].
type Version struct {
	Major, Minor, Patch int
	PreRelease          []string
	Build                string
	raw                  string
}

// String returns the original, unparsed version string.
func (v Version) String() string {
	return v.raw
}

// IsPreRelease reports whether the version carries a pre-release component.
func (v Version) IsPreRelease() bool {
	return len(v.PreRelease) > 0
}

// Parse parses a version string, optionally prefixed with "v".
func Parse(s string) (Version, error) {
	raw := s
	s = strings.TrimPrefix(s, "v")

	var build string
	if i := strings.IndexByte(s, '+'); i >= 0 {
		build = s[i+1:]
		s = s[:i]
		if build == "" {
			return Version{}, fmt.Errorf("semver: empty build metadata in %q", raw)
		}
	}

	var pre []string
	if i := strings.IndexByte(s, '-'); i >= 0 {
		preStr := s[i+1:]
		s = s[:i]
		if preStr == "" {
			return Version{}, fmt.Errorf("semver: empty pre-release in %q", raw)
		}
		pre = strings.Split(preStr, ".")
		for _, id := range pre {
			if id == "" {
				return Version{}, fmt.Errorf("semver: empty pre-release identifier in %q", raw)
			}
		}
	}

	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("semver: %q is not major.minor.patch", raw)
	}

	nums := make([]int, 3)
	for i, p := range parts {
		if p == "" {
			return Version{}, fmt.Errorf("semver: empty numeric component in %q", raw)
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Version{}, fmt.Errorf("semver: invalid numeric component %q in %q", p, raw)
		}
		nums[i] = n
	}

	return Version{
		Major:      nums[0],
		Minor:      nums[1],
		Patch:      nums[2],
		PreRelease: pre,
		Build:      build,
		raw:        raw,
	}, nil
}

// Compare returns -1, 0, or 1 if a is less than, equal to, or greater than b,
// following semver 2.0.0 precedence rules. Build metadata is ignored.
func Compare(a, b Version) int {
	if c := compareInt(a.Major, b.Major); c != 0 {
		return c
	}
	if c := compareInt(a.Minor, b.Minor); c != 0 {
		return c
	}
	if c := compareInt(a.Patch, b.Patch); c != 0 {
		return c
	}
	return comparePreRelease(a.PreRelease, b.PreRelease)
}

// Less reports whether a has lower precedence than b.
func Less(a, b Version) bool {
	return Compare(a, b) < 0
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// comparePreRelease implements semver.org 2.0.0 rule 11: a version without a
// pre-release has higher precedence than one with; otherwise identifiers are
// compared left to right, numeric identifiers numerically and alphanumeric
// ones lexically (ASCII), and a version with fewer identifiers (all else
// equal) has lower precedence.
func comparePreRelease(a, b []string) int {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	if len(a) == 0 {
		return 1 // a is a normal release, b is a pre-release: a > b
	}
	if len(b) == 0 {
		return -1
	}

	for i := 0; i < len(a) && i < len(b); i++ {
		if c := comparePreReleaseIdentifier(a[i], b[i]); c != 0 {
			return c
		}
	}
	return compareInt(len(a), len(b))
}

func comparePreReleaseIdentifier(a, b string) int {
	aNum, aIsNum := isNumericIdentifier(a)
	bNum, bIsNum := isNumericIdentifier(b)

	switch {
	case aIsNum && bIsNum:
		return compareInt(aNum, bNum)
	case aIsNum && !bIsNum:
		return -1 // numeric identifiers always have lower precedence than alphanumeric
	case !aIsNum && bIsNum:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

func isNumericIdentifier(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// ByVersion sorts a slice of Version in ascending order of precedence.
type ByVersion []Version

func (s ByVersion) Len() int           { return len(s) }
func (s ByVersion) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }
func (s ByVersion) Less(i, j int) bool { return Less(s[i], s[j]) }
