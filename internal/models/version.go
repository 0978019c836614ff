package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Version is a dotted numeric migration version, e.g. "10.0.1".
// The raw string is kept as written in the script name, comparison only looks at the segments.
type Version struct {
	raw      string
	segments []int
}

func ParseVersion(versionString string) (Version, error) {
	if strings.TrimSpace(versionString) == "" {
		return Version{}, fmt.Errorf("invalid version format: empty value")
	}

	// "1.1.1.1.1." is accepted, trailing dots do not add segments
	parts := strings.Split(strings.TrimRight(versionString, "."), ".")
	segments := make([]int, 0, len(parts))

	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return Version{}, fmt.Errorf("invalid version format: %s", versionString)
		}
		segments = append(segments, n)
	}

	return Version{raw: versionString, segments: segments}, nil
}

func MustParseVersion(versionString string) Version {
	v, err := ParseVersion(versionString)
	if err != nil {
		panic(err)
	}
	return v
}

func (v Version) String() string {
	return v.raw
}

func (v Version) Segments() []int {
	out := make([]int, len(v.segments))
	copy(out, v.segments)
	return out
}

func (v Version) IsZero() bool {
	return len(v.segments) == 0
}

// Compare returns -1, 0 or 1. A segment missing in the shorter version
// compares as the smallest possible value, so "1.0" < "1.0.0".
func (v Version) Compare(version Version) int {
	size := len(v.segments)
	if len(version.segments) > size {
		size = len(version.segments)
	}

	for i := 0; i < size; i++ {
		left, right := segment(v.segments, i), segment(version.segments, i)
		if left > right {
			return 1
		}
		if left < right {
			return -1
		}
	}

	return 0
}

func (v Version) Equals(version Version) bool {
	return v.Compare(version) == 0
}

func (v Version) MoreThan(version Version) bool {
	return v.Compare(version) > 0
}

func (v Version) MoreOrEqual(version Version) bool {
	return v.Compare(version) >= 0
}

func (v Version) LessThan(version Version) bool {
	return v.Compare(version) < 0
}

func (v Version) LessOrEqual(version Version) bool {
	return v.Compare(version) <= 0
}

// NewerThan reports whether v must be applied on top of latest.
// A nil latest means nothing was applied yet, every version qualifies.
func (v Version) NewerThan(latest *Version) bool {
	if latest == nil {
		return true
	}
	return v.MoreThan(*latest)
}

func segment(items []int, i int) int {
	if i < len(items) {
		return items[i]
	}
	return math.MinInt
}
