// Package version holds the coordinator release version and the import
// compatibility gate for persisted run blobs.
package version

import (
	"fmt"
	"regexp"
	"strconv"
)

// ServerVersion is the current release version of the coordinator. It is
// stamped into every run at creation and checked on import.
const ServerVersion = "v1.0.0-beta.pre-2"

// Version is a parsed version string of the form
// v<M>.<m>.<p>(-(alpha|beta)(.pre-<N>)?)?.
type Version struct {
	Major, Minor, Patch int
	Label               string // "alpha", "beta", or "" for a release
	Pre                 int
	HasPre              bool
}

var versionRe = regexp.MustCompile(`^v(\d+)\.(\d+)\.(\d+)(?:-(beta|alpha)(?:\.pre-(\d+))?)?$`)

// Parse parses a version string.
func Parse(s string) (Version, error) {
	m := versionRe.FindStringSubmatch(s)
	if m == nil {
		return Version{}, fmt.Errorf("invalid version format: %q", s)
	}
	var v Version
	v.Major, _ = strconv.Atoi(m[1])
	v.Minor, _ = strconv.Atoi(m[2])
	v.Patch, _ = strconv.Atoi(m[3])
	v.Label = m[4]
	if m[5] != "" {
		v.Pre, _ = strconv.Atoi(m[5])
		v.HasPre = true
	}
	return v, nil
}

// Compare orders two versions: -1 when a < b, 0 when equal, 1 when a > b.
// An unlabeled version is greater than any labeled one at the same M.m.p;
// alpha sorts before beta; a missing pre number is greater than any present.
func Compare(a, b Version) int {
	for _, d := range [3]int{a.Major - b.Major, a.Minor - b.Minor, a.Patch - b.Patch} {
		if d < 0 {
			return -1
		}
		if d > 0 {
			return 1
		}
	}

	switch {
	case a.Label == "" && b.Label != "":
		return 1
	case a.Label != "" && b.Label == "":
		return -1
	case a.Label == "" && b.Label == "":
		return 0
	}

	if a.Label != b.Label {
		if a.Label == "alpha" {
			return -1
		}
		return 1
	}

	switch {
	case !a.HasPre && b.HasPre:
		return 1
	case a.HasPre && !b.HasPre:
		return -1
	case !a.HasPre && !b.HasPre:
		return 0
	}
	if a.Pre > b.Pre {
		return 1
	}
	if a.Pre < b.Pre {
		return -1
	}
	return 0
}

// Compatible reports whether a provided version satisfies a required one.
// Major and minor of the provided version must not be lower; patch may float.
// At identical M.m.p the pre-release labels must match (alpha never satisfies
// beta or vice versa) and the provided pre number must not be lower, where a
// missing pre number counts as greater than any present.
func Compatible(required, provided string) (bool, error) {
	req, err := Parse(required)
	if err != nil {
		return false, err
	}
	prov, err := Parse(provided)
	if err != nil {
		return false, err
	}

	if prov.Major < req.Major || prov.Minor < req.Minor {
		return false, nil
	}

	if req.Major != prov.Major || req.Minor != prov.Minor || req.Patch != prov.Patch {
		return true, nil
	}

	if req.Label == "" && prov.Label == "" {
		return true, nil
	}
	if req.Label != prov.Label && req.Label != "" && prov.Label != "" {
		return false, nil
	}
	// Same M.m.p with at most one label missing: the provided version must not
	// sort below the required one (labeled < unlabeled, absent pre > present).
	return Compare(prov, req) >= 0, nil
}
