// Package bump implements the semantic-version bump modes used by the
// release pipeline.
package bump

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Mode selects which version component a bump increments.
type Mode string

const (
	// ModeMajor increments major and zeroes minor and patch.
	ModeMajor Mode = "major"
	// ModeMinor increments minor and zeroes patch.
	ModeMinor Mode = "minor"
	// ModePatch increments patch only.
	ModePatch Mode = "patch"
	// ModeForce keeps the version unchanged. Used to re-push an
	// existing version, which also makes the branch push forced.
	ModeForce Mode = "force"
)

// ParseMode validates a user-supplied mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeMajor, ModeMinor, ModePatch, ModeForce:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("invalid version type %q: use major, minor, patch, or force", s)
	}
}

// Parse parses a strict MAJOR.MINOR.PATCH version string.
func Parse(s string) (*semver.Version, error) {
	v, err := semver.StrictNewVersion(s)
	if err != nil {
		return nil, fmt.Errorf("parsing version %q: %w", s, err)
	}

	return v, nil
}

// Next applies mode to v and returns the resulting version. ModeForce
// returns v unchanged.
func Next(v *semver.Version, mode Mode) *semver.Version {
	var next semver.Version

	switch mode {
	case ModeMajor:
		next = v.IncMajor()
	case ModeMinor:
		next = v.IncMinor()
	case ModePatch:
		next = v.IncPatch()
	case ModeForce:
		next = *v
	}

	return &next
}
