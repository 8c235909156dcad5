package pagecfg

import (
	"fmt"

	"golang.org/x/mod/semver"
)

// VersionError is returned when the widget requests an unsupported version.
type VersionError struct {
	Code             string
	Message          string
	RequestedVersion string
	SupportedVersion string
}

func (e *VersionError) Error() string {
	return e.Message
}

// CheckVersion rejects widget versions newer than supported.
// An empty requested version is accepted; a non-semver one is rejected.
func CheckVersion(supported, requested string) error {
	if requested == "" {
		return nil
	}

	rv := normalizeVersion(requested)
	if !semver.IsValid(rv) {
		return &VersionError{
			Code:             VersionUnsupported,
			Message:          fmt.Sprintf("widget version %q is not a semantic version", requested),
			RequestedVersion: requested,
			SupportedVersion: supported,
		}
	}

	if semver.Compare(rv, normalizeVersion(supported)) > 0 {
		return &VersionError{
			Code:             VersionUnsupported,
			Message:          fmt.Sprintf("widget requires version %s, service supports %s", requested, supported),
			RequestedVersion: requested,
			SupportedVersion: supported,
		}
	}
	return nil
}

// normalizeVersion adds "v" prefix if needed for semver parsing.
func normalizeVersion(v string) string {
	if v == "" {
		return "v0.0.0"
	}
	if v[0] != 'v' {
		return "v" + v
	}
	return v
}
