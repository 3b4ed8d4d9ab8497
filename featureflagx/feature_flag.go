package featureflagx

import (
	"slices"

	"github.com/rentapp/x/errorx"
)

// FeatureFlag names a flag. The name is also its storage key.
type FeatureFlag string

// StaffEnrollment controls whether staff self-enrollment is permitted.
const StaffEnrollment FeatureFlag = "rentapp_staff_enrollment_enabled"

var known = []FeatureFlag{
	StaffEnrollment,
}

func (ff FeatureFlag) String() string {
	return string(ff)
}

// Known returns the flags served by this module.
func Known() []FeatureFlag {
	return slices.Clone(known)
}

func (ff FeatureFlag) IsKnown() bool {
	return slices.Contains(known, ff)
}

// ParseFeatureFlag returns the known flag named s.
func ParseFeatureFlag(s string) (FeatureFlag, error) {
	ff := FeatureFlag(s)
	if !ff.IsKnown() {
		return "", errorx.NotFoundErrorf("feature flag %q does not exist", s)
	}
	return ff, nil
}
