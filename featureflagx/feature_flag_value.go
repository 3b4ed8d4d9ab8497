package featureflagx

// Stored literals. Decoding is exact: only ValueEnabled reads as enabled.
const (
	ValueEnabled  = "true"
	ValueDisabled = "false"
)

type FeatureFlagValue interface {
	IsEnabled() bool
}

type BoolFeatureFlagValue bool

var _ FeatureFlagValue = (*BoolFeatureFlagValue)(nil)

// ParseValue decodes a stored value. Only the exact literal "true" is
// enabled, "True" and "1" are not.
func ParseValue(s string) BoolFeatureFlagValue {
	return BoolFeatureFlagValue(s == ValueEnabled)
}

func (ffa BoolFeatureFlagValue) IsEnabled() bool {
	return bool(ffa)
}

// String encodes the value the way it is stored.
func (ffa BoolFeatureFlagValue) String() string {
	if ffa {
		return ValueEnabled
	}
	return ValueDisabled
}
