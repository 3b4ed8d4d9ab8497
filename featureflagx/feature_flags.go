package featureflagx

import (
	"encoding/json"
	"slices"

	"github.com/rentapp/x/errorx"
	"github.com/rentapp/x/pubsubx/messagex"
)

// FeatureFlags is a snapshot of flag states, carried in contexts and
// messages so that a whole request observes the same values.
type FeatureFlags struct {
	fa map[FeatureFlag]FeatureFlagValue
}

var _ json.Marshaler = (*FeatureFlags)(nil)

// New builds a snapshot where each flag of ffss defaults to disabled. The
// flags of fs must all belong to ffss.
func New(fs map[string]bool, ffss []FeatureFlag) (*FeatureFlags, error) {
	ffs := FeatureFlags{
		fa: map[FeatureFlag]FeatureFlagValue{},
	}
	for _, f := range ffss {
		ffs.fa[f] = BoolFeatureFlagValue(false)
	}
	for f, v := range fs {
		ffs.fa[FeatureFlag(f)] = BoolFeatureFlagValue(v)
	}
	err := ffs.Validate(ffss)
	if err != nil {
		return &ffs, err
	}
	return &ffs, nil
}

// FromMessage decodes the snapshot attached to msg with
// messagex.WithFeatureFlags.
func FromMessage(msg *messagex.Message) (*FeatureFlags, bool, error) {
	raw, ok := msg.FeatureFlags()
	if !ok {
		return nil, false, nil
	}
	ffs := &FeatureFlags{}
	if err := ffs.UnmarshalJSON(raw); err != nil {
		return nil, true, errorx.InvalidArgumentErrorf("invalid feature flags header: %v", err)
	}
	return ffs, true, nil
}

func (ffs *FeatureFlags) IsEnabled(ff FeatureFlag) bool {
	a, ok := ffs.fa[ff]
	if !ok {
		return false
	}
	return a.IsEnabled()
}

func (ffs *FeatureFlags) GetFlags() map[FeatureFlag]FeatureFlagValue {
	return ffs.fa
}

func (ff *FeatureFlags) Validate(ffss []FeatureFlag) error {
	missingFlags := make([]FeatureFlag, 0)
	for _, f := range ffss {
		if _, ok := ff.fa[f]; !ok {
			missingFlags = append(missingFlags, f)
		}
	}
	additionalFlags := make([]FeatureFlag, 0)
	for f := range ff.fa {
		if !slices.Contains(ffss, f) {
			additionalFlags = append(additionalFlags, f)
		}
	}
	if len(missingFlags)+len(additionalFlags) > 0 {
		slices.Sort(additionalFlags)
		return errorx.InvalidArgumentErrorf("flags are missing or additional flags were provided, missing: %v, additional: %v", missingFlags, additionalFlags)
	}
	return nil
}

func (ff *FeatureFlags) MarshalJSON() ([]byte, error) {
	if len(ff.fa) == 0 {
		return []byte("{}"), nil
	}

	marshaledData := make(map[string]bool, len(ff.fa))
	for k, v := range ff.fa {
		marshaledData[k.String()] = v.IsEnabled()
	}
	return json.Marshal(marshaledData)
}

func (ff *FeatureFlags) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	var flags map[string]bool
	if err := json.Unmarshal(data, &flags); err != nil {
		return err
	}
	if ff.fa == nil {
		ff.fa = make(map[FeatureFlag]FeatureFlagValue, len(flags))
	}
	for k, v := range flags {
		ff.fa[FeatureFlag(k)] = BoolFeatureFlagValue(v)
	}
	return nil
}
