package featureflagx

import (
	"encoding/json"
	"time"

	"github.com/rentapp/x/errorx"
	"github.com/rentapp/x/pubsubx/messagex"
)

// FlagHeaderKey holds the flag name of a FlagChanged message.
const FlagHeaderKey = "_rentapp_flag"

// FlagChanged is the payload published after a flag is written.
type FlagChanged struct {
	Flag      FeatureFlag `json:"flag"`
	Enabled   bool        `json:"enabled"`
	ChangedAt time.Time   `json:"changed_at"`
}

func (e FlagChanged) toMessage(snapshot *FeatureFlags) (*messagex.Message, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, errorx.InternalErrorf("failed to encode flag change: %v", err)
	}

	opts := []messagex.NewMessageOption{
		messagex.WithMetadata(messagex.MessageMetadata{FlagHeaderKey: e.Flag.String()}),
	}
	if snapshot != nil {
		opts = append(opts, messagex.WithFeatureFlags(snapshot))
	}
	return messagex.NewMessage(payload, opts...), nil
}

// ParseFlagChanged decodes a message published by a Store.
func ParseFlagChanged(msg *messagex.Message) (FlagChanged, error) {
	var e FlagChanged
	if err := json.Unmarshal(msg.Payload, &e); err != nil {
		return FlagChanged{}, errorx.InvalidArgumentErrorf("message %s is not a flag change: %v", msg.ID, err)
	}
	if e.Flag == "" {
		return FlagChanged{}, errorx.InvalidArgumentErrorf("message %s has no flag", msg.ID)
	}
	return e, nil
}
