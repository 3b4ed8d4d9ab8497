package slogx

import (
	"io"
	"log/slog"
	"strings"

	"github.com/rentapp/x/errorx"
	slogctx "github.com/veqryn/slog-context"
)

const (
	FormatJSON = "json"
	FormatText = "text"
)

func ParseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return slog.LevelInfo, errorx.InvalidArgumentErrorf("invalid log level %q", level)
	}
	return l, nil
}

// NewHandler builds the handler used by the binaries: a json or text handler
// wrapped so context-carried attributes end up on every record.
func NewHandler(w io.Writer, format string, level slog.Level) (slog.Handler, error) {
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch format {
	case FormatJSON, "":
		h = slog.NewJSONHandler(w, opts)
	case FormatText:
		h = slog.NewTextHandler(w, opts)
	default:
		return nil, errorx.InvalidArgumentErrorf("unknown log format %q, expected one of [%s, %s]", format, FormatJSON, FormatText)
	}

	return slogctx.NewHandler(h, &slogctx.HandlerOptions{
		Prependers: []slogctx.AttrExtractor{
			slogctx.ExtractPrepended,
		},
		Appenders: []slogctx.AttrExtractor{
			slogctx.ExtractAppended,
			NewRequestIDExtractor(),
		},
	}), nil
}
