package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/fatih/color"
	"github.com/ghodss/yaml"
	"github.com/rentapp/x/errorx"
	"github.com/rentapp/x/featureflagx"
	"github.com/rentapp/x/featureflagx/featureflaghttp"
)

const (
	OutputText = "text"
	OutputJSON = "json"
	OutputYAML = "yaml"
)

type printer struct {
	w      io.Writer
	format string

	on  *color.Color
	off *color.Color
	key *color.Color
}

func newPrinter(w io.Writer, format string, noColor bool) (*printer, error) {
	switch format {
	case OutputText, OutputJSON, OutputYAML:
	default:
		return nil, errorx.InvalidArgumentErrorf("unknown output %q, expected one of [%s, %s, %s]", format, OutputText, OutputJSON, OutputYAML)
	}

	p := &printer{
		w:      w,
		format: format,
		on:     color.New(color.FgGreen, color.Bold),
		off:    color.New(color.FgRed),
		key:    color.New(color.FgCyan),
	}
	if noColor {
		for _, c := range []*color.Color{p.on, p.off, p.key} {
			c.DisableColor()
		}
	}
	return p, nil
}

func (p *printer) encode(v any) error {
	switch p.format {
	case OutputYAML:
		out, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		_, err = p.w.Write(out)
		return err
	default:
		return json.NewEncoder(p.w).Encode(v)
	}
}

func (p *printer) state(enabled bool) string {
	if enabled {
		return p.on.Sprint("enabled")
	}
	return p.off.Sprint("disabled")
}

func (p *printer) Flag(ff featureflagx.FeatureFlag, enabled bool) error {
	if p.format != OutputText {
		return p.encode(featureflaghttp.FlagState{Flag: ff, Enabled: enabled})
	}
	_, err := fmt.Fprintf(p.w, "%s %s\n", p.key.Sprint(ff), p.state(enabled))
	return err
}

func (p *printer) Flags(flags map[featureflagx.FeatureFlag]bool) error {
	if p.format != OutputText {
		return p.encode(featureflaghttp.FlagsState{Flags: flags})
	}
	names := make([]featureflagx.FeatureFlag, 0, len(flags))
	for ff := range flags {
		names = append(names, ff)
	}
	slices.Sort(names)
	for _, ff := range names {
		if err := p.Flag(ff, flags[ff]); err != nil {
			return err
		}
	}
	return nil
}

func (p *printer) Names(flags []featureflagx.FeatureFlag) error {
	if p.format != OutputText {
		return p.encode(flags)
	}
	for _, ff := range flags {
		known := ""
		if !ff.IsKnown() {
			known = " (unknown)"
		}
		if _, err := fmt.Fprintf(p.w, "%s%s\n", p.key.Sprint(ff), known); err != nil {
			return err
		}
	}
	return nil
}
