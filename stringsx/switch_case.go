// Package stringsx holds string helpers.
package stringsx

import (
	"strings"

	"github.com/rentapp/x/errorx"
)

// RegisteredCases collects the cases of a string switch so that an unknown
// value can be reported with the accepted ones.
type RegisteredCases struct {
	cases  []string
	actual string
	fold   bool
}

// SwitchExact matches cases exactly.
func SwitchExact(actual string) *RegisteredCases {
	return &RegisteredCases{actual: actual}
}

// SwitchCaseInsensitive matches cases ignoring case and surrounding spaces.
func SwitchCaseInsensitive(actual string) *RegisteredCases {
	return &RegisteredCases{actual: strings.TrimSpace(actual), fold: true}
}

func (r *RegisteredCases) AddCase(cases ...string) bool {
	r.cases = append(r.cases, cases...)
	for _, c := range cases {
		if r.actual == c || (r.fold && strings.EqualFold(r.actual, c)) {
			return true
		}
	}
	return false
}

func (r *RegisteredCases) String() string {
	return "[" + strings.Join(r.cases, ", ") + "]"
}

func (r *RegisteredCases) ToUnknownCaseErr() error {
	return errorx.InvalidArgumentErrorf("expected one of %s but got %q", r, r.actual)
}
