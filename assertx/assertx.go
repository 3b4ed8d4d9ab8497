// Copyright © 2023 Ory Corp
// SPDX-License-Identifier: Apache-2.0

// Package assertx holds assertions testify lacks: go-cmp based comparisons
// and JSON comparisons ignoring volatile paths.
package assertx

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/tidwall/sjson"
)

type tHelper interface {
	Helper()
}

// Equal compares with go-cmp and reports the diff on failure.
func Equal(t assert.TestingT, expected, actual interface{}, opts ...cmp.Option) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}
	if diff := cmp.Diff(expected, actual, opts...); diff != "" {
		return assert.Fail(t, fmt.Sprintf("Not equal (-expected +actual):\n%s", diff))
	}
	return true
}

// ElementsMatch asserts both lists hold the same elements in any order,
// comparing elements with go-cmp so that opts such as
// cmpopts.IgnoreFields apply.
func ElementsMatch(t assert.TestingT, listA, listB interface{}, opts ...cmp.Option) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}

	a, b := reflect.ValueOf(listA), reflect.ValueOf(listB)
	for _, v := range []reflect.Value{a, b} {
		if k := v.Kind(); k != reflect.Slice && k != reflect.Array {
			return assert.Fail(t, fmt.Sprintf("%v is not a list", v))
		}
	}

	var extraA []interface{}
	matched := make([]bool, b.Len())
	for i := 0; i < a.Len(); i++ {
		found := false
		for j := 0; j < b.Len(); j++ {
			if matched[j] || !cmp.Equal(a.Index(i).Interface(), b.Index(j).Interface(), opts...) {
				continue
			}
			matched[j], found = true, true
			break
		}
		if !found {
			extraA = append(extraA, a.Index(i).Interface())
		}
	}

	var extraB []interface{}
	for j, ok := range matched {
		if !ok {
			extraB = append(extraB, b.Index(j).Interface())
		}
	}

	if len(extraA) == 0 && len(extraB) == 0 {
		return true
	}
	return assert.Fail(t, fmt.Sprintf("elements differ\nonly in A: %+v\nonly in B: %+v", extraA, extraB))
}

// EqualAsJSONExcept encodes both values and compares the documents once
// the sjson paths in except are removed from each.
func EqualAsJSONExcept(t assert.TestingT, expected, actual interface{}, except []string) bool {
	if h, ok := t.(tHelper); ok {
		h.Helper()
	}

	docs := make([]string, 2)
	for i, v := range []interface{}{expected, actual} {
		raw, err := json.Marshal(v)
		if !assert.NoError(t, err) {
			return false
		}
		doc := string(raw)
		for _, path := range except {
			if doc, err = sjson.Delete(doc, path); !assert.NoError(t, err) {
				return false
			}
		}
		docs[i] = strings.TrimSpace(doc)
	}

	return assert.JSONEq(t, docs[0], docs[1])
}
