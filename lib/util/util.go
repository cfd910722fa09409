// Package util contains helper functions used around the code.
package util

import "strings"

// In returns true if s is found in ss, false otherwise
func In(ss []string, s string) bool {
	for _, v := range ss {
		if s == v {
			return true
		}
	}

	return false
}

// SplitList splits a comma separated list, trimming blanks and dropping empty or repeated items.
func SplitList(s string) []string {
	var out []string

	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" && !In(out, v) {
			out = append(out, v)
		}
	}

	return out
}
