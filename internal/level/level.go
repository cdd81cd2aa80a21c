// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package level defines the ordered connectivity classification shared by
// the monitor, dispatcher and export surfaces.
package level

import "fmt"

// Level is an ordinal connectivity classification. Higher is better.
type Level uint32

const (
	Unknown Level = iota
	None
	Portal
	Limited
	Full
)

var names = [...]string{"unknown", "none", "portal", "limited", "full"}

func (l Level) String() string {
	if int(l) < len(names) {
		return names[l]
	}
	return "unknown"
}

// Valid reports whether l is one of the defined levels.
func (l Level) Valid() bool {
	return l <= Full
}

// Parse returns the level for a name as used in hook directories and
// metric policy blocks ("full", "limited", "portal", "none", "unknown").
func Parse(s string) (Level, error) {
	for i, n := range names {
		if n == s {
			return Level(i), nil
		}
	}
	return Unknown, fmt.Errorf("unknown connectivity level %q", s)
}

// Max returns the better of two levels.
func Max(a, b Level) Level {
	if b > a {
		return b
	}
	return a
}
