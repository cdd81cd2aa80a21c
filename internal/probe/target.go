// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package probe

import (
	"bytes"
	"net/url"
	"strings"

	"grimm.is/multiwan/internal/errors"
)

// MatchKind selects how a probe response body is checked.
type MatchKind int

const (
	// MatchEmpty succeeds only on a zero-length body (generate_204 style).
	MatchEmpty MatchKind = iota
	// MatchExact requires byte-for-byte equality.
	MatchExact
	// MatchContains succeeds iff the text appears anywhere in the body.
	MatchContains
	// MatchPrefix succeeds iff the body starts with the text.
	MatchPrefix
)

// Match is the expected-content rule for one probe target.
type Match struct {
	Kind MatchKind
	Text string
}

// Satisfied reports whether body passes the rule.
func (m Match) Satisfied(body []byte) bool {
	switch m.Kind {
	case MatchEmpty:
		return len(body) == 0
	case MatchExact:
		return bytes.Equal(body, []byte(m.Text))
	case MatchContains:
		return bytes.Contains(body, []byte(m.Text))
	case MatchPrefix:
		return bytes.HasPrefix(body, []byte(m.Text))
	}
	return false
}

// Target is one endpoint specification. Immutable once built.
type Target struct {
	URL   string
	Match Match
}

// DefaultTargetSpecs is the built-in probe list, overridable per
// interface with reset-then-append semantics.
var DefaultTargetSpecs = []string{
	"http://nmcheck.gnome.org/check_network_status.txt=NetworkManager%20is%20online",
	"http://gstatic.com/generate_204",
	"http://example.com/=...Example%20Domain...",
}

// ParseTarget parses the compact "URL" or "URL=expected" target syntax.
// The expected text is percent-decoded; "...txt..." means contains,
// "txt..." means prefix, and a missing or empty expectation means the
// body must be empty.
func ParseTarget(spec string) (Target, error) {
	rawURL, rawExpect, _ := strings.Cut(spec, "=")
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return Target{}, errors.Errorf(errors.KindValidation, "invalid probe URL %q", rawURL)
	}

	expect, err := url.QueryUnescape(rawExpect)
	if err != nil {
		return Target{}, errors.Wrapf(err, errors.KindValidation, "invalid expected content in %q", spec)
	}

	m := Match{Kind: MatchEmpty}
	switch {
	case expect == "":
		// empty body expected
	case strings.HasPrefix(expect, "...") && strings.HasSuffix(expect, "...") && len(expect) >= 6:
		m = Match{Kind: MatchContains, Text: expect[3 : len(expect)-3]}
	case strings.HasSuffix(expect, "..."):
		m = Match{Kind: MatchPrefix, Text: expect[:len(expect)-3]}
	default:
		m = Match{Kind: MatchExact, Text: expect}
	}
	if m.Kind != MatchEmpty && m.Text == "" {
		return Target{}, errors.Errorf(errors.KindValidation, "empty match text in %q", spec)
	}
	return Target{URL: rawURL, Match: m}, nil
}

// BuildTargets resolves an ordered list of target specs against the
// defaults. An empty spec is the reset sentinel: it clears everything
// accumulated so far, so a config can fully override the default list
// instead of only appending to it.
func BuildTargets(specs []string) ([]Target, error) {
	out := make([]Target, 0, len(DefaultTargetSpecs)+len(specs))
	for _, s := range DefaultTargetSpecs {
		t, err := ParseTarget(s)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	for _, s := range specs {
		if s == "" {
			out = out[:0]
			continue
		}
		t, err := ParseTarget(s)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}
