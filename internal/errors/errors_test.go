// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package errors

import (
	stderrors "errors"
	"testing"
)

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		KindUnknown:     "unknown",
		KindInternal:    "internal",
		KindValidation:  "validation",
		KindProbe:       "probe",
		KindHook:        "hook",
		KindUnavailable: "unavailable",
		KindTimeout:     "timeout",
	}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", k, got, want)
		}
	}
}

func TestWrapPreservesChain(t *testing.T) {
	base := stderrors.New("socket closed")
	err := Wrap(base, KindUnavailable, "bus gone")

	if !stderrors.Is(err, base) {
		t.Error("wrapped error lost the underlying error")
	}
	if GetKind(err) != KindUnavailable {
		t.Errorf("GetKind = %v, want unavailable", GetKind(err))
	}
	if err.Error() != "bus gone: socket closed" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, KindInternal, "x") != nil {
		t.Error("Wrap(nil) should be nil")
	}
	if Wrapf(nil, KindInternal, "x %d", 1) != nil {
		t.Error("Wrapf(nil) should be nil")
	}
}

func TestGetKindForeignError(t *testing.T) {
	if GetKind(stderrors.New("plain")) != KindUnknown {
		t.Error("foreign errors should report KindUnknown")
	}
}
