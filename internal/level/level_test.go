// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package level

import "testing"

func TestOrdering(t *testing.T) {
	if !(Unknown < None && None < Portal && Portal < Limited && Limited < Full) {
		t.Fatal("levels must be totally ordered unknown < none < portal < limited < full")
	}
}

func TestString(t *testing.T) {
	cases := map[Level]string{
		Unknown: "unknown",
		None:    "none",
		Portal:  "portal",
		Limited: "limited",
		Full:    "full",
		Level(99): "unknown",
	}
	for l, want := range cases {
		if got := l.String(); got != want {
			t.Errorf("Level(%d).String() = %q, want %q", l, got, want)
		}
	}
}

func TestParse(t *testing.T) {
	for _, l := range []Level{Unknown, None, Portal, Limited, Full} {
		got, err := Parse(l.String())
		if err != nil {
			t.Fatalf("Parse(%q): %v", l.String(), err)
		}
		if got != l {
			t.Errorf("Parse(%q) = %d, want %d", l.String(), got, l)
		}
	}
	if _, err := Parse("bogus"); err == nil {
		t.Error("Parse should reject unknown names")
	}
}

func TestMax(t *testing.T) {
	if Max(None, Full) != Full {
		t.Error("Max(None, Full) != Full")
	}
	if Max(Full, None) != Full {
		t.Error("Max(Full, None) != Full")
	}
	if Max(Portal, Portal) != Portal {
		t.Error("Max of equal levels changed the value")
	}
}
