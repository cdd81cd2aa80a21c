// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package tracker

import (
	"fmt"
	"sync"
	"testing"

	"grimm.is/multiwan/internal/level"
)

func TestAddGetRemove(t *testing.T) {
	tr := New()
	tr.Add("wan0", 2)

	st, ok := tr.Get("wan0")
	if !ok {
		t.Fatal("interface not found after Add")
	}
	if st.Ifindex != 2 || st.RawLevel != level.Unknown || st.EffectiveLevel != level.Unknown {
		t.Fatalf("unexpected initial state %+v", st)
	}

	tr.Remove("wan0")
	if _, ok := tr.Get("wan0"); ok {
		t.Fatal("interface still present after Remove")
	}
}

func TestAddUnresolvedIfindex(t *testing.T) {
	tr := New()
	tr.Add("eth0_100", 0)
	tr.Add("eth0_101", 0)

	// A zero ifindex is reporting detail only; records stay distinct.
	if !tr.SetRaw("eth0_100", level.Full) {
		t.Fatal("write to eth0_100 failed")
	}
	st, _ := tr.Get("eth0_101")
	if st.RawLevel != level.Unknown {
		t.Fatalf("eth0_101 raw = %v, want unknown", st.RawLevel)
	}
}

func TestSetRawChangeGated(t *testing.T) {
	tr := New()
	tr.Add("wan0", 2)

	if !tr.SetRaw("wan0", level.Full) {
		t.Fatal("first write must report a change")
	}
	if tr.SetRaw("wan0", level.Full) {
		t.Fatal("duplicate write must not report a change")
	}
	if !tr.SetRaw("wan0", level.Limited) {
		t.Fatal("differing write must report a change")
	}
}

func TestSetOnUnknownInterface(t *testing.T) {
	tr := New()
	if tr.SetRaw("wan9", level.Full) {
		t.Fatal("write to unregistered interface must be a no-op")
	}
	if tr.SetEffective("wan9", level.Full) {
		t.Fatal("write to unregistered interface must be a no-op")
	}
}

func TestRawAndEffectiveIndependent(t *testing.T) {
	tr := New()
	tr.Add("wan0", 2)

	tr.SetRaw("wan0", level.Full)
	tr.SetEffective("wan0", level.Limited)

	st, _ := tr.Get("wan0")
	if st.RawLevel != level.Full {
		t.Errorf("raw = %v, want full", st.RawLevel)
	}
	if st.EffectiveLevel != level.Limited {
		t.Errorf("effective = %v, want limited", st.EffectiveLevel)
	}
	if st.RawChangedAt.IsZero() || st.EffectiveChangedAt.IsZero() {
		t.Error("change timestamps not recorded")
	}
}

func TestWatchDeliversChanges(t *testing.T) {
	tr := New()
	tr.Add("wan0", 2)
	ch := tr.Watch()

	tr.SetRaw("wan0", level.Portal)
	tr.SetEffective("wan0", level.Portal)

	c := <-ch
	if c.Effective || c.Ifname != "wan0" || c.Old != level.Unknown || c.New != level.Portal {
		t.Fatalf("unexpected raw change %+v", c)
	}
	c = <-ch
	if !c.Effective || c.New != level.Portal {
		t.Fatalf("unexpected effective change %+v", c)
	}
}

func TestWatchSlowReceiverDoesNotBlock(t *testing.T) {
	tr := New()
	tr.Add("wan0", 2)
	tr.Watch() // never read

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			tr.SetRaw("wan0", level.Level(uint32(i%4)+1))
		}
	}()
	<-done
}

func TestConcurrentWriters(t *testing.T) {
	tr := New()
	names := make([]string, 8)
	for i := range names {
		names[i] = fmt.Sprintf("wan%d", i)
		tr.Add(names[i], i+1)
	}

	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(ifname string) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tr.SetRaw(ifname, level.Full)
				tr.SetRaw(ifname, level.None)
				tr.Get(ifname)
				tr.List()
			}
		}(name)
	}
	wg.Wait()

	if got := len(tr.List()); got != 8 {
		t.Fatalf("List returned %d records, want 8", got)
	}
}
