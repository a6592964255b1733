package buffer

import "testing"

func TestRingOverwritesOldest(t *testing.T) {
	ring := NewRing[int](3)
	for i := 1; i <= 3; i++ {
		if ring.Add(i) {
			t.Fatalf("unexpected overwrite while filling at %d", i)
		}
	}
	if !ring.Add(4) {
		t.Fatalf("expected overwrite once full")
	}

	got := ring.List()
	want := []int{2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("entry %d: expected %d, got %d", i, want[i], got[i])
		}
	}
}

func TestRingLast(t *testing.T) {
	ring := NewRing[string](4)
	for _, value := range []string{"a", "b", "c", "d", "e"} {
		ring.Add(value)
	}

	last := ring.Last(2)
	if len(last) != 2 || last[0] != "d" || last[1] != "e" {
		t.Fatalf("expected [d e], got %v", last)
	}
	if all := ring.Last(10); len(all) != 4 || all[0] != "b" {
		t.Fatalf("expected 4 entries starting at b, got %v", all)
	}
}

func TestRingReset(t *testing.T) {
	ring := NewRing[int](2)
	ring.Add(1)
	ring.Add(2)
	ring.Reset()
	if ring.Len() != 0 || ring.List() != nil {
		t.Fatalf("expected empty ring after reset")
	}
	if ring.Cap() != 2 {
		t.Fatalf("expected capacity 2, got %d", ring.Cap())
	}
}

func TestRingNonPositiveSize(t *testing.T) {
	ring := NewRing[int](0)
	ring.Add(7)
	ring.Add(8)
	if got := ring.List(); len(got) != 1 || got[0] != 8 {
		t.Fatalf("expected single slot holding 8, got %v", got)
	}
}
