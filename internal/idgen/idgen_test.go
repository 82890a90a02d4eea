package idgen

import (
	"testing"
	"time"
)

func TestNewIsValidAndSortable(t *testing.T) {
	prev := ""
	for i := 0; i < 1000; i++ {
		id := New()
		if !Valid(id) {
			t.Fatalf("id %q is not valid", id)
		}
		if len(id) != Length {
			t.Fatalf("id %q has length %d, want %d", id, len(id), Length)
		}
		if prev != "" && id <= prev {
			t.Fatalf("id %q is not strictly greater than previous %q", id, prev)
		}
		prev = id
	}
}

func TestTimeRoundTrips(t *testing.T) {
	before := time.Now().Add(-time.Second)
	id := New()
	after := time.Now().Add(time.Second)

	got, err := Time(id)
	if err != nil {
		t.Fatalf("Time(%q): %v", id, err)
	}
	if got.Before(before) || got.After(after) {
		t.Fatalf("Time(%q) = %v, want between %v and %v", id, got, before, after)
	}
}

func TestValidRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"too-short",
		"ILOU" + New()[4:], // contains excluded Crockford letters I, L, O, U
	}
	for _, c := range cases {
		if Valid(c) {
			t.Errorf("Valid(%q) = true, want false", c)
		}
	}
}
