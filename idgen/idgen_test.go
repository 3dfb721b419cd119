package idgen

import (
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestNanoID_Length(t *testing.T) {
	for _, length := range []int{6, 8, 12, 24} {
		gen := NanoID(length)
		id := gen()
		if len(id) != length {
			t.Fatalf("NanoID(%d): got length %d", length, len(id))
		}
	}
}

func TestNanoID_Alphabet(t *testing.T) {
	gen := NanoID(100)
	id := gen()
	for _, c := range id {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'z')) {
			t.Fatalf("NanoID: unexpected character %q in %q", c, id)
		}
	}
}

func TestNanoID_Uniqueness(t *testing.T) {
	gen := NanoID(12)
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id := gen()
		if _, ok := seen[id]; ok {
			t.Fatalf("NanoID: duplicate at iteration %d: %q", i, id)
		}
		seen[id] = struct{}{}
	}
}

func TestUUIDv7_Format(t *testing.T) {
	gen := UUIDv7()
	id := gen()
	// UUID format: 8-4-4-4-12
	parts := strings.Split(id, "-")
	if len(parts) != 5 {
		t.Fatalf("UUIDv7: expected 5 parts, got %d in %q", len(parts), id)
	}
	if len(id) != 36 {
		t.Fatalf("UUIDv7: expected length 36, got %d", len(id))
	}
}

func TestPrefixed(t *testing.T) {
	gen := Prefixed("evd_", UUIDv7())
	id := gen()
	if !strings.HasPrefix(id, "evd_") {
		t.Fatalf("Prefixed: got %q", id)
	}
}

func TestLocal_Format(t *testing.T) {
	before := time.Now().UnixMilli()
	id := Local()()
	after := time.Now().UnixMilli()

	dash := strings.LastIndexByte(id, '-')
	if dash < 0 {
		t.Fatalf("Local: no separator in %q", id)
	}
	ms, err := strconv.ParseInt(id[:dash], 10, 64)
	if err != nil {
		t.Fatalf("Local: prefix not millis in %q: %v", id, err)
	}
	if ms < before || ms > after {
		t.Fatalf("Local: millis %d outside [%d, %d]", ms, before, after)
	}
	if len(id[dash+1:]) != 6 {
		t.Fatalf("Local: suffix length %d, want 6", len(id[dash+1:]))
	}
}

func TestLocal_SortableByTime(t *testing.T) {
	gen := Local()
	a := gen()
	time.Sleep(2 * time.Millisecond)
	b := gen()
	if !(a < b) {
		t.Fatalf("Local IDs not ordered: %q !< %q", a, b)
	}
}

func TestParse(t *testing.T) {
	id := New()
	got, err := Parse(id)
	if err != nil {
		t.Fatalf("Parse(%q): %v", id, err)
	}
	if got != id {
		t.Fatalf("Parse round-trip: got %q want %q", got, id)
	}
	if _, err := Parse("not-a-uuid"); err == nil {
		t.Fatal("Parse accepted garbage")
	}
}
