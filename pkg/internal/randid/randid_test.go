package randid

import "testing"

func TestNewTruncatesToRequestedLength(t *testing.T) {
	id := New(8)
	if len(id) != 8 {
		t.Fatalf("New(8) has length %d, want 8", len(id))
	}
}

func TestNewStripsHyphens(t *testing.T) {
	id := New(32)
	for _, r := range id {
		if r == '-' {
			t.Fatalf("New(32) = %q contains a hyphen", id)
		}
	}
}

func TestNewOutOfRangeReturnsFullID(t *testing.T) {
	full := New(0)
	if len(full) == 0 {
		t.Fatal("New(0) returned an empty id")
	}
	if len(New(1000)) != len(full) {
		t.Fatalf("New(1000) length = %d, want %d (full id)", len(New(1000)), len(full))
	}
}

func TestNewIsNotConstant(t *testing.T) {
	if New(16) == New(16) {
		t.Fatal("New(16) returned the same id twice in a row")
	}
}
