package conversation

import "testing"

func TestDeriveIDIsCommutative(t *testing.T) {
	pairs := [][2]string{
		{"u1", "u2"},
		{"acct2kX9", "acct1aB3"},
		{"alice", "bob"},
		{"zed", "ada"},
	}

	for _, pair := range pairs {
		forward, err := DeriveID(pair[0], pair[1])
		if err != nil {
			t.Fatalf("DeriveID(%q, %q): %v", pair[0], pair[1], err)
		}
		backward, err := DeriveID(pair[1], pair[0])
		if err != nil {
			t.Fatalf("DeriveID(%q, %q): %v", pair[1], pair[0], err)
		}
		if forward != backward {
			t.Fatalf("expected commutative key, got %q and %q", forward, backward)
		}
	}
}

func TestDeriveIDSortsLexicographically(t *testing.T) {
	id, err := DeriveID("u2", "u1")
	if err != nil {
		t.Fatalf("DeriveID: %v", err)
	}
	if id != "u1_u2" {
		t.Fatalf("expected u1_u2, got %q", id)
	}
}

func TestDeriveIDRejectsEmptyIDs(t *testing.T) {
	if _, err := DeriveID("", "u2"); err != ErrEmptyUserID {
		t.Fatalf("expected ErrEmptyUserID, got %v", err)
	}
	if _, err := DeriveID("u1", ""); err != ErrEmptyUserID {
		t.Fatalf("expected ErrEmptyUserID, got %v", err)
	}
}
