package utils

import "testing"

// The hash is produced as []byte and stored as a string column; the two must
// round-trip through that conversion.
func TestHashPassword_RoundTrip(t *testing.T) {
	hashed, err := HashPassword("Tr@dieTrackOwner")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	stored := string(hashed)
	if err := ComparePassword(stored, "Tr@dieTrackOwner"); err != nil {
		t.Fatalf("stored hash must verify the original password: %v", err)
	}
	if err := ComparePassword(stored, "wrong-password"); err == nil {
		t.Fatal("a wrong password must not verify")
	}
}
