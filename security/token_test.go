package security

import "testing"

func TestSealOpenRoundTrip(t *testing.T) {
	c := NewTokenCipher("test-key")

	sealed, err := c.Seal("eyJhbGciOiJIUzI1NiJ9.session-token")
	if err != nil {
		t.Fatalf("seal failed: %v", err)
	}

	if sealed == "eyJhbGciOiJIUzI1NiJ9.session-token" {
		t.Error("sealed token equals the plaintext token")
	}

	opened, err := c.Open(sealed)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if opened != "eyJhbGciOiJIUzI1NiJ9.session-token" {
		t.Errorf("got %q after round trip", opened)
	}
}

func TestSealIsNotDeterministic(t *testing.T) {
	c := NewTokenCipher("test-key")

	first, err := c.Seal("token")
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.Seal("token")
	if err != nil {
		t.Fatal(err)
	}

	if first == second {
		t.Error("two seals of the same token produced identical ciphertexts")
	}
}

func TestOpenWithWrongKeyFails(t *testing.T) {
	sealed, err := NewTokenCipher("key-one").Seal("token")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := NewTokenCipher("key-two").Open(sealed); err == nil {
		t.Error("expected open with a different key to fail")
	}
}

func TestOpenRejectsGarbage(t *testing.T) {
	c := NewTokenCipher("test-key")

	if _, err := c.Open("not base64 at all!!"); err == nil {
		t.Error("expected error for invalid base64")
	}
	if _, err := c.Open("YWJj"); err == nil {
		t.Error("expected error for truncated ciphertext")
	}
}
