package auth

import "testing"

func TestHashAndVerifyPassword(t *testing.T) {
	h, err := HashPassword("CorrectHorse9!")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !VerifyPassword(h, "CorrectHorse9!") {
		t.Fatalf("expected verification to succeed")
	}
	if VerifyPassword(h, "wrong") {
		t.Fatalf("expected verification to fail for wrong password")
	}
}

func TestVerifyPasswordRejectsMalformed(t *testing.T) {
	for _, enc := range []string{"", "$argon2id$", "plaintext", "$bcrypt$x$y$z$w"} {
		if VerifyPassword(enc, "anything") {
			t.Errorf("malformed hash %q must not verify", enc)
		}
	}
}

func TestOpaqueTokenRoundTrip(t *testing.T) {
	raw, hash, err := NewOpaqueToken()
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if raw == "" || hash == "" {
		t.Fatalf("empty token or hash")
	}
	if HashToken(raw) != hash {
		t.Fatalf("hash mismatch")
	}
	raw2, _, _ := NewOpaqueToken()
	if raw == raw2 {
		t.Fatalf("tokens must be unique")
	}
}
