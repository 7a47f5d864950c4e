package auth

import (
	"context"
	"strings"
	"testing"
	"time"
)

// testParams keep the suite fast; production uses DefaultParams.
var testParams = Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

func TestHash_Format(t *testing.T) {
	t.Parallel()

	h := NewPasswordHasher(DefaultParams, 1)
	hash, err := h.Hash(context.Background(), "secret1")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	parts := strings.Split(hash, "$")
	if len(parts) != 6 {
		t.Fatalf("Hash should have 6 parts, got: %d", len(parts))
	}
	if parts[1] != "argon2id" {
		t.Errorf("Expected argon2id algorithm, got: %s", parts[1])
	}
	if parts[2] != "v=19" {
		t.Errorf("Expected v=19, got: %s", parts[2])
	}
	if parts[3] != "m=65536,t=3,p=4" {
		t.Errorf("Expected m=65536,t=3,p=4, got: %s", parts[3])
	}
}

func TestHash_Uniqueness(t *testing.T) {
	t.Parallel()

	h := NewPasswordHasher(testParams, 0)
	ctx := context.Background()

	hash1, _ := h.Hash(ctx, "same-password")
	hash2, _ := h.Hash(ctx, "same-password")

	if hash1 == hash2 {
		t.Error("Same password should produce different hashes due to random salt")
	}

	match1, _ := h.Verify(ctx, "same-password", hash1)
	match2, _ := h.Verify(ctx, "same-password", hash2)
	if !match1 || !match2 {
		t.Error("Both hashes should verify correctly")
	}
}

func TestVerify(t *testing.T) {
	t.Parallel()

	h := NewPasswordHasher(testParams, 0)
	ctx := context.Background()

	hash, err := h.Hash(ctx, "secret1")
	if err != nil {
		t.Fatalf("Hash failed: %v", err)
	}

	if ok, err := h.Verify(ctx, "secret1", hash); err != nil || !ok {
		t.Errorf("Verify(correct) = %v, %v", ok, err)
	}
	if ok, err := h.Verify(ctx, "wrong", hash); err != nil || ok {
		t.Errorf("Verify(wrong) = %v, %v", ok, err)
	}
}

func TestVerify_UsesStoredParams(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	hash, _ := NewPasswordHasher(testParams, 0).Hash(ctx, "secret1")

	ok, err := NewPasswordHasher(DefaultParams, 0).Verify(ctx, "secret1", hash)
	if err != nil || !ok {
		t.Errorf("Verify across params = %v, %v", ok, err)
	}
}

func TestVerify_InvalidHashFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		hash    string
		wantErr error
	}{
		{"empty", "", ErrInvalidHash},
		{"wrong format", "not-a-hash", ErrInvalidHash},
		{"wrong algorithm", "$bcrypt$v=19$m=65536,t=3,p=4$salt$hash", ErrInvalidHash},
		{"missing parts", "$argon2id$v=19$m=65536", ErrInvalidHash},
		{"wrong version", "$argon2id$v=18$m=65536,t=3,p=4$c29tZXNhbHRoZXJl$c29tZWhhc2hoZXJl", ErrIncompatibleVersion},
	}

	h := NewPasswordHasher(testParams, 0)
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := h.Verify(context.Background(), "password", tt.hash)
			if err != tt.wantErr {
				t.Errorf("Verify with %q error = %v, want %v", tt.name, err, tt.wantErr)
			}
		})
	}
}

func TestHash_RespectsContextWhenSaturated(t *testing.T) {
	t.Parallel()

	h := NewPasswordHasher(testParams, 1)
	if err := h.slots.Acquire(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	defer h.slots.Release(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := h.Hash(ctx, "secret1"); err == nil {
		t.Error("Hash should fail when no slot frees up before the deadline")
	}
}

func TestVerifyDummy(t *testing.T) {
	t.Parallel()

	h := NewPasswordHasher(testParams, 0)
	h.VerifyDummy(context.Background(), "anything")

	if h.dummyHash == "" {
		t.Error("dummy hash should be initialised after first use")
	}
}
