package auth

import (
	"strings"
	"testing"
)

func TestArgon2HashAndVerify(t *testing.T) {
	h := NewArgon2Hasher(Argon2Params{Time: 1, MemoryKiB: 64, Threads: 1, SaltLen: 16, KeyLen: 32})

	encoded, err := h.Hash("correct horse")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$v=19$m=64,t=1,p=1$") {
		t.Fatalf("unexpected encoding: %s", encoded)
	}
	if !h.Verify("correct horse", encoded) {
		t.Fatal("expected matching password to verify")
	}
	if h.Verify("battery staple", encoded) {
		t.Fatal("wrong password verified")
	}

	again, err := h.Hash("correct horse")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if again == encoded {
		t.Fatal("expected distinct salts per hash")
	}
}

func TestArgon2VerifyMalformed(t *testing.T) {
	h := NewArgon2Hasher(Argon2Params{Time: 1, MemoryKiB: 64, Threads: 1})
	for _, encoded := range []string{
		"",
		"plaintext",
		"$argon2id$",
		"$argon2id$v=19$m=64,t=1,p=1$!!!$!!!",
		"$argon2id$v=18$m=64,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2id$v=19$m=99999999,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
		"$argon2i$v=19$m=64,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA",
	} {
		if h.Verify("anything", encoded) {
			t.Fatalf("malformed hash %q verified", encoded)
		}
	}
}

func TestArgon2VerifyBoundsStoredMemoryCost(t *testing.T) {
	heavy := NewArgon2Hasher(Argon2Params{Time: 1, MemoryKiB: 256, Threads: 1})
	encoded, err := heavy.Hash("secret")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	// 4x headroom over 64 KiB admits 256 KiB.
	if !NewArgon2Hasher(Argon2Params{Time: 1, MemoryKiB: 64, Threads: 1}).Verify("secret", encoded) {
		t.Fatal("hash within the memory headroom should verify")
	}
	if NewArgon2Hasher(Argon2Params{Time: 1, MemoryKiB: 32, Threads: 1}).Verify("secret", encoded) {
		t.Fatal("hash above the memory headroom should be rejected")
	}
}

func TestBcryptHashAndVerify(t *testing.T) {
	h := NewBcryptHasher(4)
	encoded, err := h.Hash("hunter2")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !h.Verify("hunter2", encoded) || h.Verify("hunter3", encoded) {
		t.Fatal("bcrypt verification mismatch")
	}
	if _, err := h.Hash(strings.Repeat("a", 73)); err != ErrPasswordTooLong {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
}

func TestMultiHasherVerifiesEitherEncoding(t *testing.T) {
	argon, err := NewPasswordHasher(HasherConfig{
		Algorithm:  AlgorithmArgon2id,
		Argon2:     Argon2Params{Time: 1, MemoryKiB: 64, Threads: 1},
		BcryptCost: 4,
	})
	if err != nil {
		t.Fatalf("NewPasswordHasher error: %v", err)
	}
	bc, err := NewPasswordHasher(HasherConfig{Algorithm: AlgorithmBcrypt, BcryptCost: 4})
	if err != nil {
		t.Fatalf("NewPasswordHasher error: %v", err)
	}

	fromBcrypt, err := bc.Hash("migrated")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	fromArgon, err := argon.Hash("migrated")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	if !argon.Verify("migrated", fromBcrypt) {
		t.Fatal("argon2id-configured hasher should verify bcrypt hashes")
	}
	if !bc.Verify("migrated", fromArgon) {
		t.Fatal("bcrypt-configured hasher should verify argon2id hashes")
	}
	if argon.Verify("migrated", "$unknown$abc") {
		t.Fatal("unknown encoding verified")
	}
	if argon.Algorithm() != AlgorithmArgon2id || bc.Algorithm() != AlgorithmBcrypt {
		t.Fatal("unexpected algorithm identifiers")
	}
}

func TestNewPasswordHasherUnsupported(t *testing.T) {
	if _, err := NewPasswordHasher(HasherConfig{Algorithm: "md5"}); err == nil {
		t.Fatal("expected error for unsupported algorithm")
	}
	h, err := NewPasswordHasher(HasherConfig{})
	if err != nil {
		t.Fatalf("default hasher error: %v", err)
	}
	if h.Algorithm() != AlgorithmArgon2id {
		t.Fatalf("default algorithm = %s", h.Algorithm())
	}
}
