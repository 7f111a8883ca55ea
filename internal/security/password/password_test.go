package password

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

// Parámetros livianos para que los tests sean rápidos.
var fast = Params{Memory: 1024, Time: 1, Parallelism: 1, KeyLen: 32}

func TestHashVerifyArgon2id(t *testing.T) {
	h := NewHasher(fast)
	enc, err := h.Hash("s3cret!")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(enc, "$argon2id$v=19$m=1024,t=1,p=1$") {
		t.Fatalf("unexpected PHC: %s", enc)
	}
	if !h.Verify("s3cret!", enc) {
		t.Fatal("expected verify ok")
	}
	if h.Verify("s3cret?", enc) {
		t.Fatal("expected verify fail for wrong password")
	}
}

func TestHashSaltsDiffer(t *testing.T) {
	h := NewHasher(fast)
	a, _ := h.Hash("same")
	b, _ := h.Hash("same")
	if a == b {
		t.Fatal("two hashes of the same password must differ")
	}
}

func TestHashEmpty(t *testing.T) {
	if _, err := NewHasher(fast).Hash(""); err != ErrEmptyPassword {
		t.Fatalf("want ErrEmptyPassword, got %v", err)
	}
}

func TestVerifyBcryptLegacy(t *testing.T) {
	b, err := bcrypt.GenerateFromPassword([]byte("legacy"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	h := NewHasher(fast)
	if !h.Verify("legacy", string(b)) {
		t.Fatal("bcrypt hash should verify")
	}
	if h.Verify("nope", string(b)) {
		t.Fatal("bcrypt wrong password should fail")
	}
}

func TestVerifyCorruptHashes(t *testing.T) {
	h := NewHasher(fast)
	for _, enc := range []string{
		"",
		"plain",
		"$argon2id$v=19$m=1024,t=1,p=1$onlysalt",
		"$argon2id$v=18$m=1024,t=1,p=1$c2FsdA$ZGs",
		"$argon2id$v=19$m=0,t=1,p=1$c2FsdA$ZGs",
		"$argon2id$v=19$m=1024,t=1,p=1$!!!$ZGs",
	} {
		if h.Verify("x", enc) {
			t.Fatalf("corrupt hash %q must not verify", enc)
		}
	}
}
