package auth

import (
	"strings"
	"testing"
)

func TestPasswordHashAndVerify(t *testing.T) {
	ps := NewPasswordServiceForTest()

	hash, err := ps.Hash("pw123456")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if hash == "" {
		t.Fatal("Hash() returned an empty hash")
	}
	if hash == "pw123456" {
		t.Fatal("Hash() returned the plaintext")
	}

	if err := ps.Verify(hash, "pw123456"); err != nil {
		t.Errorf("Verify() with correct password error = %v", err)
	}
	if err := ps.Verify(hash, "wrong-password"); err == nil {
		t.Error("Verify() with wrong password returned nil, want error")
	}
}

// Two hashes of the same password must differ — bcrypt salts each hash.
func TestPasswordHash_UniqueSalts(t *testing.T) {
	ps := NewPasswordServiceForTest()

	h1, err := ps.Hash("pw123456")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	h2, err := ps.Hash("pw123456")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	if h1 == h2 {
		t.Error("two hashes of the same password are identical — salt missing?")
	}
}

func TestPasswordHash_RejectsOverlongPassword(t *testing.T) {
	ps := NewPasswordServiceForTest()

	// bcrypt silently truncates beyond 72 bytes; we must reject instead.
	_, err := ps.Hash(strings.Repeat("a", 73))
	if err == nil {
		t.Error("Hash() accepted a 73-byte password, want error")
	}

	if _, err := ps.Hash(strings.Repeat("a", 72)); err != nil {
		t.Errorf("Hash() rejected a 72-byte password: %v", err)
	}
}

func TestNewPasswordService_ClampsBadCost(t *testing.T) {
	tests := []struct {
		name string
		cost int
		want int
	}{
		{"cost below minimum falls back to default", 0, DefaultCost},
		{"negative cost falls back to default", -5, DefaultCost},
		{"cost above maximum falls back to default", 99, DefaultCost},
		{"valid cost is kept", 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ps := NewPasswordService(tt.cost)
			if ps.cost != tt.want {
				t.Errorf("cost = %d, want %d", ps.cost, tt.want)
			}
		})
	}
}
