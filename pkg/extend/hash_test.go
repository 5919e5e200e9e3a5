package extend

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"testing"
)

func TestDeriveToken_KnownVectors(t *testing.T) {
	tests := []struct {
		password string
		salt     string
		want     string
	}{
		{"Password", "abc123", "893b0fc7440ef2d862507595ffc0a4d2"},
		{"secret", "XyZ", "ea78ecc6ccdf535d7c3810baaa90de85"},
		{"", "", "f7a448f7108994b82eb40cfcb5c991dc"},
		{"ÄBC", "s", "358072eb02e917fb057d6575e2d8b67a"},
	}

	for _, tt := range tests {
		t.Run(tt.password+"/"+tt.salt, func(t *testing.T) {
			if got := DeriveToken(tt.password, tt.salt); got != tt.want {
				t.Errorf("DeriveToken(%q, %q) = %q, want %q", tt.password, tt.salt, got, tt.want)
			}
		})
	}
}

func TestDeriveToken_MatchesTwoRoundScheme(t *testing.T) {
	md5hex := func(s string) string {
		sum := md5.Sum([]byte(s))
		return hex.EncodeToString(sum[:])
	}

	inputs := []struct{ password, salt string }{
		{"hunter2", "0123456789abcdef"},
		{"MiXeD CaSe", "salt with spaces"},
		{"p@ss:word", ":"},
		{"~!#$%^&*()", "zzz"},
	}

	for _, in := range inputs {
		want := md5hex(":" + md5hex(strings.ToLower(in.password)) + ":" + in.salt)
		if got := DeriveToken(in.password, in.salt); got != want {
			t.Errorf("DeriveToken(%q, %q) = %q, want %q", in.password, in.salt, got, want)
		}
	}
}

func TestDeriveToken_PasswordIsCaseInsensitive(t *testing.T) {
	if DeriveToken("SECRET", "salt") != DeriveToken("secret", "salt") {
		t.Error("expected password case to be ignored")
	}
	if DeriveToken("secret", "SALT") == DeriveToken("secret", "salt") {
		t.Error("expected salt case to matter")
	}
}

func TestDeriveToken_LowercaseHex(t *testing.T) {
	token := DeriveToken("Password", "abc123")
	if len(token) != 32 {
		t.Fatalf("expected 32 hex characters, got %d", len(token))
	}
	if token != strings.ToLower(token) {
		t.Errorf("expected lowercase hex, got %q", token)
	}
}
