package vault

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"reflect"
	"testing"
)

func testVault(t *testing.T) *Vault {
	t.Helper()
	key := bytes.Repeat([]byte{0x42}, KeySize)
	v, err := New(key)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return v
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	v := testVault(t)
	tests := []struct {
		name  string
		creds map[string]string
	}{
		{name: "token", creds: map[string]string{"token": "abc"}},
		{name: "multiple fields", creds: map[string]string{"api_key": "k", "api_secret": "s", "region": "eu-1"}},
		{name: "empty map", creds: map[string]string{}},
		{name: "nil map", creds: nil},
		{name: "unicode and symbols", creds: map[string]string{"pass": "p@ss wörd\n"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			blob, err := v.Encrypt(tt.creds)
			if err != nil {
				t.Fatalf("Encrypt() error = %v", err)
			}
			got, err := v.Decrypt(blob)
			if err != nil {
				t.Fatalf("Decrypt() error = %v", err)
			}
			want := tt.creds
			if want == nil {
				want = map[string]string{}
			}
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("Decrypt() = %v, want %v", got, want)
			}
		})
	}
}

func TestEncryptNeverEmitsPlaintext(t *testing.T) {
	t.Parallel()

	v := testVault(t)
	blob, err := v.Encrypt(map[string]string{"token": "super-secret-token"})
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if bytes.Contains(blob, []byte("super-secret-token")) {
		t.Fatal("ciphertext contains plaintext credential")
	}
}

func TestDecrypt_TamperDetected(t *testing.T) {
	t.Parallel()

	v := testVault(t)
	blob, err := v.Encrypt(map[string]string{"token": "abc"})
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	blob[len(blob)-1] ^= 0xff

	_, err = v.Decrypt(blob)
	var derr *DecryptionError
	if !errors.As(err, &derr) {
		t.Fatalf("Decrypt() error = %v, want *DecryptionError", err)
	}
}

func TestDecrypt_WrongKey(t *testing.T) {
	t.Parallel()

	v := testVault(t)
	blob, err := v.Encrypt(map[string]string{"token": "abc"})
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	other, err := New(bytes.Repeat([]byte{0x01}, KeySize))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	_, err = other.Decrypt(blob)
	var derr *DecryptionError
	if !errors.As(err, &derr) {
		t.Fatalf("Decrypt() error = %v, want *DecryptionError", err)
	}
}

func TestDecrypt_Malformed(t *testing.T) {
	t.Parallel()

	v := testVault(t)
	for _, blob := range [][]byte{nil, {}, {0x01}, bytes.Repeat([]byte{0x09}, 10), append([]byte{0x7f}, bytes.Repeat([]byte{0}, 64)...)} {
		if _, err := v.Decrypt(blob); err == nil {
			t.Fatalf("Decrypt(%v) expected error", blob)
		}
	}
}

func TestNew_RejectsBadKeyLength(t *testing.T) {
	t.Parallel()

	if _, err := New([]byte("short")); err == nil {
		t.Fatal("New() expected error for short key")
	}
}

func TestStaticKeySource(t *testing.T) {
	t.Parallel()

	encoded, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	key, err := StaticKeySource{Encoded: encoded}.Key(context.Background())
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}
	if len(key) != KeySize {
		t.Fatalf("len(key) = %d, want %d", len(key), KeySize)
	}

	if _, err := (StaticKeySource{Encoded: ""}).Key(context.Background()); err == nil {
		t.Fatal("Key() expected error for empty source")
	}
	if _, err := (StaticKeySource{Encoded: "!!!"}).Key(context.Background()); err == nil {
		t.Fatal("Key() expected error for invalid base64")
	}
	short := base64.StdEncoding.EncodeToString([]byte("short"))
	if _, err := (StaticKeySource{Encoded: short}).Key(context.Background()); err == nil {
		t.Fatal("Key() expected error for wrong length")
	}
}

func TestDeriveKey_Deterministic(t *testing.T) {
	t.Parallel()

	salt := []byte("0123456789abcdef")
	a := DeriveKey("correct horse", salt)
	b := DeriveKey("correct horse", salt)
	if !bytes.Equal(a, b) {
		t.Fatal("DeriveKey() is not deterministic for same passphrase and salt")
	}
	if bytes.Equal(a, DeriveKey("other phrase", salt)) {
		t.Fatal("DeriveKey() collision for different passphrases")
	}
	if len(a) != KeySize {
		t.Fatalf("len = %d, want %d", len(a), KeySize)
	}
}
