package auth

import (
	"strings"
	"testing"
)

func TestHashAndCompareToken(t *testing.T) {
	t.Parallel()

	hash, err := HashToken("pb_live_s3cret")
	if err != nil {
		t.Fatalf("HashToken() error = %v", err)
	}
	if strings.Contains(hash, "s3cret") {
		t.Fatal("hash contains the raw token")
	}

	ok, err := CompareToken("pb_live_s3cret", hash)
	if err != nil || !ok {
		t.Fatalf("CompareToken(correct) = %v, %v", ok, err)
	}

	ok, err = CompareToken("pb_live_wrong", hash)
	if err != nil {
		t.Fatalf("CompareToken(wrong) error = %v", err)
	}
	if ok {
		t.Fatal("CompareToken(wrong) = true")
	}
}

func TestCompareToken_MalformedHash(t *testing.T) {
	t.Parallel()

	if _, err := CompareToken("anything", "not-a-hash"); err == nil {
		t.Fatal("CompareToken() error = nil for malformed hash")
	}
}
