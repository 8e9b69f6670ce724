package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	payload := []byte(`{"zen":"Keep it logically awesome."}`)
	secret := "s3cret"

	if !VerifySignature(payload, sign(payload, secret), secret) {
		t.Fatalf("valid signature rejected")
	}
	if VerifySignature(payload, sign(payload, "wrong"), secret) {
		t.Fatalf("signature from wrong secret accepted")
	}

	tampered := append([]byte{}, payload...)
	tampered[0] ^= 0x01
	if VerifySignature(tampered, sign(payload, secret), secret) {
		t.Fatalf("signature accepted for tampered payload")
	}
}

func TestVerifySignatureMissingInputs(t *testing.T) {
	payload := []byte("body")
	if VerifySignature(payload, "", "secret") {
		t.Fatalf("empty header accepted")
	}
	if VerifySignature(payload, sign(payload, "secret"), "") {
		t.Fatalf("empty secret accepted")
	}
	if VerifySignature(payload, "sha256=zz", "secret") {
		t.Fatalf("malformed header accepted")
	}
}
