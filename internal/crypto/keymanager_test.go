package crypto

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	blob, err := EncryptKey("0x"+testKeyHex, "correct horse")
	if err != nil {
		t.Fatalf("EncryptKey: %v", err)
	}

	got, err := DecryptKey(blob, "correct horse")
	if err != nil {
		t.Fatalf("DecryptKey: %v", err)
	}
	if got != testKeyHex {
		t.Fatalf("round trip = %q, want %q", got, testKeyHex)
	}

	if _, err := DecryptKey(blob, "wrong password"); err == nil {
		t.Fatal("decryption with wrong password succeeded")
	}
}

func TestLoadKeyPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "key.json")

	blob, err := EncryptKey(testKeyHex, "pw")
	if err != nil {
		t.Fatalf("EncryptKey: %v", err)
	}
	if err := os.WriteFile(path, blob, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	// Raw key wins over the encrypted file.
	got, err := LoadKey(KeyConfig{RawPrivateKey: "0x" + testKeyHex, EncryptedKeyPath: path, KeyPassword: "pw"})
	if err != nil {
		t.Fatalf("LoadKey raw: %v", err)
	}
	if got != testKeyHex {
		t.Fatalf("LoadKey raw = %q", got)
	}

	got, err = LoadKey(KeyConfig{EncryptedKeyPath: path, KeyPassword: "pw"})
	if err != nil {
		t.Fatalf("LoadKey file: %v", err)
	}
	if got != testKeyHex {
		t.Fatalf("LoadKey file = %q", got)
	}

	if _, err := LoadKey(KeyConfig{}); err == nil || !strings.Contains(err.Error(), "no private key source") {
		t.Fatalf("LoadKey empty: err = %v", err)
	}
}

func TestECDSAKey(t *testing.T) {
	pk, err := ECDSAKey(KeyConfig{RawPrivateKey: testKeyHex})
	if err != nil {
		t.Fatalf("ECDSAKey: %v", err)
	}
	if pk == nil || pk.PublicKey.X == nil {
		t.Fatal("ECDSAKey returned incomplete key")
	}
}
