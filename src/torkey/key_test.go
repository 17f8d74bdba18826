// SPDX-License-Identifier: MIT
package torkey

import (
	"crypto/ed25519"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const s1Address = "2gzyxa5ihm7nsggfxnu52rck2vv4rvmdlkiu3zzui5du4xyclen53wid"

func TestParseOnionV3Acceptance(t *testing.T) {
	addr, err := ParseOnionAddress(s1Address)
	if err != nil {
		t.Fatalf("ParseOnionAddress returned error: %v", err)
	}
	decoded := addr.Decode()
	if len(decoded) != 35 {
		t.Fatalf("expected decoded length 35, got %d", len(decoded))
	}
	if decoded[34] != 3 {
		t.Fatalf("expected version byte 3, got %d", decoded[34])
	}
}

func TestParseOnionV3URLAcceptance(t *testing.T) {
	s1, err := ParseOnionAddress(s1Address)
	if err != nil {
		t.Fatalf("ParseOnionAddress(s1) returned error: %v", err)
	}

	url := "http://subdomain." + s1Address + ".onion:8080/x"
	s2, err := ParseOnionAddress(url)
	if err != nil {
		t.Fatalf("ParseOnionAddress(url) returned error: %v", err)
	}

	if s1.String() != s2.String() {
		t.Fatalf("expected %q and %q to parse to the same address, got %q and %q", s1Address, url, s1.String(), s2.String())
	}
}

func TestParseOnionAddressRejectsWrongLength(t *testing.T) {
	if _, err := ParseOnionAddress("short.onion"); err == nil {
		t.Fatalf("expected an error for a too-short onion address")
	}
}

func TestOnionRoundTripForEveryNonZeroKey(t *testing.T) {
	seeds := [][32]byte{
		{1},
		{0, 0, 1},
		{255, 255, 255, 255},
	}
	for _, seed := range seeds {
		priv := ed25519.NewKeyFromSeed(seed[:])
		pub := priv.Public().(ed25519.PublicKey)

		addr, err := FromEd25519(pub)
		if err != nil {
			t.Fatalf("FromEd25519 returned error for seed %v: %v", seed, err)
		}
		decoded := addr.Decode()
		if string(decoded[:32]) != string(pub) {
			t.Fatalf("expected decoded public key to round-trip for seed %v", seed)
		}
		if decoded[34] != 3 {
			t.Fatalf("expected version byte 3 for seed %v, got %d", seed, decoded[34])
		}
	}
}

func TestFromEd25519RejectsAllZeroKey(t *testing.T) {
	zero := make(ed25519.PublicKey, ed25519.PublicKeySize)
	if _, err := FromEd25519(zero); err == nil {
		t.Fatalf("expected an error for an all-zero public key")
	}
}

func TestChecksumCorrectnessForParsedAddress(t *testing.T) {
	addr, err := ParseOnionAddress(s1Address)
	if err != nil {
		t.Fatalf("ParseOnionAddress returned error: %v", err)
	}
	decoded := addr.Decode()
	want := checksum(decoded[:32])
	if want[0] != decoded[32] || want[1] != decoded[33] {
		t.Fatalf("recomputed checksum %v does not match stored checksum %v", want, decoded[32:34])
	}
}

func TestDecodeOnionBytesRejectsBadChecksum(t *testing.T) {
	addr, err := ParseOnionAddress(s1Address)
	if err != nil {
		t.Fatalf("ParseOnionAddress returned error: %v", err)
	}
	b := addr.Decode()
	b[32] ^= 0xFF
	if _, err := DecodeOnionBytes(b); err == nil {
		t.Fatalf("expected checksum validation to reject a corrupted address")
	}
}

func TestKeyPairDescriptorsAndDestroy(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair returned error: %v", err)
	}

	addr, err := kp.OnionAddress()
	if err != nil {
		t.Fatalf("OnionAddress returned error: %v", err)
	}

	pub := kp.PublicKey()
	if desc, ok := kp.DescriptorBase32OrNull(pub); !ok || !strings.HasPrefix(desc, "descriptor:ED25519-V3:") {
		t.Fatalf("expected a valid public descriptor, got (%q, %v)", desc, ok)
	}

	other, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair returned error: %v", err)
	}
	if _, ok := kp.DescriptorBase32OrNull(other.PublicKey()); ok {
		t.Fatalf("expected DescriptorBase32OrNull to reject a foreign public key")
	}
	if _, err := kp.DescriptorBase32(other.PublicKey()); err != ErrIncompatibleKey {
		t.Fatalf("expected ErrIncompatibleKey for a foreign public key, got %v", err)
	}

	priv, err := kp.PrivateDescriptor()
	if err != nil {
		t.Fatalf("PrivateDescriptor returned error: %v", err)
	}
	wantPrefix := addr.Bare() + ":descriptor:ED25519-V3:"
	if !strings.HasPrefix(priv, wantPrefix) {
		t.Fatalf("expected private descriptor to start with %q, got %q", wantPrefix, priv)
	}

	kp.Destroy()
	if _, err := kp.PrivateDescriptor(); err != ErrKeyDestroyed {
		t.Fatalf("expected ErrKeyDestroyed after Destroy, got %v", err)
	}
	if _, ok := kp.DescriptorBase32OrNull(pub); ok {
		t.Fatalf("expected DescriptorBase32OrNull to report false after Destroy")
	}
	if _, err := kp.DescriptorBase32(pub); err != ErrKeyDestroyed {
		t.Fatalf("expected ErrKeyDestroyed when compatible but destroyed, got %v", err)
	}
}

func TestSaveAndLoadKeyPairRoundTrip(t *testing.T) {
	dir := t.TempDir()
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair returned error: %v", err)
	}
	wantAddr, _ := kp.OnionAddress()

	if err := SaveKeyPair(dir, kp); err != nil {
		t.Fatalf("SaveKeyPair returned error: %v", err)
	}

	loaded, err := LoadKeyPair(dir)
	if err != nil {
		t.Fatalf("LoadKeyPair returned error: %v", err)
	}
	gotAddr, err := loaded.OnionAddress()
	if err != nil {
		t.Fatalf("OnionAddress on loaded pair returned error: %v", err)
	}
	if gotAddr.String() != wantAddr.String() {
		t.Fatalf("expected loaded key pair to derive the same address %q, got %q", wantAddr, gotAddr)
	}

	hostname, err := os.ReadFile(filepath.Join(dir, "hostname"))
	if err != nil {
		t.Fatalf("reading hostname file returned error: %v", err)
	}
	if strings.TrimSpace(string(hostname)) != wantAddr.String() {
		t.Fatalf("expected hostname file to contain %q, got %q", wantAddr.String(), hostname)
	}
}

func TestSaveKeyPairBacksUpExistingFiles(t *testing.T) {
	dir := t.TempDir()
	first, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair returned error: %v", err)
	}
	if err := SaveKeyPair(dir, first); err != nil {
		t.Fatalf("first SaveKeyPair returned error: %v", err)
	}

	second, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair returned error: %v", err)
	}
	if err := SaveKeyPair(dir, second); err != nil {
		t.Fatalf("second SaveKeyPair returned error: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "hs_ed25519_secret_key.bak")); err != nil {
		t.Fatalf("expected a backup of the overwritten secret key, stat returned: %v", err)
	}
}

func TestClientAuthKeyPairAuthLine(t *testing.T) {
	k, err := GenerateClientAuthKeyPair()
	if err != nil {
		t.Fatalf("GenerateClientAuthKeyPair returned error: %v", err)
	}
	addr, err := ParseOnionAddress(s1Address)
	if err != nil {
		t.Fatalf("ParseOnionAddress returned error: %v", err)
	}

	line := k.AuthLine(addr)
	wantPrefix := addr.Bare() + ":descriptor:X25519:"
	if !strings.HasPrefix(line, wantPrefix) {
		t.Fatalf("expected auth line to start with %q, got %q", wantPrefix, line)
	}
}

func TestGenerateClientAuthKeyPairProducesDistinctKeys(t *testing.T) {
	a, err := GenerateClientAuthKeyPair()
	if err != nil {
		t.Fatalf("GenerateClientAuthKeyPair returned error: %v", err)
	}
	b, err := GenerateClientAuthKeyPair()
	if err != nil {
		t.Fatalf("GenerateClientAuthKeyPair returned error: %v", err)
	}
	if a.Public == b.Public {
		t.Fatalf("expected two generated key pairs to have distinct public keys")
	}
}
