// SPDX-License-Identifier: MIT
// Package torkey implements onion v3 address parsing/validation and the
// ed25519/x25519 key wrappers the manager uses for hidden-service
// identities and client authorization.
//
// The v3 address recipe, the "hs_ed25519_secret_key"/"hs_ed25519_public_key"
// on-disk format (a fixed header plus the raw key material), and the
// ed25519↔bine key-pair bridge are ported from
// server/service/tor/service.go's generateOnionAddress/loadOrGenerateKeys,
// generalized from that file's single hardcoded hidden service into a
// reusable, fully-validated type.
package torkey

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base32"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	bineed25519 "github.com/cretz/bine/torutil/ed25519"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/sha3"
)

// Algorithm names a key algorithm for descriptor-string encoding, using
// Tor's own wire names.
type Algorithm string

const (
	Ed25519 Algorithm = "ED25519-V3"
	X25519  Algorithm = "X25519"
)

const onionVersion byte = 3

var onionEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

func checksum(pub []byte) []byte {
	h := sha3.New256()
	h.Write([]byte(".onion checksum"))
	h.Write(pub)
	h.Write([]byte{onionVersion})
	return h.Sum(nil)[:2]
}

// OnionAddress is a validated, decoded v3 onion address: 35 bytes of
// pubkey(32) || checksum(2) || version(1).
type OnionAddress struct {
	bytes [35]byte
}

// DecodeOnionBytes validates a raw 35-byte onion address body: correct
// size, version byte 3, a non-all-zero public key, and a checksum that
// matches the recomputed one.
func DecodeOnionBytes(b []byte) (OnionAddress, error) {
	if len(b) != 35 {
		return OnionAddress{}, fmt.Errorf("torkey: onion address must decode to 35 bytes, got %d", len(b))
	}
	if b[34] != onionVersion {
		return OnionAddress{}, fmt.Errorf("torkey: unsupported onion address version %d", b[34])
	}
	pub := b[:32]
	nonZero := false
	for _, x := range pub {
		if x != 0 {
			nonZero = true
			break
		}
	}
	if !nonZero {
		return OnionAddress{}, errors.New("torkey: onion public key must not be all-zero")
	}
	want := checksum(pub)
	if want[0] != b[32] || want[1] != b[33] {
		return OnionAddress{}, errors.New("torkey: onion address checksum mismatch")
	}
	var out OnionAddress
	copy(out.bytes[:], b)
	return out, nil
}

// FromEd25519 derives the v3 onion address for an ed25519 public key.
func FromEd25519(pub ed25519.PublicKey) (OnionAddress, error) {
	if len(pub) != ed25519.PublicKeySize {
		return OnionAddress{}, fmt.Errorf("torkey: ed25519 public key must be %d bytes, got %d", ed25519.PublicKeySize, len(pub))
	}
	buf := make([]byte, 0, 35)
	buf = append(buf, pub...)
	buf = append(buf, checksum(pub)...)
	buf = append(buf, onionVersion)
	return DecodeOnionBytes(buf)
}

// ParseOnionAddress parses s, which may be a bare 56-character address, a
// "subdomain.address.onion" host, or a full URL carrying either. Scheme,
// port, and any subdomain labels are stripped before validation.
func ParseOnionAddress(s string) (OnionAddress, error) {
	host := s
	if idx := strings.Index(host, "://"); idx >= 0 {
		host = host[idx+3:]
	}
	if idx := strings.IndexAny(host, "/?#"); idx >= 0 {
		host = host[:idx]
	}
	if idx := strings.LastIndex(host, "@"); idx >= 0 {
		host = host[idx+1:]
	}
	if idx := strings.LastIndex(host, ":"); idx >= 0 {
		if _, err := strconv.Atoi(host[idx+1:]); err == nil {
			host = host[:idx]
		}
	}
	host = strings.ToLower(strings.TrimSpace(host))
	host = strings.TrimSuffix(host, ".onion")
	if idx := strings.LastIndex(host, "."); idx >= 0 {
		host = host[idx+1:]
	}

	if len(host) != 56 {
		return OnionAddress{}, fmt.Errorf("torkey: onion address %q must be 56 characters after normalization, got %d", host, len(host))
	}
	decoded, err := onionEncoding.DecodeString(strings.ToUpper(host))
	if err != nil {
		return OnionAddress{}, fmt.Errorf("torkey: onion address %q is not valid base32: %w", host, err)
	}
	return DecodeOnionBytes(decoded)
}

// Decode returns a copy of the address's 35 raw bytes.
func (a OnionAddress) Decode() []byte {
	out := make([]byte, 35)
	copy(out, a.bytes[:])
	return out
}

// PublicKey returns the ed25519 public key embedded in the address.
func (a OnionAddress) PublicKey() ed25519.PublicKey {
	pk := make([]byte, 32)
	copy(pk, a.bytes[:32])
	return ed25519.PublicKey(pk)
}

// String renders the address with its ".onion" suffix, lowercase.
func (a OnionAddress) String() string {
	return strings.ToLower(onionEncoding.EncodeToString(a.bytes[:])) + ".onion"
}

// Bare returns the 56-character address without the ".onion" suffix, the
// form used as the prefix of a private-key descriptor string.
func (a OnionAddress) Bare() string {
	return strings.ToLower(onionEncoding.EncodeToString(a.bytes[:]))
}

// ErrKeyDestroyed is returned by any operation on a KeyPair whose private
// material has already been zeroed by Destroy.
var ErrKeyDestroyed = errors.New("torkey: key material has been destroyed")

// ErrIncompatibleKey is returned when a public key does not belong to the
// key pair it is being checked against.
var ErrIncompatibleKey = errors.New("torkey: public key is not compatible with this key pair")

// KeyPair wraps an ed25519 hidden-service identity key.
type KeyPair struct {
	private   ed25519.PrivateKey
	public    ed25519.PublicKey
	destroyed bool
}

// GenerateKeyPair creates a new random ed25519 hidden-service key pair.
func GenerateKeyPair() (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("torkey: generate key pair: %w", err)
	}
	return &KeyPair{private: priv, public: pub}, nil
}

// PublicKey returns the pair's ed25519 public key.
func (k *KeyPair) PublicKey() ed25519.PublicKey { return k.public }

// OnionAddress derives the v3 onion address for this pair's public key.
func (k *KeyPair) OnionAddress() (OnionAddress, error) { return FromEd25519(k.public) }

// Destroy zeroes the private key material in place. Every subsequent
// operation requiring the private key fails with ErrKeyDestroyed.
func (k *KeyPair) Destroy() {
	for i := range k.private {
		k.private[i] = 0
	}
	k.destroyed = true
}

// BinePair converts this pair into bine's ed25519 key-pair type, the
// shape cretz/bine's ADD_ONION helpers expect.
func (k *KeyPair) BinePair() (bineed25519.KeyPair, error) {
	if k.destroyed {
		return nil, ErrKeyDestroyed
	}
	return bineed25519.FromCryptoPrivateKey(k.private), nil
}

// DescriptorBase32OrNull returns the base32 public-key descriptor for pub
// if it is this pair's own key and the pair has not been destroyed, or
// ("", false) otherwise — the non-throwing variant.
func (k *KeyPair) DescriptorBase32OrNull(pub ed25519.PublicKey) (string, bool) {
	if k.destroyed || !pub.Equal(k.public) {
		return "", false
	}
	return encodePublicDescriptor(Ed25519, pub), true
}

// DescriptorBase32 is the throwing variant of DescriptorBase32OrNull: it
// checks compatibility before destruction so the two failure causes are
// distinguishable.
func (k *KeyPair) DescriptorBase32(pub ed25519.PublicKey) (string, error) {
	if !pub.Equal(k.public) {
		return "", ErrIncompatibleKey
	}
	if k.destroyed {
		return "", ErrKeyDestroyed
	}
	return encodePublicDescriptor(Ed25519, pub), nil
}

// PrivateDescriptor renders this pair's private key as
// "{address}:descriptor:{algorithm}:{base64}", the format Tor's ADD_ONION
// response and torrc hidden-service key imports use. The scratch buffer
// used to build the string is overwritten with spaces before returning,
// so the private-key bytes do not linger in a second live allocation.
func (k *KeyPair) PrivateDescriptor() (string, error) {
	if k.destroyed {
		return "", ErrKeyDestroyed
	}
	addr, err := k.OnionAddress()
	if err != nil {
		return "", err
	}
	buf := make([]byte, 0, 128)
	buf = append(buf, addr.Bare()...)
	buf = append(buf, ':', 'd', 'e', 's', 'c', 'r', 'i', 'p', 't', 'o', 'r', ':')
	buf = append(buf, Ed25519...)
	buf = append(buf, ':')
	buf = append(buf, base64.StdEncoding.EncodeToString(k.private)...)
	s := string(buf)
	for i := range buf {
		buf[i] = ' '
	}
	return s, nil
}

func encodePublicDescriptor(alg Algorithm, pub []byte) string {
	return fmt.Sprintf("descriptor:%s:%s", alg, strings.ToUpper(onionEncoding.EncodeToString(pub)))
}

// secretHeader/publicHeader are the fixed headers Tor prepends to the
// on-disk hidden-service key files.
var (
	secretHeader = []byte("== ed25519v1-secret: type0 ==\x00\x00\x00")
	publicHeader = []byte("== ed25519v1-public: type0 ==\x00\x00\x00")
)

// SaveKeyPair writes k's identity key files into dir in Tor's on-disk
// format (hs_ed25519_secret_key, hs_ed25519_public_key, hostname),
// backing up any files it is about to overwrite to a ".bak" sibling
// first.
func SaveKeyPair(dir string, k *KeyPair) error {
	if k.destroyed {
		return ErrKeyDestroyed
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("torkey: create key directory %s: %w", dir, err)
	}

	secretPath := filepath.Join(dir, "hs_ed25519_secret_key")
	publicPath := filepath.Join(dir, "hs_ed25519_public_key")
	hostnamePath := filepath.Join(dir, "hostname")

	if err := backupIfExists(secretPath); err != nil {
		return err
	}
	if err := backupIfExists(publicPath); err != nil {
		return err
	}

	secretData := append(append([]byte{}, secretHeader...), k.private.Seed()...)
	secretData = append(secretData, k.private[32:]...)
	if err := os.WriteFile(secretPath, secretData, 0o600); err != nil {
		return fmt.Errorf("torkey: write secret key: %w", err)
	}

	pubData := append(append([]byte{}, publicHeader...), k.public...)
	if err := os.WriteFile(publicPath, pubData, 0o600); err != nil {
		return fmt.Errorf("torkey: write public key: %w", err)
	}

	addr, err := k.OnionAddress()
	if err != nil {
		return err
	}
	if err := os.WriteFile(hostnamePath, []byte(addr.String()+"\n"), 0o600); err != nil {
		return fmt.Errorf("torkey: write hostname: %w", err)
	}
	return nil
}

func backupIfExists(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("torkey: read %s for backup: %w", path, err)
	}
	if err := os.WriteFile(path+".bak", data, 0o600); err != nil {
		return fmt.Errorf("torkey: write backup of %s: %w", path, err)
	}
	return nil
}

// LoadKeyPair reads an identity key pair from dir's hs_ed25519_secret_key
// file, accepting both the bare 64-byte expanded-key format and Tor's
// header-prefixed on-disk format.
func LoadKeyPair(dir string) (*KeyPair, error) {
	secretPath := filepath.Join(dir, "hs_ed25519_secret_key")
	data, err := os.ReadFile(secretPath)
	if err != nil {
		return nil, fmt.Errorf("torkey: read secret key: %w", err)
	}

	var seed []byte
	switch {
	case len(data) == ed25519.PrivateKeySize:
		seed = data[:ed25519.SeedSize]
	case len(data) >= len(secretHeader)+ed25519.PrivateKeySize:
		seed = data[len(secretHeader) : len(secretHeader)+ed25519.SeedSize]
	default:
		return nil, fmt.Errorf("torkey: secret key file %s has an unrecognized format (%d bytes)", secretPath, len(data))
	}

	priv := ed25519.NewKeyFromSeed(seed)
	return &KeyPair{private: priv, public: priv.Public().(ed25519.PublicKey)}, nil
}

// ClientAuthKeyPair is an x25519 key pair used for hidden-service client
// authorization (Tor's ADD_ONION ClientAuth= / ClientOnionAuthDir
// mechanism).
type ClientAuthKeyPair struct {
	Public  [32]byte
	Private [32]byte
}

// GenerateClientAuthKeyPair creates a new random x25519 client-auth key
// pair, clamping the private scalar per RFC 7748.
func GenerateClientAuthKeyPair() (*ClientAuthKeyPair, error) {
	var priv [32]byte
	if _, err := rand.Read(priv[:]); err != nil {
		return nil, fmt.Errorf("torkey: generate x25519 private key: %w", err)
	}
	priv[0] &= 248
	priv[31] &= 127
	priv[31] |= 64

	pub, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("torkey: derive x25519 public key: %w", err)
	}
	var k ClientAuthKeyPair
	k.Private = priv
	copy(k.Public[:], pub)
	return &k, nil
}

// Descriptor renders the public half as "descriptor:x25519:{base32}".
func (k *ClientAuthKeyPair) Descriptor() string {
	return encodePublicDescriptor(X25519, k.Public[:])
}

// AuthLine renders the line Tor expects in a client's
// ClientOnionAuthDir/*.auth_private file for address:
// "{address}:descriptor:x25519:{base32-public-key}".
func (k *ClientAuthKeyPair) AuthLine(address OnionAddress) string {
	return fmt.Sprintf("%s:descriptor:%s:%s", address.Bare(), X25519, strings.ToUpper(onionEncoding.EncodeToString(k.Public[:])))
}
