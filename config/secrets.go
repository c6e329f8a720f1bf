package config

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/ssh"
)

// ErrPassphraseRequired is returned when the SSH key is encrypted and no
// passphrase was given.
var ErrPassphraseRequired = errors.New("SSH key is encrypted - passphrase required")

// sealInfo is both the signed message and the HKDF info string. Changing it
// makes existing credentials.enc files unreadable.
const sealInfo = "tether-credentials-v1"

// defaultKeyNames are tried in ~/.ssh when no key path is configured.
// ECDSA keys are absent on purpose: their signatures are randomized.
var defaultKeyNames = []string{"tether_ed25519", "id_ed25519", "id_rsa"}

// FindSSHKey returns the first private key in ~/.ssh that can seal
// credentials.
func FindSSHKey() (string, error) {
	dir := filepath.Join(HomeDir(), ".ssh")
	for _, name := range defaultKeyNames {
		p := filepath.Join(dir, name)
		data, err := os.ReadFile(p)
		if err == nil && bytes.Contains(data, []byte("PRIVATE KEY")) {
			return p, nil
		}
	}
	return "", fmt.Errorf("no SSH key found in %s; set security.ssh_key_path", dir)
}

// LoadSigner parses the private key at path. passphrase is only used when
// the key is encrypted; ErrPassphraseRequired is returned if it is needed
// and empty.
func LoadSigner(path, passphrase string) (ssh.Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read SSH key: %w", err)
	}

	signer, err := ssh.ParsePrivateKey(data)
	var missing *ssh.PassphraseMissingError
	switch {
	case err == nil:
		return signer, nil
	case errors.As(err, &missing):
		if passphrase == "" {
			return nil, ErrPassphraseRequired
		}
		signer, err = ssh.ParsePrivateKeyWithPassphrase(data, []byte(passphrase))
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt SSH key (wrong passphrase?): %w", err)
		}
		return signer, nil
	default:
		return nil, fmt.Errorf("failed to parse SSH key: %w", err)
	}
}

// Sealer encrypts small blobs with AES-256-GCM under a key derived from an
// SSH key's signature over a fixed message. The same SSH key always yields
// the same AES key.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives the sealing key from signer. Only key types with
// deterministic signatures are accepted.
func NewSealer(signer ssh.Signer) (*Sealer, error) {
	switch t := signer.PublicKey().Type(); t {
	case ssh.KeyAlgoED25519, ssh.KeyAlgoRSA:
	default:
		return nil, fmt.Errorf("SSH key type %s cannot seal credentials; use an ed25519 or RSA key", t)
	}

	sig, err := signer.Sign(rand.Reader, []byte(sealInfo))
	if err != nil {
		return nil, fmt.Errorf("failed to sign with SSH key: %w", err)
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, sig.Blob, nil, []byte(sealInfo)), key); err != nil {
		return nil, fmt.Errorf("failed to derive encryption key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Sealer{aead: aead}, nil
}

// Seal returns nonce || ciphertext || tag.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return s.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open reverses Seal.
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	n := s.aead.NonceSize()
	if len(sealed) < n {
		return nil, errors.New("sealed data too short")
	}
	plaintext, err := s.aead.Open(nil, sealed[:n], sealed[n:], nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}
	return plaintext, nil
}
