package core

import "io"

// Encryptor encrypts backup artifacts at rest using a public key, so
// encryption never requires a passphrase. Decryption does: Unlock exchanges
// the passphrase for a DecryptionContext holding the unlocked private key.
type Encryptor interface {
	// Setup generates a key pair and stores it, protecting the private key
	// with the given passphrase.
	Setup(passphrase string) error

	// Encrypt reads plaintext from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock decrypts the private key with the passphrase.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured reports whether a key pair is available.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key for decrypting artifacts.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}
