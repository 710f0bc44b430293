package crypto

import "crypto/ed25519"

// Verify checks that signature is a valid ed25519 signature over message
// by publicKey. It is the core's only signature-verification primitive
// (spec.md §6 "Crypto (consumed)"); the consensus algorithm itself never
// calls it directly — verification happens before an event enters a
// node's history snapshot.
func Verify(message, signature, publicKey []byte) bool {
	if len(publicKey) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(publicKey), message, signature)
}

// GenerateKey creates a new ed25519 keypair for an elector identity.
func GenerateKey() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	return ed25519.GenerateKey(nil)
}

// Sign signs message with priv, for use by an elector authoring events.
func Sign(priv ed25519.PrivateKey, message []byte) []byte {
	return ed25519.Sign(priv, message)
}
