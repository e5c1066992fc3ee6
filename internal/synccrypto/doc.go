// Package synccrypto holds the primitives the sync engine builds on: X25519
// ephemeral key agreement for pairing, HKDF-derived session keys, the short
// authentication string shown to users, XChaCha20-Poly1305 sealing for key
// bundles and event payloads, and a versioned keyring of sync keys.
package synccrypto
