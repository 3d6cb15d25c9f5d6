// Package keystore holds a client's long-term identity key pair and its
// per-room cache of unwrapped session keys.
//
// The identity is persisted encrypted under a passphrase-derived key. Session
// keys and send counters are persisted the same way so separate CLI
// invocations share one keying state. Each client process owns exactly one
// Store, passed explicitly to the services that encrypt and decrypt.
package keystore
