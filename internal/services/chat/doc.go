// Package chat is the client-side room workflow: joining and leaving rooms,
// draining wrapped session keys from the relay into the local key store,
// encrypting and sending messages, and decrypting live and historical
// traffic.
//
// The relay only ever sees ciphertext. Every plaintext operation here runs
// against session keys unwrapped with the local identity and cached by the
// key store, keyed by (room, epoch).
package chat
