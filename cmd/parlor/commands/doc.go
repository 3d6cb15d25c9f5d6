// Package commands defines the parlor CLI and wires dependencies for
// subcommands.
//
// Commands
//
//   - init         Create the local identity
//   - register     Publish your public key to a relay
//   - fingerprint  Print identity fingerprints
//   - rooms        List rooms on the relay
//   - join         Join a room
//   - leave        Leave a room and purge its keys
//   - send         Encrypt and send a message to a room
//   - recv         Stream and decrypt live room traffic
//   - history      Fetch and decrypt a room's message log
//
// # Implementation
//
// The root command opens the encrypted key store and builds the relay client
// before any subcommand runs; commands that touch keys additionally load the
// identity under the passphrase.
package commands
