// Package main runs the parlor relay server: a store-and-forward middleman
// for multi-room end-to-end encrypted chat. It persists ciphertext and public
// keys only; plaintext and session keys never reach it in usable form.
//
// HTTP API
//
//	POST /register
//	    Store a user's public X25519 key in the directory.
//
//	GET /directory/{user}
//	    Return the published public key for {user}.
//
//	GET /rooms
//	    List rooms with their current epoch and member count.
//
//	POST /rooms/{room}/join
//	    Add the user to the room. Mints a new key epoch and queues a wrapped
//	    session key for every member. Returns the epoch and any distribution
//	    warning.
//
//	POST /rooms/{room}/leave
//	    Remove the user and rekey for the remaining members.
//
//	POST /rooms/{room}/messages
//	    Stamp, persist, and fan out an encrypted message. 409 when the
//	    claimed epoch is stale, 403 for non-members.
//
//	GET /rooms/{room}/history?user=U&since_epoch=N
//	    Return persisted messages from epoch N on, clamped to U's join epoch.
//
//	GET /events/{user}
//	POST /events/{user}/ack { "count": N }
//	    Fetch and acknowledge queued key-distribution events.
//
//	GET /ws?user=U
//	    Websocket carrying live message frames and key-event nudges.
//
// Behaviour
//
//   - Messages are persisted to a bbolt database before fan-out; the message
//     log survives restarts and room sequencing resumes past the stored tail.
//   - Room membership and queued key events are in-memory; clients rejoin
//     after a relay restart.
//   - A dropped websocket connection is treated as leaving every room.
package main
