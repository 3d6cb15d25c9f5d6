// Package relay provides the HTTP implementation of the domain.RelayClient
// interface used by parlor.
//
// The relay server stores encrypted room messages, tracks membership, and
// queues wrapped session keys for offline members. This package offers a
// concrete JSON-over-HTTP client for all of that, plus a websocket
// subscription that nudges the client when new messages or key events are
// waiting.
//
// All requests accept a context for cancellation and deadlines. The relay's
// conflict and forbidden statuses are mapped back onto the domain error
// taxonomy (ErrEpochMismatch, ErrNotAMember) so callers can branch on them
// with errors.Is; other non-2xx statuses are returned as errors carrying the
// method, path, and status text.
package relay
