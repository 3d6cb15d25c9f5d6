// Package domain holds the core types, error taxonomy, and interfaces shared
// by the parlor client and relay server.
package domain
