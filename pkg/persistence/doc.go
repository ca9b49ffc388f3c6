// Package persistence remembers provisioned devices between runs of the
// setup tools.
//
// State is kept as a single JSON file per store. Secrets (passwords, private
// keys) are never persisted; only identity, the device public key and the
// names of configured networks are recorded.
package persistence
