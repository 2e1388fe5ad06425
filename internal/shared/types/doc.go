// Package types provides shared data structures for the session client.
//
// This package defines the wire/model form of a session and the error
// taxonomy used across all components.
//
// Core Types:
//   - SessionRecord: Canonical validated session snapshot
//   - KernelRef: Kernel identity as reported by the server
//   - CreateOptions, PatchBody: Request shapes for create and update
//
// Errors:
//   - ErrDisposed: Operation on a disposed connection
//   - ErrNotFound: Lookup matched neither cache nor server
//   - TransportError: Non-success status or network failure
//   - ValidationError: Server payload failed shape checks
//
// Example Usage:
//
//	rec := types.SessionRecord{
//	    ID:     "7b0a...",
//	    Path:   "/nb.ipynb",
//	    Type:   "notebook",
//	    Kernel: &types.KernelRef{ID: "k1", Name: "python3"},
//	}
package types
