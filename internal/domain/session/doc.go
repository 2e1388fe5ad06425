// Package session provides the live connection object bound to one
// server-side session.
//
// A Connection mirrors the last-known server record (path, type,
// name), exclusively owns a kernel handle, and re-emits the kernel's
// event streams through its own. Server-driven updates flow in through
// Update; locally initiated changes go through the PATCH protocol.
//
// Update Guard:
//
// Each connection runs a two-state machine, Idle and Patching. While a
// PATCH is in flight the connection is Patching and any concurrently
// arriving server update is silently dropped, trading one stale
// re-list result for never clobbering a just-submitted change. The
// PATCH's own echoed record is applied below the guard, so it always
// lands. This is a per-connection policy, not a system-wide lock.
//
// Lifecycle:
//
// Dispose is idempotent and monotonic: it releases the kernel handle,
// emits the disposed event, and detaches every listener. Shutdown only
// deletes the session server-side; the local connection is disposed by
// registry reconciliation noticing the session is gone.
//
// Example Usage:
//
//	conn, err := session.New(ctx, rec, session.Deps{API: api, Connect: connector})
//	conn.KernelChanged.Connect(func(ch session.KernelChange) { ... })
//	err = conn.SetName(ctx, "analysis")
package session
