// Package events provides the typed signal primitive used for session
// and kernel event streams.
//
// A Signal is a synchronous dispatcher: Emit calls every attached
// listener in attachment order before returning. There is no buffering
// and no replay; a listener attached after an emission never sees it.
//
// Example Usage:
//
//	status := events.NewSignal[string]()
//	off := status.Connect(func(s string) { fmt.Println(s) })
//	status.Emit("idle")
//	off()
package events
