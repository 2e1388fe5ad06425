// Package kernel provides the kernel-connection collaborator consumed
// by session connections.
//
// A Handle proxies one remote kernel process: identity plus five event
// streams (status, connection-status, iopub, unhandled, any). The
// default implementation rides the kernel's websocket channels
// endpoint and classifies incoming frames by channel; it does not
// interpret the kernel messaging protocol beyond that.
//
// Components:
//   - Handle: Owned kernel proxy with event streams and Dispose
//   - Connector: Factory injected into session connections
//   - NewWSConnector: gorilla/websocket-backed default Connector
package kernel
