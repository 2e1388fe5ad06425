// Package registry tracks the locally-live session connections per
// server endpoint.
//
// The Manager is an explicit injected object; there is no ambient
// process-wide state. It guarantees at most one tracked connection per
// session id per endpoint: further handles for the same id are clones
// that share nothing but the reconciliation path.
//
// Components:
//   - Manager: lookup by id/path, creation, bulk reconciliation
//   - ClientFactory: transport clients keyed by endpoint base URL
//
// Reconciliation:
//
// UpdateRunningSessions pushes each fetched record into its matching
// tracked connection and disposes any connection the server no longer
// reports. RunPolling drives it on an interval. This is the sole
// mechanism by which a session terminated by another client becomes
// visible to local handles.
//
// Known limitation: ShutdownAll aggregates with errgroup, so only the
// first failure is reported; the remaining shutdown requests still run
// to completion.
//
// Example Usage:
//
//	manager := registry.NewManager(registry.Deps{Connect: connector, Clients: factory})
//	conn, err := manager.StartNew(ctx, types.CreateOptions{Path: "/nb.ipynb", KernelName: "python3"}, endpoint)
//	go manager.RunPolling(ctx, endpoint, 10*time.Second)
package registry
