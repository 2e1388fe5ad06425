// Package monitoring provides Prometheus metrics for the session client.
//
// Metrics cover registry occupancy, PATCH traffic by field, kernel
// identity changes, dropped concurrent updates, reconciliation passes,
// and transport call outcomes.
//
// A nil *Metrics is a valid no-op collector so that library consumers
// who do not scrape metrics pay nothing.
//
// Example Usage:
//
//	metrics := monitoring.New()
//	registry := registry.NewManager(registry.Deps{Metrics: metrics, ...})
package monitoring
