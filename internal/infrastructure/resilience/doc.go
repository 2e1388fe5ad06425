/*
Package resilience provides a circuit breaker for calls against the
session service.

# Overview

Repeated transport failures against an endpoint trip the breaker so that
subsequent calls fail fast instead of piling onto a server that is down
or restarting.

# Usage

	breaker := resilience.New("sessions", resilience.Settings{
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	err := breaker.Do(func() error {
		return client.Call()
	})

# States

- Closed: Normal operation, requests pass through
- Open: Service unavailable, requests fail immediately
- Half-Open: Testing if service recovered, limited requests allowed

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
*/
package resilience
