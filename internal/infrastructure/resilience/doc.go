/*
Package resilience provides the circuit breaker that guards the saved-state
store.

A store that keeps failing (a full disk, a broken mount) would otherwise be
hit on every Stopped transition. With the breaker open, captures fail fast
and restores find nothing, so components start fresh instead of stalling
the controller goroutine.

# Usage

	breaker := resilience.New("state-store", resilience.Settings{
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	blob, err := resilience.Call(ctx, breaker, func(ctx context.Context) ([]byte, error) {
		return read(ctx, key)
	})

# States

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                             |
	                                         [failure]
	                                             v
	                                           Open

Calls whose only error is the caller's own cancellation do not count as
failures unless Settings.IsSuccessful says otherwise.
*/
package resilience
