/*
Package resilience provides a circuit breaker for calls to services the shell
does not control: the bookmark API and arbitrary web pages fetched for
metadata or viewport probing.

# Usage

	breaker := resilience.New("bookmarks-api", resilience.Settings{
		Timeout: 10 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})

	items, err := resilience.Call(ctx, breaker, func(ctx context.Context) ([]bookmark.Bookmark, error) {
		return api.list(ctx)
	})

# States

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                       [failure]
	                                           v
	                                          Open

Errors for which Settings.IsSuccessful returns true (by default, context
cancellation by the caller) do not count against the breaker.
*/
package resilience
