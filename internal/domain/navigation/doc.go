// Package navigation tracks one tab's history and loading lifecycle.
//
// The viewport reports nothing but "loaded" and "failed", so History keeps
// its own entry list and simulates load progress while a navigation is in
// flight:
//
//	Idle -> Loading -> Loaded
//	               \-> Failed
//
// Every navigation starts a new episode. Starting an episode cancels the
// previous one, including its progress ticker and the context handed to
// the viewport, before any state is reset. Load hands the viewport the
// episode number and the terminal signals hand it back, so a late answer
// for an earlier navigation is dropped.
package navigation
