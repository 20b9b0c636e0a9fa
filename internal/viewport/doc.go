// Package viewport provides the content surfaces a session renders into.
//
// A viewport only ever reports two things back: a load finished, or it
// failed. Probe checks reachability and embeddability over plain HTTP,
// Chrome drives a real browser through the DevTools protocol. Openers hand
// URLs to something outside the shell.
package viewport
