// Package shell is the interactive front end of tabshell. It assembles a
// tab session, the bookmark store and the user's preferences, and exposes
// them as line commands.
package shell
