// Package session owns the open tabs of one shell session.
//
// A Manager keeps tabs in creation order with exactly one active tab,
// resolves address-bar input into URLs, and routes navigation either to the
// tab's navigation.History or, for sites that refuse to be embedded, to an
// external opener.
package session
