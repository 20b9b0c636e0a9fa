// Package ws streams bookmark change events to WebSocket subscribers.
//
// Message Types (Client → Server):
//   - ping: Keep-alive ping
//
// Message Types (Server → Client):
//   - system: Welcome message sent on connect
//   - pong: Reply to ping
//   - bookmark.created, bookmark.deleted, bookmark.imported: change events
//   - error: Unknown or malformed client message
//
// Example Usage:
//
//	hub := ws.NewHub(metrics, logger)
//	service.WithEvents(hub)
//	router.GET("/stream", hub.HandleConnection)
package ws
