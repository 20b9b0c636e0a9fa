// Package logging provides structured logging using uber/zap.
//
// Two output modes are supported:
//   - Production: JSON lines for the bookmark API server
//   - Development: colored console output, also used by the shell
//
// Components receive a plain *zap.Logger. A nil logger is replaced with a
// no-op logger via OrNop so constructors never have to guard against it.
//
// Example Usage:
//
//	logger := logging.FromConfig(cfg.Logging)
//	logger.Info("Server starting", zap.String("port", "4000"))
//	store := bookmark.NewStore(remote, mirror, bookmark.DefaultStoreOptions(), logger.Named("bookmarks"))
package logging
