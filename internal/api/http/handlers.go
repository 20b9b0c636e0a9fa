package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/tabshell/internal/domain/bookmark"
	"github.com/GriffinCanCode/tabshell/internal/infrastructure/logging"
)

// Version is reported by the liveness endpoint.
const Version = "0.3.0"

// Pinger checks that the repository is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Streamer reports live websocket subscribers.
type Streamer interface {
	Clients() int
}

// Handlers contains all HTTP handlers
type Handlers struct {
	service *bookmark.Service
	db      Pinger
	stream  Streamer
	logger  *zap.Logger
}

// NewHandlers creates a new handler set. db and stream may be nil.
func NewHandlers(service *bookmark.Service, db Pinger, stream Streamer, logger *zap.Logger) *Handlers {
	return &Handlers{
		service: service,
		db:      db,
		stream:  stream,
		logger:  logging.OrNop(logger),
	}
}

// Root handles liveness checks
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "tabshell bookmark API",
		"version": Version,
	})
}

// Health reports storage reachability
func (h *Handlers) Health(c *gin.Context) {
	status, code := "healthy", http.StatusOK
	storage := gin.H{"connected": true}
	if h.db != nil {
		if err := h.db.Ping(c.Request.Context()); err != nil {
			status, code = "degraded", http.StatusServiceUnavailable
			storage = gin.H{"connected": false, "error": err.Error()}
		}
	}

	clients := 0
	if h.stream != nil {
		clients = h.stream.Clients()
	}

	c.JSON(code, gin.H{
		"status":  status,
		"storage": storage,
		"stream":  gin.H{"clients": clients},
	})
}
