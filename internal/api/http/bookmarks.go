package http

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/tabshell/internal/domain/bookmark"
)

// Client-facing messages.
const (
	msgURLRequired  = "URL is required"
	msgInvalidURL   = "Invalid URL"
	msgInvalidData  = "Invalid bookmark data"
	msgNotFound     = "Bookmark not found"
	msgDeleted      = "Bookmark deleted"
	msgLoadFailed   = "Failed to load bookmarks"
	msgSaveFailed   = "Failed to save bookmark"
	msgImportFailed = "Failed to import bookmarks"
	msgDeleteFailed = "Failed to delete bookmark"
)

type createRequest struct {
	URL string `json:"url"`
}

type importEnvelope struct {
	Bookmarks []bookmark.ImportItem `json:"bookmarks"`
}

// RegisterBookmarks mounts the bookmark routes on g
func (h *Handlers) RegisterBookmarks(g *gin.RouterGroup) {
	g.GET("", h.ListBookmarks)
	g.POST("", h.CreateBookmark)
	g.POST("/import", h.ImportBookmarks)
	g.DELETE("/:id", h.DeleteBookmark)
}

// ListBookmarks returns stored bookmarks, newest first unless ?sort=title
func (h *Handlers) ListBookmarks(c *gin.Context) {
	q := bookmark.Query{
		Text: c.Query("q"),
		Sort: bookmark.ParseSort(c.Query("sort")),
	}

	items, err := h.service.List(c.Request.Context(), q)
	if err != nil {
		h.fail(c, http.StatusInternalServerError, msgLoadFailed, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// CreateBookmark stores a bookmark, answering 200 with the existing record
// when the URL is already saved
func (h *Handlers) CreateBookmark(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgURLRequired})
		return
	}

	b, created, err := h.service.Create(c.Request.Context(), req.URL)
	switch {
	case errors.Is(err, bookmark.ErrURLRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": msgURLRequired})
		return
	case errors.Is(err, bookmark.ErrInvalidURL):
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidURL})
		return
	case err != nil:
		h.fail(c, http.StatusInternalServerError, msgSaveFailed, err)
		return
	}

	if created {
		c.JSON(http.StatusCreated, b)
		return
	}
	c.JSON(http.StatusOK, b)
}

// ImportBookmarks accepts a JSON array of bookmarks, or {"bookmarks": [...]}
func (h *Handlers) ImportBookmarks(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidData})
		return
	}

	items, ok := decodeImport(raw)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidData})
		return
	}

	res, err := h.service.Import(c.Request.Context(), items)
	if err != nil {
		if bookmark.IsValidationError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidData, "detail": err.Error()})
			return
		}
		h.fail(c, http.StatusInternalServerError, msgImportFailed, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// DeleteBookmark removes a bookmark by id
func (h *Handlers) DeleteBookmark(c *gin.Context) {
	err := h.service.Delete(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, bookmark.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": msgNotFound})
	case err != nil:
		h.fail(c, http.StatusInternalServerError, msgDeleteFailed, err)
	default:
		c.JSON(http.StatusOK, gin.H{"message": msgDeleted})
	}
}

func (h *Handlers) fail(c *gin.Context, status int, msg string, err error) {
	_ = c.Error(err)
	h.logger.Error(msg, zap.Error(err), zap.String("path", c.FullPath()))
	c.JSON(status, gin.H{"error": msg})
}

func decodeImport(raw []byte) ([]bookmark.ImportItem, bool) {
	body := bytes.TrimSpace(raw)
	if len(body) == 0 {
		return nil, false
	}

	switch body[0] {
	case '[':
		var items []bookmark.ImportItem
		if err := sonic.Unmarshal(body, &items); err != nil {
			return nil, false
		}
		return items, true
	case '{':
		var env importEnvelope
		if err := sonic.Unmarshal(body, &env); err != nil || env.Bookmarks == nil {
			return nil, false
		}
		return env.Bookmarks, true
	default:
		return nil, false
	}
}
