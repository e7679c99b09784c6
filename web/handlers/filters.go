package handlers

import (
	"context"
	"net/http"
	"strings"

	"datachat/chat"
	"datachat/dataset"
	apperrors "datachat/errors"
	"datachat/filter"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// FilterHandler adapts HTTP requests onto the selection reconciler and the
// group-value resolvers. Column-selection changes kick off a debounced
// background resolution to warm the cache; results arriving for a
// superseded selection are discarded via the reconciler epoch.
type FilterHandler struct {
	service   *chat.Service
	resolvers map[filter.Source]*dataset.Resolver
	debounce  *filter.Debouncer
	logger    *zap.Logger
}

func NewFilterHandler(service *chat.Service, resolvers map[filter.Source]*dataset.Resolver, debounce *filter.Debouncer, logger *zap.Logger) *FilterHandler {
	return &FilterHandler{
		service:   service,
		resolvers: resolvers,
		debounce:  debounce,
		logger:    logger,
	}
}

type columnsRequest struct {
	Source  filter.Source `json:"source" binding:"required"`
	Columns []string      `json:"columns"`
}

type modeRequest struct {
	Source filter.Source `json:"source" binding:"required"`
	Column string        `json:"column" binding:"required"`
	Mode   filter.Mode   `json:"mode" binding:"required"`
}

type valueRequest struct {
	Source filter.Source `json:"source" binding:"required"`
	Column string        `json:"column"`
	Value  string        `json:"value" binding:"required"`
}

type batchRequest struct {
	Source   filter.Source `json:"source" binding:"required"`
	Column   string        `json:"column" binding:"required"`
	Values   []string      `json:"values" binding:"required"`
	Selected bool          `json:"selected"`
}

type itemRequest struct {
	Source filter.Source `json:"source" binding:"required"`
	Item   string        `json:"item" binding:"required"`
}

type clearRequest struct {
	Source filter.Source `json:"source" binding:"required"`
}

func validSource(src filter.Source) bool {
	return src == filter.SourceSQL || src == filter.SourceFile
}

// SelectColumns replaces a source's selected columns and schedules a
// debounced value prefetch for the new group-column set.
func (h *FilterHandler) SelectColumns(c *gin.Context) {
	var req columnsRequest
	if err := c.ShouldBindJSON(&req); err != nil || !validSource(req.Source) {
		respondWithClientError(c, http.StatusBadRequest, "Invalid column selection")
		return
	}
	rec := h.service.Reconciler()
	rec.SelectColumns(req.Source, req.Columns)
	h.prefetch(req.Source)
	c.JSON(http.StatusOK, rec.SetState(req.Source))
}

// prefetch warms the value cache for the source's current group columns
// after the debounce window. A result whose epoch is stale by resolution
// time is simply dropped.
func (h *FilterHandler) prefetch(src filter.Source) {
	rec := h.service.Reconciler()
	h.debounce.Trigger(func() {
		epoch := rec.Epoch()
		set := rec.SetState(src)
		groupCols := set.GroupColumns()
		if len(groupCols) == 0 {
			return
		}
		resolver, ok := h.resolvers[src]
		if !ok {
			return
		}
		items := rec.Items(src)
		res := resolver.Resolve(context.Background(), sourceKey(src, items), items, groupCols, set.DisplayColumns())
		if !rec.StillCurrent(epoch) {
			h.logger.Debug("Discarding stale value resolution",
				zap.String("source", string(src)),
				zap.Int("combinations", len(res.Combinations)))
		}
	})
}

// Values resolves the selectable value combinations for the source's
// current group columns.
func (h *FilterHandler) Values(c *gin.Context) {
	src := filter.Source(c.Query("source"))
	if !validSource(src) {
		respondWithClientError(c, http.StatusBadRequest, "Invalid source")
		return
	}
	rec := h.service.Reconciler()
	epoch := rec.Epoch()
	set := rec.SetState(src)
	groupCols := set.GroupColumns()
	if len(groupCols) == 0 {
		c.JSON(http.StatusOK, dataset.Resolution{})
		return
	}
	resolver, ok := h.resolvers[src]
	if !ok {
		c.JSON(http.StatusOK, dataset.Resolution{})
		return
	}
	items := rec.Items(src)
	res := resolver.Resolve(c.Request.Context(), sourceKey(src, items), items, groupCols, set.DisplayColumns())
	c.JSON(http.StatusOK, gin.H{
		"combinations": res.Combinations,
		"rows":         res.Rows,
		"truncated":    res.Truncated,
		"stale":        !rec.StillCurrent(epoch),
	})
}

// SetColumnMode flips a column between group and display mode.
func (h *FilterHandler) SetColumnMode(c *gin.Context) {
	var req modeRequest
	if err := c.ShouldBindJSON(&req); err != nil || !validSource(req.Source) {
		respondWithClientError(c, http.StatusBadRequest, "Invalid mode change")
		return
	}
	if req.Mode != filter.ModeGroup && req.Mode != filter.ModeDisplay {
		respondWithClientError(c, http.StatusBadRequest, "Mode must be group or display")
		return
	}
	rec := h.service.Reconciler()
	rec.SetColumnMode(req.Source, req.Column, req.Mode)
	h.prefetch(req.Source)
	c.JSON(http.StatusOK, rec.SetState(req.Source))
}

// SelectValue toggles one value or combination.
func (h *FilterHandler) SelectValue(c *gin.Context) {
	var req valueRequest
	if err := c.ShouldBindJSON(&req); err != nil || !validSource(req.Source) {
		respondWithClientError(c, http.StatusBadRequest, "Invalid value selection")
		return
	}
	rec := h.service.Reconciler()
	rec.SelectValue(req.Source, req.Column, req.Value)
	c.JSON(http.StatusOK, gin.H{
		"state":  rec.SetState(req.Source),
		"active": rec.Active(),
	})
}

// BatchSelectValues selects or deselects many values at once.
func (h *FilterHandler) BatchSelectValues(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil || !validSource(req.Source) {
		respondWithClientError(c, http.StatusBadRequest, "Invalid batch selection")
		return
	}
	rec := h.service.Reconciler()
	rec.BatchSelectValues(req.Source, req.Column, req.Values, req.Selected)
	c.JSON(http.StatusOK, gin.H{
		"state":  rec.SetState(req.Source),
		"active": rec.Active(),
	})
}

// ToggleItem picks or unpicks a file or SQL target.
func (h *FilterHandler) ToggleItem(c *gin.Context) {
	var req itemRequest
	if err := c.ShouldBindJSON(&req); err != nil || !validSource(req.Source) {
		respondWithClientError(c, http.StatusBadRequest, "Invalid item toggle")
		return
	}
	rec := h.service.Reconciler()
	rec.ToggleSourceItem(req.Source, req.Item)
	c.JSON(http.StatusOK, gin.H{"items": rec.Items(req.Source)})
}

// ClearSelection wipes one source's filter state.
func (h *FilterHandler) ClearSelection(c *gin.Context) {
	var req clearRequest
	if err := c.ShouldBindJSON(&req); err != nil || !validSource(req.Source) {
		respondWithClientError(c, http.StatusBadRequest, "Invalid clear request")
		return
	}
	h.service.Reconciler().ClearSelection(req.Source)
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

// State returns a source's full filter state.
func (h *FilterHandler) State(c *gin.Context) {
	src := filter.Source(c.Query("source"))
	if !validSource(src) {
		respondWithClientError(c, http.StatusBadRequest, "Invalid source")
		return
	}
	rec := h.service.Reconciler()
	c.JSON(http.StatusOK, gin.H{
		"state":  rec.SetState(src),
		"items":  rec.Items(src),
		"active": rec.Active(),
	})
}

// Finalize commits the active selection as the chat's dataset context and
// persists the filter snapshot alongside it.
func (h *FilterHandler) Finalize(c *gin.Context) {
	chatID := c.Param("id")
	ds, err := h.service.Reconciler().Finalize(c.Request.Context(), chatID)
	if err != nil {
		if apperrors.IsInvalidInput(err) {
			respondWithClientError(c, http.StatusBadRequest, "Select data before finalizing")
			return
		}
		respondWithError(c, http.StatusInternalServerError, err,
			"Could not apply the data selection. Your previous selection is still active.", h.logger,
			zap.String("chat_id", chatID))
		return
	}
	if err := h.service.SaveFilters(c.Request.Context(), chatID); err != nil {
		h.logger.Warn("Finalized but snapshot save failed", zap.Error(err), zap.String("chat_id", chatID))
	}
	c.JSON(http.StatusOK, ds)
}

func sourceKey(src filter.Source, items []string) string {
	return string(src) + ":" + strings.Join(items, ",")
}
