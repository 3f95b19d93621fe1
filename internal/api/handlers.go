package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "pricewatch/internal/errors"
	"pricewatch/internal/models"
	"pricewatch/internal/monitor"
	"pricewatch/internal/store"
)

type HealthHandler struct{}

func (h *HealthHandler) Register(r gin.IRouter) {
	r.GET("/healthz", h.health)
}

func (h *HealthHandler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// AlertHandler serves alert CRUD.
type AlertHandler struct {
	Store store.AlertStore
}

func (h *AlertHandler) Register(r gin.IRouter) {
	r.GET("/alerts", h.listActive)
	r.POST("/alerts", h.create)
	r.GET("/alerts/history", h.listHistory)
	r.GET("/alerts/:id", h.get)
	r.DELETE("/alerts/:id", h.delete)
}

type createAlertRequest struct {
	Symbol    string  `json:"symbol"`
	Threshold float64 `json:"threshold"`
	Direction string  `json:"direction"`
}

func (h *AlertHandler) create(c *gin.Context) {
	var req createAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	if req.Direction == "" {
		req.Direction = string(models.DirectionAbove)
	}
	direction, err := models.ParseDirection(req.Direction)
	if err != nil {
		writeError(c, apperrors.NewValidationError("direction", req.Direction, err.Error()))
		return
	}

	alert, err := h.Store.Create(c.Request.Context(), req.Symbol, req.Threshold, direction)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, alert)
}

func (h *AlertHandler) listActive(c *gin.Context) {
	alerts, err := h.Store.ListActive(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, alerts)
}

func (h *AlertHandler) listHistory(c *gin.Context) {
	alerts, err := h.Store.ListHistory(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, alerts)
}

func (h *AlertHandler) get(c *gin.Context) {
	alert, err := h.Store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

func (h *AlertHandler) delete(c *gin.Context) {
	id := c.Param("id")
	removed, err := h.Store.Delete(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, errorResponse{Error: "alert " + id + " not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// MonitorHandler controls the monitor loop.
type MonitorHandler struct {
	Monitor *monitor.Monitor
}

func (h *MonitorHandler) Register(r gin.IRouter) {
	r.GET("/monitor", h.status)
	r.POST("/monitor/start", h.start)
	r.POST("/monitor/stop", h.stop)
	r.PUT("/monitor/interval", h.setInterval)
	r.POST("/monitor/check", h.check)
}

type monitorStatus struct {
	Running              bool  `json:"running"`
	CheckIntervalSeconds int64 `json:"check_interval_seconds"`
	Changed              *bool `json:"changed,omitempty"`
}

func (h *MonitorHandler) snapshot(changed *bool) monitorStatus {
	return monitorStatus{
		Running:              h.Monitor.Running(),
		CheckIntervalSeconds: int64(h.Monitor.Interval() / time.Second),
		Changed:              changed,
	}
}

func (h *MonitorHandler) status(c *gin.Context) {
	c.JSON(http.StatusOK, h.snapshot(nil))
}

func (h *MonitorHandler) start(c *gin.Context) {
	changed := h.Monitor.Start()
	c.JSON(http.StatusOK, h.snapshot(&changed))
}

func (h *MonitorHandler) stop(c *gin.Context) {
	changed := h.Monitor.Stop()
	c.JSON(http.StatusOK, h.snapshot(&changed))
}

type intervalRequest struct {
	Seconds int64 `json:"seconds"`
}

func (h *MonitorHandler) setInterval(c *gin.Context) {
	var req intervalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	interval, err := monitor.IntervalFromSeconds(req.Seconds)
	if err != nil {
		writeError(c, err)
		return
	}
	if err := h.Monitor.SetInterval(interval); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.snapshot(nil))
}

func (h *MonitorHandler) check(c *gin.Context) {
	c.JSON(http.StatusOK, h.Monitor.CheckNow(c.Request.Context()))
}

// QuoteSource returns a price with its fetch time.
type QuoteSource interface {
	Quote(ctx context.Context, symbol string) (models.PriceQuote, error)
}

// PriceHandler serves price lookups through the cache.
type PriceHandler struct {
	Prices QuoteSource
}

func (h *PriceHandler) Register(r gin.IRouter) {
	r.GET("/prices/:symbol", h.get)
}

func (h *PriceHandler) get(c *gin.Context) {
	q, err := h.Prices.Quote(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}
