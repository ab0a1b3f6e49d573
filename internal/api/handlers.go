package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"goldwatch/internal/alerting"
	"goldwatch/internal/monitor"
	"goldwatch/internal/service"
	"goldwatch/internal/storage"
)

const defaultTriggerLimit = 50

type handler struct {
	engine   *monitor.Engine
	alerts   *service.Alerts
	triggers storage.TriggerLog
}

type createAlertRequest struct {
	Owner string          `json:"owner" binding:"required"`
	Buy   decimal.Decimal `json:"buy"`
	Sell  decimal.Decimal `json:"sell"`
}

type evaluateResponse struct {
	Price    *decimal.Decimal        `json:"price"`
	Triggers []alerting.TriggerEvent `json:"triggers"`
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handler) snapshot(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Snapshot())
}

func (h *handler) history(c *gin.Context) {
	limit := h.engine.Capacity()
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			abortWithError(c, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	c.JSON(http.StatusOK, gin.H{"history": h.engine.History(limit)})
}

func (h *handler) schedule(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.ScheduleStatus(h.engine.Now()))
}

func (h *handler) listAlerts(c *gin.Context) {
	alerts, err := h.alerts.List(c.Request.Context())
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}

func (h *handler) createAlert(c *gin.Context) {
	var req createAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	alert, err := h.alerts.Add(c.Request.Context(), strings.TrimSpace(req.Owner), req.Buy, req.Sell)
	switch {
	case errors.Is(err, alerting.ErrInvalidThreshold), errors.Is(err, service.ErrOwnerRequired):
		abortWithError(c, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		abortWithError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusCreated, alert)
}

// evaluateAlerts previews alerts against ?price=, or the latest sample when absent.
func (h *handler) evaluateAlerts(c *gin.Context) {
	resp := evaluateResponse{Triggers: []alerting.TriggerEvent{}}

	if raw := c.Query("price"); raw != "" {
		price, err := decimal.NewFromString(raw)
		if err != nil || !price.IsPositive() {
			abortWithError(c, http.StatusBadRequest, "price must be a positive number")
			return
		}
		resp.Price = &price
	} else if latest, err := h.engine.Latest(); err == nil {
		resp.Price = &latest.Price
	}

	if resp.Price == nil {
		c.JSON(http.StatusOK, resp)
		return
	}

	events, err := h.alerts.Check(c.Request.Context(), *resp.Price)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, err.Error())
		return
	}
	resp.Triggers = events
	c.JSON(http.StatusOK, resp)
}

func (h *handler) recentTriggers(c *gin.Context) {
	if h.triggers == nil {
		c.JSON(http.StatusOK, gin.H{"triggers": []storage.TriggerRecord{}})
		return
	}

	limit := defaultTriggerLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			abortWithError(c, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	records, err := h.triggers.ListRecentTriggers(c.Request.Context(), limit)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"triggers": records})
}

func abortWithError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}
