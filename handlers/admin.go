package handlers

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/padraicbc/mtgvault/cardmarket"
	mw "github.com/padraicbc/mtgvault/middleware"
)

// StartImport runs a card import in the background and answers 202.
// Query params url and batchSize override the configured defaults. Only one
// import runs at a time.
func (h *Handler) StartImport(c echo.Context) error {
	if h.pipeline == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "import not configured")
	}
	source := c.QueryParam("url")
	if source == "" {
		source = h.importURL
	}
	if u, err := url.Parse(source); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid url param")
	}
	batchSize, err := intParam(c.QueryParam("batchSize"), h.batchSize)
	if err != nil || batchSize < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid batchSize param")
	}

	if !h.importing.CompareAndSwap(false, true) {
		return echo.NewHTTPError(http.StatusConflict, "an import is already running")
	}

	requester, _ := c.Get(mw.UsernameKey).(string)
	h.jobs.Add(1)
	go func() {
		defer h.jobs.Done()
		defer h.importing.Store(false)

		ctx, cancel := context.Background(), context.CancelFunc(func() {})
		if h.importDeadline > 0 {
			ctx, cancel = context.WithTimeout(context.Background(), h.importDeadline)
		}
		defer cancel()
		rep, err := h.pipeline.ImportFrom(ctx, source, batchSize)
		if err != nil {
			h.log.Error("admin import failed", zap.String("requested_by", requester), zap.Error(err))
			return
		}
		fields := []zap.Field{
			zap.String("requested_by", requester),
			zap.String("run_id", rep.RunID),
			zap.Int("total_processed", rep.TotalProcessed),
			zap.Int("imported", rep.Imported),
			zap.Int("updated", rep.Updated),
			zap.Int("errors", rep.Errors),
		}
		if rep.Cancelled {
			h.log.Warn("admin import cancelled before completion",
				append(fields, zap.Duration("deadline", h.importDeadline))...)
			return
		}
		h.log.Info("admin import finished", fields...)
	}()

	return c.JSON(http.StatusAccepted, map[string]any{"status": "started", "url": source, "batchSize": batchSize})
}

// SyncCardPrices refreshes one card's prices and returns them.
func (h *Handler) SyncCardPrices(c echo.Context) error {
	if h.syncer == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "price sync not configured")
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid card id")
	}
	ctx := c.Request().Context()

	card, err := h.cards.Get(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return echo.NewHTTPError(http.StatusNotFound, "card not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if card.CardmarketID == nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "card has no cardmarket id")
	}

	if !h.syncer.SyncPrices(ctx, card) {
		return echo.NewHTTPError(http.StatusBadGateway, "price sync failed")
	}

	prices, err := h.cards.Prices(ctx, id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]any{"cardId": id, "prices": prices})
}

// FindProducts searches the marketplace catalog by name and optional expansion.
func (h *Handler) FindProducts(c echo.Context) error {
	if h.cardmarket == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "cardmarket not configured")
	}
	name := c.QueryParam("search")
	if name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing search param")
	}

	products, err := h.cardmarket.FindProducts(c.Request().Context(), name, c.QueryParam("expansion"))
	switch {
	case errors.Is(err, cardmarket.ErrAuthNotConfigured):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, cardmarket.ErrRateLimitExceeded):
		return echo.NewHTTPError(http.StatusTooManyRequests, err.Error())
	case err != nil:
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, products)
}
