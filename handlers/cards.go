package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/padraicbc/mtgvault/catalog"
	"github.com/padraicbc/mtgvault/models"
)

type cardPage struct {
	Cards  []models.Card `json:"cards"`
	Total  int           `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// SearchCards lists cards filtered by name fragment, set, rarity and color.
func (h *Handler) SearchCards(c echo.Context) error {
	prm := c.QueryParams()
	f := catalog.Filter{
		Name:    prm.Get("name"),
		SetCode: prm.Get("set"),
		Rarity:  prm.Get("rarity"),
		Color:   prm.Get("color"),
	}
	var err error
	if f.Limit, err = intParam(prm.Get("limit"), 50); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid limit param")
	}
	if f.Offset, err = intParam(prm.Get("offset"), 0); err != nil || f.Offset < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid offset param")
	}

	cards, total, err := h.cards.Search(c.Request().Context(), f)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if cards == nil {
		cards = []models.Card{}
	}
	return c.JSON(http.StatusOK, cardPage{Cards: cards, Total: total, Limit: f.Limit, Offset: f.Offset})
}

// GetCard returns one card with its stored prices.
func (h *Handler) GetCard(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid card id")
	}

	card, err := h.cards.Get(c.Request().Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		return echo.NewHTTPError(http.StatusNotFound, "card not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, card)
}

// GetCardByCardmarketID returns the card with a marketplace product id.
func (h *Handler) GetCardByCardmarketID(c echo.Context) error {
	cmID, err := strconv.ParseInt(c.Param("cmid"), 10, 64)
	if err != nil || cmID <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid cardmarket id")
	}

	card, err := h.cards.ByCardmarketID(c.Request().Context(), cmID)
	if errors.Is(err, sql.ErrNoRows) {
		return echo.NewHTTPError(http.StatusNotFound, "card not found")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, card)
}

// ListSets returns the distinct sets in the catalog.
func (h *Handler) ListSets(c echo.Context) error {
	sets, err := h.cards.Sets(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, sets)
}

// ListRarities returns the distinct rarities in the catalog.
func (h *Handler) ListRarities(c echo.Context) error {
	rarities, err := h.cards.Rarities(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, rarities)
}

// ListColors returns the color codes used in the catalog.
func (h *Handler) ListColors(c echo.Context) error {
	colors, err := h.cards.Colors(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, colors)
}

func intParam(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}
