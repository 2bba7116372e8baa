package handlers

import (
	"github.com/labstack/echo/v4"

	mw "github.com/padraicbc/mtgvault/middleware"
)

// Register mounts the API routes on e.
func (h *Handler) Register(e *echo.Echo) {
	// Public
	e.POST("/api/signin", h.Signin)

	// Protected – require valid JWT in Authorization header
	api := e.Group("/api", mw.JWT(h.JWTKey))
	api.GET("/cards", h.SearchCards)
	api.GET("/cards/:id", h.GetCard)
	api.GET("/cards/cardmarket/:cmid", h.GetCardByCardmarketID)
	api.GET("/sets", h.ListSets)
	api.GET("/rarities", h.ListRarities)
	api.GET("/colors", h.ListColors)

	admin := api.Group("/admin", mw.RequireAdmin)
	admin.POST("/import", h.StartImport)
	admin.POST("/cards/:id/prices", h.SyncCardPrices)
	admin.GET("/cardmarket/products", h.FindProducts)
	admin.POST("/password-hash", h.PasswordHash)
}
