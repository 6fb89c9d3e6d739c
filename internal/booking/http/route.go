package http

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the booking API. writeLimit guards the endpoints that
// change the calendar; recordsGuards protect the list of upcoming bookings.
func RegisterRoutes(g *gin.RouterGroup, h *Handler, writeLimit gin.HandlerFunc, recordsGuards ...gin.HandlerFunc) {
	// === Public Routes ===
	g.GET("/slots", h.Slots)
	g.GET("/services", h.Services)

	// === Rate Limited Routes ===
	limited := g.Group("")
	limited.Use(writeLimit)
	{
		limited.POST("/book", h.Book)
		limited.POST("/cancel", h.Cancel)
	}

	// === Admin Routes ===
	records := make([]gin.HandlerFunc, 0, len(recordsGuards)+1)
	records = append(records, recordsGuards...)
	records = append(records, h.Records)
	g.GET("/records", records...)
}
