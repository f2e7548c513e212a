package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// NewRouter registers the inspection endpoints on a gin engine.
func NewRouter(premises *PremisesHandler, stats *StatsHandler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	r.GET("/premises/:id", premises.Premises)
	r.GET("/stats", stats.Stats)

	return r
}
