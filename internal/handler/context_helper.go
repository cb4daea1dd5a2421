package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/klaslab/school-api/internal/middleware"
	"github.com/klaslab/school-api/internal/models"
)

// currentClaims returns the authenticated user's claims. Routes behind
// the JWT middleware always carry them.
func currentClaims(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// pageParams reads the page and page_size query parameters. Values are
// clamped later by NormalizePage; bad input just falls back to zero.
func pageParams(c *gin.Context) (page, pageSize int) {
	page, _ = strconv.Atoi(c.Query("page"))
	pageSize, _ = strconv.Atoi(c.Query("page_size"))
	return page, pageSize
}
