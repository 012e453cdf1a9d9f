package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/use-agent/shelfscan/models"
)

// abort stops the chain with the standard search error body.
func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, models.SearchResponse{
		Products: []models.Product{},
		Error:    &models.ErrorDetail{Code: code, Message: message},
	})
}
