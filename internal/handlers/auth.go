package handlers

import (
	"net/http"
	"strings"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/gin-gonic/gin"
)

// TokenParser validates a Casdoor access token.
type TokenParser interface {
	ParseJwtToken(token string) (*casdoorsdk.Claims, error)
}

// AuthMiddleware requires a valid bearer token and stores the caller in the
// gin context under "user_id" and "user_name".
func AuthMiddleware(parser TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Message: "Missing bearer token",
				Code:    "UNAUTHORIZED",
			})
			return
		}

		claims, err := parser.ParseJwtToken(strings.TrimSpace(token))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Message: "Invalid token",
				Details: err.Error(),
				Code:    "UNAUTHORIZED",
			})
			return
		}

		c.Set("user_id", claims.Id)
		c.Set("user_name", claims.Owner+"/"+claims.Name)
		c.Next()
	}
}
