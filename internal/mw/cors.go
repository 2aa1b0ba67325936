package mw

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
)

// CORS applies the dashboard's cross-origin policy. Paths listed in skip
// answer their own preflight requests.
func CORS(allowedOrigins []string, skip ...string) gin.HandlerFunc {
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         3600,
	})

	return func(ctx *gin.Context) {
		if slices.Contains(skip, ctx.Request.URL.Path) {
			ctx.Next()
			return
		}

		c.HandlerFunc(ctx.Writer, ctx.Request)
		if ctx.Request.Method == http.MethodOptions && ctx.GetHeader("Access-Control-Request-Method") != "" {
			ctx.AbortWithStatus(http.StatusNoContent)
			return
		}
		ctx.Next()
	}
}
