package middleware

import (
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// corsAllowedOriginVar names the environment variable that configures the
// single allowed origin for cross-origin requests. Unset or "*" allows any
// origin, matching a public read-only conversion API with no cookies.
const corsAllowedOriginVar = "PDFSTREAM_CORS_ORIGIN"

// CORSMiddleware builds a gin-contrib/cors handler scoped to the origin
// named by PDFSTREAM_CORS_ORIGIN, exposing the headers the conversion
// endpoint sets on a streamed response.
func CORSMiddleware() gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	if origin := os.Getenv(corsAllowedOriginVar); origin != "" && origin != "*" {
		cfg.AllowOrigins = []string{origin}
	} else {
		cfg.AllowAllOrigins = true
	}
	cfg.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	cfg.AllowHeaders = []string{"*"}
	cfg.ExposeHeaders = []string{"X-Pdfstream-Pages", "X-Pdfstream-Bytes"}
	return cors.New(cfg)
}
