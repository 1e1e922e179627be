package middleware

import (
	"net/http"

	"github.com/rs/cors"

	"servus-backend/internal/config"
)

func NewCORS(cfg *config.Config) func(http.Handler) http.Handler {
	origins := cfg.Server.CorsAllowedOrigins
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: cfg.Server.CorsAllowedMethods,
		AllowedHeaders: cfg.Server.CorsAllowedHeaders,
		// credentials cannot be combined with a wildcard origin
		AllowCredentials: !(len(origins) == 1 && origins[0] == "*"),
		MaxAge:           300, // 5 minutes
	})

	return c.Handler
}
