package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS returns middleware that applies the API's allowed origin policy. The
// configured frontend origin is appended to the local-dev defaults.
func CORS(frontendOrigin string) func(http.Handler) http.Handler {
	origins := []string{"http://localhost:3000", "http://localhost:5173"}
	if frontendOrigin != "" {
		origins = append(origins, frontendOrigin)
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}
