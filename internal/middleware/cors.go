package middleware

import (
	"github.com/go-chi/cors"
)

// CORS returns cors.Options for the decision API. The primary consumer is
// the bot-command layer calling service-to-service, so origins matter only
// when an admin frontend talks to the API directly.
func CORS(allowedOrigins []string) cors.Options {
	allowCreds := true
	for _, o := range allowedOrigins {
		if o == "*" {
			// Browsers reject Allow-Credentials with a wildcard origin.
			allowCreds = false
			break
		}
	}

	return cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: allowCreds,
		MaxAge:           300,
	}
}
