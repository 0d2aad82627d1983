package handler

import (
	"net/http"

	"github.com/go-chi/cors"
)

// corsHandler allows any origin. Preflight requests get an empty 200.
var corsHandler = cors.Handler(cors.Options{
	AllowedOrigins: []string{"*"},
	AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
	AllowedHeaders: []string{"authorization", "x-client-info", "apikey", "content-type"},
	ExposedHeaders: []string{"X-Generation-Id"},
	MaxAge:         300,
})
