package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS 允许任意来源的前端挂载聊天组件
var CORS = cors.Handler(cors.Options{
	AllowedOrigins:   []string{"*"},
	AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
	AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
	ExposedHeaders:   []string{"X-Request-Id"},
	AllowCredentials: false,
	MaxAge:           300,
})
