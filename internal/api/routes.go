package api

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
		CORS(h.corsOrigin),
	)

	// Конвертация. /api/convert — путь браузерной формы.
	// Метод проверяется в обработчике: любой метод, кроме POST, получает 405.
	mux.Handle("/api/v1/convert", chain(http.HandlerFunc(h.Convert)))
	mux.Handle("/api/convert", chain(http.HandlerFunc(h.Convert)))

	// История
	mux.Handle("GET /api/v1/conversions", chain(http.HandlerFunc(h.ListConversions)))
	mux.Handle("GET /api/v1/conversions/{id}", chain(http.HandlerFunc(h.GetConversion)))

	// Health и metrics
	mux.HandleFunc("GET /healthz", h.Health)
	mux.Handle("GET /metrics", promhttp.Handler())
}

// Health сообщает, что процесс жив.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Uptime: time.Since(h.startedAt).Round(time.Second).String(),
	})
}
