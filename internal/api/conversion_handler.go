package api

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
)

// ListConversions возвращает последние конвертации.
// GET /api/v1/conversions?limit=50
func (h *Handler) ListConversions(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		ServiceUnavailable(w, "conversion history is not configured")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			BadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	conversions, err := h.history.List(r.Context(), limit)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]ConversionResponse, len(conversions))
	for i, c := range conversions {
		result[i] = ConversionFromDomain(c)
	}

	List(w, result, len(result))
}

// GetConversion возвращает конвертацию по ID.
// GET /api/v1/conversions/{id}
func (h *Handler) GetConversion(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		ServiceUnavailable(w, "conversion history is not configured")
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid conversion id")
		return
	}

	conv, err := h.history.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "conversion not found") {
		return
	}

	Success(w, ConversionFromDomain(*conv))
}
