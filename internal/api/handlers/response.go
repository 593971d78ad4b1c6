package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/zatekoja/clinicretail/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/clinicretail/pkg/errors"
)

func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

// respondWithAppError maps an error onto its HTTP status. Only validation and
// not-found messages are shown to the client.
func respondWithAppError(w http.ResponseWriter, r *http.Request, err error) {
	logger := observability.LoggerFromContext(r.Context())

	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		logger.Error().Err(err).Msg("Unhandled error")
		respondWithError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	switch appErr.Type {
	case apperrors.ErrorTypeValidation:
		respondWithError(w, http.StatusBadRequest, appErr.Message)
	case apperrors.ErrorTypeNotFound:
		respondWithError(w, http.StatusNotFound, appErr.Message)
	case apperrors.ErrorTypeStorage:
		logger.Error().Err(appErr).Msg("Storage unavailable")
		respondWithError(w, http.StatusServiceUnavailable, "storage unavailable")
	case apperrors.ErrorTypeTransport:
		logger.Error().Err(appErr).Msg("Upstream request failed")
		respondWithError(w, http.StatusBadGateway, "upstream unavailable")
	default:
		logger.Error().Err(appErr).Msg("Request failed")
		respondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}
