package server

import (
	"encoding/json"
	"net/http"

	"github.com/tomyedwab/dataapi/dataapi/apierror"
	"github.com/tomyedwab/dataapi/dataapi/types"
)

// errorTypeHeader lets AWS SDK clients classify failures.
const errorTypeHeader = "X-Amzn-ErrorType"

func (s *Server) handleAPIResponse(w http.ResponseWriter, r *http.Request, resp any, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	body, err := json.Marshal(resp)
	if err != nil {
		s.writeError(w, r, apierror.NewWithCause("Payload Error", http.StatusInternalServerError, err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := apierror.Translate(err)

	logger := s.logger.With(
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", RequestIDFrom(r.Context()),
		"status", apiErr.StatusCode,
		"error", err,
	)
	if apiErr.StatusCode >= http.StatusInternalServerError {
		logger.Error("Request failed")
		w.Header().Set(errorTypeHeader, "InternalServerErrorException")
	} else {
		logger.Warn("Request rejected")
		w.Header().Set(errorTypeHeader, "BadRequestException")
	}

	body, _ := json.Marshal(types.ErrorResponse{Error: apiErr.Message})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.StatusCode)
	w.Write(body)
}
