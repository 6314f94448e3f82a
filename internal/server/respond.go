package server

import (
	"net/http"

	jsoniter "github.com/json-iterator/go"

	"github.com/koustreak/sqlstream/internal/errs"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// statusOf maps an error kind to the HTTP status reported for it.
func statusOf(err error) int {
	switch errs.KindOf(err) {
	case errs.ErrKindInvalidInput:
		return http.StatusBadRequest
	case errs.ErrKindNotFound:
		return http.StatusNotFound
	case errs.ErrKindPermissionDenied:
		return http.StatusForbidden
	case errs.ErrKindConflict:
		return http.StatusConflict
	case errs.ErrKindQueryFailed:
		return http.StatusUnprocessableEntity
	case errs.ErrKindTimeout:
		return http.StatusGatewayTimeout
	case errs.ErrKindConnectionFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, err error) {
	respondJSON(w, statusOf(err), errorBody{Error: err.Error(), Kind: errs.KindOf(err).String()})
}
