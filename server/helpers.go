package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"commitbet/models"

	log "github.com/sirupsen/logrus"
)

// PrincipalHeader carries the authenticated caller
const PrincipalHeader = "X-Principal"

// maxBodyBytes bounds request bodies
const maxBodyBytes = 1 << 16

// errorResponse is the body of every failed request
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// requestError is a malformed request rejected before reaching a service
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

// writeJSON marshals v as JSON and writes it with the given status code
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error","code":"internal"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError maps err to a status code and writes the error body
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: reqErr.msg, Code: "bad_request"})
		return
	}

	domainErr, ok := models.AsError(err)
	if !ok {
		log.WithFields(log.Fields{
			"method":    r.Method,
			"path":      r.URL.Path,
			"requestId": requestIDFrom(r.Context()),
			"error":     err,
		}).Error("Request failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error", Code: "internal"})
		return
	}

	writeJSON(w, statusFor(domainErr), errorResponse{Error: domainErr.Message, Code: domainErr.Code})
}

// statusFor maps a market error to an HTTP status code
func statusFor(err *models.Error) int {
	if err == models.ErrMarketBusy {
		return http.StatusServiceUnavailable
	}

	switch err.Kind {
	case models.KindValidation:
		return http.StatusBadRequest
	case models.KindTemporal, models.KindConflict, models.KindResource:
		return http.StatusConflict
	case models.KindIntegrity, models.KindArithmetic:
		return http.StatusUnprocessableEntity
	case models.KindAuthorization:
		return http.StatusForbidden
	case models.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a bounded JSON body into v, rejecting unknown fields
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest("invalid request body: %v", err)
	}
	return nil
}

// callerPrincipal returns the validated principal of the caller
func callerPrincipal(r *http.Request) (models.Principal, error) {
	principal := models.Principal(r.Header.Get(PrincipalHeader))
	if principal == "" {
		return "", badRequest("missing %s header", PrincipalHeader)
	}
	if err := principal.Validate(); err != nil {
		return "", err
	}
	return principal, nil
}

// marketKeyParam parses the {key} path segment
func marketKeyParam(r *http.Request) (models.MarketKey, error) {
	return models.ParseMarketKey(r.PathValue("key"))
}

// parseAmount parses a decimal uint64 amount
func parseAmount(field, s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, badRequest("invalid %s %q", field, s)
	}
	return v, nil
}

// parseLimit reads the limit query parameter. Zero lets the service apply its default.
func parseLimit(r *http.Request) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, badRequest("invalid limit %q", v)
	}
	return n, nil
}
