package interfaces

import (
	"encoding/json"
	"errors"
	"net/http"

	"attorney-splits/internal/auth"
	splits "attorney-splits/internal/splits/domain"
)

type errorBody struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeFile(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// statusFor maps an error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, auth.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, auth.ErrMissingSignature), errors.Is(err, auth.ErrInvalidSignature),
		errors.Is(err, auth.ErrSignatureExpired), errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized
	}
	switch splits.KindOf(err) {
	case splits.KindInvalidInput, splits.KindMissingInput:
		return http.StatusBadRequest
	case splits.KindInvalidPolicy:
		return http.StatusUnprocessableEntity
	case splits.KindUnauthorized:
		return http.StatusUnauthorized
	case splits.KindNotFound:
		return http.StatusNotFound
	case splits.KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	body := errorBody{Error: splits.MessageOf(err), Kind: string(splits.KindOf(err))}
	status := statusFor(err)
	switch status {
	case http.StatusForbidden:
		body.Error, body.Kind = "forbidden", string(splits.KindUnauthorized)
	case http.StatusUnauthorized:
		if body.Kind == string(splits.KindInternal) {
			body.Kind = string(splits.KindUnauthorized)
		}
	}
	writeJSON(w, status, body)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message})
}
