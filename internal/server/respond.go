package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/desertthunder/multify/internal/services"
	"github.com/desertthunder/multify/internal/shared"
)

const (
	userHeader  = services.UserHeader
	maxBodySize = 1 << 20
)

type errorEnvelope struct {
	Error shared.CallableErrorBody `json:"error"`
}

type resultEnvelope struct {
	Result any `json:"result"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes err as a callable error envelope with the matching HTTP status.
func writeError(w http.ResponseWriter, err error) {
	ce := shared.AsCallableError(err)
	writeJSON(w, ce.Code.HTTPStatus(), errorEnvelope{Error: ce.Body()})
}

// decodeBody reads a JSON request body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return &shared.CallableError{
			Code:    shared.CodeInvalidArgument,
			Message: "Invalid request body.",
			Err:     fmt.Errorf("%w: %v", shared.ErrInvalidInput, err),
		}
	}
	return nil
}

// viewer returns the calling user: the user header, or the viewer query parameter.
func viewer(r *http.Request) string {
	if v := r.Header.Get(userHeader); v != "" {
		return v
	}
	return r.URL.Query().Get("viewer")
}
