package server

import (
	"context"
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/multify/internal/models"
	"github.com/desertthunder/multify/internal/party"
	"github.com/desertthunder/multify/internal/shared"
)

// TokenExchanger trades OAuth codes and refresh tokens. Implemented by services.SpotifyService.
type TokenExchanger interface {
	Exchange(ctx context.Context, redirectURL string) (models.TokenGrant, error)
	Refresh(ctx context.Context, refreshToken string) (models.TokenGrant, error)
}

// PartyCreator creates parties. Implemented by party.Service.
type PartyCreator interface {
	CreateParty(ctx context.Context, req party.CreatePartyRequest) (*party.CreatePartyResult, error)
}

type callableFunc func(r *http.Request, data map[string]string) (any, error)

// CallableHandler serves the callable functions under /callable/{name}.
//
// Requests carry {"data": {...}}; responses are {"result": ...} or {"error": {...}}.
type CallableHandler struct {
	functions map[string]callableFunc
	logger    *log.Logger
}

// NewCallableHandler creates the handler for authenticateSpotifyUser, refreshToken and createParty.
func NewCallableHandler(tokens TokenExchanger, parties PartyCreator, logger *log.Logger) *CallableHandler {
	h := &CallableHandler{logger: shared.WithLogger(logger, "component", "callable")}
	h.functions = map[string]callableFunc{
		"authenticateSpotifyUser": func(r *http.Request, data map[string]string) (any, error) {
			return tokens.Exchange(r.Context(), data["url"])
		},
		"refreshToken": func(r *http.Request, data map[string]string) (any, error) {
			return tokens.Refresh(r.Context(), data["refreshToken"])
		},
		"createParty": func(r *http.Request, data map[string]string) (any, error) {
			return parties.CreateParty(r.Context(), party.CreatePartyRequest{
				Name:         data["name"],
				SpotifyToken: firstOf(data, "spotifyToken", "spotify_token"),
				SpotifyID:    firstOf(data, "spotifyId", "spotify_id"),
				Host:         r.Header.Get(userHeader),
			})
		},
	}
	return h
}

// firstOf returns the first non-empty value among keys.
func firstOf(data map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := data[k]; v != "" {
			return v
		}
	}
	return ""
}

func (h *CallableHandler) Routes() []string {
	return []string{"POST /callable/{name}"}
}

func (h *CallableHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	fn, ok := h.functions[name]
	if !ok {
		writeError(w, shared.NewCallableError(shared.CodeNotFound, "Unknown function %q.", name))
		return
	}

	var req struct {
		Data map[string]string `json:"data"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Data == nil {
		req.Data = map[string]string{}
	}

	result, err := fn(r, req.Data)
	if err != nil {
		ce := shared.AsCallableError(err)
		h.logger.Warn("callable failed", "function", name, "code", ce.Code, "error", err)
		writeError(w, ce)
		return
	}

	writeJSON(w, http.StatusOK, resultEnvelope{Result: result})
}
