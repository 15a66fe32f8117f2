package server

import (
	"context"
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/multify/internal/party"
	"github.com/desertthunder/multify/internal/shared"
)

// PartyService is the party side of the API. Implemented by party.Service.
type PartyService interface {
	Parties
	CreateParty(ctx context.Context, req party.CreatePartyRequest) (*party.CreatePartyResult, error)
}

// APIOptions holds the dependencies of [NewAPI].
type APIOptions struct {
	Tokens         TokenExchanger
	Parties        PartyService
	Queue          Queue
	Tracks         TrackLookup
	Live           Live
	AllowedOrigins []string
	Logger         *log.Logger
}

// NewAPI assembles the backend's routes and middleware.
func NewAPI(opts APIOptions) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	router := NewBasicRouter()
	router.Use(Recover(logger), Logging(logger))

	router.Handle(http.MethodGet, "/health", http.HandlerFunc(health))
	router.Handler(NewCallableHandler(opts.Tokens, opts.Parties, logger))
	router.Handler(NewPartyHandler(opts.Parties, opts.Queue, opts.Tracks, opts.Live, logger))

	return CORS(opts.AllowedOrigins)(router)
}

func health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

var _ PartyService = (*party.Service)(nil)
