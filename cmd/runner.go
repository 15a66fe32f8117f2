package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/multify/internal/models"
	"github.com/desertthunder/multify/internal/party"
	"github.com/desertthunder/multify/internal/queue"
	"github.com/desertthunder/multify/internal/repositories"
	"github.com/desertthunder/multify/internal/services"
	"github.com/desertthunder/multify/internal/shared"
	"github.com/desertthunder/multify/internal/token"
)

// Catalog is the Spotify surface used by the CLI and the backend. Implemented by services.SpotifyService.
type Catalog interface {
	services.Catalog
	services.TokenService
	RedirectURL() string
}

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	spotify    Catalog
	backend    *services.CallableClient
	tokens     token.Store
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	Spotify    Catalog
	Backend    *services.CallableClient
	Tokens     token.Store
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Backend == nil {
		opts.Backend = services.NewCallableClient("http://"+opts.Config.Server.Addr(), opts.HTTPClient)
	}

	r := &Runner{
		config:     opts.Config,
		spotify:    opts.Spotify,
		backend:    opts.Backend,
		tokens:     opts.Tokens,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}

	if r.spotify != nil {
		r.backend.SetConsentURL(r.spotify.AuthURL)
	}
	return r
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		serveCommand, setupCommand, spotifyCommand, partyCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the runner's logger.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// openDatabase opens the configured database with migrations applied.
func (r *Runner) openDatabase() (*sql.DB, error) {
	r.logger.Debug("opening database", "path", r.config.Database.Path)
	db, err := shared.OpenMigrated(r.config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// tokenStore returns the token store, defaulting to the configured storage file.
func (r *Runner) tokenStore() (token.Store, error) {
	if r.tokens != nil {
		return r.tokens, nil
	}

	path, err := r.config.Tokens.ResolvedStoragePath()
	if err != nil {
		return nil, err
	}
	r.tokens = token.NewFileStore(path)
	return r.tokens, nil
}

// tokenManager builds a token manager that exchanges and refreshes through the backend.
func (r *Runner) tokenManager(state string) (*token.Manager, error) {
	store, err := r.tokenStore()
	if err != nil {
		return nil, err
	}

	return token.NewManager(store, r.backend, r.backend, token.Options{
		Lead:       r.config.Tokens.RefreshLead(),
		OAuthState: state,
		Logger:     r.logger,
	})
}

// accessToken returns the cached Spotify access token.
//
// The manager's refresh timer is stopped before returning; commands are short-lived.
func (r *Runner) accessToken() (string, error) {
	manager, err := r.tokenManager("")
	if err != nil {
		return "", err
	}
	defer manager.Stop()

	accessToken, err := manager.AccessToken()
	if err != nil {
		return "", fmt.Errorf("%w: run 'multify spotify login' first", shared.ErrNotAuthenticated)
	}
	return accessToken, nil
}

// requireSpotify reports whether the Spotify catalog is configured.
func (r *Runner) requireSpotify() error {
	if r.spotify == nil {
		return fmt.Errorf("%w: Spotify client_id and client_secret must be set in config.toml", shared.ErrServiceUnavailable)
	}
	return nil
}

// currentUser resolves the user id sent to the backend: the --user flag, or the
// Spotify account behind the cached token.
func (r *Runner) currentUser(ctx context.Context, cmd *cli.Command) (string, error) {
	if user := strings.TrimSpace(cmd.String("user")); user != "" {
		r.backend.SetUser(user)
		return user, nil
	}

	profile, err := r.profile(ctx)
	if err != nil {
		return "", err
	}
	r.backend.SetUser(profile.ID)
	return profile.ID, nil
}

func (r *Runner) profile(ctx context.Context) (models.SpotifyUser, error) {
	if err := r.requireSpotify(); err != nil {
		return models.SpotifyUser{}, err
	}
	accessToken, err := r.accessToken()
	if err != nil {
		return models.SpotifyUser{}, err
	}
	return r.spotify.CurrentUser(ctx, accessToken)
}

// resolveParty turns a party code or id into a party id, asking the backend for codes.
func (r *Runner) resolveParty(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("%w: party code or id", shared.ErrMissingArgument)
	}
	if !models.IsPartyCode(ref) {
		return ref, nil
	}

	id, err := r.backend.LookupParty(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("failed to look up party %s: %w", ref, err)
	}
	return id, nil
}

// localParty finds a party in the local database by code or id.
func (r *Runner) localParty(db *sql.DB, ref string) (*models.Party, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("%w: party code or id", shared.ErrMissingArgument)
	}

	repo := repositories.NewPartyRepository(db)
	if models.IsPartyCode(ref) {
		return repo.GetByCode(ref)
	}
	return repo.Get(ref)
}

// queueService builds a queue service over the local database.
func (r *Runner) queueService(db *sql.DB) (*queue.Service, error) {
	scorer, err := queue.ScorerByName(r.config.Queue.Score)
	if err != nil {
		return nil, err
	}
	svc := queue.NewService(repositories.NewQueueRepository(db), scorer, r.logger)
	svc.SetWorkers(r.config.Queue.RecountWorkers)
	return svc, nil
}

// partyService builds a party service over the local database.
func (r *Runner) partyService(db *sql.DB) *party.Service {
	return party.NewService(repositories.NewPartyRepository(db), r.spotify, r.logger)
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
