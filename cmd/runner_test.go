package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/multify/internal/live"
	"github.com/desertthunder/multify/internal/models"
	"github.com/desertthunder/multify/internal/party"
	"github.com/desertthunder/multify/internal/queue"
	"github.com/desertthunder/multify/internal/repositories"
	"github.com/desertthunder/multify/internal/server"
	"github.com/desertthunder/multify/internal/services"
	"github.com/desertthunder/multify/internal/shared"
	tu "github.com/desertthunder/multify/internal/testing"
	"github.com/desertthunder/multify/internal/token"
)

type testEnv struct {
	runner  *Runner
	output  *bytes.Buffer
	spotify *tu.MockSpotify
	config  *shared.Config
}

// newTestEnv starts a backend over a temporary database and a runner pointed at it.
// The runner holds a fresh cached token unless loggedIn is false.
func newTestEnv(t *testing.T, loggedIn bool) *testEnv {
	t.Helper()

	config := shared.DefaultConfig()
	config.Database.Path = filepath.Join(t.TempDir(), "multify.db")

	db, err := shared.OpenMigrated(config.Database)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := shared.NewLogger(&bytes.Buffer{})
	spotify := tu.NewMockSpotify()
	spotify.Tracks["t1"] = models.Track{ID: "t1", Name: "One More Time", Artists: []string{"Daft Punk"}}
	spotify.Tracks["t2"] = models.Track{ID: "t2", Name: "Around the World", Artists: []string{"Daft Punk"}}
	spotify.PlaylistTracks["pl1"] = []models.Track{spotify.Tracks["t1"], spotify.Tracks["t2"]}

	queueService := queue.NewService(repositories.NewQueueRepository(db), queue.Magnitude, logger)
	hub := live.NewHub(queueService, logger)
	t.Cleanup(hub.Close)
	queueService.SetNotifier(hub)

	api := server.NewAPI(server.APIOptions{
		Tokens:  spotify,
		Parties: party.NewService(repositories.NewPartyRepository(db), spotify, logger),
		Queue:   queueService,
		Tracks:  spotify,
		Live:    hub,
		Logger:  logger,
	})
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	var record *models.TokenRecord
	if loggedIn {
		record = &models.TokenRecord{
			AccessToken:  "access",
			RefreshToken: "refresh",
			ExpiresAt:    time.Now().Add(time.Hour).Unix(),
		}
	}

	output := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{
		Config:  config,
		Spotify: spotify,
		Backend: services.NewCallableClient(srv.URL, srv.Client()),
		Tokens:  token.NewMemoryStore(record),
		Logger:  logger,
		Output:  output,
	})

	return &testEnv{runner: runner, output: output, spotify: spotify, config: config}
}

// run executes the CLI with args and returns the output it wrote.
func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	e.output.Reset()

	app := &cli.Command{Name: "multify", Commands: e.runner.register()}
	err := app.Run(context.Background(), append([]string{"multify"}, args...))
	return e.output.String(), err
}

func (e *testEnv) createParty(t *testing.T) services.CreatedParty {
	t.Helper()

	out, err := e.run(t, "party", "create", "--json", "Friday")
	if err != nil {
		t.Fatalf("party create failed: %v", err)
	}

	var created services.CreatedParty
	if err := json.Unmarshal([]byte(out), &created); err != nil {
		t.Fatalf("unexpected output %q: %v", out, err)
	}
	if !models.IsPartyCode(created.Code) {
		t.Fatalf("expected a party code, got %q", created.Code)
	}
	return created
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}
			spotify := tu.NewMockSpotify()
			backend := services.NewCallableClient("http://backend.test", httpClient)
			store := token.NewMemoryStore(nil)

			runner := NewRunner(RunnerOpts{
				Config:     config,
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
				Spotify:    spotify,
				Backend:    backend,
				Tokens:     store,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.backend != backend {
				t.Error("expected backend to be set")
			}
			if runner.tokens != store {
				t.Error("expected token store to be set")
			}
			if got := backend.AuthURL("s1"); got != spotify.AuthURL("s1") {
				t.Errorf("expected backend consent URL from spotify, got %q", got)
			}
		})

		t.Run("with nil options uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
			if runner.httpClient != http.DefaultClient {
				t.Error("expected httpClient to default to http.DefaultClient")
			}
			if runner.backend == nil {
				t.Error("expected default backend client")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"code": "12345"}, true); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := output.String(); got != "{\n  \"code\": \"12345\"\n}\n" {
				t.Errorf("unexpected output: %q", got)
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]int{"likes": 2}, false); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := output.String(); got != "{\"likes\":2}\n" {
				t.Errorf("unexpected output: %q", got)
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(make(chan int), false)
			if err == nil || !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes formatted text", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("Code: %s\n", "12345"); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := output.String(); got != "Code: 12345\n" {
				t.Errorf("unexpected output: %q", got)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})
			if err := runner.writePlain("text"); err == nil {
				t.Error("expected error")
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		var names []string
		for _, cmd := range runner.register() {
			names = append(names, cmd.Name)
		}

		want := []string{"serve", "setup", "spotify", "party", "tui"}
		if strings.Join(names, ",") != strings.Join(want, ",") {
			t.Errorf("expected commands %v, got %v", want, names)
		}
	})
}

func TestPartyCommands(t *testing.T) {
	t.Run("create and lookup", func(t *testing.T) {
		env := newTestEnv(t, true)
		p := env.createParty(t)

		if len(env.spotify.Created) != 1 || env.spotify.Created[0] != "spotify-user/"+party.PlaylistName {
			t.Errorf("unexpected playlists created: %v", env.spotify.Created)
		}

		out, err := env.run(t, "party", "lookup", p.Code)
		if err != nil {
			t.Fatalf("lookup failed: %v", err)
		}
		if strings.TrimSpace(out) == "" {
			t.Error("expected a party id")
		}
	})

	t.Run("create requires login", func(t *testing.T) {
		env := newTestEnv(t, false)
		_, err := env.run(t, "party", "create", "Friday")
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("create requires name", func(t *testing.T) {
		env := newTestEnv(t, true)
		_, err := env.run(t, "party", "create")
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("lookup unknown code", func(t *testing.T) {
		env := newTestEnv(t, true)
		_, err := env.run(t, "party", "lookup", "99999")

		var callableErr *shared.CallableError
		if !errors.As(err, &callableErr) || callableErr.Code != shared.CodeNotFound {
			t.Errorf("expected not-found, got %v", err)
		}
	})

	t.Run("add, vote and show queue", func(t *testing.T) {
		env := newTestEnv(t, true)
		p := env.createParty(t)

		for _, id := range []string{"t1", "t2"} {
			out, err := env.run(t, "party", "add", "--user", "alice", p.Code, id)
			if err != nil {
				t.Fatalf("add %s failed: %v", id, err)
			}
			if !strings.Contains(out, "Queued "+id) {
				t.Errorf("unexpected output: %q", out)
			}
		}

		out, err := env.run(t, "party", "vote", "--like", "--user", "bob", p.Code, "t2")
		if err != nil {
			t.Fatalf("vote failed: %v", err)
		}
		if !strings.Contains(out, "Upvoted t2") {
			t.Errorf("unexpected output: %q", out)
		}

		out, err = env.run(t, "party", "queue", "--user", "bob", "--format", "csv", p.Code)
		if err != nil {
			t.Fatalf("queue failed: %v", err)
		}
		lines := strings.Split(strings.TrimSpace(out), "\n")
		if len(lines) != 3 {
			t.Fatalf("expected header and 2 rows, got %q", out)
		}
		if !strings.Contains(lines[1], "Around the World") {
			t.Errorf("expected upvoted track first, got %q", lines[1])
		}

		out, err = env.run(t, "party", "vote", "--user", "bob", p.Code, "t2")
		if err != nil {
			t.Fatalf("clear vote failed: %v", err)
		}
		if !strings.Contains(out, "Cleared vote on t2") {
			t.Errorf("unexpected output: %q", out)
		}
	})

	t.Run("vote flags are exclusive", func(t *testing.T) {
		env := newTestEnv(t, true)
		_, err := env.run(t, "party", "vote", "--like", "--dislike", "--user", "bob", "12345", "t1")
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("queue export to file", func(t *testing.T) {
		env := newTestEnv(t, true)
		p := env.createParty(t)
		if _, err := env.run(t, "party", "add", "--user", "alice", p.Code, "t1"); err != nil {
			t.Fatalf("add failed: %v", err)
		}

		path := filepath.Join(t.TempDir(), "queue.md")
		out, err := env.run(t, "party", "queue", "--format", "markdown", "--output", path, p.Code)
		if err != nil {
			t.Fatalf("queue export failed: %v", err)
		}
		if !strings.Contains(out, "Queue exported to "+path) {
			t.Errorf("unexpected output: %q", out)
		}
		if content := tu.MustReadFile(t, path); !strings.Contains(content, "One More Time") {
			t.Errorf("expected track in export, got %q", content)
		}
	})

	t.Run("fallback and recount", func(t *testing.T) {
		env := newTestEnv(t, true)
		p := env.createParty(t)
		manifest := filepath.Join(t.TempDir(), "import.json")

		out, err := env.run(t, "party", "fallback", "--quiet", "--rate", "100", "--manifest", manifest, p.Code, "pl1")
		if err != nil {
			t.Fatalf("fallback failed: %v", err)
		}
		if !strings.Contains(out, "Added: 2  Skipped: 0  Failed: 0") {
			t.Errorf("unexpected summary: %q", out)
		}
		if content := tu.MustReadFile(t, manifest); !strings.Contains(content, `"added": 2`) {
			t.Errorf("unexpected manifest: %q", content)
		}

		out, err = env.run(t, "party", "fallback", "--quiet", "--rate", "100", p.Code, "pl1")
		if err != nil {
			t.Fatalf("second fallback failed: %v", err)
		}
		if !strings.Contains(out, "Added: 0  Skipped: 2") {
			t.Errorf("expected tracks to be skipped, got %q", out)
		}

		out, err = env.run(t, "party", "recount", p.Code)
		if err != nil {
			t.Fatalf("recount failed: %v", err)
		}
		if !strings.Contains(out, "All vote counters match") {
			t.Errorf("unexpected output: %q", out)
		}
	})

	t.Run("list, token and end", func(t *testing.T) {
		env := newTestEnv(t, true)
		p := env.createParty(t)

		out, err := env.run(t, "party", "list", "--json")
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		var rows []partyRow
		if err := json.Unmarshal([]byte(out), &rows); err != nil {
			t.Fatalf("unexpected output %q: %v", out, err)
		}
		if len(rows) != 1 || rows[0].Code != p.Code || rows[0].ID != p.ID {
			t.Errorf("expected the created party, got %+v", rows)
		}

		out, err = env.run(t, "party", "token", p.Code)
		if err != nil {
			t.Fatalf("token failed: %v", err)
		}
		if !strings.Contains(out, "Updated Spotify token for Friday") {
			t.Errorf("unexpected output: %q", out)
		}

		_, err = env.run(t, "party", "end", "--user", "guest", p.Code)
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected only the host to end the party, got %v", err)
		}

		out, err = env.run(t, "party", "end", p.Code)
		if err != nil {
			t.Fatalf("end failed: %v", err)
		}
		if !strings.Contains(out, "code "+p.Code+" released") {
			t.Errorf("unexpected output: %q", out)
		}

		if _, err := env.run(t, "party", "lookup", p.Code); err == nil {
			t.Error("expected ended party to be gone")
		}

		out, err = env.run(t, "party", "list")
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if !strings.Contains(out, "No active parties") {
			t.Errorf("unexpected output: %q", out)
		}
	})

	t.Run("fallback unknown party", func(t *testing.T) {
		env := newTestEnv(t, true)
		_, err := env.run(t, "party", "fallback", "--quiet", "54321", "pl1")
		if !errors.Is(err, shared.ErrNotFound) && !errors.Is(err, shared.ErrPartyNotFound) {
			t.Errorf("expected not found, got %v", err)
		}
	})

	t.Run("backend unreachable", func(t *testing.T) {
		client := &http.Client{Transport: tu.NewMockRoundTripper(nil, errors.New("connection refused"))}
		runner := NewRunner(RunnerOpts{
			Backend: services.NewCallableClient("http://backend.test", client),
			Output:  &bytes.Buffer{},
			Logger:  shared.NewLogger(&bytes.Buffer{}),
		})

		app := &cli.Command{Name: "multify", Commands: runner.register()}
		err := app.Run(context.Background(), []string{"multify", "party", "lookup", "12345"})
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})
}

func TestSpotifyCommands(t *testing.T) {
	t.Run("search", func(t *testing.T) {
		env := newTestEnv(t, true)
		out, err := env.run(t, "spotify", "search", "world")
		if err != nil {
			t.Fatalf("search failed: %v", err)
		}
		if !strings.Contains(out, "Daft Punk - Around the World") {
			t.Errorf("unexpected output: %q", out)
		}
	})

	t.Run("search requires query", func(t *testing.T) {
		env := newTestEnv(t, true)
		_, err := env.run(t, "spotify", "search")
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("search requires login", func(t *testing.T) {
		env := newTestEnv(t, false)
		_, err := env.run(t, "spotify", "search", "world")
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("playlists", func(t *testing.T) {
		env := newTestEnv(t, true)
		cursor := "?offset=0&limit=20"
		env.spotify.Pages[cursor] = models.PlaylistPage{
			Items: []models.Playlist{{ID: "pl1", Name: "Road Trip", TrackCount: 2}},
			Total: 1,
			Next:  "https://api.spotify.com/v1/me/playlists?offset=20&limit=20",
		}

		out, err := env.run(t, "spotify", "playlists")
		if err != nil {
			t.Fatalf("playlists failed: %v", err)
		}
		for _, want := range []string{"Found 1 playlists", "1. Road Trip", "Next page:"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in output %q", want, out)
			}
		}
	})

	t.Run("status", func(t *testing.T) {
		env := newTestEnv(t, true)
		out, err := env.run(t, "spotify", "status")
		if err != nil {
			t.Fatalf("status failed: %v", err)
		}
		if !strings.Contains(out, "State: "+token.Fresh.String()) {
			t.Errorf("unexpected output: %q", out)
		}
	})

	t.Run("login when already authorized", func(t *testing.T) {
		env := newTestEnv(t, true)
		out, err := env.run(t, "spotify", "login")
		if err != nil {
			t.Fatalf("login failed: %v", err)
		}
		if !strings.Contains(out, "Already logged in") {
			t.Errorf("unexpected output: %q", out)
		}
		if env.spotify.CallCount() != 0 {
			t.Error("expected no Spotify calls")
		}
	})

	t.Run("missing credentials", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}, Logger: shared.NewLogger(&bytes.Buffer{})})
		app := &cli.Command{Name: "multify", Commands: runner.register()}

		err := app.Run(context.Background(), []string{"multify", "spotify", "login"})
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})
}

func TestSetupCommands(t *testing.T) {
	t.Run("database", func(t *testing.T) {
		env := newTestEnv(t, true)
		path := filepath.Join(t.TempDir(), "setup.db")

		out, err := env.run(t, "setup", "database", "--config", filepath.Join(t.TempDir(), "missing.toml"), "--database", path)
		if err != nil {
			t.Fatalf("setup database failed: %v", err)
		}
		if !strings.Contains(out, "Database ready: "+path) {
			t.Errorf("unexpected output: %q", out)
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected database file: %v", err)
		}
	})

	t.Run("config", func(t *testing.T) {
		env := newTestEnv(t, true)
		path := filepath.Join(t.TempDir(), "config.toml")

		if _, err := env.run(t, "setup", "config", "--config", path); err != nil {
			t.Fatalf("setup config failed: %v", err)
		}
		if content := tu.MustReadFile(t, path); !strings.Contains(content, "[credentials.spotify]") {
			t.Errorf("unexpected config: %q", content)
		}

		_, err := env.run(t, "setup", "config", "--config", path)
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for existing file, got %v", err)
		}
	})
}

func TestOriginChecker(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"listed origin", []string{"http://localhost:3000"}, "http://localhost:3000", true},
		{"unlisted origin", []string{"http://localhost:3000"}, "http://evil.test", false},
		{"wildcard", []string{"*"}, "http://anywhere.test", true},
		{"nothing allowed", nil, "http://localhost:3000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := originChecker(tt.allowed)(tt.origin); got != tt.want {
				t.Errorf("originChecker(%v)(%q) = %v, want %v", tt.allowed, tt.origin, got, tt.want)
			}
		})
	}
}

func TestBackendURL(t *testing.T) {
	config := shared.DefaultConfig()

	t.Run("from server config", func(t *testing.T) {
		t.Setenv("MULTIFY_BACKEND_URL", "")
		if got := backendURL(config); got != "http://127.0.0.1:3001" {
			t.Errorf("unexpected URL: %q", got)
		}
	})

	t.Run("from environment", func(t *testing.T) {
		t.Setenv("MULTIFY_BACKEND_URL", "https://multify.example")
		if got := backendURL(config); got != "https://multify.example" {
			t.Errorf("unexpected URL: %q", got)
		}
	})
}
