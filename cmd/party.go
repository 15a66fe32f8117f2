package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/multify/internal/formatter"
	"github.com/desertthunder/multify/internal/repositories"
	"github.com/desertthunder/multify/internal/shared"
	"github.com/desertthunder/multify/internal/tasks"
)

// PartyCreate creates a party hosted by the current user through the backend.
func (r *Runner) PartyCreate(ctx context.Context, cmd *cli.Command) error {
	name := strings.TrimSpace(cmd.StringArg("name"))
	if name == "" {
		return fmt.Errorf("%w: party name", shared.ErrMissingArgument)
	}

	accessToken, err := r.accessToken()
	if err != nil {
		return err
	}

	profile, err := r.profile(ctx)
	if err != nil {
		return err
	}

	host := strings.TrimSpace(cmd.String("user"))
	if host == "" {
		host = profile.ID
	}
	r.backend.SetUser(host)

	r.logger.Info("creating party", "name", name, "host", host)

	created, err := r.backend.CreateParty(ctx, name, accessToken, profile.ID)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(created, true)
	}

	r.writePlain("✓ Party created: %s\n", created.Name)
	r.writePlain("  Code: %s\n", created.Code)
	r.writePlain("  ID: %s\n", created.ID)
	if created.PlaylistID != "" {
		r.writePlain("  Playlist: %s\n", created.PlaylistID)
	}
	return nil
}

// PartyLookup resolves a join code to a party id.
func (r *Runner) PartyLookup(ctx context.Context, cmd *cli.Command) error {
	code := strings.TrimSpace(cmd.StringArg("code"))
	if code == "" {
		return fmt.Errorf("%w: party code", shared.ErrMissingArgument)
	}

	id, err := r.backend.LookupParty(ctx, code)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]string{"id": id, "code": code}, false)
	}
	return r.writePlain("%s\n", id)
}

// PartyQueue prints or exports the ranked queue of a party.
func (r *Runner) PartyQueue(ctx context.Context, cmd *cli.Command) error {
	ref := cmd.StringArg("party")
	partyID, err := r.resolveParty(ctx, ref)
	if err != nil {
		return err
	}

	viewer := strings.TrimSpace(cmd.String("user"))
	r.backend.SetUser(viewer)

	tracks, err := r.backend.Queue(ctx, partyID)
	if err != nil {
		return err
	}

	export := &formatter.QueueExport{PartyID: partyID, Viewer: viewer, Tracks: tracks}
	if ref != partyID {
		export.Code = ref
	}

	format := cmd.String("format")
	if output := cmd.String("output"); output != "" || cmd.Bool("save") {
		path, err := formatter.WriteQueueExport(export, format, output)
		if err != nil {
			return err
		}
		r.logger.Info("queue exported", "path", path, "tracks", len(tracks))
		return r.writePlain("✓ Queue exported to %s (%d tracks)\n", path, len(tracks))
	}

	data, err := formatter.RenderQueue(export, format)
	if err != nil {
		return err
	}
	_, err = r.output.Write(data)
	return err
}

// PartyAdd queues a catalog track as the current user.
func (r *Runner) PartyAdd(ctx context.Context, cmd *cli.Command) error {
	trackID := strings.TrimSpace(cmd.StringArg("track"))
	if trackID == "" {
		return fmt.Errorf("%w: track id", shared.ErrMissingArgument)
	}

	partyID, err := r.resolveParty(ctx, cmd.StringArg("party"))
	if err != nil {
		return err
	}
	if _, err := r.currentUser(ctx, cmd); err != nil {
		return err
	}

	if err := r.backend.AddTrack(ctx, partyID, trackID); err != nil {
		return err
	}
	return r.writePlain("✓ Queued %s\n", trackID)
}

// PartyVote sets the current user's vote on a queued track.
//
// The flags give the final state: --like, --dislike, or neither to clear the vote.
func (r *Runner) PartyVote(ctx context.Context, cmd *cli.Command) error {
	trackID := strings.TrimSpace(cmd.StringArg("track"))
	if trackID == "" {
		return fmt.Errorf("%w: track id", shared.ErrMissingArgument)
	}

	up, down := cmd.Bool("like"), cmd.Bool("dislike")
	if up && down {
		return fmt.Errorf("%w: --like and --dislike are exclusive", shared.ErrInvalidArgument)
	}

	partyID, err := r.resolveParty(ctx, cmd.StringArg("party"))
	if err != nil {
		return err
	}
	if _, err := r.currentUser(ctx, cmd); err != nil {
		return err
	}

	state, err := r.backend.Vote(ctx, partyID, trackID, up, down)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(state, false)
	}

	switch {
	case state.Up:
		return r.writePlain("▲ Upvoted %s\n", trackID)
	case state.Down:
		return r.writePlain("▼ Downvoted %s\n", trackID)
	default:
		return r.writePlain("Cleared vote on %s\n", trackID)
	}
}

// PartyFallback fills a party queue from a Spotify playlist, writing to the local database.
func (r *Runner) PartyFallback(ctx context.Context, cmd *cli.Command) error {
	playlistID := strings.TrimSpace(cmd.StringArg("playlist"))
	if playlistID == "" {
		return fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}
	if err := r.requireSpotify(); err != nil {
		return err
	}

	accessToken, err := r.accessToken()
	if err != nil {
		return err
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	p, err := r.localParty(db, cmd.StringArg("party"))
	if err != nil {
		return err
	}

	addedBy := strings.TrimSpace(cmd.String("user"))
	if addedBy == "" {
		addedBy = p.Host()
	}

	queueService, err := r.queueService(db)
	if err != nil {
		return err
	}

	engine := tasks.NewImportEngine(
		r.spotify,
		repositories.NewImportAdapter(repositories.NewQueueRepository(db)),
		queueService,
		r.logger,
	)

	progress := make(chan tasks.ProgressUpdate, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			if cmd.Bool("quiet") {
				continue
			}
			r.writePlain("[%s] %s\n", update.Phase, update.Message)
		}
	}()

	r.logger.Info("importing fallback playlist", "party", p.ID(), "playlist", playlistID)

	result, err := engine.Import(ctx, progress, p.ID(), playlistID, addedBy, tasks.ImportOpts{
		AccessToken: accessToken,
		NumWorkers:  cmd.Int("workers"),
		RateLimit:   cmd.Float("rate"),
	})
	close(progress)
	<-done
	if err != nil {
		return err
	}

	if manifest := cmd.String("manifest"); manifest != "" {
		if err := formatter.WriteImportManifest(result, manifest); err != nil {
			return err
		}
		r.logger.Info("import manifest saved", "path", manifest)
	}

	if cmd.Bool("json") {
		return r.writeJSON(result, true)
	}

	r.writePlainHeader("Fallback import")
	_, err = r.output.Write(formatter.ImportSummary(result))
	return err
}

// PartyRecount recomputes vote counters from the stored markers of a party.
func (r *Runner) PartyRecount(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	p, err := r.localParty(db, cmd.StringArg("party"))
	if err != nil {
		return err
	}

	queueService, err := r.queueService(db)
	if err != nil {
		return err
	}

	corrections, err := queueService.Recount(ctx, p.ID())
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(corrections, true)
	}
	_, err = r.output.Write(formatter.CorrectionsToText(corrections))
	return err
}

type partyRow struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Host      string    `json:"host"`
	CreatedAt time.Time `json:"created_at"`
}

// PartyList prints the active parties in the local database.
func (r *Runner) PartyList(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	parties, err := r.partyService(db).List(ctx, cmd.String("user"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		out := make([]partyRow, 0, len(parties))
		for _, p := range parties {
			out = append(out, partyRow{ID: p.ID(), Code: p.Code(), Name: p.Name(), Host: p.Host(), CreatedAt: p.CreatedAt()})
		}
		return r.writeJSON(out, true)
	}

	if len(parties) == 0 {
		return r.writePlain("No active parties\n")
	}

	r.writePlain("Found %d parties:\n\n", len(parties))
	for _, p := range parties {
		r.writePlain("%s  %s (host %s, started %s)\n", p.Code(), p.Name(), p.Host(), p.CreatedAt().Local().Format("2006-01-02 15:04"))
	}
	return nil
}

// PartyEnd ends a party in the local database and releases its join code.
func (r *Runner) PartyEnd(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	p, err := r.localParty(db, cmd.StringArg("party"))
	if err != nil {
		return err
	}

	if err := r.partyService(db).EndParty(ctx, p.ID(), strings.TrimSpace(cmd.String("user"))); err != nil {
		return err
	}
	return r.writePlain("✓ Ended %s (code %s released)\n", p.Name(), p.Code())
}

// PartyToken stores the current Spotify access token with a party in the local database.
func (r *Runner) PartyToken(ctx context.Context, cmd *cli.Command) error {
	accessToken, err := r.accessToken()
	if err != nil {
		return err
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	p, err := r.localParty(db, cmd.StringArg("party"))
	if err != nil {
		return err
	}

	if _, err := r.partyService(db).UpdateToken(ctx, p.ID(), accessToken); err != nil {
		return err
	}
	return r.writePlain("✓ Updated Spotify token for %s\n", p.Name())
}
