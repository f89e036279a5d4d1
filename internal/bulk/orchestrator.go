package bulk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sydlexius/lidarr-bulk/internal/connection/lidarr"
	"github.com/sydlexius/lidarr-bulk/internal/resolve"
)

// NameResolver resolves an artist name to a MusicBrainz ID.
type NameResolver interface {
	Resolve(ctx context.Context, name string) (resolve.ResolvedArtist, error)
}

// Registrar is the slice of the Lidarr client the orchestrator needs.
type Registrar interface {
	FindArtistByMBID(ctx context.Context, mbid string) (*lidarr.Artist, error)
	LookupArtist(ctx context.Context, mbid string) (*lidarr.Artist, error)
	CreateArtist(ctx context.Context, req lidarr.AddArtistRequest) (*lidarr.Artist, error)
	TriggerMissingSearch(ctx context.Context, artistID int) (*lidarr.CommandResponse, error)
}

// ProfileResolver produces the run's profile IDs.
type ProfileResolver interface {
	Resolve(ctx context.Context, qualityID, metadataID int, useDefault bool) (lidarr.ProfileSet, error)
}

// Options controls a run.
type Options struct {
	RunID              string
	Limit              int
	DryRun             bool
	RootFolder         string
	Monitor            string
	QualityProfileID   int
	MetadataProfileID  int
	UseDefaultProfiles bool
	SearchMissing      bool
}

// Orchestrator drives artists through resolution and registration one at a
// time. A failure for one artist is recorded in the report and the run
// moves on; only configuration problems and cancellation stop it.
type Orchestrator struct {
	resolver  NameResolver
	registrar Registrar
	profiles  ProfileResolver
	results   ResultSink
	opts      Options
	logger    *slog.Logger
}

// New creates an Orchestrator. registrar and profiles may be nil for
// resolve-only runs; resolver may be nil for register-only runs.
func New(resolver NameResolver, registrar Registrar, profiles ProfileResolver, opts Options, logger *slog.Logger) *Orchestrator {
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	return &Orchestrator{
		resolver:  resolver,
		registrar: registrar,
		profiles:  profiles,
		opts:      opts,
		logger: logger.With(
			slog.String("component", "bulk"),
			slog.String("run_id", opts.RunID),
		),
	}
}

// RunID returns the identifier stamped on the run's report.
func (o *Orchestrator) RunID() string {
	return o.opts.RunID
}

// ReportTo streams every result to sink as soon as it is final. A sink
// failure aborts the run.
func (o *Orchestrator) ReportTo(sink ResultSink) {
	o.results = sink
}

// RunResolve resolves names and streams each MBID to sink.
func (o *Orchestrator) RunResolve(ctx context.Context, names []string, sink MBIDSink) (*Report, error) {
	if o.resolver == nil {
		return nil, errors.New("resolve run needs a name resolver")
	}
	report := o.newReport()
	defer o.finish(report)

	for _, name := range Truncate(names, o.opts.Limit) {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		res, ok, err := o.resolveOne(ctx, name, sink)
		if err != nil {
			return report, err
		}
		if ok {
			res.Status = StatusResolved
		}
		if err := o.record(report, res); err != nil {
			return report, err
		}
	}
	return report, nil
}

// RunRegister registers each MBID in Lidarr.
func (o *Orchestrator) RunRegister(ctx context.Context, mbids []string) (*Report, error) {
	profiles, err := o.profileSet(ctx)
	if err != nil {
		return nil, err
	}
	report := o.newReport()
	defer o.finish(report)

	for _, mbid := range Truncate(mbids, o.opts.Limit) {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		res := Result{Identifier: mbid, MBID: mbid}
		res.Status, res.Detail = o.register(ctx, mbid, profiles)
		o.logResult(res)
		if err := o.record(report, res); err != nil {
			return report, err
		}
	}
	return report, nil
}

// RunBulk resolves each name and registers it right away. Resolved MBIDs
// are still streamed to sink.
func (o *Orchestrator) RunBulk(ctx context.Context, names []string, sink MBIDSink) (*Report, error) {
	if o.resolver == nil {
		return nil, errors.New("bulk run needs a name resolver")
	}
	profiles, err := o.profileSet(ctx)
	if err != nil {
		return nil, err
	}
	report := o.newReport()
	defer o.finish(report)

	for _, name := range Truncate(names, o.opts.Limit) {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		res, ok, err := o.resolveOne(ctx, name, sink)
		if err != nil {
			return report, err
		}
		if ok {
			res.Status, res.Detail = o.register(ctx, res.MBID, profiles)
			o.logResult(res)
		}
		if err := o.record(report, res); err != nil {
			return report, err
		}
	}
	return report, nil
}

// resolveOne resolves name and writes its MBID to sink. ok is false when
// the name ended UNRESOLVED or ERROR; err is set only when sink failed.
func (o *Orchestrator) resolveOne(ctx context.Context, name string, sink MBIDSink) (Result, bool, error) {
	res := Result{Identifier: name, Name: name}
	o.logger.Debug("resolving", slog.String("artist", name))

	artist, err := o.resolver.Resolve(ctx, name)
	if err != nil {
		res.Status = StatusError
		res.Detail = "unresolved: " + err.Error()
		o.logResult(res)
		return res, false, nil
	}
	if !artist.Resolved() {
		res.Status = StatusUnresolved
		res.Detail = artist.Describe()
		o.logResult(res)
		return res, false, nil
	}

	res.MBID = artist.MBID
	res.Detail = artist.Describe()
	if sink != nil {
		if _, err := sink.WriteMBID(artist.MBID); err != nil {
			return res, false, err
		}
	}
	o.logger.Info("resolved",
		slog.String("artist", name),
		slog.String("mbid", artist.MBID),
		slog.String("match", res.Detail))
	return res, true, nil
}

// register adds one MBID to Lidarr and returns its terminal status.
func (o *Orchestrator) register(ctx context.Context, mbid string, profiles lidarr.ProfileSet) (Status, string) {
	if o.registrar == nil {
		return StatusError, "no lidarr client configured"
	}
	o.logger.Debug("registering", slog.String("mbid", mbid))

	existing, err := o.registrar.FindArtistByMBID(ctx, mbid)
	if err != nil {
		return StatusError, err.Error()
	}
	if existing != nil {
		return StatusAlreadyExists, fmt.Sprintf("%s (id %d)", existing.ArtistName, existing.ID)
	}

	if o.opts.DryRun {
		found, err := o.registrar.LookupArtist(ctx, mbid)
		if err != nil {
			return StatusError, err.Error()
		}
		if found.ID > 0 {
			return StatusAlreadyExists, fmt.Sprintf("%s (id %d)", found.ArtistName, found.ID)
		}
		return StatusSkipped, "dry run: would add " + found.ArtistName
	}

	created, err := o.registrar.CreateArtist(ctx, lidarr.AddArtistRequest{
		MBID:              mbid,
		RootFolder:        o.opts.RootFolder,
		QualityProfileID:  profiles.QualityProfileID,
		MetadataProfileID: profiles.MetadataProfileID,
		Monitor:           o.opts.Monitor,
	})
	if err != nil {
		var conflict *lidarr.ConflictError
		if errors.As(err, &conflict) {
			return StatusAlreadyExists, conflict.Message
		}
		return StatusError, err.Error()
	}

	detail := fmt.Sprintf("%s (id %d)", created.ArtistName, created.ID)
	if o.opts.SearchMissing {
		if _, err := o.registrar.TriggerMissingSearch(ctx, created.ID); err != nil {
			o.logger.Warn("missing-album search not queued",
				slog.String("mbid", mbid),
				slog.String("error", err.Error()))
			detail += "; search not queued: " + err.Error()
		} else {
			detail += "; search queued"
		}
	}
	return StatusAdded, detail
}

func (o *Orchestrator) profileSet(ctx context.Context) (lidarr.ProfileSet, error) {
	if o.profiles == nil {
		return lidarr.ProfileSet{
			QualityProfileID:  o.opts.QualityProfileID,
			MetadataProfileID: o.opts.MetadataProfileID,
		}, nil
	}
	set, err := o.profiles.Resolve(ctx, o.opts.QualityProfileID, o.opts.MetadataProfileID, o.opts.UseDefaultProfiles)
	if err != nil {
		return lidarr.ProfileSet{}, fmt.Errorf("resolving profiles: %w", err)
	}
	return set, nil
}

// record adds res to the report and streams it to the result sink.
func (o *Orchestrator) record(report *Report, res Result) error {
	report.Add(res)
	if o.results == nil {
		return nil
	}
	if err := o.results.WriteResult(res); err != nil {
		return fmt.Errorf("streaming report: %w", err)
	}
	return nil
}

func (o *Orchestrator) newReport() *Report {
	return &Report{RunID: o.opts.RunID, StartedAt: time.Now()}
}

func (o *Orchestrator) finish(r *Report) {
	r.FinishedAt = time.Now()
	s := r.Summary()
	o.logger.Info("run finished",
		slog.Int("total", s.Total),
		slog.Int("added", s.Added),
		slog.Int("existing", s.Existing),
		slog.Int("skipped", s.Skipped),
		slog.Int("errors", s.Errors),
		slog.Int("unresolved", s.Unresolved),
		slog.Duration("elapsed", r.FinishedAt.Sub(r.StartedAt)))
}

func (o *Orchestrator) logResult(res Result) {
	attrs := []any{
		slog.String("identifier", res.Identifier),
		slog.String("status", string(res.Status)),
		slog.String("detail", res.Detail),
	}
	if res.Status == StatusError {
		o.logger.Warn("artist failed", attrs...)
		return
	}
	o.logger.Info("artist done", attrs...)
}
