package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/sydlexius/lidarr-bulk/internal/backoff"
	"github.com/sydlexius/lidarr-bulk/internal/bulk"
	"github.com/sydlexius/lidarr-bulk/internal/config"
	"github.com/sydlexius/lidarr-bulk/internal/connection/lidarr"
	"github.com/sydlexius/lidarr-bulk/internal/provider"
	"github.com/sydlexius/lidarr-bulk/internal/provider/musicbrainz"
	"github.com/sydlexius/lidarr-bulk/internal/resolve"
)

// execute wires the components for mode and runs them. The returned report
// is non-nil whenever the run started, including after cancellation. Report
// rows reach disk as each artist finishes.
func execute(ctx context.Context, mode config.Mode, cfg *config.Config, input string, logger *slog.Logger) (*bulk.Report, error) {
	runID := uuid.NewString()
	base := logger
	logger = logger.With(slog.String("run_id", runID))

	retry := backoff.Policy{
		Attempts:  cfg.Retry.Attempts,
		BaseDelay: cfg.Retry.BaseDelay,
		MaxDelay:  cfg.Retry.MaxDelay,
	}

	var (
		resolver  bulk.NameResolver
		registrar bulk.Registrar
		profiles  bulk.ProfileResolver
	)

	if mode != config.ModeAdd {
		limiter := provider.NewRateLimiter(cfg.MusicBrainz.Interval(), logger)
		mb, err := musicbrainz.New(limiter, logger, musicbrainz.Config{
			BaseURL:   cfg.MusicBrainz.BaseURL,
			UserAgent: cfg.MusicBrainz.UserAgent,
			Timeout:   cfg.MusicBrainz.Timeout,
			Retry:     retry,
		})
		if err != nil {
			return nil, err
		}
		resolver = resolve.New(mb, resolve.Policy{
			TieBand:             cfg.MusicBrainz.TieBand,
			MinScore:            cfg.MusicBrainz.MinScore,
			RejectLowConfidence: cfg.MusicBrainz.RejectLowConfidence,
		}, logger)
		logger.Debug("resolver ready", slog.Duration("interval", limiter.Interval()))
	}

	if mode != config.ModeResolve {
		client := lidarr.New(cfg.Lidarr.URL, cfg.Lidarr.APIKey, cfg.Lidarr.Timeout, retry, logger)
		if err := client.TestConnection(ctx); err != nil {
			return nil, fmt.Errorf("connecting to lidarr: %w", err)
		}
		if err := client.ValidateRootFolder(ctx, cfg.Lidarr.RootFolder); err != nil {
			return nil, err
		}
		registrar = client
		profiles = lidarr.NewProfileSelector(client, logger)
	}

	if input == "" {
		input = cfg.Import.ArtistsFile
		if mode == config.ModeAdd {
			input = cfg.Import.MBIDsOutput
		}
	}

	orch := bulk.New(resolver, registrar, profiles, bulk.Options{
		RunID:              runID,
		Limit:              cfg.Import.Limit,
		DryRun:             cfg.Import.DryRun,
		RootFolder:         cfg.Lidarr.RootFolder,
		Monitor:            cfg.Lidarr.Monitor,
		QualityProfileID:   cfg.Lidarr.QualityProfileID,
		MetadataProfileID:  cfg.Lidarr.MetadataProfileID,
		UseDefaultProfiles: cfg.Lidarr.UseDefaultProfiles,
		SearchMissing:      cfg.Lidarr.SearchMissing,
	}, base)

	// Resolve runs have their own report setting so they never clobber the
	// registration report.
	reportPath := cfg.Import.Report
	if mode == config.ModeResolve {
		reportPath = cfg.Import.ResolveReport
	}
	var reportOut *bulk.ReportWriter
	if reportPath != "" {
		reportOut = bulk.NewReportWriter(reportPath)
		orch.ReportTo(reportOut)
	}

	var (
		report *bulk.Report
		runErr error
	)
	switch mode {
	case config.ModeAdd:
		mbids, err := bulk.ReadMBIDsFile(input)
		if err != nil {
			return nil, err
		}
		if len(mbids) == 0 {
			logger.Warn("no MBIDs found", slog.String("input", input))
		}
		report, runErr = orch.RunRegister(ctx, mbids)
	default:
		names, err := bulk.ReadNamesFile(input)
		if err != nil {
			return nil, err
		}
		if len(names) == 0 {
			logger.Warn("no artist names found", slog.String("input", input))
		}
		sink, err := bulk.OpenMBIDWriter(cfg.Import.MBIDsOutput, cfg.Import.Append)
		if err != nil {
			return nil, err
		}
		if mode == config.ModeResolve {
			report, runErr = orch.RunResolve(ctx, names, sink)
		} else {
			report, runErr = orch.RunBulk(ctx, names, sink)
		}
		if err := sink.Close(); err != nil {
			logger.Error("closing MBID output", slog.String("error", err.Error()))
		}
		logger.Info("MBIDs written", slog.String("path", cfg.Import.MBIDsOutput))
	}

	if report == nil {
		if reportOut != nil {
			_ = reportOut.Close()
		}
		return nil, runErr
	}
	if reportOut != nil {
		if err := reportOut.Finish(report); err != nil {
			logger.Error("writing report", slog.String("error", err.Error()))
			if runErr == nil {
				runErr = err
			}
		} else {
			logger.Info("report written", slog.String("path", reportOut.Path()))
		}
	}
	return report, runErr
}
