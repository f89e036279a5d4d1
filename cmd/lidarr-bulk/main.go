package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/sydlexius/lidarr-bulk/internal/config"
	"github.com/sydlexius/lidarr-bulk/internal/logging"
	"github.com/sydlexius/lidarr-bulk/internal/version"
)

// Exit codes.
const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

const usage = `Usage: lidarr-bulk <command> [flags] [input]

Commands:
  resolve   resolve artist names to MusicBrainz IDs
  add       add artists to Lidarr from an MBID list
  bulk      resolve names and add them to Lidarr in one pass
  export-spotify
            write followed and saved-album artists from Spotify to the artists file
  version   print the version

Run "lidarr-bulk <command> --help" for the command's flags.
`

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout io.Writer, stderr *os.File) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return exitUsage
	}

	var mode config.Mode
	switch args[0] {
	case "resolve":
		mode = config.ModeResolve
	case "add":
		mode = config.ModeAdd
	case "bulk":
		mode = config.ModeBulk
	case "export-spotify":
		mode = config.ModeExportSpotify
	case "version", "--version":
		fmt.Fprintf(stdout, "lidarr-bulk %s (%s)\n", version.Version, version.Commit)
		return exitOK
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return exitOK
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return exitUsage
	}

	fl, err := parseFlags(mode, args[1:], stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitUsage
	}

	cfg, err := config.Load(fl.configPath, ".env")
	if err != nil {
		fmt.Fprintf(stderr, "error: loading config: %v\n", err)
		return exitUsage
	}
	fl.apply(cfg)
	if err := cfg.Validate(mode); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitUsage
	}

	logManager, logger := logging.NewManager(logging.Config{
		Level:          cfg.Logging.Level,
		Format:         cfg.Logging.Format,
		FilePath:       cfg.Logging.File,
		FileMaxSizeMB:  cfg.Logging.MaxSizeMB,
		FileMaxFiles:   cfg.Logging.MaxFiles,
		FileMaxAgeDays: cfg.Logging.MaxAgeDays,
	}, stderr)
	defer logManager.Close() //nolint:errcheck
	slog.SetDefault(logger)

	logger.Info("starting lidarr-bulk",
		slog.String("version", version.Version),
		slog.String("commit", version.Commit),
		slog.String("command", string(mode)))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if mode == config.ModeExportSpotify {
		if err := exportSpotify(ctx, cfg, stdout, stderr, logger); err != nil {
			logger.Error("spotify export failed", slog.String("error", err.Error()))
			return exitFailed
		}
		return exitOK
	}

	report, err := execute(ctx, mode, cfg, fl.input, logger)
	if report != nil {
		fmt.Fprint(stdout, report.SummaryLine())
	}
	if err != nil {
		var cfgErr *config.Error
		if errors.As(err, &cfgErr) {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return exitUsage
		}
		logger.Error("run aborted", slog.String("error", err.Error()))
		return exitFailed
	}
	if report.Failed() {
		return exitFailed
	}
	return exitOK
}

// flags holds the command line. Only flags the user actually set
// override the loaded configuration.
type flags struct {
	fs   *pflag.FlagSet
	mode config.Mode

	configPath         string
	input              string
	output             string
	report             string
	appendOut          bool
	limit              int
	dryRun             bool
	interval           float64
	qualityProfileID   int
	metadataProfileID  int
	useDefaultProfiles bool
	monitor            string
	searchMissing      bool
	lidarrURL          string
	apiKey             string
	root               string
	logLevel           string
	logFormat          string
}

// flagAliases maps the alternate spellings accepted on the command line.
var flagAliases = map[string]string{
	"mbids-output": "output",
	"lidarr-root":  "root",
	"mb-interval":  "interval",
}

func parseFlags(mode config.Mode, args []string, stderr io.Writer) (*flags, error) {
	f := &flags{mode: mode}
	fs := pflag.NewFlagSet("lidarr-bulk "+string(mode), pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		if canonical, ok := flagAliases[name]; ok {
			name = canonical
		}
		return pflag.NormalizedName(name)
	})
	f.fs = fs

	fs.StringVar(&f.configPath, "config", "config.yaml", "path to YAML config file")
	fs.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error")
	fs.StringVar(&f.logFormat, "log-format", "", "log format: text, json, auto")

	if mode == config.ModeExportSpotify {
		fs.StringVarP(&f.output, "output", "o", "", "artists file to write (default: the configured artists file)")
		fs.BoolVar(&f.dryRun, "dry-run", false, "only count artists and albums, write nothing")
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		if fs.NArg() > 0 {
			return nil, fmt.Errorf("export-spotify takes no input file, got %d", fs.NArg())
		}
		return f, nil
	}

	fs.StringVarP(&f.input, "input", "i", "", "input file (default: artists file, or the MBID file for add)")
	fs.StringVarP(&f.output, "output", "o", "", "MBID output file (alias --mbids-output)")
	if mode == config.ModeResolve {
		fs.StringVar(&f.report, "report", "", "write a resolution report here (default: resolve_report setting, none if unset)")
	} else {
		fs.StringVar(&f.report, "report", "", "run report path")
	}
	fs.IntVar(&f.limit, "limit", 0, "only process the first N entries (0 = all)")

	if mode != config.ModeAdd {
		fs.BoolVar(&f.appendOut, "append", false, "append to the MBID output file instead of replacing it")
		fs.Float64Var(&f.interval, "interval", 1.0, "minimum seconds between MusicBrainz requests (alias --mb-interval)")
	}
	if mode != config.ModeResolve {
		fs.BoolVar(&f.dryRun, "dry-run", false, "look up only, never add")
		fs.IntVar(&f.qualityProfileID, "quality-profile-id", 0, "quality profile ID (0 = default)")
		fs.IntVar(&f.metadataProfileID, "metadata-profile-id", 0, "metadata profile ID (0 = default)")
		fs.BoolVar(&f.useDefaultProfiles, "use-default-profiles", false, "use Lidarr's default profiles even when IDs are given")
		fs.StringVar(&f.monitor, "monitor", "", "monitor option: all, missing, existing, none, future, latest, first")
		fs.BoolVar(&f.searchMissing, "search-missing", false, "search for missing albums after adding")
		fs.StringVar(&f.lidarrURL, "lidarr-url", "", "Lidarr base URL")
		fs.StringVar(&f.apiKey, "api-key", "", "Lidarr API key")
		fs.StringVar(&f.root, "root", "", "Lidarr root folder (alias --lidarr-root)")
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	switch fs.NArg() {
	case 0:
	case 1:
		if f.changed("input") {
			return nil, errors.New("input given both as argument and --input")
		}
		f.input = fs.Arg(0)
	default:
		return nil, fmt.Errorf("expected at most one input file, got %d", fs.NArg())
	}
	return f, nil
}

func (f *flags) changed(name string) bool {
	fl := f.fs.Lookup(name)
	return fl != nil && fl.Changed
}

// apply overrides cfg with explicitly set flags.
func (f *flags) apply(cfg *config.Config) {
	if f.changed("output") {
		if f.mode == config.ModeExportSpotify {
			cfg.Import.ArtistsFile = f.output
		} else {
			cfg.Import.MBIDsOutput = f.output
		}
	}
	if f.changed("report") {
		if f.mode == config.ModeResolve {
			cfg.Import.ResolveReport = f.report
		} else {
			cfg.Import.Report = f.report
		}
	}
	if f.changed("append") {
		cfg.Import.Append = f.appendOut
	}
	if f.changed("limit") {
		cfg.Import.Limit = f.limit
	}
	if f.changed("dry-run") {
		cfg.Import.DryRun = f.dryRun
	}
	if f.changed("interval") {
		cfg.MusicBrainz.IntervalSeconds = f.interval
	}
	if f.changed("quality-profile-id") {
		cfg.Lidarr.QualityProfileID = f.qualityProfileID
	}
	if f.changed("metadata-profile-id") {
		cfg.Lidarr.MetadataProfileID = f.metadataProfileID
	}
	if f.changed("use-default-profiles") {
		cfg.Lidarr.UseDefaultProfiles = f.useDefaultProfiles
	}
	if f.changed("monitor") {
		cfg.Lidarr.Monitor = f.monitor
	}
	if f.changed("search-missing") {
		cfg.Lidarr.SearchMissing = f.searchMissing
	}
	if f.changed("lidarr-url") {
		cfg.Lidarr.URL = f.lidarrURL
	}
	if f.changed("api-key") {
		cfg.Lidarr.APIKey = f.apiKey
	}
	if f.changed("root") {
		cfg.Lidarr.RootFolder = f.root
	}
	if f.changed("log-level") {
		cfg.Logging.Level = f.logLevel
	}
	if f.changed("log-format") {
		cfg.Logging.Format = f.logFormat
	}
}
