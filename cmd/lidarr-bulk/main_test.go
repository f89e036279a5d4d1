package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sydlexius/lidarr-bulk/internal/config"
)

const radioheadMBID = "a74b1b7f-71a5-4011-9441-d0b5e4122711"

func devNull(t *testing.T) *os.File {
	t.Helper()
	f, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestParseFlags_Aliases(t *testing.T) {
	fl, err := parseFlags(config.ModeBulk, []string{
		"--mbids-output", "out/ids.txt",
		"--lidarr-root", "/music",
		"--mb-interval", "2",
		"--monitor", "future",
		"names.txt",
	}, io.Discard)
	require.NoError(t, err)

	cfg := config.Default()
	fl.apply(cfg)
	assert.Equal(t, "out/ids.txt", cfg.Import.MBIDsOutput)
	assert.Equal(t, "/music", cfg.Lidarr.RootFolder)
	assert.Equal(t, 2.0, cfg.MusicBrainz.IntervalSeconds)
	assert.Equal(t, "future", cfg.Lidarr.Monitor)
	assert.Equal(t, "names.txt", fl.input)
}

func TestParseFlags_UnsetFlagsKeepConfig(t *testing.T) {
	fl, err := parseFlags(config.ModeAdd, []string{"--limit", "3"}, io.Discard)
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Lidarr.APIKey = "from-env"
	cfg.Lidarr.Monitor = "missing"
	fl.apply(cfg)

	assert.Equal(t, 3, cfg.Import.Limit)
	assert.Equal(t, "from-env", cfg.Lidarr.APIKey)
	assert.Equal(t, "missing", cfg.Lidarr.Monitor)
}

func TestParseFlags_ModeSpecific(t *testing.T) {
	_, err := parseFlags(config.ModeResolve, []string{"--api-key", "x"}, io.Discard)
	assert.Error(t, err, "resolve has no Lidarr flags")

	_, err = parseFlags(config.ModeAdd, []string{"--append"}, io.Discard)
	assert.Error(t, err, "add has no MBID output")

	_, err = parseFlags(config.ModeBulk, []string{"a.txt", "b.txt"}, io.Discard)
	assert.Error(t, err)

	_, err = parseFlags(config.ModeBulk, []string{"--input", "a.txt", "b.txt"}, io.Discard)
	assert.Error(t, err)
}

func TestParseFlags_ReportTargetsByMode(t *testing.T) {
	fl, err := parseFlags(config.ModeResolve, []string{"--report", "resolve.tsv"}, io.Discard)
	require.NoError(t, err)
	cfg := config.Default()
	fl.apply(cfg)
	assert.Equal(t, "resolve.tsv", cfg.Import.ResolveReport)
	assert.Equal(t, "output/lidarr_output.txt", cfg.Import.Report)

	fl, err = parseFlags(config.ModeAdd, []string{"--report", "add.tsv"}, io.Discard)
	require.NoError(t, err)
	cfg = config.Default()
	fl.apply(cfg)
	assert.Equal(t, "add.tsv", cfg.Import.Report)
	assert.Empty(t, cfg.Import.ResolveReport)
}

func TestParseFlags_ExportSpotify(t *testing.T) {
	fl, err := parseFlags(config.ModeExportSpotify, []string{"-o", "mine.txt", "--dry-run"}, io.Discard)
	require.NoError(t, err)
	cfg := config.Default()
	fl.apply(cfg)
	assert.Equal(t, "mine.txt", cfg.Import.ArtistsFile)
	assert.Equal(t, "output/mbids.txt", cfg.Import.MBIDsOutput)
	assert.True(t, cfg.Import.DryRun)

	_, err = parseFlags(config.ModeExportSpotify, []string{"--api-key", "x"}, io.Discard)
	assert.Error(t, err)
	_, err = parseFlags(config.ModeExportSpotify, []string{"artists.txt"}, io.Discard)
	assert.Error(t, err)
}

func TestRun_UsageErrors(t *testing.T) {
	var out bytes.Buffer
	assert.Equal(t, exitUsage, run(context.Background(), nil, &out, devNull(t)))
	assert.Equal(t, exitUsage, run(context.Background(), []string{"frobnicate"}, &out, devNull(t)))
	assert.Equal(t, exitUsage, run(context.Background(), []string{"bulk", "--bogus"}, &out, devNull(t)))

	assert.Equal(t, exitOK, run(context.Background(), []string{"version"}, &out, devNull(t)))
	assert.Contains(t, out.String(), "lidarr-bulk")
}

func TestRun_MissingAPIKeyIsConfigError(t *testing.T) {
	t.Setenv("LIDARR_API_KEY", "")
	dir := t.TempDir()
	code := run(context.Background(), []string{
		"add",
		"--config", filepath.Join(dir, "none.yaml"),
		"--monitor", "sometimes",
	}, io.Discard, devNull(t))
	assert.Equal(t, exitUsage, code)
}

func TestRun_BulkEndToEnd(t *testing.T) {
	var mbCalls atomic.Int32
	mb := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mbCalls.Add(1)
		assert.Equal(t, "/artist", r.URL.Path)
		assert.Contains(t, r.Header.Get("User-Agent"), "lidarr-bulk/")
		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(r.URL.Query().Get("query"), "Radiohead") {
			_, _ = w.Write([]byte(`{"count":1,"artists":[{"id":"` + radioheadMBID + `","name":"Radiohead","score":100}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"count":0,"artists":[]}`))
	}))
	defer mb.Close()

	var creates atomic.Int32
	lid := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/api/v1/system/status":
			_, _ = w.Write([]byte(`{"version":"2.5.0"}`))
		case r.URL.Path == "/api/v1/rootfolder":
			_, _ = w.Write([]byte(`[{"id":1,"path":"/music"}]`))
		case r.URL.Path == "/api/v1/qualityprofile":
			_, _ = w.Write([]byte(`[{"id":1,"name":"Any"},{"id":3,"name":"Default"}]`))
		case r.URL.Path == "/api/v1/metadataprofile":
			_, _ = w.Write([]byte(`[{"id":4,"name":"Standard"}]`))
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/artist":
			_, _ = w.Write([]byte(`[]`))
		case r.URL.Path == "/api/v1/artist/lookup":
			_, _ = w.Write([]byte(`[{"artistName":"Radiohead","foreignArtistId":"` + radioheadMBID + `"}]`))
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/artist":
			creates.Add(1)
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":1,"artistName":"Radiohead","foreignArtistId":"` + radioheadMBID + `"}`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer lid.Close()

	dir := t.TempDir()
	input := filepath.Join(dir, "artists.txt")
	require.NoError(t, os.WriteFile(input, []byte("Radiohead\nXyzzyplugh123NotARealBand\n"), 0o600))
	mbids := filepath.Join(dir, "out", "mbids.txt")
	reportPath := filepath.Join(dir, "out", "report.tsv")

	t.Setenv("MUSICBRAINZ_URL", mb.URL)
	t.Setenv("RETRY_BASE_DELAY", "1ms")
	t.Setenv("RETRY_MAX_DELAY", "2ms")

	var out bytes.Buffer
	code := run(context.Background(), []string{
		"bulk",
		"--config", filepath.Join(dir, "none.yaml"),
		"--interval", "0",
		"--lidarr-url", lid.URL,
		"--api-key", "secret",
		"--root", "/music",
		"--use-default-profiles",
		"-o", mbids,
		"--report", reportPath,
		"--log-format", "json",
		input,
	}, &out, devNull(t))

	assert.Equal(t, exitOK, code)
	assert.Equal(t, int32(2), mbCalls.Load())
	assert.Equal(t, int32(1), creates.Load())
	assert.Contains(t, out.String(), "SUMMARY\ttotal=2\tadded=1")

	data, err := os.ReadFile(mbids)
	require.NoError(t, err)
	assert.Equal(t, "lidarr:"+radioheadMBID+"\n", string(data))

	rep, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(rep)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "Radiohead\tADDED\t"))
	assert.Equal(t, "Xyzzyplugh123NotARealBand\tUNRESOLVED\tno match", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "SUMMARY\t"))
}

func TestRun_RootFolderMismatchIsConfigError(t *testing.T) {
	lid := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/system/status":
			_, _ = w.Write([]byte(`{"version":"2.5.0"}`))
		case "/api/v1/rootfolder":
			_, _ = w.Write([]byte(`[{"id":1,"path":"/data/music"}]`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer lid.Close()

	dir := t.TempDir()
	input := filepath.Join(dir, "mbids.txt")
	require.NoError(t, os.WriteFile(input, []byte("lidarr:"+radioheadMBID+"\n"), 0o600))

	code := run(context.Background(), []string{
		"add",
		"--config", filepath.Join(dir, "none.yaml"),
		"--lidarr-url", lid.URL,
		"--api-key", "secret",
		"--root", "/music",
		"--report", filepath.Join(dir, "report.tsv"),
		input,
	}, io.Discard, devNull(t))
	assert.Equal(t, exitUsage, code)

	_, err := os.Stat(filepath.Join(dir, "report.tsv"))
	assert.True(t, os.IsNotExist(err))
}

func musicBrainzStub(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(r.URL.Query().Get("query"), "Radiohead") {
			_, _ = w.Write([]byte(`{"count":1,"artists":[{"id":"` + radioheadMBID + `","name":"Radiohead","score":100}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"count":0,"artists":[]}`))
	}))
}

func TestRun_ResolveReportSetting(t *testing.T) {
	mb := musicBrainzStub(t)
	defer mb.Close()

	dir := t.TempDir()
	input := filepath.Join(dir, "artists.txt")
	require.NoError(t, os.WriteFile(input, []byte("Radiohead\nXyzzyplugh123NotARealBand\n"), 0o600))
	lidarrReport := filepath.Join(dir, "lidarr_output.txt")
	resolveReport := filepath.Join(dir, "resolve.tsv")

	t.Setenv("MUSICBRAINZ_URL", mb.URL)
	t.Setenv("LIDARR_REPORT", lidarrReport)
	t.Setenv("RESOLVE_REPORT", "")

	args := []string{
		"resolve",
		"--config", filepath.Join(dir, "none.yaml"),
		"--interval", "0",
		"-o", filepath.Join(dir, "mbids.txt"),
		input,
	}
	require.Equal(t, exitOK, run(context.Background(), args, io.Discard, devNull(t)))
	_, err := os.Stat(lidarrReport)
	assert.True(t, os.IsNotExist(err), "resolve never writes the registration report")

	t.Setenv("RESOLVE_REPORT", resolveReport)
	require.Equal(t, exitOK, run(context.Background(), args, io.Discard, devNull(t)))
	rep, err := os.ReadFile(resolveReport)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(rep)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "Radiohead\tRESOLVED\tlidarr:"+radioheadMBID))
	assert.True(t, strings.HasPrefix(lines[2], "SUMMARY\ttotal=2"))
	_, err = os.Stat(lidarrReport)
	assert.True(t, os.IsNotExist(err))
}

func TestRun_ExportSpotify(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer cached-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/me/following":
			_, _ = w.Write([]byte(`{"artists":{"items":[{"name":"Radiohead"},{"name":"Björk"}],"next":null,"cursors":{}}}`))
		case "/me/albums":
			_, _ = w.Write([]byte(`{"items":[{"album":{"name":"Mezzanine","artists":[{"name":"Massive Attack"}]}},
				{"album":{"name":"OK Computer","artists":[{"name":"Radiohead"}]}}],"next":null}`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer api.Close()

	dir := t.TempDir()
	cache := filepath.Join(dir, ".cache-alice")
	require.NoError(t, os.WriteFile(cache,
		[]byte(`{"access_token":"cached-token","token_type":"Bearer","refresh_token":"r","expiry":"2999-01-01T00:00:00Z"}`), 0o600))
	artists := filepath.Join(dir, "out", "artists.txt")

	t.Setenv("SPOTIFY_CLIENT_ID", "id")
	t.Setenv("SPOTIFY_CLIENT_SECRET", "secret")
	t.Setenv("SPOTIFY_TOKEN_CACHE", cache)
	t.Setenv("SPOTIFY_API_URL", api.URL)

	var out bytes.Buffer
	code := run(context.Background(), []string{
		"export-spotify",
		"--config", filepath.Join(dir, "none.yaml"),
		"--dry-run",
		"-o", artists,
	}, &out, devNull(t))
	require.Equal(t, exitOK, code)
	assert.Equal(t, "Found 3 unique artists and 2 unique albums\n", out.String())
	_, err := os.Stat(artists)
	assert.True(t, os.IsNotExist(err))

	out.Reset()
	code = run(context.Background(), []string{
		"export-spotify",
		"--config", filepath.Join(dir, "none.yaml"),
		"-o", artists,
	}, &out, devNull(t))
	require.Equal(t, exitOK, code)
	assert.Equal(t, "Wrote 3 artists and 2 albums to "+artists+"\n", out.String())
	data, err := os.ReadFile(artists)
	require.NoError(t, err)
	assert.Equal(t, "Björk\nMassive Attack\nRadiohead\n", string(data))
}

func TestRun_ExportSpotifyNeedsClient(t *testing.T) {
	t.Setenv("SPOTIFY_CLIENT_ID", "")
	t.Setenv("SPOTIFY_CLIENT_SECRET", "")
	code := run(context.Background(), []string{
		"export-spotify", "--config", filepath.Join(t.TempDir(), "none.yaml"),
	}, io.Discard, devNull(t))
	assert.Equal(t, exitUsage, code)
}
