package version

// Version is set at build time via -ldflags "-X .../internal/version.Version=...".
var Version = "dev"

// Commit is the git commit the binary was built from.
var Commit = "unknown"
