package version

// Version is overridden at build time with -ldflags "-X blastdbbuilder/internal/version.Version=...".
var Version = "1.0.0"
