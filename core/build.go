package core

// Version is the current version of the server. This is injected at
// build-time with -ldflags. Do not change.
var Version = "0.0.0"

// GitSHA is the git commit hash of the build. Injected at build-time.
var GitSHA = "0000000"
