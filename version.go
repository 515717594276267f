package arbor

// Version is the release version, overridable at build time via
// -ldflags "-X github.com/arborlabs/arbor.Version=...".
var Version = "0.1.0"
