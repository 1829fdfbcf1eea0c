package baton

// Version is the library version, overridable at build time via
// -ldflags "-X github.com/batonlabs/baton.Version=...".
var Version = "0.1.0"
