package emdd

// Version is overridden at build time with -ldflags "-X github.com/MrWalshy/emdd.Version=...".
var Version = "0.1.0-dev"
