package version

// Value is set at build time with
// -ldflags "-X github.com/fabian4/devproxy/internal/version.Value=v1.2.3".
var Value = "dev"
