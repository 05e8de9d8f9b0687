// Package buildinfo exposes version information injected at build time:
//
//	go build -ldflags "-X github.com/yndnr/chathub-go/internal/infra/buildinfo.Version=v1.2.0 \
//	  -X github.com/yndnr/chathub-go/internal/infra/buildinfo.Commit=$(git rev-parse --short HEAD)"
//
// Values not set by ldflags fall back to the module build info recorded by
// the Go toolchain.
package buildinfo
