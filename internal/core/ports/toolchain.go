package ports

import "context"

// ToolchainInfo identifies the concrete compiler installation a build runs
// with. Fingerprint is a content hash of the compiler binary so two installs
// of the same nominal version never share cache entries by accident.
type ToolchainInfo struct {
	Version     string
	Fingerprint string
	BinaryPath  string
}

// ToolchainResolver locates the compiler installation for a pinned version.
//
//go:generate mockgen -source=toolchain.go -destination=mocks/mock_toolchain.go -package=mocks
type ToolchainResolver interface {
	// Resolve finds the installation matching the manifest's pinned version.
	Resolve(ctx context.Context, version string) (*ToolchainInfo, error)
}
