package konanc

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.ToolchainResolver = (*ToolchainResolver)(nil)

// ToolchainResolver locates the konanc installation. Resolution order is
// KONANC_HOME, then PATH. The result is cached for the process lifetime
// because detection shells out to the compiler.
type ToolchainResolver struct {
	hasher ports.TreeHasher

	mu     sync.Mutex
	cached *ports.ToolchainInfo
}

// NewToolchainResolver creates a new ToolchainResolver.
func NewToolchainResolver(hasher ports.TreeHasher) *ToolchainResolver {
	return &ToolchainResolver{hasher: hasher}
}

// Resolve finds the installation matching the pinned version.
func (r *ToolchainResolver) Resolve(ctx context.Context, version string) (*ports.ToolchainInfo, error) {
	info, err := r.detect(ctx)
	if err != nil {
		return nil, err
	}
	if info.Version != version {
		mErr := domain.WithDetail(domain.ErrToolchainMismatch, "pinned", version)
		return nil, zerr.With(mErr, "installed", info.Version)
	}
	return info, nil
}

func (r *ToolchainResolver) detect(ctx context.Context) (*ports.ToolchainInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cached != nil {
		return r.cached, nil
	}

	path, err := resolveBinaryPath()
	if err != nil {
		return nil, err
	}

	version, err := queryVersion(ctx, path)
	if err != nil {
		return nil, err
	}

	fingerprint, err := r.hasher.HashFile(path)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to fingerprint konanc binary")
	}

	r.cached = &ports.ToolchainInfo{
		Version:     version,
		Fingerprint: fingerprint,
		BinaryPath:  path,
	}
	return r.cached, nil
}

func resolveBinaryPath() (string, error) {
	if home := os.Getenv("KONANC_HOME"); home != "" {
		p := filepath.Join(home, "bin", "konanc")
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
		return "", zerr.With(zerr.New("konanc not found under KONANC_HOME"), "konanc_home", home)
	}

	p, err := exec.LookPath("konanc")
	if err != nil {
		return "", zerr.Wrap(err, "konanc not found in PATH")
	}
	return p, nil
}

func queryVersion(ctx context.Context, path string) (string, error) {
	cmd := exec.CommandContext(ctx, path, "-version") //nolint:gosec // path resolved from KONANC_HOME or PATH
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, "failed to query konanc version"), "path", path)
	}

	version, ok := parseVersion(string(out))
	if !ok {
		return "", zerr.With(zerr.New("unparseable konanc version output"), "output", strings.TrimSpace(string(out)))
	}
	return version, nil
}

// parseVersion extracts a semver-like token from raw `konanc -version`
// output, e.g. "info: kotlinc-native 2.1.0 (JRE 17.0.2+8)".
func parseVersion(raw string) (string, bool) {
	for _, token := range strings.Fields(raw) {
		trimmed := strings.TrimPrefix(token, "v")
		if isSemverLike(trimmed) {
			return trimmed, true
		}
	}
	return "", false
}

func isSemverLike(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return false
	}
	// The patch component may carry a pre-release suffix like "0-beta1".
	patch, _, _ := strings.Cut(parts[2], "-")
	for _, part := range []string{parts[0], parts[1], patch} {
		if part == "" {
			return false
		}
		for _, c := range part {
			if c < '0' || c > '9' {
				return false
			}
		}
	}
	return true
}
