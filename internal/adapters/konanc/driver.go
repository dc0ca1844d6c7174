// Package konanc drives the Kotlin/Native compiler.
package konanc

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"path/filepath"

	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.CompilerDriver = (*Driver)(nil)

// Driver implements ports.CompilerDriver by invoking the konanc binary.
type Driver struct {
	toolchain ports.ToolchainResolver
	logger    ports.Logger
}

// NewDriver creates a new Driver.
func NewDriver(toolchain ports.ToolchainResolver, logger ports.Logger) *Driver {
	return &Driver{
		toolchain: toolchain,
		logger:    logger,
	}
}

// Compile builds one unit into req.OutDir.
func (d *Driver) Compile(ctx context.Context, req ports.CompileRequest) (*ports.CompileResult, error) {
	if len(req.Sources) == 0 {
		return nil, domain.WithDetail(domain.ErrNoSources, "unit", req.Unit.Name.String())
	}

	info, err := d.toolchain.Resolve(ctx, req.Unit.Manifest.Toolchain.Kotlin)
	if err != nil {
		return nil, err
	}

	outPath := filepath.Join(req.OutDir, req.Unit.OutputName())
	args := buildArgs(req, outPath)

	cmd := exec.CommandContext(ctx, info.BinaryPath, args...) //nolint:gosec // binary path comes from toolchain resolution

	// Compiler output goes to the unit's vertex when one is recording,
	// and is buffered either way for the error report.
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if v := ports.VertexFromContext(ctx); v != nil {
		cmd.Stdout = io.MultiWriter(&stdout, v.Stdout())
		cmd.Stderr = io.MultiWriter(&stderr, v.Stderr())
	}

	if err := cmd.Run(); err != nil {
		exitCode := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		cErr := domain.WithDetail(domain.ErrCompilationFailed, "unit", req.Unit.Name.String())
		cErr = zerr.With(cErr, "exit_code", exitCode)
		return nil, zerr.With(cErr, "output", stderr.String())
	}

	return &ports.CompileResult{
		ArtifactPath: outPath,
		Diagnostics:  stderr.String(),
	}, nil
}

// buildArgs assembles the konanc argument list: sources first, then output,
// target, produce kind, libraries, plugins, and profile flags.
func buildArgs(req ports.CompileRequest, outPath string) []string {
	args := make([]string, 0, len(req.Sources)+2*len(req.Libraries)+8)

	args = append(args, req.Sources...)
	args = append(args, "-o", outPath)
	args = append(args, "-target", req.Target.String())

	if !req.Unit.IsBinary() {
		args = append(args, "-produce", "library")
	}

	for _, lib := range req.Libraries {
		args = append(args, "-library", lib)
	}

	for _, jar := range req.PluginJars {
		args = append(args, "-Xplugin="+jar)
	}

	if req.Profile.IsTest() {
		args = append(args, "-generate-test-runner")
	}
	if req.Profile.IsRelease() {
		args = append(args, "-opt")
	}

	return args
}
