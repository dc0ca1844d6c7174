// Package ports defines the core interfaces for the application.
package ports

import (
	"context"

	"go.trai.ch/kiln/internal/core/domain"
)

// CompileRequest carries everything the compiler driver needs to build one
// unit into a staging directory.
type CompileRequest struct {
	// Unit is the build unit being compiled.
	Unit *domain.BuildUnit
	// Sources are the source files to compile, in deterministic order.
	Sources []string
	// Target is the compilation target triple.
	Target domain.Target
	// Profile selects optimization and test mode.
	Profile domain.Profile
	// Libraries are paths to dependency klibs, path deps first then external.
	Libraries []string
	// PluginJars are compiler plugin JARs to load, in lockfile order.
	PluginJars []string
	// OutDir is the staging directory the artifact must be written into.
	OutDir string
}

// CompileResult reports the outcome of a successful driver invocation.
type CompileResult struct {
	// ArtifactPath is the produced artifact inside OutDir.
	ArtifactPath string
	// Diagnostics holds compiler warnings emitted during the build.
	Diagnostics string
}

// CompilerDriver abstracts the Kotlin/Native compiler invocation.
//
//go:generate go run go.uber.org/mock/mockgen -source=compiler.go -destination=mocks/mock_compiler.go -package=mocks
type CompilerDriver interface {
	// Compile builds one unit. A non-zero compiler exit reports
	// domain.ErrCompilationFailed with the captured output attached.
	Compile(ctx context.Context, req CompileRequest) (*CompileResult, error)
}
