package konanc

// Exported for testing.
var (
	BuildArgs    = buildArgs
	ParseVersion = parseVersion
)
