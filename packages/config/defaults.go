package config

// Logging defaults.
const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// Import defaults.
const (
	DefaultImportMaxFileSize = "64MB"
	DefaultImportCalculate   = true
	DefaultImportStyles      = true
)

// Snapshot defaults.
const (
	DefaultSnapshotVerify = true
)

// Bench defaults.
const (
	DefaultBenchRows    = 10_000
	DefaultBenchColumns = 16
	DefaultBenchSeed    = 1
)
