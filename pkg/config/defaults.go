package config

// Repository defaults.
const (
	DefaultRef = "HEAD"
)

// Corpus defaults.
const (
	DefaultLang = "en"
)

// Diff defaults.
const (
	DefaultContextLines  = 3
	DefaultBlobCacheSize = "64MiB"
)

// Output defaults.
const (
	DefaultOutputDir = "corpora"
)
