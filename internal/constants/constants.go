// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Match classification constants
const (
	// DefaultAcceptThreshold is the minimum similarity for a photo to count as a match
	DefaultAcceptThreshold = 0.55

	// DefaultStrongThreshold is the minimum similarity for a match to be labeled strong
	DefaultStrongThreshold = 0.70
)

// Scan constants
const (
	// DefaultBatchSize is the number of photos compared between two progress checkpoints
	DefaultBatchSize = 15

	// DefaultScanWorkers is the number of comparisons run in parallel within a batch.
	// 1 keeps comparisons strictly sequential.
	DefaultScanWorkers = 1

	// MaxScanWorkers caps the per-batch worker pool
	MaxScanWorkers = 32
)

// Profile constants
const (
	// DefaultMinQuality is the quality floor used by profile optimization when none is given
	DefaultMinQuality = 0.5
)

// Comparison primitive constants
const (
	// ReferenceTopK is the number of closest reference faces averaged into a score
	ReferenceTopK = 3

	// ReferenceVoteSimilarity is the similarity at which a reference photo votes for a match
	ReferenceVoteSimilarity = 0.5

	// MaxImageSize is the maximum dimension (width or height) sent to vision models
	MaxImageSize = 800

	// MaxImageBytes bounds photo downloads (50MB)
	MaxImageBytes = 50 << 20
)
