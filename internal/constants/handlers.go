// Package constants provides shared constants used across the codebase.
package constants

// Event channel constants
const (
	// EventChannelBuffer is the buffer size for event channels
	EventChannelBuffer = 100
)

// Scan job constants
const (
	// MaxPhotosPerScan is the largest photo set accepted by the HTTP API in one request
	MaxPhotosPerScan = 10000

	// FinishedJobRetention is how many finished scan jobs are kept for status queries
	FinishedJobRetention = 50
)
