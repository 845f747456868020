package facematch

import (
	"errors"
	"fmt"
)

// Precondition errors. They are returned before any state changes.
var (
	ErrNoProfile          = errors.New("no usable face profile")
	ErrInsufficientPhotos = errors.New("at least 2 usable photos are required")
	ErrEmptyPhotoSet      = errors.New("photo set is empty")
	ErrProfileTooSmall    = errors.New("profile would drop below 2 photos")
	ErrNoPhotosSupplied   = errors.New("no photos supplied")
	ErrProfileExists      = errors.New("face profile already exists")
	ErrInvalidQuality     = errors.New("quality must be within [0,1]")
	ErrInvalidMethod      = errors.New("unknown capture method")
	ErrDuplicatePhotoID   = errors.New("duplicate photo id in photo set")
)

// Scan lifecycle errors.
var (
	ErrScanAlreadyRunning = errors.New("a scan is already running for this owner")
	ErrScanCancelled      = errors.New("scan cancelled")
	ErrProfileVanished    = errors.New("face profile disappeared during scan")
)

// Comparison primitive errors.
var (
	ErrNoFaceDetected  = errors.New("no face detected")
	ErrScoreOutOfRange = errors.New("similarity score outside [0,1]")
)

// PhotoError is a comparison failure for a single photo. It never aborts a scan.
type PhotoError struct {
	PhotoID string
	Err     error
}

func (e *PhotoError) Error() string {
	return fmt.Sprintf("photo %s: %v", e.PhotoID, e.Err)
}

func (e *PhotoError) Unwrap() error {
	return e.Err
}
