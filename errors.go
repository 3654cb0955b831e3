package assetcache

import (
	"errors"
	"fmt"
)

var (
	// ErrNotInstalled is returned by Activate before a successful Install.
	ErrNotInstalled = errors.New("assetcache: generation not installed")
	// ErrNoGeneration is returned by New when Options.Generation is empty.
	ErrNoGeneration = errors.New("assetcache: generation is required")
	// ErrGenerationTooLong is returned by New for a generation over 65535 bytes.
	ErrGenerationTooLong = errors.New("assetcache: generation too long")
	// ErrNoStore is returned by New when Options.Store is nil.
	ErrNoStore = errors.New("assetcache: store is required")
	// ErrBadStatus marks a manifest fetch answered with a non-2xx status.
	ErrBadStatus = errors.New("assetcache: unexpected status")
)

// InstallError reports why Install committed nothing. URL names the asset
// that failed; it is empty for failures of the store itself.
type InstallError struct {
	Generation string
	URL        string
	Err        error
}

func (e *InstallError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("install %q: %v", e.Generation, e.Err)
	}
	return fmt.Sprintf("install %q: %s: %v", e.Generation, e.URL, e.Err)
}

func (e *InstallError) Unwrap() error { return e.Err }
