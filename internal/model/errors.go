package model

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Sentinel errors shared across the engine.
var (
	// ErrAuthentication means a decryption integrity check failed: wrong
	// passphrase or tampered ciphertext. No partial plaintext is ever
	// returned alongside it.
	ErrAuthentication = eris.New("authentication failed: wrong passphrase or corrupted data")

	// ErrProfileHasData means a commit was attempted for a profile that
	// already holds committed genotype data and replace was not requested.
	ErrProfileHasData = eris.New("profile already has committed genotype data")

	// ErrImportInFlight means a second import transaction was begun for a
	// profile that already has one running.
	ErrImportInFlight = eris.New("an import is already in flight for this profile")

	// ErrNoGenotypeData means the profile has no committed import.
	ErrNoGenotypeData = eris.New("no genotype data committed for profile")

	// ErrNoCacheBuilt means no clinical cache version has been built yet.
	ErrNoCacheBuilt = eris.New("no clinical variant cache has been built")
)

// RowError describes one malformed line in a raw export. Row errors are
// counted and recovered locally; they never abort a parse pass.
type RowError struct {
	Line   int
	Reason string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// AmbiguousSourceError means an archive held more than one candidate data
// file and the caller supplied no member selection. The ingestor never
// guesses; the choice belongs to the caller.
type AmbiguousSourceError struct {
	Members []string
}

func (e *AmbiguousSourceError) Error() string {
	return fmt.Sprintf("archive contains %d candidate data files (%s); member selection required",
		len(e.Members), strings.Join(e.Members, ", "))
}

// StorageError wraps a durable-write failure. The import transaction that
// hits one transitions to Failed with a guaranteed discard.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// CacheBuildError means the clinical reference dump could not be read at
// all. Fatal to the build only; prior cache versions and genotype data are
// untouched.
type CacheBuildError struct {
	Reason string
	Err    error
}

func (e *CacheBuildError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cache build: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("cache build: %s", e.Reason)
}

func (e *CacheBuildError) Unwrap() error { return e.Err }
