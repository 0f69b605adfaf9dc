package reconcile

import "errors"

var (
	// ErrBusy rejects a second upload while one is being processed.
	ErrBusy = errors.New("a document is already being processed")
	// ErrReviewActive rejects an upload while a review is open; commit or
	// cancel it first.
	ErrReviewActive = errors.New("a review session is already active")
	ErrNotReviewing = errors.New("no review session is active")
	// ErrUnknownCandidate is returned for a (search term, candidate) pair the
	// current lines do not contain.
	ErrUnknownCandidate = errors.New("unknown search term or candidate")
	ErrInvalidFilter    = errors.New("invalid filter")
	// ErrDiscarded reports that a processing result arrived after the session
	// it belonged to was cancelled or replaced. No state was changed.
	ErrDiscarded = errors.New("stale processing result discarded")
)
