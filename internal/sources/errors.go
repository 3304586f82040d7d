// MySetlist - Live Music Tracking and Setlist Archive
// Copyright 2026 swbam
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swbam/mysetlist-s4-sub007

package sources

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/swbam/mysetlist-s4-sub007/internal/models"
)

// ErrNotFound indicates the upstream has no record for the external id.
var ErrNotFound = errors.New("record not found upstream")

// FetchError classifies an upstream failure. Permanent errors (not-found,
// unmappable responses) exhaust a job immediately; transient errors
// (timeouts, 5xx, 429) flow into the retry path.
type FetchError struct {
	Source     models.SyncType
	StatusCode int
	Permanent  bool
	Err        error
}

func (e *FetchError) Error() string {
	class := "transient"
	if e.Permanent {
		class = "permanent"
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s fetch failed (%s, status %d): %v", e.Source, class, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s fetch failed (%s): %v", e.Source, class, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsPermanent reports whether err should exhaust a job without retries.
// Unknown errors (network failures, context deadlines, open circuit
// breakers) default to transient so the retry path gets a chance.
func IsPermanent(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Permanent
	}
	return false
}

// classifyStatus maps an unexpected HTTP status to a FetchError.
func classifyStatus(source models.SyncType, status int) error {
	switch {
	case status == http.StatusNotFound:
		return &FetchError{Source: source, StatusCode: status, Permanent: true, Err: ErrNotFound}
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return &FetchError{Source: source, StatusCode: status, Permanent: true,
			Err: fmt.Errorf("upstream rejected request")}
	default:
		// 401/403 included: auth hiccups recover after a token refresh
		return &FetchError{Source: source, StatusCode: status, Permanent: false,
			Err: fmt.Errorf("unexpected status %d", status)}
	}
}

// transientErr wraps a non-HTTP failure (network, timeout, decode of a
// truncated body) as a transient FetchError.
func transientErr(source models.SyncType, err error) error {
	return &FetchError{Source: source, Permanent: false, Err: err}
}

// permanentErr wraps a failure that retrying cannot fix, such as a
// response body that does not map onto the normalized record.
func permanentErr(source models.SyncType, err error) error {
	return &FetchError{Source: source, Permanent: true, Err: err}
}

// wrapFetchErr classifies an error from the HTTP round trip. Anything that
// is not already a FetchError -- network failures, context deadlines,
// canceled requests -- is transient: a timed-out call is retried per the
// job's backoff policy.
func wrapFetchErr(source models.SyncType, err error) error {
	var fe *FetchError
	if errors.As(err, &fe) {
		return err
	}
	return transientErr(source, err)
}
