// MySetlist - Live Music Tracking and Setlist Archive
// Copyright 2026 swbam
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swbam/mysetlist-s4-sub007

/*
client.go - Fetch Client Interface and HTTP Helpers

The sync executor talks to upstream catalogs through the Client interface.
Each adapter owns its own authentication and response mapping; the executor
only sees a normalized Record or a classified FetchError.

Concrete adapters:
  - TicketingClient: events/attractions catalog (API key query param)
  - MusicMetaClient: artist metadata catalog (client-credentials OAuth)
  - SetlistClient:   setlist archive (x-api-key header)

All adapters execute requests through doRequestWithRateLimit() for
automatic HTTP 429 retry with Retry-After support.
*/

package sources

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/swbam/mysetlist-s4-sub007/internal/models"
)

// Ref identifies one entity to fetch from an upstream source.
type Ref struct {
	Kind       models.EntityKind
	ExternalID string
}

// Client fetches one entity's record from an upstream source.
type Client interface {
	// Source returns the sync type this client serves.
	Source() models.SyncType

	// Fetch retrieves and normalizes the upstream record for ref.
	// Failures are returned as *FetchError with a transient/permanent
	// classification.
	Fetch(ctx context.Context, ref Ref) (*models.Record, error)
}

// doRequestWithRateLimit executes an HTTP request with automatic retry on
// HTTP 429 (Too Many Requests):
//   - Max 3 retry attempts
//   - Exponential backoff: 1s, 2s, 4s
//   - Respects the Retry-After header (RFC 6585) if present
//
// Other statuses are returned to the caller for classification. The caller
// must close the response body on success.
func doRequestWithRateLimit(client *http.Client, req *http.Request) (*http.Response, error) {
	const maxRetries = 3
	baseDelay := time.Second

	for attempt := 0; ; attempt++ {
		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("execute request: %w", err)
		}

		if resp.StatusCode != http.StatusTooManyRequests || attempt == maxRetries {
			return resp, nil
		}

		delay := baseDelay << attempt
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, perr := strconv.Atoi(ra); perr == nil && secs > 0 {
				delay = time.Duration(secs) * time.Second
			}
		}
		resp.Body.Close()

		select {
		case <-time.After(delay):
		case <-req.Context().Done():
			return nil, req.Context().Err()
		}
	}
}

// fetchJSON executes req, validates the status, and decodes the body into
// result. Errors come back classified for the given source.
func fetchJSON(source models.SyncType, client *http.Client, req *http.Request, result interface{}) error {
	resp, err := doRequestWithRateLimit(client, req)
	if err != nil {
		return wrapFetchErr(source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return classifyStatus(source, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		// A body that is not valid JSON for this endpoint will not
		// become valid on retry.
		return permanentErr(source, fmt.Errorf("decode response: %w", err))
	}
	return nil
}
