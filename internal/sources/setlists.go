// MySetlist - Live Music Tracking and Setlist Archive
// Copyright 2026 swbam
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/swbam/mysetlist-s4-sub007

package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/swbam/mysetlist-s4-sub007/internal/config"
	"github.com/swbam/mysetlist-s4-sub007/internal/models"
)

// SetlistClient fetches recent setlists for an artist from the setlist
// archive. Authentication is an x-api-key header.
type SetlistClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewSetlistClient creates a setlist archive client.
func NewSetlistClient(cfg config.SetlistsConfig, timeout time.Duration) *SetlistClient {
	return &SetlistClient{
		baseURL:    cfg.URL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Source implements Client.
func (c *SetlistClient) Source() models.SyncType { return models.SyncSetlists }

// setlistPage is the archive's paged setlist response for one artist.
type setlistPage struct {
	Total   int `json:"total"`
	Setlist []struct {
		ID        string `json:"id"`
		EventDate string `json:"eventDate"` // dd-MM-yyyy per the archive's format
		Sets      struct {
			Set []struct {
				Song []struct {
					Name string `json:"name"`
				} `json:"song"`
			} `json:"set"`
		} `json:"sets"`
	} `json:"setlist"`
}

// Fetch implements Client. The external id is the artist's archive id
// (musicbrainz id); the archive has no per-show or per-venue fetch we
// consume, so other kinds are rejected as permanent.
func (c *SetlistClient) Fetch(ctx context.Context, ref Ref) (*models.Record, error) {
	if ref.Kind != models.KindArtist {
		return nil, permanentErr(models.SyncSetlists, fmt.Errorf("unsupported entity kind %q", ref.Kind))
	}

	reqURL := fmt.Sprintf("%s/artist/%s/setlists?p=1", c.baseURL, url.PathEscape(ref.ExternalID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, transientErr(models.SyncSetlists, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	var payload setlistPage
	if err := fetchJSON(models.SyncSetlists, c.httpClient, req, &payload); err != nil {
		return nil, err
	}

	rec := &models.Record{
		Source:     models.SyncSetlists,
		ExternalID: ref.ExternalID,
		FetchedAt:  time.Now().UTC(),
	}
	if payload.Total > 0 {
		rec.SongCount = &payload.Total
	}
	if len(payload.Setlist) > 0 {
		latest := payload.Setlist[0]
		mapString(latest.ID, &rec.SetlistID)
		if d, perr := time.Parse("02-01-2006", latest.EventDate); perr == nil {
			rec.LastSetlist = &d
		}
		songs := 0
		for _, set := range latest.Sets.Set {
			songs += len(set.Song)
		}
		if songs > 0 {
			rec.SongCount = &songs
		}
	}
	return rec, nil
}
