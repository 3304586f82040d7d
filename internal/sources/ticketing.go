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

// TicketingClient fetches attractions, events, and venues from the
// ticketing catalog. Authentication is an API key query parameter.
//
// The catalog keys each entity kind under its own path:
//   - artists -> /attractions/{id}
//   - shows   -> /events/{id}
//   - venues  -> /venues/{id}
type TicketingClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewTicketingClient creates a ticketing catalog client.
func NewTicketingClient(cfg config.TicketingConfig, timeout time.Duration) *TicketingClient {
	return &TicketingClient{
		baseURL:    cfg.URL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Source implements Client.
func (c *TicketingClient) Source() models.SyncType { return models.SyncTicketing }

// ticketingAttraction is the catalog's attraction (artist) payload.
type ticketingAttraction struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	UpcomingEvents struct {
		Total int `json:"_total"`
	} `json:"upcomingEvents"`
	Images []struct {
		URL string `json:"url"`
	} `json:"images"`
	Classifications []struct {
		Genre struct {
			Name string `json:"name"`
		} `json:"genre"`
	} `json:"classifications"`
}

// ticketingEvent is the catalog's event (show) payload.
type ticketingEvent struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	URL   string `json:"url"`
	Dates struct {
		Start struct {
			DateTime time.Time `json:"dateTime"`
		} `json:"start"`
		Status struct {
			Code string `json:"code"`
		} `json:"status"`
	} `json:"dates"`
	Embedded struct {
		Venues []struct {
			Name string `json:"name"`
			City struct {
				Name string `json:"name"`
			} `json:"city"`
		} `json:"venues"`
	} `json:"_embedded"`
}

// ticketingVenue is the catalog's venue payload.
type ticketingVenue struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	City struct {
		Name string `json:"name"`
	} `json:"city"`
	UpcomingEvents struct {
		Total int `json:"_total"`
	} `json:"upcomingEvents"`
}

// Fetch implements Client.
func (c *TicketingClient) Fetch(ctx context.Context, ref Ref) (*models.Record, error) {
	switch ref.Kind {
	case models.KindArtist:
		return c.fetchAttraction(ctx, ref.ExternalID)
	case models.KindShow:
		return c.fetchEvent(ctx, ref.ExternalID)
	case models.KindVenue:
		return c.fetchVenue(ctx, ref.ExternalID)
	default:
		return nil, permanentErr(models.SyncTicketing, fmt.Errorf("unsupported entity kind %q", ref.Kind))
	}
}

func (c *TicketingClient) fetchAttraction(ctx context.Context, id string) (*models.Record, error) {
	var payload ticketingAttraction
	if err := c.get(ctx, "/attractions/"+url.PathEscape(id)+".json", &payload); err != nil {
		return nil, err
	}

	rec := &models.Record{
		Source:     models.SyncTicketing,
		ExternalID: payload.ID,
		FetchedAt:  time.Now().UTC(),
	}
	mapString(payload.Name, &rec.Name)
	for _, cl := range payload.Classifications {
		if cl.Genre.Name != "" && cl.Genre.Name != "Undefined" {
			rec.Genres = append(rec.Genres, cl.Genre.Name)
		}
	}
	if len(payload.Images) > 0 {
		mapString(payload.Images[0].URL, &rec.ImageURL)
	}
	return rec, nil
}

func (c *TicketingClient) fetchEvent(ctx context.Context, id string) (*models.Record, error) {
	var payload ticketingEvent
	if err := c.get(ctx, "/events/"+url.PathEscape(id)+".json", &payload); err != nil {
		return nil, err
	}

	rec := &models.Record{
		Source:     models.SyncTicketing,
		ExternalID: payload.ID,
		FetchedAt:  time.Now().UTC(),
	}
	mapString(payload.Name, &rec.Name)
	mapString(payload.URL, &rec.TicketURL)
	mapString(payload.Dates.Status.Code, &rec.Status)
	if !payload.Dates.Start.DateTime.IsZero() {
		d := payload.Dates.Start.DateTime
		rec.Date = &d
	}
	if len(payload.Embedded.Venues) > 0 {
		mapString(payload.Embedded.Venues[0].Name, &rec.VenueName)
		mapString(payload.Embedded.Venues[0].City.Name, &rec.City)
	}
	return rec, nil
}

func (c *TicketingClient) fetchVenue(ctx context.Context, id string) (*models.Record, error) {
	var payload ticketingVenue
	if err := c.get(ctx, "/venues/"+url.PathEscape(id)+".json", &payload); err != nil {
		return nil, err
	}

	rec := &models.Record{
		Source:     models.SyncTicketing,
		ExternalID: payload.ID,
		FetchedAt:  time.Now().UTC(),
	}
	mapString(payload.Name, &rec.Name)
	mapString(payload.City.Name, &rec.City)
	return rec, nil
}

// get executes an authenticated GET against the catalog and decodes the
// JSON body into result.
func (c *TicketingClient) get(ctx context.Context, path string, result interface{}) error {
	reqURL := fmt.Sprintf("%s%s?apikey=%s", c.baseURL, path, url.QueryEscape(c.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return transientErr(models.SyncTicketing, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	return fetchJSON(models.SyncTicketing, c.httpClient, req, result)
}

// mapString sets target when value is non-empty.
func mapString(value string, target **string) {
	if value != "" {
		*target = &value
	}
}
