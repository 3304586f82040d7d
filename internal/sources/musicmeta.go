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
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/swbam/mysetlist-s4-sub007/internal/config"
	"github.com/swbam/mysetlist-s4-sub007/internal/models"
)

// MusicMetaClient fetches artist metadata (popularity, followers, genres)
// from the music catalog. Authentication is OAuth client-credentials; the
// client caches its bearer token and refreshes it transparently shortly
// before expiry.
//
// On top of the engine-level fixed-window budget, outbound calls are paced
// client-side with a token-bucket limiter so bursts inside a window stay
// below the catalog's per-second ceiling.
type MusicMetaClient struct {
	baseURL      string
	tokenURL     string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	pacer        *rate.Limiter

	tokenMu     sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewMusicMetaClient creates a music catalog client.
func NewMusicMetaClient(cfg config.MusicMetaConfig, timeout time.Duration) *MusicMetaClient {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	return &MusicMetaClient{
		baseURL:      cfg.URL,
		tokenURL:     cfg.TokenURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		httpClient:   &http.Client{Timeout: timeout},
		pacer:        rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// Source implements Client.
func (c *MusicMetaClient) Source() models.SyncType { return models.SyncMusicMeta }

// musicMetaArtist is the catalog's artist payload.
type musicMetaArtist struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Popularity int      `json:"popularity"`
	Genres     []string `json:"genres"`
	Followers  struct {
		Total int `json:"total"`
	} `json:"followers"`
	Images []struct {
		URL string `json:"url"`
	} `json:"images"`
}

// tokenResponse is the client-credentials grant response.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Fetch implements Client. Only artists live in this catalog.
func (c *MusicMetaClient) Fetch(ctx context.Context, ref Ref) (*models.Record, error) {
	if ref.Kind != models.KindArtist {
		return nil, permanentErr(models.SyncMusicMeta, fmt.Errorf("unsupported entity kind %q", ref.Kind))
	}

	if err := c.pacer.Wait(ctx); err != nil {
		return nil, transientErr(models.SyncMusicMeta, err)
	}

	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	reqURL := c.baseURL + "/artists/" + url.PathEscape(ref.ExternalID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, transientErr(models.SyncMusicMeta, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	var payload musicMetaArtist
	if err := fetchJSON(models.SyncMusicMeta, c.httpClient, req, &payload); err != nil {
		return nil, err
	}

	rec := &models.Record{
		Source:     models.SyncMusicMeta,
		ExternalID: payload.ID,
		Genres:     payload.Genres,
		FetchedAt:  time.Now().UTC(),
	}
	mapString(payload.Name, &rec.Name)
	if payload.Popularity > 0 {
		rec.Popularity = &payload.Popularity
	}
	if payload.Followers.Total > 0 {
		rec.Followers = &payload.Followers.Total
	}
	if len(payload.Images) > 0 {
		mapString(payload.Images[0].URL, &rec.ImageURL)
	}
	return rec, nil
}

// token returns a valid access token, refreshing via the client-credentials
// grant when the cached one is missing or within a minute of expiry.
func (c *MusicMetaClient) token(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.accessToken != "" && time.Until(c.tokenExpiry) > time.Minute {
		return c.accessToken, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", transientErr(models.SyncMusicMeta, fmt.Errorf("create token request: %w", err))
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", transientErr(models.SyncMusicMeta, fmt.Errorf("token request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", transientErr(models.SyncMusicMeta, fmt.Errorf("token request status %d", resp.StatusCode))
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", transientErr(models.SyncMusicMeta, fmt.Errorf("decode token response: %w", err))
	}
	if tr.AccessToken == "" {
		return "", transientErr(models.SyncMusicMeta, fmt.Errorf("empty access token in response"))
	}

	c.accessToken = tr.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	return c.accessToken, nil
}
