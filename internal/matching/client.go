package matching

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Package matching is the thin client for the matching subsystem, an
// external collaborator. The media core only needs one answer from it:
// does the requester hold an authorization relationship (a mutual match)
// to the media owner.

// Client queries the matching service over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a matching client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

type authorizeResponse struct {
	Authorized bool `json:"authorized"`
}

// IsAuthorized reports whether requesterID is allowed to view ownerID's
// approved media. It has the signature of access.AuthorizeFunc.
func (c *Client) IsAuthorized(ctx context.Context, ownerID, requesterID string) (bool, error) {
	q := url.Values{}
	q.Set("ownerId", ownerID)
	q.Set("requesterId", requesterID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/matches/authorize?"+q.Encode(), nil)
	if err != nil {
		return false, fmt.Errorf("build authorize request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("call matching service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("matching service returned status %d", resp.StatusCode)
	}

	var out authorizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("decode authorize response: %w", err)
	}
	return out.Authorized, nil
}

// DenyAll is the fallback predicate when no matching service is
// configured: non-owners are never authorized.
func DenyAll(context.Context, string, string) (bool, error) {
	return false, nil
}
