// Package poeapi is the thin client for the remote game API. The core
// treats it strictly as a fallback data source: a failure here degrades
// one statistic, nothing more.
package poeapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const defaultBaseURL = "https://www.pathofexile.com"

// Client fetches character data for one account using the session
// cookie the player configured.
type Client struct {
	http      *http.Client
	baseURL   string
	account   string
	character string
	sessionID string
}

func New(account, character, sessionID string) *Client {
	return &Client{
		http:      &http.Client{Timeout: 15 * time.Second},
		baseURL:   defaultBaseURL,
		account:   account,
		character: character,
		sessionID: sessionID,
	}
}

type characterRecord struct {
	Name       string `json:"name"`
	League     string `json:"league"`
	Level      int    `json:"level"`
	Experience int64  `json:"experience"`
}

// GetExperience returns the configured character's total experience.
func (c *Client) GetExperience(ctx context.Context) (int64, error) {
	u := fmt.Sprintf("%s/character-window/get-characters?accountName=%s",
		c.baseURL, url.QueryEscape(c.account))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}
	req.AddCookie(&http.Cookie{Name: "POESESSID", Value: c.sessionID})
	req.Header.Set("User-Agent", "runtracker")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("get characters: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("get characters: unexpected status %d", resp.StatusCode)
	}

	var chars []characterRecord
	if err := json.NewDecoder(resp.Body).Decode(&chars); err != nil {
		return 0, fmt.Errorf("decode characters: %w", err)
	}
	for _, ch := range chars {
		if ch.Name == c.character {
			return ch.Experience, nil
		}
	}
	return 0, fmt.Errorf("character %q not found on account", c.character)
}
