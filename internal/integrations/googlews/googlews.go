// Package googlews lists third-party OAuth applications from a Google
// Workspace directory. Directory apps feed the discovery store; they carry no
// billing signal and bypass the recurrence engine entirely.
package googlews

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// TokenSet is the OAuth state for one workspace integration
type TokenSet struct {
	AccessToken    string
	RefreshToken   string
	TokenExpiresAt time.Time
}

// App is a third-party application seen in the workspace directory
type App struct {
	ID          string
	Name        string
	Website     string
	Description string
	IconURL     string
	Scopes      []string
}

// Client talks to the Admin SDK Directory API
type Client struct {
	clientID     string
	clientSecret string
	tokenURL     string
	apiBaseURL   string
	client       *http.Client
	log          *logrus.Logger
}

// NewClient initializes a new Workspace directory client
func NewClient(clientID, clientSecret, tokenURL, apiBaseURL string, log *logrus.Logger) *Client {
	return &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		tokenURL:     tokenURL,
		apiBaseURL:   strings.TrimRight(apiBaseURL, "/"),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log,
	}
}

// RefreshToken refreshes the access token. Google keeps the refresh token
// stable, so the existing one is carried forward.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (TokenSet, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return TokenSet{}, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return TokenSet{}, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return TokenSet{}, fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return TokenSet{}, fmt.Errorf("failed to decode token response: %w", err)
	}

	return TokenSet{
		AccessToken:    decoded.AccessToken,
		RefreshToken:   refreshToken,
		TokenExpiresAt: time.Now().Add(time.Duration(decoded.ExpiresIn) * time.Second),
	}, nil
}

type tokenItem struct {
	ClientID    string   `json:"clientId"`
	DisplayText string   `json:"displayText"`
	Scopes      []string `json:"scopes"`
}

type tokenList struct {
	Items []tokenItem `json:"items"`
}

type directoryUser struct {
	PrimaryEmail string `json:"primaryEmail"`
}

type userList struct {
	Users         []directoryUser `json:"users"`
	NextPageToken string          `json:"nextPageToken"`
}

// ListThirdPartyApps walks every user in the customer's directory and
// collects the distinct OAuth applications they have granted access to.
func (c *Client) ListThirdPartyApps(ctx context.Context, tokens TokenSet) ([]App, error) {
	users, err := c.listUsers(ctx, tokens)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]*App)
	var order []string
	for _, user := range users {
		items, err := c.listTokens(ctx, tokens, user.PrimaryEmail)
		if err != nil {
			// One user's token list failing should not sink the sync
			c.log.Warnf("Failed to list tokens for %s: %v", user.PrimaryEmail, err)
			continue
		}
		for _, item := range items {
			if item.ClientID == "" && item.DisplayText == "" {
				continue
			}
			key := item.ClientID
			if key == "" {
				key = item.DisplayText
			}
			if existing, ok := seen[key]; ok {
				existing.Scopes = mergeScopes(existing.Scopes, item.Scopes)
				continue
			}
			seen[key] = &App{
				ID:     item.ClientID,
				Name:   item.DisplayText,
				Scopes: item.Scopes,
			}
			order = append(order, key)
		}
	}

	apps := make([]App, 0, len(order))
	for _, key := range order {
		apps = append(apps, *seen[key])
	}
	return apps, nil
}

func (c *Client) listUsers(ctx context.Context, tokens TokenSet) ([]directoryUser, error) {
	var users []directoryUser
	pageToken := ""
	for {
		endpoint := c.apiBaseURL + "/admin/directory/v1/users?customer=my_customer&maxResults=200"
		if pageToken != "" {
			endpoint += "&pageToken=" + url.QueryEscape(pageToken)
		}
		var page userList
		if err := c.getJSON(ctx, tokens, endpoint, &page); err != nil {
			return nil, fmt.Errorf("failed to list directory users: %w", err)
		}
		users = append(users, page.Users...)
		if page.NextPageToken == "" {
			return users, nil
		}
		pageToken = page.NextPageToken
	}
}

func (c *Client) listTokens(ctx context.Context, tokens TokenSet, userKey string) ([]tokenItem, error) {
	endpoint := fmt.Sprintf("%s/admin/directory/v1/users/%s/tokens", c.apiBaseURL, url.PathEscape(userKey))
	var list tokenList
	if err := c.getJSON(ctx, tokens, endpoint, &list); err != nil {
		return nil, err
	}
	return list.Items, nil
}

func (c *Client) getJSON(ctx context.Context, tokens TokenSet, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func mergeScopes(existing, extra []string) []string {
	known := make(map[string]bool, len(existing))
	for _, s := range existing {
		known[s] = true
	}
	for _, s := range extra {
		if !known[s] {
			existing = append(existing, s)
			known[s] = true
		}
	}
	return existing
}
