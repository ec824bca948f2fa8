// Package quickbooks is a minimal client for the QuickBooks Online accounting
// API: OAuth token refresh plus the Purchase query the sync job needs.
package quickbooks

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/billkie/saas-sprawl/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	maxAttempts    = 3
	initialBackoff = 500 * time.Millisecond
)

// TokenSet is the OAuth state needed to talk to one company's realm
type TokenSet struct {
	AccessToken    string
	RefreshToken   string
	TokenExpiresAt time.Time
	RealmID        string
}

// Client talks to the QuickBooks Online API
type Client struct {
	clientID     string
	clientSecret string
	tokenURL     string
	apiBaseURL   string
	client       *http.Client
	log          *logrus.Logger
}

// NewClient initializes a new QuickBooks client
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

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// RefreshToken exchanges a refresh token for a fresh token pair. Transient
// failures are retried with exponential backoff.
func (c *Client) RefreshToken(ctx context.Context, refreshToken, realmID string) (TokenSet, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	var tokens tokenResponse
	err := c.doWithRetry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
		if err != nil {
			return fmt.Errorf("failed to create token request: %w", err)
		}
		basic := base64.StdEncoding.EncodeToString([]byte(c.clientID + ":" + c.clientSecret))
		req.Header.Set("Authorization", "Basic "+basic)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("token request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
		return json.NewDecoder(resp.Body).Decode(&tokens)
	})
	if err != nil {
		return TokenSet{}, err
	}

	return TokenSet{
		AccessToken:    tokens.AccessToken,
		RefreshToken:   tokens.RefreshToken,
		TokenExpiresAt: time.Now().Add(time.Duration(tokens.ExpiresIn) * time.Second),
		RealmID:        realmID,
	}, nil
}

// flexID tolerates QuickBooks returning reference ids as either strings or
// numbers
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

type entityRef struct {
	Value flexID `json:"value"`
	Name  string `json:"name"`
}

type purchase struct {
	TxnDate  string     `json:"TxnDate"`
	TotalAmt *float64   `json:"TotalAmt"`
	VendorRef *entityRef `json:"AccountRef"`
}

type queryResponse struct {
	QueryResponse struct {
		Purchase   []purchase `json:"Purchase"`
		MaxResults int        `json:"maxResults"`
	} `json:"QueryResponse"`
}

// QueryTransactionsSince fetches Purchase records updated since startDate and
// maps them into the internal transaction shape. Malformed records coming out
// of the duck-typed payload are skipped, not fatal.
func (c *Client) QueryTransactionsSince(ctx context.Context, tokens TokenSet, startDate time.Time) ([]models.Transaction, error) {
	query := fmt.Sprintf("SELECT * FROM Purchase WHERE MetaData.LastUpdatedTime >= '%s'",
		startDate.Format("2006-01-02"))
	endpoint := fmt.Sprintf("%s/v3/company/%s/query?query=%s",
		c.apiBaseURL, url.PathEscape(tokens.RealmID), url.QueryEscape(query))

	var decoded queryResponse
	err := c.doWithRetry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("failed to create query request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("query request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("query endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
		decoded = queryResponse{}
		return json.NewDecoder(resp.Body).Decode(&decoded)
	})
	if err != nil {
		return nil, err
	}

	transactions := make([]models.Transaction, 0, len(decoded.QueryResponse.Purchase))
	for _, p := range decoded.QueryResponse.Purchase {
		txn, ok := c.validatePurchase(p)
		if !ok {
			continue
		}
		transactions = append(transactions, txn)
	}
	return transactions, nil
}

// validatePurchase enforces the boundary schema: a purchase needs a parseable
// date and an amount to be usable; a missing vendor reference is kept (the
// grouper drops it) so the record still counts in sync logs.
func (c *Client) validatePurchase(p purchase) (models.Transaction, bool) {
	if p.TotalAmt == nil {
		c.log.Debugf("Skipping purchase without amount (txn date %q)", p.TxnDate)
		return models.Transaction{}, false
	}
	txnDate, err := time.Parse("2006-01-02", p.TxnDate)
	if err != nil {
		c.log.Debugf("Skipping purchase with bad date %q: %v", p.TxnDate, err)
		return models.Transaction{}, false
	}

	txn := models.Transaction{
		TxnDate:     txnDate,
		TotalAmount: decimal.NewFromFloat(*p.TotalAmt),
	}
	if p.VendorRef != nil {
		txn.VendorID = string(p.VendorRef.Value)
		txn.VendorName = p.VendorRef.Name
	}
	if txn.VendorName == "" {
		txn.VendorName = "Unknown Vendor"
	}
	return txn, true
}

// doWithRetry runs fn up to maxAttempts times with doubling backoff
func (c *Client) doWithRetry(ctx context.Context, fn func() error) error {
	backoff := initialBackoff
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == maxAttempts {
			break
		}
		c.log.Warnf("QuickBooks request failed (attempt %d/%d): %v", attempt, maxAttempts, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return err
}
