package hosting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"blogpush/pkg/logx"
)

// Client is the content-hosting collaborator: paginated listing plus insert.
// Authentication (token refresh included) is the client's own concern.
type Client interface {
	ListPosts(ctx context.Context, pageToken string) (*PostList, error)
	InsertPost(ctx context.Context, p Post) (*InsertedPost, error)
}

const defaultTokenURL = "https://oauth2.googleapis.com/token"

// Config for the HTTP client. Credentials are loaded from the environment by
// internal/config and passed through here.
type Config struct {
	APIBase string // e.g. "https://www.googleapis.com/blogger/v3"
	BlogID  string

	ClientID     string
	ClientSecret string
	RefreshToken string
	TokenURL     string // default: Google's token endpoint

	PageSize int           // listing page size, default 500
	Timeout  time.Duration // per-call HTTP timeout, default 30s
}

type httpClient struct {
	cfg  Config
	hc   *http.Client
	base string
	log  logx.Logger
}

// New builds an authenticated hosting client. The oauth2 transport refreshes
// the access token from the long-lived refresh token as needed.
func New(ctx context.Context, cfg Config, log logx.Logger) (Client, error) {
	if strings.TrimSpace(cfg.BlogID) == "" {
		return nil, errors.New("hosting: blog id is empty")
	}
	if strings.TrimSpace(cfg.RefreshToken) == "" {
		return nil, errors.New("hosting: refresh token is empty")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = defaultTokenURL
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 500
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	oc := oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: tokenURL},
	}
	ts := oc.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})
	hc := oauth2.NewClient(ctx, ts)
	hc.Timeout = cfg.Timeout

	base := strings.TrimRight(cfg.APIBase, "/")
	if base == "" {
		base = "https://www.googleapis.com/blogger/v3"
	}

	return &httpClient{cfg: cfg, hc: hc, base: base, log: log}, nil
}

func (c *httpClient) ListPosts(ctx context.Context, pageToken string) (*PostList, error) {
	q := url.Values{}
	q.Set("maxResults", strconv.Itoa(c.cfg.PageSize))
	q.Set("fields", "items(title),nextPageToken")
	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}
	u := fmt.Sprintf("%s/blogs/%s/posts?%s", c.base, url.PathEscape(c.cfg.BlogID), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	var out PostList
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) InsertPost(ctx context.Context, p Post) (*InsertedPost, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/blogs/%s/posts", c.base, url.PathEscape(c.cfg.BlogID))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var out InsertedPost
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *httpClient) do(req *http.Request, out any) error {
	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// Cap error bodies; the interesting part is small.
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return decodeAPIError(resp.StatusCode, b)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// decodeAPIError parses a Google-style error body:
//
//	{"error":{"code":403,"message":"...","errors":[{"reason":"rateLimitExceeded","message":"..."}]}}
func decodeAPIError(status int, body []byte) error {
	var envelope struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Errors  []struct {
				Reason  string `json:"reason"`
				Message string `json:"message"`
			} `json:"errors"`
		} `json:"error"`
	}

	apiErr := &APIError{StatusCode: status}
	if err := json.Unmarshal(body, &envelope); err == nil && (envelope.Error.Message != "" || len(envelope.Error.Errors) > 0) {
		apiErr.Message = envelope.Error.Message
		if len(envelope.Error.Errors) > 0 {
			apiErr.Reason = envelope.Error.Errors[0].Reason
			if apiErr.Message == "" {
				apiErr.Message = envelope.Error.Errors[0].Message
			}
		}
	} else {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}
