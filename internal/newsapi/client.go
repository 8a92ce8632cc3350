package newsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/pders01/dispatch/internal/config"
	"github.com/pders01/dispatch/internal/validation"
)

// Article is the wire shape of one article in a NewsAPI v2 response.
type Article struct {
	Source struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"source"`
	Author      string `json:"author"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	URLToImage  string `json:"urlToImage"`
	PublishedAt string `json:"publishedAt"`
	Content     string `json:"content"`
}

type response struct {
	Status       string    `json:"status"`
	Code         string    `json:"code"`
	Message      string    `json:"message"`
	TotalResults int       `json:"totalResults"`
	Articles     []Article `json:"articles"`
}

type Client struct {
	client *resty.Client
}

func NewClient(cfg config.APIConfig) (*Client, error) {
	baseURL, err := validation.NewBaseURLValidator().ValidateAndNormalize(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API base URL: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	// No retries: a failed request moves the caller to its next fallback.
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("Accept", "application/json")

	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}
	if cfg.APIKey != "" {
		client.SetHeader("X-Api-Key", cfg.APIKey)
	}

	return &Client{client: client}, nil
}

// TopHeadlines fetches /top-headlines. An empty category asks for the
// general feed of the country.
func (c *Client) TopHeadlines(ctx context.Context, country, category string, pageSize int) ([]Article, error) {
	params := map[string]string{
		"country":  country,
		"pageSize": strconv.Itoa(pageSize),
	}
	if category != "" {
		params["category"] = category
	}
	return c.get(ctx, "/top-headlines", params)
}

// Everything fetches /everything sorted by publication time.
func (c *Client) Everything(ctx context.Context, query, language string, pageSize int) ([]Article, error) {
	params := map[string]string{
		"q":        query,
		"pageSize": strconv.Itoa(pageSize),
		"sortBy":   "publishedAt",
	}
	if language != "" {
		params["language"] = language
	}
	return c.get(ctx, "/everything", params)
}

func (c *Client) get(ctx context.Context, path string, params map[string]string) ([]Article, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(path)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", path, err)
	}

	var body response
	decodeErr := json.Unmarshal(resp.Body(), &body)

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		httpErr := &HTTPError{
			StatusCode: resp.StatusCode(),
			Path:       path,
			RetryAfter: retryAfter(resp.Header()),
		}
		if decodeErr == nil {
			httpErr.Code = body.Code
			httpErr.Message = body.Message
		}
		return nil, httpErr
	}

	if decodeErr != nil {
		return nil, &HTTPError{
			StatusCode: resp.StatusCode(),
			Path:       path,
			Message:    fmt.Sprintf("malformed response: %v", decodeErr),
		}
	}

	if body.Status != "ok" {
		return nil, &HTTPError{
			StatusCode: resp.StatusCode(),
			Path:       path,
			Code:       body.Code,
			Message:    body.Message,
		}
	}

	if body.Articles == nil {
		return []Article{}, nil
	}
	return body.Articles, nil
}

// retryAfter reads a Retry-After header given in seconds.
func retryAfter(h http.Header) time.Duration {
	if v := h.Get("Retry-After"); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil && seconds >= 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return 0
}
