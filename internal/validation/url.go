package validation

import (
	"fmt"
	"net/url"
	"strings"
)

// BaseURLValidator checks the news API endpoint before a client is built.
type BaseURLValidator struct {
	// RequireHTTPS rejects plain http endpoints
	RequireHTTPS bool
	// MaxLength is the maximum allowed URL length
	MaxLength int
}

// NewBaseURLValidator accepts http and https endpoints. Local endpoints are
// allowed so the client can point at proxies and test servers.
func NewBaseURLValidator() *BaseURLValidator {
	return &BaseURLValidator{MaxLength: 2048}
}

// NewStrictBaseURLValidator only accepts https endpoints.
func NewStrictBaseURLValidator() *BaseURLValidator {
	return &BaseURLValidator{RequireHTTPS: true, MaxLength: 2048}
}

// ValidateAndNormalize returns the endpoint without a trailing slash, query
// or fragment so paths can be appended directly.
func (v *BaseURLValidator) ValidateAndNormalize(input string) (string, error) {
	input = strings.TrimSpace(input)

	if input == "" {
		return "", fmt.Errorf("URL cannot be empty")
	}
	if v.MaxLength > 0 && len(input) > v.MaxLength {
		return "", fmt.Errorf("URL too long (max %d characters)", v.MaxLength)
	}
	if strings.ContainsAny(input, "<>\"'`") {
		return "", fmt.Errorf("URL contains invalid characters")
	}

	parsedURL, err := url.Parse(input)
	if err != nil {
		return "", fmt.Errorf("invalid URL format: %w", err)
	}

	switch parsedURL.Scheme {
	case "https":
	case "http":
		if v.RequireHTTPS {
			return "", fmt.Errorf("URL must use https protocol")
		}
	default:
		return "", fmt.Errorf("URL must use http or https protocol")
	}

	if parsedURL.Host == "" {
		return "", fmt.Errorf("URL must have a valid hostname")
	}

	if strings.Contains(parsedURL.Path, "..") {
		return "", fmt.Errorf("directory traversal patterns not allowed in URL path")
	}

	if parsedURL.User != nil {
		return "", fmt.Errorf("credentials in URL are not permitted")
	}

	parsedURL.RawQuery = ""
	parsedURL.Fragment = ""
	parsedURL.Path = strings.TrimRight(parsedURL.Path, "/")

	return parsedURL.String(), nil
}
