package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultFetchMaxChars    = 50000
	defaultFetchMaxRedirect = 3
	fetchTimeoutSeconds     = 30
	fetchUserAgent          = "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_7_2) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// WebFetchTool fetches a URL and extracts readable content.
type WebFetchTool struct {
	maxChars int
	client   *http.Client
}

func NewWebFetchTool() *WebFetchTool {
	t := &WebFetchTool{maxChars: defaultFetchMaxChars}
	t.client = &http.Client{
		Timeout: fetchTimeoutSeconds * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			// via holds only the current request's chain, so the cap
			// is per fetch.
			if len(via) >= defaultFetchMaxRedirect {
				return fmt.Errorf("stopped after %d redirects", defaultFetchMaxRedirect)
			}
			return checkPrivateHost(req.URL)
		},
	}
	return t
}

func (t *WebFetchTool) Name() string { return "web_fetch" }

func (t *WebFetchTool) Description() string {
	return "Fetch a URL and extract its content. Supports HTML (converted to markdown/text), JSON, and plain text."
}

func (t *WebFetchTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"url": map[string]interface{}{
				"type":        "string",
				"description": "HTTP or HTTPS URL to fetch",
			},
			"extract_mode": map[string]interface{}{
				"type":        "string",
				"description": "Extraction mode for HTML content. Default: markdown.",
				"enum":        []interface{}{"markdown", "text"},
			},
		},
		"required": []string{"url"},
	}
}

func (t *WebFetchTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	rawURL, _ := args["url"].(string)
	if rawURL == "" {
		return "", fmt.Errorf("url is required")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("only http and https URLs are supported")
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("missing hostname in URL")
	}
	if err := checkPrivateHost(parsed); err != nil {
		return "", err
	}

	extractMode := "markdown"
	if em, ok := args["extract_mode"].(string); ok && em != "" {
		extractMode = em
	}

	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", fetchUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch failed: HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	content := extractContent(body, contentType, extractMode)
	if len(content) > t.maxChars {
		content = content[:t.maxChars] + "\n\n[content truncated]"
	}

	return fmt.Sprintf("URL: %s\n\n%s", rawURL, content), nil
}

// extractContent picks an extractor based on content type.
func extractContent(body []byte, contentType, extractMode string) string {
	switch {
	case strings.Contains(contentType, "application/json"):
		var data interface{}
		if err := json.Unmarshal(body, &data); err == nil {
			formatted, _ := json.MarshalIndent(data, "", "  ")
			return string(formatted)
		}
		return string(body)
	case strings.Contains(contentType, "text/html"):
		if extractMode == "text" {
			return htmlToText(string(body))
		}
		return htmlToMarkdown(string(body))
	default:
		return string(body)
	}
}

// checkPrivateHost rejects URLs resolving to loopback, private, or
// link-local addresses.
func checkPrivateHost(u *url.URL) error {
	host := u.Hostname()
	ips, err := net.LookupIP(host)
	if err != nil {
		return fmt.Errorf("cannot resolve host %s: %w", host, err)
	}
	for _, ip := range ips {
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified() {
			return fmt.Errorf("access to internal address %s is not allowed", ip)
		}
	}
	return nil
}
