package tools

import (
	"context"
	"net/http"
	"strings"
	"testing"
)

func TestWebFetchRedirectLimitPerRequest(t *testing.T) {
	tool := NewWebFetchTool()
	check := tool.client.CheckRedirect

	req, err := http.NewRequest("GET", "http://localhost/next", nil)
	if err != nil {
		t.Fatal(err)
	}

	// Many fetches with short chains must never trip the redirect cap;
	// the limit applies to one request's chain, not the tool lifetime.
	shortChain := make([]*http.Request, 1)
	for i := 0; i < 10; i++ {
		if err := check(req, shortChain); err != nil && strings.Contains(err.Error(), "redirects") {
			t.Fatalf("redirect cap applied across fetches on call %d: %v", i+1, err)
		}
	}

	longChain := make([]*http.Request, defaultFetchMaxRedirect)
	err = check(req, longChain)
	if err == nil || !strings.Contains(err.Error(), "stopped after 3 redirects") {
		t.Fatalf("expected redirect limit error for long chain, got %v", err)
	}
}

func TestWebFetchRejectsNonHTTPScheme(t *testing.T) {
	tool := NewWebFetchTool()
	_, err := tool.Execute(context.Background(), map[string]interface{}{"url": "ftp://example.com/file"})
	if err == nil || !strings.Contains(err.Error(), "only http and https") {
		t.Fatalf("expected scheme error, got %v", err)
	}
}
