package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const clinicPage = `<!DOCTYPE html>
<html>
<head><title>Campus Clinic Notice</title></head>
<body>
<nav><a href="/">Home</a><a href="/news">News</a></nav>
<article>
<h1>Campus Clinic Notice</h1>
<p>The campus clinic stays open during the winter holiday from 9am to 5pm.</p>
<p>Emergency services remain available around the clock at the main hospital.</p>
<p>Students should bring their campus card when visiting the clinic for registration.</p>
</article>
<footer>Copyright</footer>
<script>console.log("tracking")</script>
</body>
</html>`

func TestFetchReadableExtractsContent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(clinicPage))
	}))
	defer ts.Close()

	title, content, err := fetchReadable(context.Background(), ts.Client(), ts.URL)
	if err != nil {
		t.Fatalf("fetchReadable: %v", err)
	}
	if !strings.Contains(title, "Campus Clinic") {
		t.Errorf("title = %q", title)
	}
	if !strings.Contains(content, "winter holiday from 9am to 5pm") {
		t.Errorf("content missing body text: %q", content)
	}
	if strings.Contains(content, "console.log") {
		t.Error("content contains script text")
	}
}

func TestFetchReadableRejectsBadScheme(t *testing.T) {
	client := httpClient()
	if _, _, err := fetchReadable(context.Background(), client, "ftp://example.com/x"); err == nil {
		t.Error("ftp url should be rejected")
	}
}

func TestFetchReadableNon200(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	if _, _, err := fetchReadable(context.Background(), ts.Client(), ts.URL); err == nil {
		t.Error("404 page should return an error")
	}
}
