// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/agentlens/internal/trace"
	"github.com/pdiddy/agentlens/pkg/types"
)

func testCfg() types.FetchConfig {
	return types.FetchConfig{
		HTTPConfig: types.HTTPConfig{Timeout: 2 * time.Second, UserAgent: "test/0.1"},
		MaxChars:   6000,
	}
}

func TestExtractTextStripsScriptsAndCollapsesWhitespace(t *testing.T) {
	page := `<html><head><title>T</title><style>body{color:red}</style>
<script>var x = 1;</script></head>
<body><h1>Hello</h1>
   <p>World   of
   text</p><noscript>enable js</noscript><!-- hidden --></body></html>`

	got, err := ExtractText(strings.NewReader(page))
	require.NoError(t, err)
	assert.Equal(t, "T Hello World of text", got)
}

func TestFetchReturnsText(t *testing.T) {
	var ua string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		fmt.Fprint(w, `<html><body><p>Go is a language.</p><script>x()</script></body></html>`)
	}))
	defer ts.Close()

	f := New(ts.Client(), testCfg(), nil)
	assert.Equal(t, "Go is a language.", f.Fetch(context.Background(), ts.URL))
	assert.Equal(t, "test/0.1", ua)
}

func TestFetchFollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "<p>moved here</p>")
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	f := New(ts.Client(), testCfg(), nil)
	assert.Equal(t, "moved here", f.Fetch(context.Background(), ts.URL+"/old"))
}

func TestFetchTruncates(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, "<p>%s</p>", strings.Repeat("é", 10000))
	}))
	defer ts.Close()

	f := New(ts.Client(), testCfg(), nil)
	got := f.Fetch(context.Background(), ts.URL)
	assert.Equal(t, 6000, len([]rune(got)))
}

func TestFetchFailuresYieldEmpty(t *testing.T) {
	notFound := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "missing", http.StatusNotFound)
	}))
	defer notFound.Close()

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()

	tests := []struct {
		name string
		url  string
		cfg  types.FetchConfig
	}{
		{"http status", notFound.URL, testCfg()},
		{"malformed url", "://bad", testCfg()},
		{"connection refused", "http://127.0.0.1:1", testCfg()},
		{"timeout", slow.URL, types.FetchConfig{HTTPConfig: types.HTTPConfig{Timeout: 50 * time.Millisecond}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New(nil, tt.cfg, nil)
			assert.Equal(t, "", f.Fetch(context.Background(), tt.url))
		})
	}
}

func TestFetchEmitsToolEvents(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "<p>abc</p>")
	}))
	defer ts.Close()

	var kinds []string
	ctx := trace.WithObserver(context.Background(), trace.FuncObserver(func(e trace.Event) {
		kinds = append(kinds, e.Kind)
	}))

	New(ts.Client(), testCfg(), nil).Fetch(ctx, ts.URL)
	assert.Equal(t, []string{trace.ToolStart, trace.ToolEnd}, kinds)
}
