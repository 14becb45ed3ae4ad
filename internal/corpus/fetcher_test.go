package corpus

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetcher_Search(t *testing.T) {
	var gotBody, gotDigest, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		gotDigest = r.Header.Get("X-RequestDigest")
		gotContentType = r.Header.Get("Content-Type")
		_, _ = w.Write([]byte(sharePointResponse))
	}))
	defer srv.Close()

	f := NewFetcher(FetcherConfig{Endpoint: srv.URL, RequestDigest: "0xABC", RowLimit: 10}, nil)

	pages, err := f.Search(context.Background(), `ICMS & "ST"`)
	require.NoError(t, err)
	assert.Len(t, pages, 2)

	assert.Equal(t, "0xABC", gotDigest)
	assert.Equal(t, "text/xml", gotContentType)
	assert.Contains(t, gotBody, `<Parameter Type="String">ICMS &amp; &#34;ST&#34;</Parameter>`)
	assert.Contains(t, gotBody, `Name="RowLimit"><Parameter Type="Number">10</Parameter>`)
}

func TestFetcher_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, strings.Repeat("forbidden ", 50), http.StatusForbidden)
	}))
	defer srv.Close()

	f := NewFetcher(FetcherConfig{Endpoint: srv.URL}, nil)

	_, err := f.Fetch(context.Background(), "ICMS")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
	assert.Contains(t, err.Error(), "...")
}

func TestFetcher_ContextCancelled(t *testing.T) {
	f := NewFetcher(FetcherConfig{Endpoint: "http://127.0.0.1:1"}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Fetch(ctx, "ICMS")
	assert.Error(t, err)
}
