package report

import (
	"context"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderHTMLPostsMultipartDocument(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/forms/chromium/convert/html", r.URL.Path)
		mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		assert.NoError(t, err)
		assert.Equal(t, "multipart/form-data", mediaType)
		file, header, err := r.FormFile("files")
		if assert.NoError(t, err) {
			defer file.Close()
			body, _ := io.ReadAll(file)
			assert.Equal(t, "index.html", header.Filename)
			assert.Equal(t, "<html>invoice</html>", string(body))
		}
		_, _ = w.Write([]byte("%PDF-1.7"))
	}))
	t.Cleanup(server.Close)

	pdf, err := NewClient(server.URL+"/", Options{}).RenderHTML(context.Background(), "<html>invoice</html>")
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7", string(pdf))
}

func TestRenderHTMLRetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("%PDF"))
	}))
	t.Cleanup(server.Close)

	pdf, err := NewClient(server.URL, Options{Retries: 1}).RenderHTML(context.Background(), "<html></html>")
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(pdf))
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestRenderHTMLDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	t.Cleanup(server.Close)

	_, err := NewClient(server.URL, Options{Retries: 3}).RenderHTML(context.Background(), "<html></html>")
	require.ErrorIs(t, err, ErrInvalidResponse)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestRenderHTMLTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		_, _ = w.Write([]byte("%PDF"))
	}))
	t.Cleanup(server.Close)

	_, err := NewClient(server.URL, Options{Timeout: 10 * time.Millisecond}).RenderHTML(context.Background(), "<html></html>")
	require.ErrorIs(t, err, ErrTimeout)
}

func TestPing(t *testing.T) {
	var healthy atomic.Bool
	healthy.Store(true)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/health"))
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	t.Cleanup(server.Close)

	client := NewClient(server.URL, Options{})
	require.NoError(t, client.Ping(context.Background()))
	healthy.Store(false)
	require.ErrorIs(t, client.Ping(context.Background()), ErrInvalidResponse)
}
