package upload

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vanish-client/internal/config"
)

// fakeCDN serves the token and upload endpoints and records what arrived.
type fakeCDN struct {
	srv *httptest.Server

	tokenStatus  int
	uploadStatus int

	gotClientID string
	gotAuth     string
	gotFilename string
	gotBody     []byte
}

func newFakeCDN(t *testing.T) *fakeCDN {
	t.Helper()
	f := &fakeCDN{tokenStatus: http.StatusOK, uploadStatus: http.StatusOK}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			ClientID string `json:"clientId"`
		}
		json.NewDecoder(r.Body).Decode(&payload)
		f.gotClientID = payload.ClientID
		if f.tokenStatus != http.StatusOK {
			w.WriteHeader(f.tokenStatus)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"token": "cdn-token"})
	})
	mux.HandleFunc("/files/upload", func(w http.ResponseWriter, r *http.Request) {
		f.gotAuth = r.Header.Get("Authorization")
		f.gotFilename = r.URL.Query().Get("filename")
		f.gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(f.uploadStatus)
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeCDN) uploader() *Uploader {
	return New(config.UploadConfig{
		APIURL:       f.srv.URL,
		CDNURL:       "https://cdn.example",
		ClientID:     "client-1",
		ClientSecret: "secret-1",
		MaxBytes:     1024,
	})
}

func TestUploadFlow(t *testing.T) {
	cdn := newFakeCDN(t)
	u := cdn.uploader()

	body := "png-bytes"
	url, err := u.Upload(context.Background(), "image/png", strings.NewReader(body), int64(len(body)))
	require.NoError(t, err)

	assert.Equal(t, "client-1", cdn.gotClientID, "token fetch identifies the client")
	assert.Equal(t, "Bearer cdn-token", cdn.gotAuth)
	assert.Equal(t, body, string(cdn.gotBody))

	assert.True(t, strings.HasPrefix(url, "https://cdn.example/attachments/"), "got %s", url)
	assert.True(t, strings.HasSuffix(url, ".png"), "got %s", url)
	assert.True(t, strings.HasPrefix(cdn.gotFilename, "/attachments/"))
}

func TestUploadRejectsOversize(t *testing.T) {
	cdn := newFakeCDN(t)
	u := cdn.uploader()

	_, err := u.Upload(context.Background(), "image/png", strings.NewReader("x"), 2048)
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.Empty(t, cdn.gotClientID, "nothing is sent for a rejected attachment")
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	cdn := newFakeCDN(t)
	u := cdn.uploader()

	_, err := u.Upload(context.Background(), "application/zip", strings.NewReader("x"), 1)
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestUploadExtensionFollowsContentType(t *testing.T) {
	tests := []struct {
		contentType string
		ext         string
	}{
		{"application/pdf", ".pdf"},
		{"image/jpeg", ".jpg"},
		{"video/mp4", ".mp4"},
	}
	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			cdn := newFakeCDN(t)
			u := cdn.uploader()
			url, err := u.Upload(context.Background(), tt.contentType, strings.NewReader("x"), 1)
			require.NoError(t, err)
			assert.True(t, strings.HasSuffix(url, tt.ext), "got %s", url)
		})
	}
}

func TestUploadTokenFetchFailure(t *testing.T) {
	cdn := newFakeCDN(t)
	cdn.tokenStatus = http.StatusUnauthorized
	u := cdn.uploader()

	_, err := u.Upload(context.Background(), "image/png", strings.NewReader("x"), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upload auth")
}

func TestUploadServerFailure(t *testing.T) {
	cdn := newFakeCDN(t)
	cdn.uploadStatus = http.StatusInternalServerError
	u := cdn.uploader()

	_, err := u.Upload(context.Background(), "image/png", strings.NewReader("x"), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestUploadUnconfigured(t *testing.T) {
	u := New(config.UploadConfig{})
	_, err := u.Upload(context.Background(), "image/png", strings.NewReader("x"), 1)
	assert.ErrorIs(t, err, ErrNotConfigured)
}
