// Package upload pushes message attachments to the CDN before the message
// carrying them is emitted. A failed upload aborts that send entirely; the
// message is never sent half-formed.
package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/google/uuid"

	"vanish-client/internal/config"
)

var (
	ErrNotConfigured   = errors.New("upload endpoint is not configured")
	ErrTooLarge        = errors.New("attachment exceeds the size limit")
	ErrUnsupportedType = errors.New("attachment content type is not supported")
)

// acceptedTypes mirrors what the room UI lets users attach.
var acceptedTypes = map[string]string{
	"application/pdf": ".pdf",
	"image/jpeg":      ".jpg",
	"image/jpg":       ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"image/gif":       ".gif",
	"video/mp4":       ".mp4",
	"video/webm":      ".webm",
}

type Uploader struct {
	apiURL       string
	cdnURL       string
	clientID     string
	clientSecret string
	maxBytes     int64
	httpClient   *http.Client
}

func New(cfg config.UploadConfig) *Uploader {
	return &Uploader{
		apiURL:       cfg.APIURL,
		cdnURL:       cfg.CDNURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		maxBytes:     cfg.MaxBytes,
		httpClient:   &http.Client{Timeout: 60 * time.Second},
	}
}

// Upload pushes one attachment and returns its public CDN URL.
func (u *Uploader) Upload(ctx context.Context, contentType string, r io.Reader, size int64) (string, error) {
	if u.apiURL == "" || u.cdnURL == "" {
		return "", ErrNotConfigured
	}
	if u.maxBytes > 0 && size > u.maxBytes {
		return "", ErrTooLarge
	}
	ext, ok := acceptedTypes[contentType]
	if !ok {
		return "", ErrUnsupportedType
	}

	token, err := u.fetchToken(ctx)
	if err != nil {
		return "", fmt.Errorf("upload auth: %w", err)
	}

	name := fmt.Sprintf("%d-%s%s", time.Now().UnixMilli(), uuid.NewString()[:8], ext)
	remotePath := path.Join("/attachments", name)

	endpoint := fmt.Sprintf("%s/files/upload?filename=%s", u.apiURL, url.QueryEscape(remotePath))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, r)
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", contentType)
	if size > 0 {
		req.ContentLength = size
	}

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("upload failed (status %d): %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	return u.cdnURL + remotePath, nil
}

func (u *Uploader) fetchToken(ctx context.Context) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"clientId":     u.clientID,
		"clientSecret": u.clientSecret,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.apiURL+"/token", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token fetch failed: %s", resp.Status)
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	return out.Token, nil
}
