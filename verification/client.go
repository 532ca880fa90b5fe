// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package verification

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// maxResponseBytes bounds how much of a collaborator response is read.
const maxResponseBytes = 4 << 20

type httpClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func newHTTPClient(baseURL, apiKey string, timeout time.Duration) httpClient {
	return httpClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c httpClient) do(ctx context.Context, method, path, contentType string, body io.Reader, header http.Header, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%w: build request: %w", ErrUpstream, err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrUpstream, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: read %s: %w", ErrUpstream, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s %s returned status %d", ErrUpstream, method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decode %s: %w", ErrUpstream, path, err)
	}
	return nil
}

func (c httpClient) postJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, "application/json", bytes.NewReader(body), nil, out)
}

// StorageClient stores uploads in an HTTP object store.
type StorageClient struct {
	c httpClient
}

func NewStorageClient(baseURL, apiKey string, timeout time.Duration) *StorageClient {
	return &StorageClient{c: newHTTPClient(baseURL, apiKey, timeout)}
}

func (s *StorageClient) Put(ctx context.Context, folder string, u Upload) (string, error) {
	header := http.Header{}
	header.Set("X-Filename", u.Filename)

	var out struct {
		URL string `json:"url"`
	}
	path := "/objects/" + url.PathEscape(folder)
	if err := s.c.do(ctx, http.MethodPost, path, u.ContentType, bytes.NewReader(u.Data), header, &out); err != nil {
		return "", err
	}
	if out.URL == "" {
		return "", fmt.Errorf("%w: object store returned no url", ErrUpstream)
	}
	return out.URL, nil
}

// DocumentClient asks a text extraction service to read a stored PDF.
type DocumentClient struct {
	c httpClient
}

func NewDocumentClient(baseURL, apiKey string, timeout time.Duration) *DocumentClient {
	return &DocumentClient{c: newHTTPClient(baseURL, apiKey, timeout)}
}

func (d *DocumentClient) ExtractText(ctx context.Context, documentURL string) (string, error) {
	var out struct {
		Text string `json:"text"`
	}
	if err := d.c.postJSON(ctx, "/extract", map[string]string{"url": documentURL}, &out); err != nil {
		return "", err
	}
	return out.Text, nil
}

// FaceClient talks to a face recognition service with detect, recognize,
// save and train endpoints.
type FaceClient struct {
	c httpClient
}

func NewFaceClient(baseURL, apiKey string, timeout time.Duration) *FaceClient {
	return &FaceClient{c: newHTTPClient(baseURL, apiKey, timeout)}
}

func (f *FaceClient) Detect(ctx context.Context, imageURL string) (string, error) {
	var out struct {
		Faces []struct {
			TID string `json:"tid"`
		} `json:"faces"`
	}
	if err := f.c.postJSON(ctx, "/faces/detect", map[string]string{"url": imageURL}, &out); err != nil {
		return "", err
	}
	if len(out.Faces) == 0 {
		return "", nil
	}
	return out.Faces[0].TID, nil
}

func (f *FaceClient) Search(ctx context.Context, imageURL, namespace string) (Match, bool, error) {
	var out struct {
		Matches []struct {
			UID        string  `json:"uid"`
			Confidence float64 `json:"confidence"`
		} `json:"matches"`
	}
	in := map[string]string{"url": imageURL, "namespace": namespace}
	if err := f.c.postJSON(ctx, "/faces/recognize", in, &out); err != nil {
		return Match{}, false, err
	}

	var best Match
	for _, m := range out.Matches {
		if m.Confidence > best.Confidence {
			best = Match{UID: m.UID, Confidence: m.Confidence}
		}
	}
	return best, best.UID != "", nil
}

func (f *FaceClient) Register(ctx context.Context, faceID, uid string) error {
	if err := f.c.postJSON(ctx, "/tags/save", map[string]string{"tid": faceID, "uid": uid}, nil); err != nil {
		return err
	}
	return f.c.postJSON(ctx, "/faces/train", map[string]string{"uid": uid}, nil)
}
