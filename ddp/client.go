package ddp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/ddp-org/detectbot/analysis"
	"github.com/ddp-org/detectbot/auth"
)

type Client struct {
	baseURL    string
	wsURL      string
	tokens     auth.TokenSource
	HTTPClient *http.Client
	Dialer     *websocket.Dialer
}

func NewClient(tokens auth.TokenSource, baseURL url.URL, wsURL url.URL) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL.String(), "/"),
		wsURL:      strings.TrimRight(wsURL.String(), "/"),
		tokens:     tokens,
		HTTPClient: http.DefaultClient,
		Dialer:     websocket.DefaultDialer,
	}
}

func (c *Client) bearer(ctx context.Context) (string, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Bearer %s", token), nil
}

// SubmitFile uploads a local media file and returns its backend handle.
// The MIME type is inferred from the filename extension; unrecognized
// extensions fall back to a generic type for the declared kind.
func (c *Client) SubmitFile(ctx context.Context, r io.Reader, filename string, kind MediaKind) (MediaID, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreatePart(fileHeader(filename, inferMIME(filename, kind)))
	if err != nil {
		return "", err
	}
	if _, err = io.Copy(part, r); err != nil {
		return "", err
	}
	if err = w.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/videos/upload", c.baseURL), &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return c.doSubmit(ctx, req)
}

// SubmitLink registers a remote media URL and returns its backend
// handle. The backend downloads the media asynchronously; Trigger may
// answer not-ready until that finishes.
func (c *Client) SubmitLink(ctx context.Context, mediaURL string) (MediaID, error) {
	if strings.TrimSpace(mediaURL) == "" {
		return "", errors.New("empty media URL")
	}
	reqBody, err := json.Marshal(linkRequest{URL: mediaURL})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/videos/link", c.baseURL), bytes.NewReader(reqBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doSubmit(ctx, req)
}

func (c *Client) doSubmit(ctx context.Context, req *http.Request) (MediaID, error) {
	authz, err := c.bearer(ctx)
	if err != nil {
		return "", err
	}
	req.Header.Add("Authorization", authz)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &SubmissionError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var sr submitResponse
	if err = json.Unmarshal(body, &sr); err != nil {
		return "", err
	}
	return MediaID(sr.VideoID.String()), nil
}

// Trigger asks the backend to start analysis of a media item in the
// given mode. A conflict answer means the source is still being
// ingested and maps to ErrSourceNotReady; retrying it is the service
// layer's job. Triggering an already-queued handle is safe.
func (c *Client) Trigger(ctx context.Context, id MediaID, mode analysis.Mode) error {
	u, err := url.Parse(fmt.Sprintf("%s/prediction/%s", c.baseURL, mode))
	if err != nil {
		return err
	}
	q := u.Query()
	q.Add("video_id", string(id))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), nil)
	if err != nil {
		return err
	}
	authz, err := c.bearer(ctx)
	if err != nil {
		return err
	}
	req.Header.Add("Authorization", authz)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode <= 299:
		return nil
	case resp.StatusCode == http.StatusConflict:
		return ErrSourceNotReady
	default:
		return &TriggerError{StatusCode: resp.StatusCode, Body: string(body)}
	}
}

// Status reports the backend's processing state for a media item, with
// the result handle once completed.
func (c *Client) Status(ctx context.Context, id MediaID) (*StatusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/prediction/status/%s", c.baseURL, id), nil)
	if err != nil {
		return nil, err
	}
	authz, err := c.bearer(ctx)
	if err != nil {
		return nil, err
	}
	req.Header.Add("Authorization", authz)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status check failed (%d): %s", resp.StatusCode, string(body))
	}

	var sr StatusResponse
	if err = json.Unmarshal(body, &sr); err != nil {
		return nil, err
	}
	return &sr, nil
}

// FetchResult retrieves and parses the raw result payload. One shot:
// failures surface as FetchError, never retried here.
func (c *Client) FetchResult(ctx context.Context, id ResultID) (analysis.RawResult, error) {
	var raw analysis.RawResult

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/prediction/result/%s", c.baseURL, id), nil)
	if err != nil {
		return raw, &FetchError{Err: err}
	}
	authz, err := c.bearer(ctx)
	if err != nil {
		return raw, err
	}
	req.Header.Add("Authorization", authz)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return raw, &FetchError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return raw, &FetchError{Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return raw, &FetchError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	raw, err = analysis.ParseRawResult(body)
	if err != nil {
		return raw, &FetchError{Err: err}
	}
	return raw, nil
}

// Report files a deepfake report for a result and grants reward
// points. The backend deduplicates by result id; a duplicate comes
// back as a ReportError whose AlreadyReported method returns true.
func (c *Client) Report(ctx context.Context, id ResultID) (*ReportResponse, error) {
	reqBody, err := json.Marshal(reportRequest{ResultID: id})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/alerts", c.baseURL), bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	authz, err := c.bearer(ctx)
	if err != nil {
		return nil, err
	}
	req.Header.Add("Authorization", authz)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var ed errorDetail
		detail := string(body)
		if json.Unmarshal(body, &ed) == nil && ed.Detail != "" {
			detail = ed.Detail
		}
		return nil, &ReportError{StatusCode: resp.StatusCode, Detail: detail}
	}

	var rr ReportResponse
	if err = json.Unmarshal(body, &rr); err != nil {
		return nil, err
	}
	return &rr, nil
}

func fileHeader(filename string, contentType string) textproto.MIMEHeader {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filepath.Base(filename)))
	h.Set("Content-Type", contentType)
	return h
}

func inferMIME(filename string, kind MediaKind) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".gif":
		return "image/gif"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".mp4":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".webm":
		return "video/webm"
	}
	if kind == MediaKindImage {
		return "image/jpeg"
	}
	return "video/mp4"
}
