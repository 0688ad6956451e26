package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrConflict is returned when the contents API rejects a write because
// the supplied sha no longer matches the file's current revision.
var ErrConflict = errors.New("github: file changed since last fetch")

// File is one revision of the playlist document. SHA is the opaque
// version token required as a precondition on the next write.
type File struct {
	Content []byte
	SHA     string
}

type ContentsClient interface {
	Fetch(ctx context.Context, token string) (File, error)
	Write(ctx context.Context, token string, content []byte, sha, message string) error
}

type client struct {
	baseURL string
	owner   string
	repo    string
	branch  string
	path    string

	log        *zap.Logger
	httpClient *http.Client
}

func NewClient(baseURL, owner, repo, branch, path string, log *zap.Logger) ContentsClient {
	return &client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		owner:   owner,
		repo:    repo,
		branch:  branch,
		path:    path,
		log:     log,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type contentsResponse struct {
	Content string `json:"content"`
	SHA     string `json:"sha"`
}

type updateRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	SHA     string `json:"sha"`
	Branch  string `json:"branch"`
}

type apiError struct {
	Message string `json:"message"`
}

func (c *client) contentsURL() string {
	return fmt.Sprintf("%s/repos/%s/%s/contents/%s", c.baseURL, c.owner, c.repo, c.path)
}

func (c *client) Fetch(ctx context.Context, token string) (File, error) {
	url := c.contentsURL() + "?ref=" + c.branch

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return File{}, fmt.Errorf("failed to create fetch request: %w", err)
	}
	c.setHeaders(req, token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return File{}, fmt.Errorf("failed to fetch playlist file: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return File{}, fmt.Errorf("failed to read fetch response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return File{}, fmt.Errorf("github: %s", decodeAPIMessage(body, resp.StatusCode))
	}

	var contents contentsResponse
	if err := json.Unmarshal(body, &contents); err != nil {
		return File{}, fmt.Errorf("failed to decode contents response: %w", err)
	}

	// The API wraps base64 payloads at 60 columns.
	raw, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(contents.Content, "\n", ""))
	if err != nil {
		return File{}, fmt.Errorf("failed to decode file content: %w", err)
	}

	return File{Content: raw, SHA: contents.SHA}, nil
}

func (c *client) Write(ctx context.Context, token string, content []byte, sha, message string) error {
	payload, err := json.Marshal(updateRequest{
		Message: message,
		Content: base64.StdEncoding.EncodeToString(content),
		SHA:     sha,
		Branch:  c.branch,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal update request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.contentsURL(), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create update request: %w", err)
	}
	c.setHeaders(req, token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to update playlist file: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read update response: %w", err)
	}

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
		return nil
	}

	// 409 is the sha-mismatch rejection; 422 shows up for the same
	// condition on some repos.
	if resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusUnprocessableEntity {
		c.log.Info("Conditional write rejected", zap.Int("status", resp.StatusCode), zap.String("sha", sha))
		return fmt.Errorf("%w: %s", ErrConflict, decodeAPIMessage(body, resp.StatusCode))
	}

	return fmt.Errorf("github: %s", decodeAPIMessage(body, resp.StatusCode))
}

func (c *client) setHeaders(req *http.Request, token string) {
	req.Header.Set("Authorization", "token "+token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "M3U-Bot")
}

func decodeAPIMessage(body []byte, statusCode int) string {
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		return apiErr.Message
	}
	return fmt.Sprintf("unexpected status %d", statusCode)
}
