package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/accessdeploy/models"
)

// CMSAPIAdapter mutates assets through a content-management REST API.
// All writes are full-content overwrites keyed by asset path, so retrying a
// timed-out write cannot corrupt the asset.
type CMSAPIAdapter struct {
	client        *http.Client
	retryAttempts int
}

// NewCMSAPIAdapter creates a CMS API adapter
func NewCMSAPIAdapter(retryAttempts int) *CMSAPIAdapter {
	return &CMSAPIAdapter{
		client:        &http.Client{Timeout: 30 * time.Second},
		retryAttempts: retryAttempts,
	}
}

// statusError carries a non-2xx response for retry classification
type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("cms api returned status %d: %s", e.Code, e.Body)
}

// cmsRetryable treats network errors, rate limits and server errors as
// transient. Client errors are permanent.
func cmsRetryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}
	var ne net.Error
	return errors.As(err, &ne)
}

type cmsAssetPayload struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Apply executes one file change against the CMS content API
func (a *CMSAPIAdapter) Apply(ctx context.Context, conn models.Connection, creds models.CredentialData, change models.FileChange) (models.AssetResult, error) {
	var err error
	if change.Kind == models.ChangeKindDelete {
		err = a.delete(ctx, conn, creds, change.Path)
	} else {
		err = a.write(ctx, conn, creds, change.Path, change.After)
	}
	if err != nil {
		return models.AssetResult{}, fmt.Errorf("cms apply %s: %w", change.Path, err)
	}
	return models.AssetResult{AssetKey: change.Path, AppliedAt: time.Now().UTC()}, nil
}

// Restore replays one backup through the CMS content API
func (a *CMSAPIAdapter) Restore(ctx context.Context, conn models.Connection, creds models.CredentialData, backup models.Backup) (models.AssetResult, error) {
	var err error
	if backup.Absent() {
		err = a.delete(ctx, conn, creds, backup.AssetKey)
	} else {
		err = a.write(ctx, conn, creds, backup.AssetKey, *backup.OriginalContent)
	}
	if err != nil {
		return models.AssetResult{}, fmt.Errorf("cms restore %s: %w", backup.AssetKey, err)
	}
	return models.AssetResult{AssetKey: backup.AssetKey, AppliedAt: time.Now().UTC()}, nil
}

// Read fetches the current content of an asset, nil if it does not exist
func (a *CMSAPIAdapter) Read(ctx context.Context, conn models.Connection, creds models.CredentialData, path string) (*string, error) {
	var content *string
	err := withRetry(ctx, a.retryAttempts, cmsRetryable, func() error {
		req, err := a.newRequest(ctx, conn, creds, http.MethodGet, path, nil)
		if err != nil {
			return err
		}
		resp, err := a.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			content = nil
			return nil
		}
		if resp.StatusCode != http.StatusOK {
			return readStatusError(resp)
		}

		var payload cmsAssetPayload
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			return fmt.Errorf("decoding asset response: %v", err)
		}
		content = &payload.Content
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cms read %s: %w", path, err)
	}
	return content, nil
}

func (a *CMSAPIAdapter) write(ctx context.Context, conn models.Connection, creds models.CredentialData, path, content string) error {
	body, err := json.Marshal(cmsAssetPayload{Path: path, Content: content})
	if err != nil {
		return err
	}
	return withRetry(ctx, a.retryAttempts, cmsRetryable, func() error {
		req, err := a.newRequest(ctx, conn, creds, http.MethodPut, path, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := a.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
			return readStatusError(resp)
		}
		return nil
	})
}

func (a *CMSAPIAdapter) delete(ctx context.Context, conn models.Connection, creds models.CredentialData, path string) error {
	return withRetry(ctx, a.retryAttempts, cmsRetryable, func() error {
		req, err := a.newRequest(ctx, conn, creds, http.MethodDelete, path, nil)
		if err != nil {
			return err
		}
		resp, err := a.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		// Deleting an already-deleted asset is a success
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusNotFound {
			return readStatusError(resp)
		}
		return nil
	})
}

func (a *CMSAPIAdapter) newRequest(ctx context.Context, conn models.Connection, creds models.CredentialData, method, path string, body io.Reader) (*http.Request, error) {
	endpoint := fmt.Sprintf("%s/assets?path=%s", conn.Endpoint, url.QueryEscape(path))
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	if token := creds["token"]; token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	} else if user := creds["username"]; user != "" {
		req.SetBasicAuth(user, creds["password"])
	}
	return req, nil
}

func readStatusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &statusError{Code: resp.StatusCode, Body: string(body)}
}
