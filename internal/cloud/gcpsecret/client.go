// Package gcpsecret retrieves the lock-signing key from GCP Secret
// Manager when it is not available on local disk, generalizing the
// teacher's internal/cloud/gcp.SecretManagerClient from fetching agent
// auth tokens to fetching the signing key behind lock.SignedLockCodec.
package gcpsecret

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
)

// Fetcher retrieves a named secret's latest version payload.
type Fetcher interface {
	FetchSecret(ctx context.Context, secretPath string) (string, error)
	Close() error
}

// Client wraps the GCP Secret Manager client.
type Client struct {
	client    *secretmanager.Client
	projectID string
}

// NewClient creates a Secret Manager client scoped to projectID.
func NewClient(ctx context.Context, projectID string) (*Client, error) {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create secret manager client: %w", err)
	}
	return &Client{client: client, projectID: projectID}, nil
}

// FetchSecret retrieves a secret's latest version. secretPath may be a
// bare secret name (resolved against Client's projectID) or a fully
// qualified "projects/.../secrets/.../versions/..." path.
func (c *Client) FetchSecret(ctx context.Context, secretPath string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	name := c.normalizeSecretPath(secretPath)

	result, err := c.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		return "", fmt.Errorf("failed to access secret version: %w", err)
	}
	return string(result.Payload.Data), nil
}

func (c *Client) normalizeSecretPath(secretPath string) string {
	if strings.HasPrefix(secretPath, "projects/") && strings.Contains(secretPath, "/versions/") {
		return secretPath
	}
	if strings.HasPrefix(secretPath, "projects/") && strings.Contains(secretPath, "/secrets/") {
		return secretPath + "/versions/latest"
	}
	secretName := path.Base(secretPath)
	return fmt.Sprintf("projects/%s/secrets/%s/versions/latest", c.projectID, secretName)
}

// Close closes the underlying Secret Manager client.
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

var _ Fetcher = (*Client)(nil)
