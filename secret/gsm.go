package secret

import (
	"context"
	"fmt"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
)

// GoogleSecretManager fetches the latest version of a named secret from
// Google Cloud Secret Manager, the production key-material source.
type GoogleSecretManager struct {
	projectID string
	client    *secretmanager.Client
}

func NewGoogleSecretManager(ctx context.Context, projectID string) (*GoogleSecretManager, error) {
	c, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize google secret manager client: %w", err)
	}

	return &GoogleSecretManager{client: c, projectID: projectID}, nil
}

func (m *GoogleSecretManager) Get(ctx context.Context, name string) (Secret, error) {
	req := &secretmanagerpb.AccessSecretVersionRequest{
		Name: fmt.Sprintf("projects/%s/secrets/%s/versions/latest", m.projectID, name),
	}

	r, err := m.client.AccessSecretVersion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to access secret: %w", err)
	}

	return r.Payload.Data, nil
}

func (m *GoogleSecretManager) Close() error { return m.client.Close() }
