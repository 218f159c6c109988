package idp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Tenant describes a provider-side organisation the user had connected at
// sign-up time.
type Tenant struct {
	TenantID   string `bson:"tenantId" json:"tenantId"`
	TenantType string `bson:"tenantType,omitempty" json:"tenantType,omitempty"`
	TenantName string `bson:"tenantName,omitempty" json:"tenantName,omitempty"`
}

// Connections lists the tenants visible to the access token. With
// identity-only scopes the provider typically returns an empty list; callers
// treat the result as best-effort context, not a requirement.
func (c *Client) Connections(ctx context.Context, ts *TokenSet) ([]Tenant, error) {
	if c.connectionsURL == "" {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.connectionsURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+ts.AccessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("connections endpoint returned %d: %s", resp.StatusCode, string(b))
	}

	var tenants []Tenant
	if err := json.NewDecoder(resp.Body).Decode(&tenants); err != nil {
		return nil, err
	}
	return tenants, nil
}
