// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package envinfo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultIMDSBase is the link-local instance metadata endpoint.
	DefaultIMDSBase = "http://169.254.169.254"

	// imdsTimeout bounds every metadata query; any failure within the
	// budget is treated as "identity unknown", never as fatal.
	imdsTimeout = 3 * time.Second

	// maxIMDSBody caps the response size read from the endpoint.
	maxIMDSBody = 4 << 10

	tokenPath      = "/latest/api/token"
	instanceIDPath = "/latest/meta-data/instance-id"

	tokenTTLHeader = "X-aws-ec2-metadata-token-ttl-seconds"
	tokenHeader    = "X-aws-ec2-metadata-token"
)

// IMDSClient queries the EC2 instance metadata service with a short,
// bounded timeout. It prefers IMDSv2 session tokens and falls back to
// unauthenticated v1 requests when the token endpoint is unavailable.
type IMDSClient struct {
	// BaseURL is the metadata endpoint, overridable for tests.
	BaseURL string

	// HTTPClient performs the requests. Defaults to a 3s-timeout client.
	HTTPClient *http.Client
}

// NewIMDSClient creates a client against the link-local endpoint.
func NewIMDSClient() *IMDSClient {
	return &IMDSClient{
		BaseURL:    DefaultIMDSBase,
		HTTPClient: &http.Client{Timeout: imdsTimeout},
	}
}

// InstanceID returns the EC2 instance id of the local node.
func (c *IMDSClient) InstanceID(ctx context.Context) (string, error) {
	return c.get(ctx, instanceIDPath)
}

func (c *IMDSClient) get(ctx context.Context, path string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, imdsTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build metadata request: %w", err)
	}

	// Token failures downgrade to v1 rather than failing the query.
	if token, tokenErr := c.token(ctx); tokenErr == nil && token != "" {
		req.Header.Set(tokenHeader, token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("metadata query failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("metadata query returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxIMDSBody))
	if err != nil {
		return "", fmt.Errorf("failed to read metadata response: %w", err)
	}

	return strings.TrimSpace(string(body)), nil
}

func (c *IMDSClient) token(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.BaseURL+tokenPath, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set(tokenTTLHeader, "60")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxIMDSBody))
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(body)), nil
}
