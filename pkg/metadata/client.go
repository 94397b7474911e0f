// Package metadata reads instance identity facts from the EC2 instance
// metadata service using the IMDSv2 token handshake.
package metadata

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"vmi/pkg/errors"
)

// Well-known metadata paths.
const (
	tokenPath            = "latest/api/token"
	instanceIDPath       = "latest/meta-data/instance-id"
	availabilityZonePath = "latest/meta-data/placement/availability-zone"

	tokenTTLHeader = "X-aws-ec2-metadata-token-ttl-seconds"
	tokenHeader    = "X-aws-ec2-metadata-token"
)

// ErrAuth marks failures of the token handshake, as opposed to failures
// reading values with an already-acquired token.
var ErrAuth = stderrors.New("metadata authentication failed")

// Identity describes the instance the process is running on.
type Identity struct {
	InstanceID       string
	AvailabilityZone string
}

// Client talks to the local instance metadata endpoint. The HTTP client is
// injected by the caller and carries the per-call timeout; there is no
// package-level shared client.
type Client struct {
	httpClient *http.Client
	endpoint   string
	tokenTTL   time.Duration
}

// NewClient creates a metadata client against the given endpoint
// (e.g. http://169.254.169.254). Every request is bounded by timeout;
// tokens are requested with the given TTL.
func NewClient(endpoint string, tokenTTL, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   endpoint,
		tokenTTL:   tokenTTL,
	}
}

// AcquireToken performs the IMDSv2 token handshake and returns the session
// token. The token stays valid for the client's configured TTL.
func (c *Client) AcquireToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.endpoint+"/"+tokenPath, nil)
	if err != nil {
		return "", errors.Wrap(err, "failed to build token request")
	}
	req.Header.Set(tokenTTLHeader, strconv.Itoa(int(c.tokenTTL.Seconds())))

	token, err := c.send(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAuth, err)
	}
	return token, nil
}

// ReadValue fetches a single metadata value, presenting the token in the
// session header. The raw body is returned as text.
func (c *Client) ReadValue(ctx context.Context, token, path string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/"+path, nil)
	if err != nil {
		return "", errors.Wrap(err, "failed to build metadata request")
	}
	req.Header.Set(tokenHeader, token)

	value, err := c.send(req)
	if err != nil {
		return "", errors.Wrap(err, "failed to read metadata value "+path)
	}
	return value, nil
}

// ResolveIdentity acquires one token and reads the instance id and
// availability zone with it. The token TTL outlives the whole sequence, so
// the token is acquired exactly once.
func (c *Client) ResolveIdentity(ctx context.Context) (*Identity, error) {
	token, err := c.AcquireToken(ctx)
	if err != nil {
		return nil, err
	}

	instanceID, err := c.ReadValue(ctx, token, instanceIDPath)
	if err != nil {
		return nil, err
	}

	zone, err := c.ReadValue(ctx, token, availabilityZonePath)
	if err != nil {
		return nil, err
	}

	slog.Info("instance_identity_resolved", "instance_id", instanceID, "availability_zone", zone)

	return &Identity{InstanceID: instanceID, AvailabilityZone: zone}, nil
}

// send executes the request and returns the body as text. A non-2xx status
// or a body that is not valid UTF-8 is a hard failure.
func (c *Client) send(req *http.Request) (string, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Error("metadata_request_rejected", "url", req.URL.String(), "status", resp.StatusCode)
		return "", fmt.Errorf("metadata request failed with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "failed to read response body")
	}
	if !utf8.Valid(body) {
		return "", fmt.Errorf("metadata response for %s is not valid text", req.URL.Path)
	}

	return string(body), nil
}
