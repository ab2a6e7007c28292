package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// The platform issues djoser-style JWTs; the header scheme is
// "JWT <access>", not "Bearer".
const authScheme = "JWT"

// do issues one JSON request and decodes the response into out (which
// may be nil). On a 401 it refreshes the access token and retries the
// original request exactly once; a second 401 surfaces as
// ErrAuthRequired. Requests are rebuilt from the marshalled body for
// the retry, so there is no body-replay hazard.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding %s %s body: %w", method, path, err)
		}
	}

	resp, err := c.send(ctx, method, path, query, payload, true)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		if err := c.refreshAccess(ctx); err != nil {
			return err
		}
		resp, err = c.send(ctx, method, path, query, payload, true)
		if err != nil {
			return err
		}
	}

	return decodeResponse(resp, out)
}

// send performs a single HTTP round trip. withAuth attaches the stored
// access token when one is available; the refresh endpoint itself is
// called without it.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, payload []byte, withAuth bool) (*http.Response, error) {
	u := c.base.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	if withAuth && c.tokens != nil {
		pair, err := c.tokens.Tokens()
		switch {
		case errors.Is(err, ErrNoTokens):
			// Anonymous request; some endpoints allow it.
		case err != nil:
			return nil, err
		case pair.Access != "":
			req.Header.Set("Authorization", authScheme+" "+pair.Access)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, errors.Join(ErrTransient, err))
	}
	return resp, nil
}

// refreshAccess trades the refresh token for a new access token.
// Serialized so overlapping 401s refresh once, not in a stampede.
func (c *Client) refreshAccess(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	if c.tokens == nil {
		return statusError(http.StatusUnauthorized, "no credentials configured")
	}
	pair, err := c.tokens.Tokens()
	if err != nil || pair.Refresh == "" {
		return statusError(http.StatusUnauthorized, "session expired, log in again")
	}

	payload, err := json.Marshal(map[string]string{"refresh": pair.Refresh})
	if err != nil {
		return err
	}
	resp, err := c.send(ctx, http.MethodPost, "/auth/jwt/refresh/", nil, payload, false)
	if err != nil {
		return err
	}

	var refreshed struct {
		Access string `json:"access"`
	}
	if err := decodeResponse(resp, &refreshed); err != nil {
		c.log.Warn("token refresh failed", "err", err)
		return statusError(http.StatusUnauthorized, "session expired, log in again")
	}
	if err := c.tokens.SetAccess(refreshed.Access); err != nil {
		return fmt.Errorf("storing refreshed token: %w", err)
	}
	c.log.Debug("access token refreshed")
	return nil
}

// decodeResponse drains and closes the body, converting non-2xx
// statuses into the error taxonomy.
func decodeResponse(resp *http.Response, out any) error {
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		e := statusError(resp.StatusCode, readErrorMessage(body))
		e.Body = body
		return e
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// readErrorMessage pulls a human-readable message out of an error body.
// The platform answers errors as {"error": ...}, {"detail": ...} or a
// field->messages map, depending on the endpoint.
func readErrorMessage(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return strings.TrimSpace(string(data))
	}
	for _, key := range []string{"error", "detail"} {
		if s, ok := m[key].(string); ok {
			return s
		}
	}
	return strings.TrimSpace(string(data))
}
