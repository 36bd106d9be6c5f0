package remotesync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultRateLimitRetries = 3

// apiClient performs authenticated JSON requests against one provider API.
type apiClient struct {
	http                *http.Client
	baseURL             string
	authorize           func(*http.Request)
	maxRateLimitRetries int
	sleepFn             func(context.Context, time.Duration) error
	jitterFn            func(time.Duration) time.Duration
}

// endpoint resolves a path against the base URL. Absolute URLs, such as
// pagination links, are returned unchanged when they point at the base URL's
// scheme and host; credentials are never sent anywhere else.
func (c *apiClient) endpoint(apiPath string, params url.Values) (string, error) {
	u, err := url.Parse(strings.TrimSpace(c.baseURL))
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(apiPath, "http://") || strings.HasPrefix(apiPath, "https://") {
		target, err := url.Parse(apiPath)
		if err != nil {
			return "", fmt.Errorf("parse %q: %w", apiPath, err)
		}
		if !strings.EqualFold(target.Scheme, u.Scheme) || !strings.EqualFold(target.Host, u.Host) {
			return "", fmt.Errorf("refusing %s: host differs from %s://%s", target.Redacted(), u.Scheme, u.Host)
		}
		return apiPath, nil
	}
	basePath := strings.TrimSuffix(u.Path, "/")
	u.Path = basePath + "/" + strings.TrimPrefix(apiPath, "/")
	if params != nil {
		u.RawQuery = params.Encode()
	}
	return u.String(), nil
}

func (c *apiClient) get(ctx context.Context, apiPath string, params url.Values, out any) (http.Header, error) {
	return c.do(ctx, http.MethodGet, apiPath, params, nil, out)
}

func (c *apiClient) post(ctx context.Context, apiPath string, body, out any) (http.Header, error) {
	return c.do(ctx, http.MethodPost, apiPath, nil, body, out)
}

func (c *apiClient) delete(ctx context.Context, apiPath string) error {
	_, err := c.do(ctx, http.MethodDelete, apiPath, nil, nil, nil)
	return err
}

func (c *apiClient) do(ctx context.Context, method, apiPath string, params url.Values, body, out any) (http.Header, error) {
	requestURL, err := c.endpoint(apiPath, params)
	if err != nil {
		return nil, err
	}

	var payload []byte
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
	}

	retries := c.maxRateLimitRetries
	if retries < 0 {
		retries = 0
	}
	client := c.http
	if client == nil {
		client = http.DefaultClient
	}

	for attempt := 0; ; attempt++ {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, requestURL, reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.authorize != nil {
			c.authorize(req)
		}

		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			delay := retryDelayFromHeadersWithJitter(resp.Header, time.Now().UTC(), c.jitterFn)
			_ = resp.Body.Close()
			if attempt >= retries {
				return nil, &APIError{
					StatusCode: resp.StatusCode,
					Method:     method,
					URL:        requestURL,
					Body:       fmt.Sprintf("rate limited after %d retries", retries),
				}
			}
			if delay > 0 && c.sleepFn != nil {
				if err := c.sleepFn(ctx, delay); err != nil {
					return nil, err
				}
			}
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			_ = resp.Body.Close()
			return nil, &APIError{
				StatusCode: resp.StatusCode,
				Method:     method,
				URL:        requestURL,
				Body:       strings.TrimSpace(string(raw)),
			}
		}
		defer resp.Body.Close()

		if out == nil || resp.StatusCode == http.StatusNoContent {
			_, _ = io.Copy(io.Discard, resp.Body)
			return resp.Header, nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("decode %s %s: %w", method, requestURL, err)
		}
		return resp.Header, nil
	}
}

// flexibleID accepts identifiers sent as JSON numbers or strings.
type flexibleID string

func (id *flexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = flexibleID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = flexibleID(n.String())
	return nil
}

func (id flexibleID) String() string {
	return string(id)
}

func retryDelayFromHeadersWithJitter(
	header http.Header,
	now time.Time,
	jitterFn func(time.Duration) time.Duration,
) time.Duration {
	delay := parseRetryAfter(header.Get("Retry-After"), now)
	if delay <= 0 {
		delay = parseDelaySecondsHeader(header.Get("RateLimit-Reset"))
	}
	if delay <= 0 {
		epochSeconds := parseEpochSeconds(header.Get("X-RateLimit-Reset"))
		if epochSeconds > 0 {
			until := time.Unix(epochSeconds, 0).UTC().Sub(now)
			if until > 0 {
				delay = until
			}
		}
	}
	if delay <= 0 {
		delay = time.Second
	}
	if jitterFn == nil {
		return delay
	}
	return jitterFn(delay)
}

func parseRetryAfter(raw string, now time.Time) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if secs < 0 {
			secs = 0
		}
		return time.Duration(secs) * time.Second
	}
	for _, layout := range []string{time.RFC1123, time.RFC1123Z} {
		if ts, err := time.Parse(layout, raw); err == nil {
			if ts.Before(now) {
				return 0
			}
			return ts.Sub(now)
		}
	}
	return 0
}

func parseDelaySecondsHeader(raw string) time.Duration {
	secs := parseEpochSeconds(raw)
	return time.Duration(secs) * time.Second
}

func parseEpochSeconds(raw string) int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || secs <= 0 {
		return 0
	}
	return secs
}

func addJitter(base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	jitterMax := 250 * time.Millisecond
	return base + time.Duration(rand.Int63n(int64(jitterMax)+1))
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
