package pbx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"pbx-call-insights/internal/config"
	"pbx-call-insights/internal/domain"
	"pbx-call-insights/internal/domain/ports/adapter"
	"pbx-call-insights/internal/infra/metrics"
)

var _ adapter.PBXClient = (*Client)(nil)

// Client talks to a Yeastar-style PBX OpenAPI. Authentication uses a
// client-credentials token exchange; tokens are refreshed one minute
// before expiry and re-acquired once on a token-invalid error code.
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	http         *http.Client
	log          *zerolog.Logger

	mu           sync.Mutex
	token        string
	refreshToken string
	tokenExpiry  time.Time
}

const (
	errcodeOK           = 0
	errcodeTokenExpired = 10002
	errcodeTokenInvalid = 10003
)

type tokenResponse struct {
	ErrCode      int    `json:"errcode"`
	ErrMsg       string `json:"errmsg"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpireTime   int    `json:"access_token_expire_time"`
}

type apiEnvelope struct {
	ErrCode int             `json:"errcode"`
	ErrMsg  string          `json:"errmsg"`
	Data    json.RawMessage `json:"data"`
}

func NewClient(cfg config.PBXConfig, logger *zerolog.Logger) *Client {
	l := logger.With().Str("component", "pbx_client").Logger()
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		http:         &http.Client{Timeout: timeout},
		log:          &l,
	}
}

func (c *Client) login(ctx context.Context) error {
	payload, _ := json.Marshal(map[string]string{
		"username": c.clientID,
		"password": c.clientSecret,
	})
	tok, err := c.postToken(ctx, "/openapi/v1.0/get_token", payload)
	if err != nil {
		return err
	}
	c.setToken(tok)
	c.log.Info().Msg("pbx login succeeded")
	return nil
}

func (c *Client) refresh(ctx context.Context) error {
	c.mu.Lock()
	rt := c.refreshToken
	c.mu.Unlock()
	if rt == "" {
		return c.login(ctx)
	}
	payload, _ := json.Marshal(map[string]string{"refresh_token": rt})
	tok, err := c.postToken(ctx, "/openapi/v1.0/refresh_token", payload)
	if err != nil {
		c.log.Warn().Err(err).Msg("token refresh failed, attempting full login")
		return c.login(ctx)
	}
	c.setToken(tok)
	return nil
}

func (c *Client) postToken(ctx context.Context, endpoint string, payload []byte) (*tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "OpenAPI")

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.IncPBXRequest("token", "error")
		return nil, fmt.Errorf("%w: %v", domain.ErrPBXUnavailable, err)
	}
	defer resp.Body.Close()

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		metrics.IncPBXRequest("token", "error")
		return nil, fmt.Errorf("%w: decode token response: %v", domain.ErrPBXUnavailable, err)
	}
	if tok.ErrCode != errcodeOK {
		metrics.IncPBXRequest("token", "denied")
		return nil, fmt.Errorf("%w: %s", domain.ErrPBXUnauthorized, tok.ErrMsg)
	}
	metrics.IncPBXRequest("token", "ok")
	return &tok, nil
}

func (c *Client) setToken(tok *tokenResponse) {
	expires := tok.ExpireTime
	if expires <= 0 {
		expires = 1800
	}
	c.mu.Lock()
	c.token = tok.AccessToken
	c.refreshToken = tok.RefreshToken
	c.tokenExpiry = time.Now().Add(time.Duration(expires-60) * time.Second)
	c.mu.Unlock()
}

func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	token := c.token
	expired := token == "" || time.Now().After(c.tokenExpiry)
	c.mu.Unlock()

	if !expired {
		return token, nil
	}
	var err error
	if token == "" {
		err = c.login(ctx)
	} else {
		err = c.refresh(ctx)
	}
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	token = c.token
	c.mu.Unlock()
	return token, nil
}

// get performs an authenticated GET against endpoint with params, retrying
// transient transport failures with exponential backoff and re-authenticating
// once on a token-invalid response.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values) (*apiEnvelope, error) {
	var env *apiEnvelope
	retryAuth := true

	op := func() error {
		token, err := c.ensureToken(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}

		q := url.Values{}
		for k, vs := range params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		q.Set("access_token", token)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint+"?"+q.Encode(), nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", "OpenAPI")

		resp, err := c.http.Do(req)
		if err != nil {
			metrics.IncPBXRequest(endpoint, "error")
			return fmt.Errorf("%w: %v", domain.ErrPBXUnavailable, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			metrics.IncPBXRequest(endpoint, "error")
			return fmt.Errorf("%w: status %d", domain.ErrPBXUnavailable, resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			metrics.IncPBXRequest(endpoint, "denied")
			return backoff.Permanent(fmt.Errorf("%w: status %d", domain.ErrPBXUnauthorized, resp.StatusCode))
		}

		var decoded apiEnvelope
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			metrics.IncPBXRequest(endpoint, "error")
			return fmt.Errorf("%w: decode response: %v", domain.ErrPBXUnavailable, err)
		}

		if decoded.ErrCode == errcodeTokenExpired || decoded.ErrCode == errcodeTokenInvalid {
			metrics.IncPBXRequest(endpoint, "token_invalid")
			if retryAuth {
				retryAuth = false
				c.mu.Lock()
				c.token = ""
				c.mu.Unlock()
				return fmt.Errorf("pbx token rejected, re-authenticating")
			}
			return backoff.Permanent(fmt.Errorf("%w: %s", domain.ErrPBXUnauthorized, decoded.ErrMsg))
		}
		if decoded.ErrCode != errcodeOK {
			metrics.IncPBXRequest(endpoint, "failed")
			return backoff.Permanent(fmt.Errorf("pbx error %d: %s", decoded.ErrCode, decoded.ErrMsg))
		}

		metrics.IncPBXRequest(endpoint, "ok")
		env = &decoded
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, err
	}
	return env, nil
}

func (c *Client) GetCDRList(ctx context.Context, page, pageSize int) ([]adapter.CDR, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("page_size", strconv.Itoa(pageSize))
	params.Set("sort_by", "time")
	params.Set("order_by", "desc")

	env, err := c.get(ctx, "/openapi/v1.0/cdr/list", params)
	if err != nil {
		return nil, err
	}
	var cdrs []adapter.CDR
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &cdrs); err != nil {
			return nil, fmt.Errorf("decode cdr list: %w", err)
		}
	}
	return cdrs, nil
}

func (c *Client) GetRecordingList(ctx context.Context, page, pageSize int) ([]adapter.Recording, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("page_size", strconv.Itoa(pageSize))
	params.Set("sort_by", "id")
	params.Set("order_by", "desc")

	env, err := c.get(ctx, "/openapi/v1.0/recording/list", params)
	if err != nil {
		return nil, err
	}
	var recs []adapter.Recording
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &recs); err != nil {
			return nil, fmt.Errorf("decode recording list: %w", err)
		}
	}
	return recs, nil
}

type downloadResponse struct {
	ErrCode             int    `json:"errcode"`
	ErrMsg              string `json:"errmsg"`
	DownloadResourceURL string `json:"download_resource_url"`
}

// DownloadRecording resolves the recording's download URL and streams the
// file into dir. The temp file is removed on any failure after creation.
func (c *Client) DownloadRecording(ctx context.Context, recordingFile, dir string) (string, error) {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("file", recordingFile)
	q.Set("access_token", token)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/openapi/v1.0/recording/download?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "OpenAPI")

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.IncPBXRequest("recording/download", "error")
		return "", fmt.Errorf("%w: %v", domain.ErrPBXUnavailable, err)
	}
	defer resp.Body.Close()

	var dl downloadResponse
	if err := json.NewDecoder(resp.Body).Decode(&dl); err != nil {
		metrics.IncPBXRequest("recording/download", "error")
		return "", fmt.Errorf("%w: decode download response: %v", domain.ErrPBXUnavailable, err)
	}
	if dl.ErrCode != errcodeOK || dl.DownloadResourceURL == "" {
		metrics.IncPBXRequest("recording/download", "failed")
		return "", fmt.Errorf("%w: %s", domain.ErrNoRecording, dl.ErrMsg)
	}
	metrics.IncPBXRequest("recording/download", "ok")

	fileURL := c.baseURL + dl.DownloadResourceURL + "?access_token=" + url.QueryEscape(token)
	return c.fetchFile(ctx, fileURL, recordingFile, dir)
}

func (c *Client) fetchFile(ctx context.Context, fileURL, recordingFile, dir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "OpenAPI")

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.IncPBXRequest("recording/fetch", "error")
		return "", fmt.Errorf("%w: %v", domain.ErrPBXUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.IncPBXRequest("recording/fetch", "failed")
		return "", fmt.Errorf("%w: download status %d", domain.ErrPBXUnavailable, resp.StatusCode)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, filepath.Base(recordingFile))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(path)
		metrics.IncPBXRequest("recording/fetch", "error")
		return "", fmt.Errorf("write recording: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	metrics.IncPBXRequest("recording/fetch", "ok")
	return path, nil
}
