package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"github.com/opentracker-es/opentracker-api/client/internal/config"
	"github.com/pkg/errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type (
	Params struct {
		Method      string
		Path        string
		Body        interface{}
		Response    interface{}
		QueryParams map[string]string
		Headers     map[string]string
	}

	Client interface {
		Do(ctx context.Context, param Params) error
		Download(ctx context.Context, param Params) (io.ReadCloser, error)
	}

	client struct {
		httpClient *http.Client
		baseUrl    string
		accessKey  string
	}
)

const (
	accessKeyHeader = "X-Access-Token"
)

func NewClient(cfg config.Config) Client {
	return &client{
		// backups and restores run inside the request, so the timeout is generous
		httpClient: &http.Client{Timeout: 30 * time.Minute},
		baseUrl:    apiBase(cfg.Host),
		accessKey:  cfg.AccessKey,
	}
}

func apiBase(host string) string {
	host = strings.TrimSuffix(host, "/")
	if !strings.HasSuffix(host, "/v1") {
		host += "/v1"
	}
	return host + "/"
}

func (c client) newRequest(ctx context.Context, param Params) (*http.Request, error) {
	requestUrl, err := url.Parse(c.baseUrl + strings.TrimPrefix(param.Path, "/"))
	if err != nil {
		return nil, err
	}

	if len(param.QueryParams) > 0 {
		values := url.Values{}
		for k, v := range param.QueryParams {
			values.Add(k, v)
		}
		requestUrl.RawQuery = values.Encode()
	}

	var body io.Reader
	if param.Body != nil {
		bodyBin, err := json.Marshal(param.Body)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(bodyBin)
	}

	req, err := http.NewRequestWithContext(ctx, param.Method, requestUrl.String(), body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range param.Headers {
		req.Header.Set(k, v)
	}

	if c.accessKey != "" {
		req.Header.Set(accessKeyHeader, c.accessKey)
	}
	return req, nil
}

func (c client) Do(ctx context.Context, param Params) error {
	req, err := c.newRequest(ctx, param)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseError(resp.StatusCode, responseBody)
	}

	if param.Response != nil {
		if err := json.Unmarshal(responseBody, param.Response); err != nil {
			return errors.Wrap(err, "unexpected response from server")
		}
	}
	return nil
}

func (c client) Download(ctx context.Context, param Params) (io.ReadCloser, error) {
	req, err := c.newRequest(ctx, param)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		return nil, parseError(resp.StatusCode, b)
	}

	return resp.Body, nil
}

func parseError(status int, b []byte) error {
	var errorResponse struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(b, &errorResponse); err != nil || errorResponse.Message == "" {
		return fmt.Errorf("request failed with status %d", status)
	}
	return errors.New(errorResponse.Message)
}
