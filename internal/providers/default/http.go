// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package defaultprovider

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/openkit-go/openkit/internal/protocol"
	"github.com/openkit-go/openkit/internal/providers"
)

const (
	requestTypeStatus   = "m"
	requestTypeTimeSync = "mts"

	defaultDialTimeout           = 3 * time.Second
	defaultResponseHeaderTimeout = 3 * time.Second
	defaultRequestTimeout        = 10 * time.Second
)

// HTTPClientProvider builds HTTPClients backed by net/http, with every
// outbound round trip traced through otelhttp.
type HTTPClientProvider struct{}

// NewHTTPClientProvider returns the default provider.
func NewHTTPClientProvider() *HTTPClientProvider {
	return &HTTPClientProvider{}
}

func (p *HTTPClientProvider) CreateClient(logger providers.Logger, cfg providers.HTTPClientConfig) providers.HTTPClient {
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		ResponseHeaderTimeout: defaultResponseHeaderTimeout,
		TLSClientConfig:       tlsConfigFor(cfg.TrustManager),
	}

	return &httpClient{
		cfg:    cfg,
		logger: logger,
		client: &http.Client{
			Timeout:   defaultRequestTimeout,
			Transport: otelhttp.NewTransport(base),
		},
	}
}

// tlsConfigFor wires cfg.TrustManager into certificate verification: the
// standard chain check runs first, then the manager gets a final say on the
// leaf's subject.
func tlsConfigFor(tm providers.TrustManager) *tls.Config {
	if tm == nil {
		return nil
	}
	return &tls.Config{
		VerifyConnection: func(cs tls.ConnectionState) error {
			opts := x509.VerifyOptions{DNSName: cs.ServerName}
			if len(cs.PeerCertificates) > 1 {
				pool := x509.NewCertPool()
				for _, cert := range cs.PeerCertificates[1:] {
					pool.AddCert(cert)
				}
				opts.Intermediates = pool
			}
			if len(cs.PeerCertificates) == 0 {
				return fmt.Errorf("no peer certificates presented")
			}
			if _, err := cs.PeerCertificates[0].Verify(opts); err != nil {
				return err
			}
			if !tm.Accept(cs.ServerName) {
				return fmt.Errorf("server %q rejected by trust manager", cs.ServerName)
			}
			return nil
		},
	}
}

type httpClient struct {
	cfg    providers.HTTPClientConfig
	logger providers.Logger
	client *http.Client
}

func (c *httpClient) SendStatusRequest() (*protocol.StatusResponse, error) {
	return c.doStatusLike(requestTypeStatus, "", nil)
}

func (c *httpClient) SendBeaconRequest(clientIP string, data []byte) (*protocol.StatusResponse, error) {
	return c.doStatusLike(requestTypeStatus, clientIP, data)
}

func (c *httpClient) SendTimeSyncRequest() (*protocol.TimeSyncResponse, error) {
	code, body, retryAfter, err := c.do(requestTypeTimeSync, "", nil)
	if err != nil {
		return nil, err
	}
	return protocol.ParseTimeSyncResponse(code, body, retryAfter), nil
}

func (c *httpClient) doStatusLike(reqType, clientIP string, data []byte) (*protocol.StatusResponse, error) {
	code, body, retryAfter, err := c.do(reqType, clientIP, data)
	if err != nil {
		return nil, err
	}
	return protocol.ParseStatusResponse(code, body, retryAfter), nil
}

func (c *httpClient) do(reqType, clientIP string, body []byte) (int, string, int64, error) {
	reqURL, err := c.requestURL(reqType)
	if err != nil {
		return 0, "", 0, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRequestTimeout)
	defer cancel()

	method := http.MethodGet
	var reader io.Reader
	if body != nil {
		method = http.MethodPost
		reader = strings.NewReader(string(body))
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return 0, "", 0, err
	}
	if clientIP != "" {
		req.Header.Set("X-Client-IP", clientIP)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if c.logger != nil {
			c.logger.Warnf("request to %s failed: %v", reqURL, err)
		}
		return 0, "", 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, "", 0, err
	}

	var retryAfter int64
	if v := resp.Header.Get("Retry-After"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			retryAfter = n
		}
	}

	return resp.StatusCode, string(raw), retryAfter, nil
}

func (c *httpClient) requestURL(reqType string) (string, error) {
	base, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}

	q := base.Query()
	q.Set("type", reqType)
	q.Set("srvid", strconv.Itoa(int(c.cfg.ServerID)))
	q.Set("app", c.cfg.ApplicationID)
	base.RawQuery = q.Encode()

	return base.String(), nil
}
