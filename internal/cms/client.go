// Package cms talks to the CMS REST API: it lists the records of a target
// collection and uploads files against individual records.
package cms

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/ppiankov/concordia/internal/cache"
	"github.com/ppiankov/concordia/internal/model"
	"github.com/ppiankov/concordia/internal/worker"
)

// Client is bound to one target collection (reports, blogs, ...)
type Client struct {
	httpClient *http.Client
	baseURL    string
	target     model.TargetConfig
	userAgent  string
	token      string
	limiter    *worker.Limiter
	snapshots  *cache.Snapshots
	logger     *slog.Logger
}

// Options carries the optional collaborators of a Client
type Options struct {
	Limiter   *worker.Limiter  // Paces uploads; nil means unpaced
	Snapshots *cache.Snapshots // Caches record lists; nil disables caching
	Logger    *slog.Logger
}

// NewClient creates a client for target
func NewClient(cfg model.CMSConfig, target model.TargetConfig, opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy: NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy),
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		target:    target,
		userAgent: cfg.UserAgent,
		token:     cfg.Token,
		limiter:   opts.Limiter,
		snapshots: opts.Snapshots,
		logger:    logger.With("target", target.Section),
	}
}

// RecordsURL is the endpoint listing the target's records
func (c *Client) RecordsURL() string {
	return c.baseURL + c.target.RecordsPath
}

// UploadURL is the endpoint receiving file uploads
func (c *Client) UploadURL() string {
	return c.baseURL + c.target.UploadPath
}

func (c *Client) decorate(req *http.Request) {
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Accept", "application/json")
}

// NewProxyFunc returns an explicit proxy selector, falling back to the
// environment when neither proxy is configured.
func NewProxyFunc(httpProxy, httpsProxy string) func(*http.Request) (*url.URL, error) {
	if httpProxy == "" && httpsProxy == "" {
		return http.ProxyFromEnvironment
	}

	return func(req *http.Request) (*url.URL, error) {
		if req.URL.Scheme == "https" && httpsProxy != "" {
			return url.Parse(httpsProxy)
		}
		if httpProxy != "" {
			return url.Parse(httpProxy)
		}
		return http.ProxyFromEnvironment(req)
	}
}
