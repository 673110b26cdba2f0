// Package github exposes GitHub release queries as callable functions.
package github

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/hrygo/chatops/plugin/devops/httpapi"
)

// DefaultBaseURL is the public GitHub REST endpoint.
const DefaultBaseURL = "https://api.github.com"

// rawContentHost serves raw files of github.com repositories and receives the token.
const rawContentHost = "raw.githubusercontent.com"

var changelogPattern = regexp.MustCompile(`(?i)https?://[^\s()<>]+CHANGELOG[^\s()<>]*`)

// Config configures the GitHub client. The token is optional for public repositories.
type Config struct {
	BaseURL string
	Token   string
	RPS     float64

	// CacheTTL caches upstream responses. Zero disables caching.
	CacheTTL time.Duration
}

// Enabled reports whether the backend is configured.
func (c Config) Enabled() bool {
	return c.BaseURL != ""
}

// Release is the subset of a GitHub release handed to the model.
type Release struct {
	TagName     string    `json:"tag_name"`
	Name        string    `json:"name"`
	Body        string    `json:"body"`
	HTMLURL     string    `json:"html_url"`
	Draft       bool      `json:"draft"`
	Prerelease  bool      `json:"prerelease"`
	PublishedAt time.Time `json:"published_at"`
	Author      struct {
		Login string `json:"login"`
	} `json:"author"`
}

// Comparison holds two releases of the same repository.
type Comparison struct {
	Release1 *Release `json:"release1"`
	Release2 *Release `json:"release2"`
}

// Client queries the GitHub releases API.
type Client struct {
	api *httpapi.Client
}

// NewClient creates a Client.
func NewClient(cfg Config) (*Client, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	api, err := httpapi.New(httpapi.Options{
		Backend:      "github",
		BaseURL:      baseURL,
		Token:        cfg.Token,
		TrustedHosts: []string{rawContentHost},
		Accept:       "application/vnd.github+json",
		RPS:          cfg.RPS,
		CacheTTL:     cfg.CacheTTL,
	})
	if err != nil {
		return nil, err
	}
	return &Client{api: api}, nil
}

func repoPath(owner, repo string) string {
	return "/repos/" + url.PathEscape(owner) + "/" + url.PathEscape(repo)
}

// LatestRelease returns the most recent published release.
func (c *Client) LatestRelease(ctx context.Context, owner, repo string) (*Release, error) {
	var release Release
	if err := c.api.GetJSON(ctx, repoPath(owner, repo)+"/releases/latest", nil, &release); err != nil {
		return nil, err
	}
	return &release, nil
}

// ReleaseByTag returns the release for tag.
func (c *Client) ReleaseByTag(ctx context.Context, owner, repo, tag string) (*Release, error) {
	var release Release
	if err := c.api.GetJSON(ctx, repoPath(owner, repo)+"/releases/tags/"+url.PathEscape(tag), nil, &release); err != nil {
		return nil, err
	}
	return &release, nil
}

// CompareReleases fetches two tagged releases.
func (c *Client) CompareReleases(ctx context.Context, owner, repo, tag1, tag2 string) (*Comparison, error) {
	r1, err := c.ReleaseByTag(ctx, owner, repo, tag1)
	if err != nil {
		return nil, fmt.Errorf("release %s: %w", tag1, err)
	}
	r2, err := c.ReleaseByTag(ctx, owner, repo, tag2)
	if err != nil {
		return nil, fmt.Errorf("release %s: %w", tag2, err)
	}
	return &Comparison{Release1: r1, Release2: r2}, nil
}

// LatestVersion returns the tag name of the latest release.
func (c *Client) LatestVersion(ctx context.Context, owner, repo string) (string, error) {
	release, err := c.LatestRelease(ctx, owner, repo)
	if err != nil {
		return "", err
	}
	return release.TagName, nil
}

// Changelog returns the changelog linked from the release notes of tag.
// Without a CHANGELOG link the release notes themselves are returned. The token
// is sent only to the API host and raw.githubusercontent.com.
func (c *Client) Changelog(ctx context.Context, owner, repo, tag string) (string, error) {
	release, err := c.ReleaseByTag(ctx, owner, repo, tag)
	if err != nil {
		return "", err
	}

	link := changelogPattern.FindString(release.Body)
	if link == "" {
		return release.Body, nil
	}
	return c.api.GetText(ctx, rawContentURL(link))
}

// rawContentURL rewrites a github.com blob link to its raw.githubusercontent.com form.
func rawContentURL(link string) string {
	link = strings.Replace(link, "://github.com/", "://"+rawContentHost+"/", 1)
	return strings.Replace(link, "/blob/", "/", 1)
}
