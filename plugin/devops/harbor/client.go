// Package harbor exposes read-only Harbor registry queries as callable functions.
package harbor

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/hrygo/chatops/plugin/devops/httpapi"
)

const apiPrefix = "/api/v2.0"

// maxVulnerabilities caps the findings listed per report.
const maxVulnerabilities = 20

// Config configures the Harbor client.
type Config struct {
	URL      string
	Username string
	Password string
	RPS      float64
	// CacheTTL caches upstream responses. Zero disables caching.
	CacheTTL time.Duration
}

// Enabled reports whether the backend is configured.
func (c Config) Enabled() bool {
	return c.URL != ""
}

// Project is a Harbor project.
type Project struct {
	ProjectID    int       `json:"project_id"`
	Name         string    `json:"name"`
	RepoCount    int       `json:"repo_count"`
	CreationTime time.Time `json:"creation_time"`
	Metadata     struct {
		Public string `json:"public"`
	} `json:"metadata"`
}

// Repository is a Harbor repository. Name includes the project prefix.
type Repository struct {
	ID            int       `json:"id"`
	Name          string    `json:"name"`
	ArtifactCount int       `json:"artifact_count"`
	PullCount     int       `json:"pull_count"`
	UpdateTime    time.Time `json:"update_time"`
}

// Artifact is an image (or other OCI artifact) in a repository.
type Artifact struct {
	Digest   string    `json:"digest"`
	Size     int64     `json:"size"`
	PushTime time.Time `json:"push_time"`
	Tags     []struct {
		Name string `json:"name"`
	} `json:"tags"`
}

// Vulnerability is a single scanner finding.
type Vulnerability struct {
	ID         string `json:"id"`
	Package    string `json:"package"`
	Version    string `json:"version"`
	FixVersion string `json:"fix_version"`
	Severity   string `json:"severity"`
}

// VulnerabilityReport summarizes one scan report of an artifact.
type VulnerabilityReport struct {
	MimeType        string          `json:"mime_type"`
	Severity        string          `json:"severity"`
	Total           int             `json:"total"`
	BySeverity      map[string]int  `json:"by_severity"`
	Vulnerabilities []Vulnerability `json:"vulnerabilities"`
}

type rawReport struct {
	Severity        string          `json:"severity"`
	Vulnerabilities []Vulnerability `json:"vulnerabilities"`
}

// Client queries the Harbor v2 API.
type Client struct {
	api *httpapi.Client
}

// NewClient creates a Client.
func NewClient(cfg Config) (*Client, error) {
	api, err := httpapi.New(httpapi.Options{
		Backend:  "harbor",
		BaseURL:  cfg.URL,
		Username: cfg.Username,
		Password: cfg.Password,
		RPS:      cfg.RPS,
		CacheTTL: cfg.CacheTTL,
	})
	if err != nil {
		return nil, err
	}
	return &Client{api: api}, nil
}

// Projects lists projects.
func (c *Client) Projects(ctx context.Context) ([]Project, error) {
	var projects []Project
	if err := c.api.GetJSON(ctx, apiPrefix+"/projects", nil, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// Repositories lists the repositories of project, or of every project when project is empty.
func (c *Client) Repositories(ctx context.Context, project string) ([]Repository, error) {
	path := apiPrefix + "/repositories"
	if project != "" {
		path = apiPrefix + "/projects/" + url.PathEscape(project) + "/repositories"
	}

	var repos []Repository
	if err := c.api.GetJSON(ctx, path, nil, &repos); err != nil {
		return nil, err
	}
	return repos, nil
}

// Artifacts lists the artifacts of a repository.
func (c *Client) Artifacts(ctx context.Context, project, repository string) ([]Artifact, error) {
	var artifacts []Artifact
	if err := c.api.GetJSON(ctx, artifactsPath(project, repository), nil, &artifacts); err != nil {
		return nil, err
	}
	return artifacts, nil
}

// Vulnerabilities returns the scan reports of the artifact identified by reference (tag or digest).
func (c *Client) Vulnerabilities(ctx context.Context, project, repository, reference string) ([]VulnerabilityReport, error) {
	if reference == "" {
		return nil, fmt.Errorf("harbor: artifact reference is required")
	}
	path := artifactsPath(project, repository) + "/" + url.PathEscape(reference) + "/additions/vulnerabilities"

	var raw map[string]rawReport
	if err := c.api.GetJSON(ctx, path, nil, &raw); err != nil {
		return nil, err
	}

	reports := make([]VulnerabilityReport, 0, len(raw))
	for mimeType, r := range raw {
		report := VulnerabilityReport{
			MimeType:   mimeType,
			Severity:   r.Severity,
			Total:      len(r.Vulnerabilities),
			BySeverity: make(map[string]int),
		}
		for _, v := range r.Vulnerabilities {
			report.BySeverity[v.Severity]++
		}
		vulns := r.Vulnerabilities
		sort.SliceStable(vulns, func(i, j int) bool {
			return severityRank(vulns[i].Severity) > severityRank(vulns[j].Severity)
		})
		if len(vulns) > maxVulnerabilities {
			vulns = vulns[:maxVulnerabilities]
		}
		report.Vulnerabilities = vulns
		reports = append(reports, report)
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].MimeType < reports[j].MimeType })
	return reports, nil
}

// artifactsPath builds the artifacts path. Harbor expects slashes inside a
// repository name to be encoded twice; a leading "project/" is dropped.
func artifactsPath(project, repository string) string {
	repository = strings.TrimPrefix(repository, project+"/")
	return apiPrefix + "/projects/" + url.PathEscape(project) +
		"/repositories/" + url.PathEscape(url.PathEscape(repository)) + "/artifacts"
}

func severityRank(severity string) int {
	switch strings.ToLower(severity) {
	case "critical":
		return 5
	case "high":
		return 4
	case "medium":
		return 3
	case "low":
		return 2
	case "negligible":
		return 1
	}
	return 0
}
