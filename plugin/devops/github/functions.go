package github

import (
	"context"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/hrygo/chatops/plugin/ai/function"
)

// Function names exposed to the model.
const (
	FuncLatestRelease   = "get_github_latest_release"
	FuncReleaseByTag    = "get_github_release_by_tag"
	FuncCompareReleases = "compare_github_releases"
	FuncLatestVersion   = "get_latest_release_version"
	FuncChangelog       = "get_changelogs_of_release"
)

var (
	ownerParam = function.Parameter{Name: "owner", Type: jsonschema.String, Description: "Repository owner, e.g. argoproj", Required: true}
	repoParam  = function.Parameter{Name: "repo", Type: jsonschema.String, Description: "Repository name, e.g. argo-cd", Required: true}
)

func tagParam(name, description string) function.Parameter {
	return function.Parameter{Name: name, Type: jsonschema.String, Description: description, Required: true}
}

// Functions returns the GitHub functions backed by c.
func (c *Client) Functions() []function.Function {
	return []function.Function{
		{
			Spec: function.Spec{
				Name:        FuncLatestRelease,
				Description: "Get the latest GitHub release of a repository.",
				Parameters:  []function.Parameter{ownerParam, repoParam},
			},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return c.LatestRelease(ctx, function.StringArg(args, "owner"), function.StringArg(args, "repo"))
			},
		},
		{
			Spec: function.Spec{
				Name:        FuncReleaseByTag,
				Description: "Get a GitHub release of a repository by its tag.",
				Parameters:  []function.Parameter{ownerParam, repoParam, tagParam("tag", "Release tag, e.g. v2.10.0")},
			},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return c.ReleaseByTag(ctx, function.StringArg(args, "owner"), function.StringArg(args, "repo"), function.StringArg(args, "tag"))
			},
		},
		{
			Spec: function.Spec{
				Name:        FuncCompareReleases,
				Description: "Fetch two GitHub releases of a repository so they can be compared.",
				Parameters: []function.Parameter{
					ownerParam, repoParam,
					tagParam("tag1", "First release tag"),
					tagParam("tag2", "Second release tag"),
				},
			},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return c.CompareReleases(ctx,
					function.StringArg(args, "owner"), function.StringArg(args, "repo"),
					function.StringArg(args, "tag1"), function.StringArg(args, "tag2"))
			},
		},
		{
			Spec: function.Spec{
				Name:        FuncLatestVersion,
				Description: "Get the version tag of the latest GitHub release of a repository.",
				Parameters:  []function.Parameter{ownerParam, repoParam},
			},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return c.LatestVersion(ctx, function.StringArg(args, "owner"), function.StringArg(args, "repo"))
			},
		},
		{
			Spec: function.Spec{
				Name:        FuncChangelog,
				Description: "Get the changelog of a GitHub release. Falls back to the release notes.",
				Parameters:  []function.Parameter{ownerParam, repoParam, tagParam("tag", "Release tag")},
			},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return c.Changelog(ctx, function.StringArg(args, "owner"), function.StringArg(args, "repo"), function.StringArg(args, "tag"))
			},
		},
	}
}
