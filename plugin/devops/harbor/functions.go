package harbor

import (
	"context"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/hrygo/chatops/plugin/ai/function"
)

// Function names exposed to the model.
const (
	FuncProjects        = "get_harbor_projects"
	FuncRepositories    = "get_harbor_repositories"
	FuncArtifacts       = "get_harbor_artifacts"
	FuncVulnerabilities = "get_harbor_artifact_vulnerabilities"
)

// Functions returns the Harbor functions backed by c.
func (c *Client) Functions() []function.Function {
	project := function.Parameter{Name: "project_name", Type: jsonschema.String, Description: "Harbor project name, e.g. library", Required: true}
	repository := function.Parameter{Name: "repository_name", Type: jsonschema.String, Description: "Repository name inside the project, e.g. nginx", Required: true}

	return []function.Function{
		{
			Spec: function.Spec{
				Name:        FuncProjects,
				Description: "List Harbor projects.",
			},
			Handler: func(ctx context.Context, _ map[string]any) (any, error) {
				return c.Projects(ctx)
			},
		},
		{
			Spec: function.Spec{
				Name:        FuncRepositories,
				Description: "List Harbor repositories, optionally limited to one project.",
				Parameters: []function.Parameter{
					{Name: "project_name", Type: jsonschema.String, Description: "Harbor project name. Omit to list every repository."},
				},
			},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return c.Repositories(ctx, function.StringArg(args, "project_name"))
			},
		},
		{
			Spec: function.Spec{
				Name:        FuncArtifacts,
				Description: "List the artifacts (images) of a Harbor repository with tags, digest, size and push time.",
				Parameters:  []function.Parameter{project, repository},
			},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return c.Artifacts(ctx, function.StringArg(args, "project_name"), function.StringArg(args, "repository_name"))
			},
		},
		{
			Spec: function.Spec{
				Name:        FuncVulnerabilities,
				Description: "Get the vulnerability scan report of a Harbor artifact.",
				Parameters: []function.Parameter{
					project, repository,
					{Name: "reference", Type: jsonschema.String, Description: "Artifact tag or digest, e.g. latest", Required: true},
				},
			},
			Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return c.Vulnerabilities(ctx,
					function.StringArg(args, "project_name"),
					function.StringArg(args, "repository_name"),
					function.StringArg(args, "reference"))
			},
		},
	}
}
