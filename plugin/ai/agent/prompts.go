package agent

import (
	"fmt"
	"strings"
	"time"
)

// DefaultSystemPrompt instructs the model how to use the DevOps functions.
const DefaultSystemPrompt = `You are a DevOps assistant answering questions about deployments, releases and container images.
Current time: %s.

Rules:
- When the question needs live data from ArgoCD, GitHub or Harbor, call exactly one of the provided functions.
- Only pass arguments the user actually gave or that are obvious from the conversation. Never invent project, repository or tag names.
- If no function fits, answer directly and say what you cannot look up.
- Keep answers short. Name every application, release or artifact you were given.`

const summaryContextPrefix = "Summary of the earlier conversation: "

const textContextPrefix = "Here is context: "

// BuildSystemPrompt renders the system prompt for now.
func BuildSystemPrompt(template string, now time.Time) string {
	if template == "" {
		template = DefaultSystemPrompt
	}
	if !strings.Contains(template, "%s") {
		return template
	}
	return fmt.Sprintf(template, now.Format(time.RFC1123))
}
