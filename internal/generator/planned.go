package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/amendbot/amend/pkg/apperr"
	"github.com/amendbot/amend/pkg/types"
)

const planSystemPrompt = `You are an expert software architect. You analyze a user's request against a codebase and produce an action plan.

You MUST respond with valid JSON only, in this exact format:
{
  "plan": [
    {"action": "create", "path": "path/to/new/file.py", "reason": "why this file is created and what it should contain"},
    {"action": "update", "path": "path/to/existing/file.py", "reason": "what changes this file needs"}
  ],
  "summary": "brief summary of the overall changes"
}

RULES:
1. "action" is "create" or "update".
2. Consider dependencies: tests, documentation, and configuration that the change touches.
3. Be specific in each reason; it drives the content generation that follows.
4. Respond with JSON only. No markdown, no explanations outside the JSON.`

const fileSystemPrompt = `You are an expert software engineer. Produce the complete content of one file.

RULES:
1. Make only the changes the plan calls for.
2. Preserve the existing structure, style, and patterns when updating.
3. Return ONLY the file content. No markdown code blocks, no explanations.`

type planAction struct {
	Action string `json:"action"`
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

type planResponse struct {
	Plan    []planAction `json:"plan"`
	Summary string       `json:"summary"`
}

// PlannedGenerator works in two phases: one request produces an action plan,
// then each planned file is generated in its own request with the plan as
// context.
type PlannedGenerator struct {
	client    *openai.Client
	logger    *zap.Logger
	model     string
	maxTokens int
}

// Generate implements Generator.
func (g *PlannedGenerator) Generate(ctx context.Context, prompt string, files []types.FileSnapshot) (types.ChangeSet, error) {
	plan, summary, err := g.createPlan(ctx, prompt, files)
	if err != nil {
		return nil, err
	}

	g.logger.Info("created action plan",
		zap.Int("actions", len(plan)),
		zap.String("summary", summary),
	)

	snapshots := make(map[string]string, len(files))
	for _, file := range files {
		snapshots[file.Path] = file.Content
	}

	changes := make(types.ChangeSet, 0, len(plan))
	for _, action := range plan {
		current, exists := snapshots[action.Path]
		if action.Action == "update" && !exists {
			// Planned an update for a path outside the fetched set;
			// treat it as a creation.
			action.Action = "create"
		}

		content, err := g.generateContent(ctx, prompt, action, plan, current)
		if err != nil {
			return nil, err
		}
		changes = append(changes, types.FileChange{Path: action.Path, Content: content})
	}
	return changes, nil
}

func (g *PlannedGenerator) createPlan(ctx context.Context, prompt string, files []types.FileSnapshot) ([]planAction, string, error) {
	response, err := chatCompletion(ctx, g.client, g.model, g.maxTokens, planSystemPrompt, buildPlanPrompt(prompt, files))
	if err != nil {
		return nil, "", err
	}
	return parsePlan(response)
}

func parsePlan(raw string) ([]planAction, string, error) {
	dec := json.NewDecoder(strings.NewReader(extractJSON(raw)))
	dec.DisallowUnknownFields()

	var resp planResponse
	if err := dec.Decode(&resp); err != nil {
		return nil, "", apperr.Wrap(apperr.KindParse, "AI plan is not valid plan JSON", err)
	}

	plan := make([]planAction, 0, len(resp.Plan))
	for _, action := range resp.Plan {
		switch action.Action {
		case "create", "update":
		case "delete":
			// The tree API cannot express deletions through this client;
			// dropped rather than guessed at.
			continue
		default:
			return nil, "", apperr.Newf(apperr.KindParse, "AI plan contains unknown action %q", action.Action)
		}
		if err := validatePath(action.Path); err != nil {
			return nil, "", err
		}
		plan = append(plan, action)
	}
	return plan, resp.Summary, nil
}

func buildPlanPrompt(prompt string, files []types.FileSnapshot) string {
	var sb strings.Builder

	sb.WriteString("USER REQUEST:\n")
	sb.WriteString(prompt + "\n\n")

	sb.WriteString("REPOSITORY STRUCTURE:\n")
	for _, file := range files {
		sb.WriteString("- " + file.Path + "\n")
	}

	sb.WriteString("\nSAMPLE FILE CONTENTS:\n")
	for i, file := range files {
		if i >= 8 {
			break
		}
		preview := file.Content
		if len(preview) > 500 {
			preview = preview[:500]
		}
		fmt.Fprintf(&sb, "\n--- %s ---\n%s\n", file.Path, preview)
	}

	sb.WriteString("\nCreate the action plan for this request.")
	return sb.String()
}

func (g *PlannedGenerator) generateContent(ctx context.Context, prompt string, action planAction, plan []planAction, current string) (string, error) {
	var sb strings.Builder

	fmt.Fprintf(&sb, "FILE TO %s: %s\n\n", strings.ToUpper(action.Action), action.Path)
	sb.WriteString("REASON:\n" + action.Reason + "\n\n")
	sb.WriteString("USER'S OVERALL REQUEST:\n" + prompt + "\n\n")

	if action.Action == "update" {
		sb.WriteString("CURRENT FILE CONTENT:\n")
		sb.WriteString(current + "\n\n")
	}

	sb.WriteString("OTHER FILES IN THIS CHANGE:\n")
	for _, other := range plan {
		if other.Path == action.Path {
			continue
		}
		fmt.Fprintf(&sb, "- %s: %s - %s\n", other.Action, other.Path, other.Reason)
	}

	fmt.Fprintf(&sb, "\nReturn the complete content for %s.", action.Path)

	response, err := chatCompletion(ctx, g.client, g.model, g.maxTokens, fileSystemPrompt, sb.String())
	if err != nil {
		return "", err
	}
	return cleanContent(response), nil
}
