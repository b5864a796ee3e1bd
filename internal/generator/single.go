package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/amendbot/amend/pkg/types"
)

const singleSystemPrompt = `You are an expert software engineer. You update code files based on user instructions.

You will receive a user instruction and the contents of a repository's files. Decide which files need changes and produce the complete replacement content for each changed file.

You MUST respond with valid JSON only, in this exact format:
{
  "changes": [
    {"path": "path/to/file.py", "content": "complete new file content"}
  ],
  "summary": "brief summary of the changes"
}

RULES:
1. "content" must be the complete file content, not a diff or a fragment.
2. Only include files that actually change. If nothing needs to change, return {"changes": [], "summary": "no changes needed"}.
3. You may include paths that do not exist yet; they will be created.
4. Preserve each file's original structure, indentation, and style.
5. Respond with JSON only. No markdown, no explanations outside the JSON.`

// AIGenerator produces the full change set from a single chat request.
type AIGenerator struct {
	client    *openai.Client
	logger    *zap.Logger
	model     string
	maxTokens int
}

// Generate implements Generator.
func (g *AIGenerator) Generate(ctx context.Context, prompt string, files []types.FileSnapshot) (types.ChangeSet, error) {
	response, err := chatCompletion(ctx, g.client, g.model, g.maxTokens, singleSystemPrompt, g.buildPrompt(prompt, files))
	if err != nil {
		return nil, err
	}

	changes, summary, err := parseChangeSet(response)
	if err != nil {
		return nil, err
	}

	g.logger.Info("generated change set",
		zap.Int("files_in", len(files)),
		zap.Int("changes", len(changes)),
		zap.String("summary", summary),
	)
	return changes, nil
}

func (g *AIGenerator) buildPrompt(prompt string, files []types.FileSnapshot) string {
	var sb strings.Builder

	sb.WriteString("INSTRUCTION:\n")
	sb.WriteString(prompt + "\n\n")

	sb.WriteString("REPOSITORY FILES:\n")
	for _, file := range files {
		fmt.Fprintf(&sb, "\n--- %s ---\n", file.Path)
		sb.WriteString(file.Content)
		sb.WriteString("\n")
	}

	sb.WriteString("\nApply the instruction and respond with the change JSON.")
	return sb.String()
}
