package generator

import (
	"encoding/json"
	"path"
	"strings"

	"github.com/amendbot/amend/pkg/apperr"
	"github.com/amendbot/amend/pkg/types"
)

type changeRecord struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

type changeResponse struct {
	Changes []changeRecord `json:"changes"`
	Summary string         `json:"summary"`
}

// parseChangeSet decodes an AI response into a ChangeSet. The response must
// be the exact schema {"changes":[{"path","content"},...],"summary"};
// anything else is a parse error rather than a guess.
func parseChangeSet(raw string) (types.ChangeSet, string, error) {
	dec := json.NewDecoder(strings.NewReader(extractJSON(raw)))
	dec.DisallowUnknownFields()

	var resp changeResponse
	if err := dec.Decode(&resp); err != nil {
		return nil, "", apperr.Wrap(apperr.KindParse, "AI response is not a valid change set", err)
	}
	if dec.More() {
		return nil, "", apperr.New(apperr.KindParse, "AI response contains trailing data after the change set")
	}

	changes := make(types.ChangeSet, 0, len(resp.Changes))
	for _, rec := range resp.Changes {
		if err := validatePath(rec.Path); err != nil {
			return nil, "", err
		}
		changes = append(changes, types.FileChange{Path: rec.Path, Content: rec.Content})
	}
	return changes, resp.Summary, nil
}

func validatePath(p string) error {
	if p == "" {
		return apperr.New(apperr.KindParse, "change entry is missing a path")
	}
	if strings.HasPrefix(p, "/") {
		return apperr.Newf(apperr.KindParse, "change path %q is absolute", p)
	}
	clean := path.Clean(p)
	if clean != p || clean == ".." || strings.HasPrefix(clean, "../") {
		return apperr.Newf(apperr.KindParse, "change path %q is not a clean relative path", p)
	}
	return nil
}

// extractJSON pulls the JSON payload out of a response that may be wrapped
// in a markdown code fence.
func extractJSON(text string) string {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "{") {
		return trimmed
	}
	if idx := strings.Index(text, "```json"); idx != -1 {
		rest := text[idx+len("```json"):]
		if end := strings.Index(rest, "```"); end != -1 {
			return strings.TrimSpace(rest[:end])
		}
	}
	if idx := strings.Index(text, "```"); idx != -1 {
		rest := text[idx+3:]
		if end := strings.Index(rest, "```"); end != -1 {
			return strings.TrimSpace(rest[:end])
		}
	}
	return strings.TrimSpace(text)
}

// cleanContent strips a wrapping markdown code fence from a generated file
// body, leaving fences that appear inside the content alone.
func cleanContent(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	if len(lines) > 0 && strings.HasPrefix(lines[0], "```") {
		lines = lines[1:]
	}
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
