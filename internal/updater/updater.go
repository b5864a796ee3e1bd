package updater

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/amendbot/amend/internal/generator"
	"github.com/amendbot/amend/pkg/apperr"
	"github.com/amendbot/amend/pkg/types"
)

// Reader retrieves repository contents from the hosting platform.
type Reader interface {
	FetchRepository(ctx context.Context, ref types.RepoRef, pattern string) (*types.RepoSnapshot, error)
}

// Writer creates branches and commits on the hosting platform.
type Writer interface {
	CreateBranch(ctx context.Context, ref types.RepoRef, branch string, base types.BaseRef) error
	CommitChanges(ctx context.Context, ref types.RepoRef, branch string, base types.BaseRef, changes types.ChangeSet, message string) (*types.CommitResult, error)
}

// Updater runs the read → generate → write pipeline for one request.
type Updater struct {
	reader    Reader
	generator generator.Generator
	writer    Writer
	logger    *zap.Logger
}

// New creates an Updater.
func New(reader Reader, gen generator.Generator, writer Writer, logger *zap.Logger) *Updater {
	return &Updater{
		reader:    reader,
		generator: gen,
		writer:    writer,
		logger:    logger,
	}
}

// Request holds the parameters of one update or preview operation.
type Request struct {
	RepoURL     string
	Prompt      string
	BaseBranch  string
	NewBranch   string
	FilePattern string
}

// UpdateResult is the pipeline outcome returned to the caller.
type UpdateResult struct {
	types.CommitResult
	Message string
}

// PreviewChange shows one proposed file change with contents truncated for
// display.
type PreviewChange struct {
	Path     string
	Original string
	Updated  string
}

// PreviewResult is the outcome of a dry run.
type PreviewResult struct {
	FilesToUpdate int
	Changes       []PreviewChange
}

const previewContentLimit = 500

// Run executes the full pipeline: fetch the repository, generate changes,
// and write them to a new branch. An empty change set short-circuits with a
// successful result and no writes.
func (u *Updater) Run(ctx context.Context, req Request) (*UpdateResult, error) {
	ref, snapshot, changes, err := u.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	branch := req.NewBranch
	if branch == "" {
		branch = types.GenerateBranchName()
	}

	if len(changes) == 0 {
		u.logger.Info("no changes proposed",
			zap.String("owner", ref.Owner),
			zap.String("repo", ref.Name),
		)
		return &UpdateResult{
			CommitResult: types.CommitResult{
				Branch:       branch,
				FilesChanged: []string{},
				Success:      true,
			},
			Message: "no changes were needed for this prompt",
		}, nil
	}

	if err := u.writer.CreateBranch(ctx, ref, branch, snapshot.Base); err != nil {
		return nil, err
	}

	result, err := u.writer.CommitChanges(ctx, ref, branch, snapshot.Base, changes, commitMessage(req.Prompt))
	if err != nil {
		return nil, err
	}

	u.logger.Info("update complete",
		zap.String("owner", ref.Owner),
		zap.String("repo", ref.Name),
		zap.String("branch", result.Branch),
		zap.String("commit_sha", result.CommitSHA),
		zap.Int("files_changed", len(result.FilesChanged)),
	)

	return &UpdateResult{
		CommitResult: *result,
		Message:      fmt.Sprintf("created branch %q with %d file changes", branch, len(changes)),
	}, nil
}

// Preview runs the reader and generator but commits nothing.
func (u *Updater) Preview(ctx context.Context, req Request) (*PreviewResult, error) {
	_, snapshot, changes, err := u.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	originals := make(map[string]string, len(snapshot.Files))
	for _, file := range snapshot.Files {
		originals[file.Path] = file.Content
	}

	preview := &PreviewResult{
		FilesToUpdate: len(changes),
		Changes:       make([]PreviewChange, 0, len(changes)),
	}
	for _, change := range changes {
		preview.Changes = append(preview.Changes, PreviewChange{
			Path:     change.Path,
			Original: truncate(originals[change.Path], previewContentLimit),
			Updated:  truncate(change.Content, previewContentLimit),
		})
	}
	return preview, nil
}

func (u *Updater) prepare(ctx context.Context, req Request) (types.RepoRef, *types.RepoSnapshot, types.ChangeSet, error) {
	if req.Prompt == "" {
		return types.RepoRef{}, nil, nil, apperr.New(apperr.KindInvalidInput, "prompt is empty")
	}
	if req.NewBranch != "" && types.SanitizeBranchName(req.NewBranch) != req.NewBranch {
		return types.RepoRef{}, nil, nil, apperr.Newf(apperr.KindInvalidInput, "invalid branch name %q", req.NewBranch)
	}

	ref, err := types.ParseRepoURL(req.RepoURL)
	if err != nil {
		return types.RepoRef{}, nil, nil, err
	}
	ref.BaseBranch = req.BaseBranch
	if ref.BaseBranch == "" {
		ref.BaseBranch = "main"
	}

	snapshot, err := u.reader.FetchRepository(ctx, ref, req.FilePattern)
	if err != nil {
		return types.RepoRef{}, nil, nil, err
	}

	changes, err := u.generator.Generate(ctx, req.Prompt, snapshot.Files)
	if err != nil {
		return types.RepoRef{}, nil, nil, err
	}

	return ref, snapshot, dropUnchanged(changes, snapshot.Files), nil
}

// dropUnchanged removes changes whose content is identical to the fetched
// snapshot, so "return the original content unchanged" responses do not turn
// into empty commits.
func dropUnchanged(changes types.ChangeSet, files []types.FileSnapshot) types.ChangeSet {
	originals := make(map[string]string, len(files))
	for _, file := range files {
		originals[file.Path] = file.Content
	}

	kept := make(types.ChangeSet, 0, len(changes))
	for _, change := range changes {
		if original, ok := originals[change.Path]; ok && original == change.Content {
			continue
		}
		kept = append(kept, change)
	}
	return kept
}

func commitMessage(prompt string) string {
	return "AI update: " + truncate(prompt, 50)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
