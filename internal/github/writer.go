package github

import (
	"context"

	"github.com/google/go-github/v57/github"
	"go.uber.org/zap"

	"github.com/amendbot/amend/pkg/apperr"
	"github.com/amendbot/amend/pkg/types"
)

// CreateBranch creates a new branch reference pointing at the base commit.
// An already-existing branch name is rejected as a conflict.
func (c *Client) CreateBranch(ctx context.Context, ref types.RepoRef, branch string, base types.BaseRef) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	_, _, err := c.api.Git.CreateRef(ctx, ref.Owner, ref.Name, &github.Reference{
		Ref:    github.String("refs/heads/" + branch),
		Object: &github.GitObject{SHA: github.String(base.CommitSHA)},
	})
	if err != nil {
		return mapError(err, apperr.KindWrite, "failed to create branch "+branch)
	}

	c.logger.Info("created branch",
		zap.String("owner", ref.Owner),
		zap.String("repo", ref.Name),
		zap.String("branch", branch),
		zap.String("base_sha", base.CommitSHA),
	)
	return nil
}

// CommitChanges uploads a blob per changed file, builds a tree over the base
// tree with only the changed paths overridden, creates a commit with the
// base commit as parent, and points the branch reference at it. Partially
// created blobs and trees are not rolled back on failure; GitHub garbage
// collects unreachable objects.
func (c *Client) CommitChanges(ctx context.Context, ref types.RepoRef, branch string, base types.BaseRef, changes types.ChangeSet, message string) (*types.CommitResult, error) {
	entries := make([]*github.TreeEntry, 0, len(changes))
	for _, change := range changes {
		if err := c.wait(ctx); err != nil {
			return nil, err
		}
		blob, _, err := c.api.Git.CreateBlob(ctx, ref.Owner, ref.Name, &github.Blob{
			Content:  github.String(change.Content),
			Encoding: github.String("utf-8"),
		})
		if err != nil {
			return nil, mapError(err, apperr.KindWrite, "failed to create blob for "+change.Path)
		}
		entries = append(entries, &github.TreeEntry{
			Path: github.String(change.Path),
			Mode: github.String("100644"),
			Type: github.String("blob"),
			SHA:  blob.SHA,
		})
	}

	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	tree, _, err := c.api.Git.CreateTree(ctx, ref.Owner, ref.Name, base.TreeSHA, entries)
	if err != nil {
		return nil, mapError(err, apperr.KindWrite, "failed to create tree")
	}

	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	commit, _, err := c.api.Git.CreateCommit(ctx, ref.Owner, ref.Name, &github.Commit{
		Message: github.String(message),
		Tree:    &github.Tree{SHA: tree.SHA},
		Parents: []*github.Commit{{SHA: github.String(base.CommitSHA)}},
	}, nil)
	if err != nil {
		return nil, mapError(err, apperr.KindWrite, "failed to create commit")
	}

	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	// force=false: if the branch reference moved since creation the update
	// is rejected and surfaced as a conflict rather than overwritten.
	_, _, err = c.api.Git.UpdateRef(ctx, ref.Owner, ref.Name, &github.Reference{
		Ref:    github.String("refs/heads/" + branch),
		Object: &github.GitObject{SHA: commit.SHA},
	}, false)
	if err != nil {
		return nil, mapError(err, apperr.KindWrite, "failed to update branch reference "+branch)
	}

	c.logger.Info("committed changes",
		zap.String("owner", ref.Owner),
		zap.String("repo", ref.Name),
		zap.String("branch", branch),
		zap.String("commit_sha", commit.GetSHA()),
		zap.Int("files", len(changes)),
	)

	return &types.CommitResult{
		Branch:       branch,
		CommitSHA:    commit.GetSHA(),
		FilesChanged: changes.Paths(),
		Success:      true,
	}, nil
}
