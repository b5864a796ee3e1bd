package github

import (
	"bytes"
	"context"
	"path"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/go-github/v57/github"
	"go.uber.org/zap"

	"github.com/amendbot/amend/pkg/apperr"
	"github.com/amendbot/amend/pkg/types"
)

// FetchRepository lists the base branch tree recursively, filters to text
// files per the configured policy, and fetches each file's content. The
// optional pattern is a suffix filter like "*.py".
func (c *Client) FetchRepository(ctx context.Context, ref types.RepoRef, pattern string) (*types.RepoSnapshot, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	branchRef, _, err := c.api.Git.GetRef(ctx, ref.Owner, ref.Name, "heads/"+ref.BaseBranch)
	if err != nil {
		return nil, mapError(err, apperr.KindUnknown, "failed to resolve branch "+ref.BaseBranch)
	}
	commitSHA := branchRef.GetObject().GetSHA()

	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	commit, _, err := c.api.Git.GetCommit(ctx, ref.Owner, ref.Name, commitSHA)
	if err != nil {
		return nil, mapError(err, apperr.KindUnknown, "failed to get base commit")
	}
	treeSHA := commit.GetTree().GetSHA()

	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	tree, _, err := c.api.Git.GetTree(ctx, ref.Owner, ref.Name, treeSHA, true)
	if err != nil {
		return nil, mapError(err, apperr.KindUnknown, "failed to get repository tree")
	}

	var entries []*github.TreeEntry
	for _, entry := range tree.Entries {
		if entry.GetType() != "blob" {
			continue
		}
		if !c.shouldFetch(entry, pattern) {
			continue
		}
		entries = append(entries, entry)
	}

	files, err := c.fetchContents(ctx, ref, entries)
	if err != nil {
		return nil, err
	}

	c.logger.Info("fetched repository contents",
		zap.String("owner", ref.Owner),
		zap.String("repo", ref.Name),
		zap.String("branch", ref.BaseBranch),
		zap.Int("files", len(files)),
	)

	return &types.RepoSnapshot{
		Files: files,
		Base: types.BaseRef{
			CommitSHA: commitSHA,
			TreeSHA:   treeSHA,
		},
	}, nil
}

func (c *Client) shouldFetch(entry *github.TreeEntry, pattern string) bool {
	p := entry.GetPath()
	if entry.GetSize() > int(c.maxFileBytes) {
		return false
	}
	if _, skip := c.skipExts[strings.ToLower(path.Ext(p))]; skip {
		return false
	}
	if pattern != "" && !strings.HasSuffix(p, strings.ReplaceAll(pattern, "*", "")) {
		return false
	}
	return true
}

// fetchContents downloads blob contents through a small worker pool. Order
// of the returned snapshots follows the tree listing.
func (c *Client) fetchContents(ctx context.Context, ref types.RepoRef, entries []*github.TreeEntry) ([]types.FileSnapshot, error) {
	results := make([]*types.FileSnapshot, len(entries))
	sem := make(chan struct{}, c.fetchWorkers)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		fetchErr error
	)

	for i, entry := range entries {
		wg.Add(1)
		go func(i int, entry *github.TreeEntry) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			mu.Lock()
			failed := fetchErr != nil
			mu.Unlock()
			if failed {
				return
			}

			snapshot, err := c.fetchBlob(ctx, ref, entry)
			if err != nil {
				mu.Lock()
				if fetchErr == nil {
					fetchErr = err
				}
				mu.Unlock()
				return
			}
			results[i] = snapshot
		}(i, entry)
	}
	wg.Wait()

	if fetchErr != nil {
		return nil, fetchErr
	}

	files := make([]types.FileSnapshot, 0, len(entries))
	for _, snapshot := range results {
		if snapshot != nil {
			files = append(files, *snapshot)
		}
	}
	return files, nil
}

// fetchBlob returns nil without error for content that turns out to be
// binary despite passing the extension filter.
func (c *Client) fetchBlob(ctx context.Context, ref types.RepoRef, entry *github.TreeEntry) (*types.FileSnapshot, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	raw, _, err := c.api.Git.GetBlobRaw(ctx, ref.Owner, ref.Name, entry.GetSHA())
	if err != nil {
		return nil, mapError(err, apperr.KindUnknown, "failed to fetch blob "+entry.GetPath())
	}

	if !utf8.Valid(raw) || bytes.ContainsRune(raw, 0) {
		c.logger.Debug("skipping binary file", zap.String("path", entry.GetPath()))
		return nil, nil
	}

	return &types.FileSnapshot{
		Path:    entry.GetPath(),
		Content: string(raw),
		SHA:     entry.GetSHA(),
	}, nil
}
