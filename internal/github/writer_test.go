package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amendbot/amend/pkg/apperr"
	"github.com/amendbot/amend/pkg/types"
)

type recordedTree struct {
	BaseTree string `json:"base_tree"`
	Tree     []struct {
		Path string `json:"path"`
		Mode string `json:"mode"`
		Type string `json:"type"`
		SHA  string `json:"sha"`
	} `json:"tree"`
}

type recordedCommit struct {
	Message string   `json:"message"`
	Tree    string   `json:"tree"`
	Parents []string `json:"parents"`
}

type recordedRefUpdate struct {
	SHA   string `json:"sha"`
	Force bool   `json:"force"`
}

// writeRecorder fakes the Git data API write endpoints and records what was
// sent to them.
type writeRecorder struct {
	mu        sync.Mutex
	blobs     []string
	tree      recordedTree
	commit    recordedCommit
	refUpdate recordedRefUpdate
	createRef map[string]string
}

func (rec *writeRecorder) install(mux *http.ServeMux) {
	mux.HandleFunc("/repos/acme/widgets/git/blobs", func(w http.ResponseWriter, r *http.Request) {
		var blob struct {
			Content  string `json:"content"`
			Encoding string `json:"encoding"`
		}
		json.NewDecoder(r.Body).Decode(&blob)

		rec.mu.Lock()
		rec.blobs = append(rec.blobs, blob.Content)
		n := len(rec.blobs)
		rec.mu.Unlock()

		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"sha":"blob-%d"}`, n)
	})
	mux.HandleFunc("/repos/acme/widgets/git/trees", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&rec.tree)
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"sha":"newtree"}`)
	})
	mux.HandleFunc("/repos/acme/widgets/git/commits", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&rec.commit)
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"sha":"newcommit"}`)
	})
	mux.HandleFunc("/repos/acme/widgets/git/refs", func(w http.ResponseWriter, r *http.Request) {
		var ref struct {
			Ref string `json:"ref"`
			SHA string `json:"sha"`
		}
		json.NewDecoder(r.Body).Decode(&ref)
		if rec.createRef == nil {
			rec.createRef = map[string]string{}
		}
		rec.createRef[ref.Ref] = ref.SHA
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"ref":%q,"object":{"sha":%q}}`, ref.Ref, ref.SHA)
	})
	mux.HandleFunc("/repos/acme/widgets/git/refs/heads/feature/x", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&rec.refUpdate)
		fmt.Fprintf(w, `{"ref":"refs/heads/feature/x","object":{"sha":%q}}`, rec.refUpdate.SHA)
	})
}

func TestCreateBranch(t *testing.T) {
	mux := http.NewServeMux()
	rec := &writeRecorder{}
	rec.install(mux)
	c := newTestClient(t, mux)

	base := types.BaseRef{CommitSHA: "commit1", TreeSHA: "tree1"}
	err := c.CreateBranch(context.Background(), testRepoRef(), "feature/x", base)
	require.NoError(t, err)

	assert.Equal(t, "commit1", rec.createRef["refs/heads/feature/x"],
		"new branch must point at the base commit")
}

func TestCreateBranchAlreadyExists(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/git/refs", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"message":"Reference already exists"}`)
	})
	c := newTestClient(t, mux)

	err := c.CreateBranch(context.Background(), testRepoRef(), "feature/x", types.BaseRef{CommitSHA: "commit1"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestCommitChanges(t *testing.T) {
	mux := http.NewServeMux()
	rec := &writeRecorder{}
	rec.install(mux)
	c := newTestClient(t, mux)

	base := types.BaseRef{CommitSHA: "commit1", TreeSHA: "tree1"}
	changes := types.ChangeSet{
		{Path: "app.py", Content: "def main():\n    pass\n"},
		{Path: "README.md", Content: "# widgets\n"},
	}

	result, err := c.CommitChanges(context.Background(), testRepoRef(), "feature/x", base, changes, "AI update: add null checks")
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "feature/x", result.Branch)
	assert.Equal(t, "newcommit", result.CommitSHA)
	assert.Equal(t, []string{"app.py", "README.md"}, result.FilesChanged)

	// One blob per changed file, in change-set order.
	require.Equal(t, []string{"def main():\n    pass\n", "# widgets\n"}, rec.blobs)

	// The tree overrides exactly the changed paths on top of the base tree.
	assert.Equal(t, "tree1", rec.tree.BaseTree)
	require.Len(t, rec.tree.Tree, len(changes))
	for i, entry := range rec.tree.Tree {
		assert.Equal(t, changes[i].Path, entry.Path)
		assert.Equal(t, "100644", entry.Mode)
		assert.Equal(t, "blob", entry.Type)
		assert.Equal(t, fmt.Sprintf("blob-%d", i+1), entry.SHA)
	}

	// The commit references the new tree with the base commit as parent.
	assert.Equal(t, "AI update: add null checks", rec.commit.Message)
	assert.Equal(t, "newtree", rec.commit.Tree)
	assert.Equal(t, []string{"commit1"}, rec.commit.Parents)

	// The branch reference ends at the new commit, without force.
	assert.Equal(t, "newcommit", rec.refUpdate.SHA)
	assert.False(t, rec.refUpdate.Force)
}

func TestCommitChangesRefConflict(t *testing.T) {
	mux := http.NewServeMux()
	rec := &writeRecorder{}
	rec.install(mux)
	mux.HandleFunc("/repos/acme/widgets/git/refs/heads/moved", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"message":"Update is not a fast forward"}`)
	})
	c := newTestClient(t, mux)

	base := types.BaseRef{CommitSHA: "commit1", TreeSHA: "tree1"}
	_, err := c.CommitChanges(context.Background(), testRepoRef(), "moved", base, types.ChangeSet{{Path: "a.py", Content: "x"}}, "msg")
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestCommitChangesBlobWriteError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/git/blobs", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"message":"boom"}`)
	})
	c := newTestClient(t, mux)

	base := types.BaseRef{CommitSHA: "commit1", TreeSHA: "tree1"}
	_, err := c.CommitChanges(context.Background(), testRepoRef(), "feature/x", base, types.ChangeSet{{Path: "a.py", Content: "x"}}, "msg")
	require.Error(t, err)
	assert.Equal(t, apperr.KindWrite, apperr.KindOf(err))
}
