package types

// FileSnapshot is a single text file as read from the base branch.
type FileSnapshot struct {
	Path    string
	Content string
	SHA     string
}

// RepoSnapshot is the reader's output: the fetched files plus the base
// branch state they were read from.
type RepoSnapshot struct {
	Files []FileSnapshot
	Base  BaseRef
}

// FileChange is a full-content replacement for one path. Paths that do not
// exist on the base branch are created.
type FileChange struct {
	Path    string
	Content string
}

// ChangeSet is the ordered list of file replacements proposed for one
// request. Order follows the AI response.
type ChangeSet []FileChange

// Paths returns the changed paths in ChangeSet order.
func (cs ChangeSet) Paths() []string {
	paths := make([]string, 0, len(cs))
	for _, ch := range cs {
		paths = append(paths, ch.Path)
	}
	return paths
}

// CommitResult describes the outcome of writing a ChangeSet to a new branch.
type CommitResult struct {
	Branch       string
	CommitSHA    string
	FilesChanged []string
	Success      bool
}
