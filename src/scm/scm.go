// Package scm resolves revision metadata from the working repository,
// feeding pipeline run triggers: HEAD SHA, branch, and the nearest
// semver tag.
package scm

import (
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Revision is the resolved state of the repository HEAD.
type Revision struct {
	SHA      string // full commit hash
	ShortSHA string // first 7 characters
	Branch   string // empty on detached HEAD
	Tag      string // tag pointing exactly at HEAD, if any
	Version  string // highest semver tag in the repository, if any
}

// Describe resolves revision metadata for the repository containing
// path. Worktrees and nested directories resolve through .git
// discovery.
func Describe(path string) (*Revision, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("scm: opening repository at %s: %w", path, err)
	}

	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("scm: resolving HEAD: %w", err)
	}

	rev := &Revision{SHA: head.Hash().String()}
	if len(rev.SHA) >= 7 {
		rev.ShortSHA = rev.SHA[:7]
	}
	if head.Name().IsBranch() {
		rev.Branch = head.Name().Short()
	}

	tags, err := repo.Tags()
	if err != nil {
		return rev, nil
	}

	var versions []*semver.Version
	_ = tags.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name().Short()

		hash := ref.Hash()
		// Annotated tags point at a tag object; chase it to the commit.
		if obj, err := repo.TagObject(ref.Hash()); err == nil {
			hash = obj.Target
		}
		if hash == head.Hash() {
			rev.Tag = name
		}

		if v, err := semver.NewVersion(name); err == nil {
			versions = append(versions, v)
		}
		return nil
	})

	if len(versions) > 0 {
		sort.Sort(semver.Collection(versions))
		rev.Version = versions[len(versions)-1].Original()
	}
	return rev, nil
}
