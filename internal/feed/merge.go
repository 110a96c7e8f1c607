package feed

import (
	"slices"
	"sort"

	"github.com/alfredjeanlab/commentfeed/internal/model"
)

// MergePolicy decides where a newly arrived comment lands in the feed.
type MergePolicy int

const (
	// SortedMerge inserts each comment at its created_at position, so the
	// feed stays newest first even when pushes from different clients arrive
	// out of order. With monotonic timestamps this is always the front.
	SortedMerge MergePolicy = iota
	// FrontInsert always prepends. It is cheaper but trusts delivery order.
	FrontInsert
)

func (p MergePolicy) String() string {
	if p == FrontInsert {
		return "front-insert"
	}
	return "sorted-merge"
}

// feedList is the ordered, id-unique comment list owned by a Synchronizer.
type feedList struct {
	policy   MergePolicy
	comments []*model.Comment
	ids      map[string]struct{}
}

func newFeedList(policy MergePolicy) *feedList {
	return &feedList{policy: policy, ids: make(map[string]struct{})}
}

// add merges c unless its id is already present, reporting whether it was added.
func (l *feedList) add(c *model.Comment) bool {
	if _, dup := l.ids[c.ID]; dup {
		return false
	}
	clone := *c
	l.ids[c.ID] = struct{}{}

	at := 0
	if l.policy == SortedMerge {
		at = sort.Search(len(l.comments), func(i int) bool {
			return clone.NewerThan(l.comments[i])
		})
	}
	l.comments = slices.Insert(l.comments, at, &clone)
	return true
}

// replace swaps in a freshly loaded feed. Duplicate ids in the input keep
// their first occurrence.
func (l *feedList) replace(comments []*model.Comment) {
	l.comments = make([]*model.Comment, 0, len(comments))
	l.ids = make(map[string]struct{}, len(comments))
	for _, c := range comments {
		if c == nil {
			continue
		}
		if _, dup := l.ids[c.ID]; dup {
			continue
		}
		clone := *c
		l.ids[c.ID] = struct{}{}
		l.comments = append(l.comments, &clone)
	}
	if l.policy == SortedMerge {
		sort.SliceStable(l.comments, func(i, j int) bool {
			return l.comments[i].NewerThan(l.comments[j])
		})
	}
}

func (l *feedList) snapshot() []*model.Comment {
	out := make([]*model.Comment, len(l.comments))
	copy(out, l.comments)
	return out
}
