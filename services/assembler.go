package services

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/cppla/threadline/metrics"
	"github.com/cppla/threadline/models"
	"github.com/cppla/threadline/repository"
)

// ThreadEntry is one post of an assembled thread with its display depth.
type ThreadEntry struct {
	Post  models.Post `json:"post"`
	Depth int         `json:"depth"`
}

// Assembly is the linear display order of a thread.
type Assembly struct {
	Entries []ThreadEntry
	// Orphans counts posts unreachable from the root; they are not in Entries.
	Orphans int
	// Degraded is set when no root was found and Entries keeps input order.
	Degraded bool
}

// Assemble orders posts depth-first from the root: a post is emitted before
// its replies, and sibling replies follow CreatedAt ascending (ties by ID).
//
// The root is the post without a parent; when several qualify the one whose
// ID is originalPostID wins, otherwise the first in input order. Without a
// root the input order is returned unchanged at depth 0. Each post is emitted
// at most once, so cyclic parent links terminate.
func Assemble(posts []models.Post, originalPostID uint) Assembly {
	root := -1
	for i := range posts {
		if posts[i].ParentPostID != nil {
			continue
		}
		if root < 0 || posts[i].ID == originalPostID {
			root = i
		}
	}
	if root < 0 {
		entries := make([]ThreadEntry, len(posts))
		for i := range posts {
			entries[i] = ThreadEntry{Post: posts[i]}
		}
		return Assembly{Entries: entries, Degraded: true}
	}

	children := make(map[uint][]int, len(posts))
	for i := range posts {
		if parent := posts[i].ParentPostID; parent != nil {
			children[*parent] = append(children[*parent], i)
		}
	}
	for _, kids := range children {
		sort.SliceStable(kids, func(a, b int) bool {
			pa, pb := &posts[kids[a]], &posts[kids[b]]
			if !pa.CreatedAt.Equal(pb.CreatedAt) {
				return pa.CreatedAt.Before(pb.CreatedAt)
			}
			return pa.ID < pb.ID
		})
	}

	type frame struct {
		idx   int
		depth int
	}
	visited := make([]bool, len(posts))
	entries := make([]ThreadEntry, 0, len(posts))
	stack := []frame{{idx: root}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[f.idx] {
			continue
		}
		visited[f.idx] = true
		entries = append(entries, ThreadEntry{Post: posts[f.idx], Depth: f.depth})

		// push in reverse so the earliest reply is popped first
		kids := children[posts[f.idx].ID]
		for j := len(kids) - 1; j >= 0; j-- {
			if !visited[kids[j]] {
				stack = append(stack, frame{idx: kids[j], depth: f.depth + 1})
			}
		}
	}

	return Assembly{Entries: entries, Orphans: len(posts) - len(entries)}
}

// ThreadView is a thread aggregate with its posts in display order.
type ThreadView struct {
	Thread  models.Thread `json:"thread"`
	Entries []ThreadEntry `json:"entries"`
}

// Assembler loads threads and orders them for display. It never writes.
type Assembler struct {
	repo repository.Repository
	log  *zap.SugaredLogger
}

// NewAssembler creates an Assembler reading from repo.
func NewAssembler(repo repository.Repository, log *zap.SugaredLogger) *Assembler {
	return &Assembler{repo: repo, log: orNop(log)}
}

// ThreadView returns the ordered view of threadID, or ErrNotFound when the
// thread does not exist. Orphaned posts are dropped and logged.
func (a *Assembler) ThreadView(ctx context.Context, threadID uint) (*ThreadView, error) {
	thread, err := a.repo.FindThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	posts, err := a.repo.ListPostsByThread(ctx, threadID)
	if err != nil {
		return nil, err
	}

	asm := Assemble(posts, thread.OriginalPostID)
	if asm.Degraded {
		a.log.Warnw("thread has no root post, using storage order", "thread_id", threadID, "posts", len(posts))
	}
	if asm.Orphans > 0 {
		metrics.OrphanedPosts.Add(float64(asm.Orphans))
		a.log.Warnw("dropped posts unreachable from thread root", "thread_id", threadID, "orphans", asm.Orphans)
	}
	return &ThreadView{Thread: *thread, Entries: asm.Entries}, nil
}
