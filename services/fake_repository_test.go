package services_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/cppla/threadline/models"
	"github.com/cppla/threadline/repository"
)

var errInjected = errors.New("injected failure")

// fakeRepo is an in-memory repository. Transactions are serialized by txMu
// and roll back by restoring a snapshot.
type fakeRepo struct {
	txMu sync.Mutex
	mu   sync.Mutex

	nextID    uint
	users     map[uint]models.User
	posts     map[uint]models.Post
	threads   map[uint]models.Thread
	reactions map[string]models.Reaction

	// failDeleteOnPost makes DeleteReaction fail for reactions on these posts.
	failDeleteOnPost map[uint]bool
	// afterFindPost runs once, after the next plain FindPost returns.
	afterFindPost func(id uint)
	// locks records every row lock as "post:<id>" or "thread:<id>".
	locks []string
}

var _ repository.Repository = (*fakeRepo)(nil)

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users:            map[uint]models.User{},
		posts:            map[uint]models.Post{},
		threads:          map[uint]models.Thread{},
		reactions:        map[string]models.Reaction{},
		failDeleteOnPost: map[uint]bool{},
	}
}

func (r *fakeRepo) id() uint {
	r.nextID++
	return r.nextID
}

func missing(what string, id any) error {
	return fmt.Errorf("%s %v: %w", what, id, repository.ErrNotFound)
}

func (r *fakeRepo) FindUser(_ context.Context, id uint) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, missing("user", id)
	}
	return &u, nil
}

func (r *fakeRepo) FindUserByUsername(_ context.Context, username string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, missing("user", username)
}

func (r *fakeRepo) CreateUser(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user.ID = r.id()
	r.users[user.ID] = *user
	return nil
}

func (r *fakeRepo) FindPost(_ context.Context, id uint) (*models.Post, error) {
	p, err := r.readPost(id)
	r.mu.Lock()
	hook := r.afterFindPost
	r.afterFindPost = nil
	r.mu.Unlock()
	if hook != nil {
		hook(id)
	}
	return p, err
}

func (r *fakeRepo) readPost(id uint) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return nil, missing("post", id)
	}
	return &p, nil
}

func (r *fakeRepo) LockPost(_ context.Context, id uint) (*models.Post, error) {
	r.recordLock(fmt.Sprintf("post:%d", id))
	return r.readPost(id)
}

func (r *fakeRepo) recordLock(what string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.locks = append(r.locks, what)
}

func (r *fakeRepo) takeLocks() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.locks
	r.locks = nil
	return out
}

func (r *fakeRepo) CreatePost(_ context.Context, post *models.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	post.ID = r.id()
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now().UTC()
	}
	r.posts[post.ID] = *post
	return nil
}

func (r *fakeRepo) AssignThread(_ context.Context, postID, threadID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[postID]
	if !ok {
		return missing("post", postID)
	}
	p.ThreadID = &threadID
	r.posts[postID] = p
	return nil
}

func (r *fakeRepo) ListPostsByThread(_ context.Context, threadID uint) ([]models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Post
	for _, p := range r.posts {
		if p.InThread(threadID) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *fakeRepo) UpdatePostCounters(_ context.Context, postID uint, c repository.PostCounters) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[postID]
	if !ok {
		return nil
	}
	p.LikeCount, p.RepostCount = c.LikeCount, c.RepostCount
	r.posts[postID] = p
	return nil
}

func (r *fakeRepo) UpdateCommentCount(_ context.Context, postID uint, n int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[postID]
	if !ok {
		return nil
	}
	p.CommentCount = n
	r.posts[postID] = p
	return nil
}

func (r *fakeRepo) FindThread(_ context.Context, id uint) (*models.Thread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.threads[id]
	if !ok {
		return nil, missing("thread", id)
	}
	return &t, nil
}

func (r *fakeRepo) LockThread(ctx context.Context, id uint) (*models.Thread, error) {
	r.recordLock(fmt.Sprintf("thread:%d", id))
	return r.FindThread(ctx, id)
}

func (r *fakeRepo) FindThreadByOriginalPost(_ context.Context, postID uint) (*models.Thread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.threads {
		if t.OriginalPostID == postID {
			return &t, nil
		}
	}
	return nil, missing("thread for post", postID)
}

func (r *fakeRepo) CreateThread(_ context.Context, thread *models.Thread) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	thread.ID = r.id()
	r.threads[thread.ID] = *thread
	return nil
}

func (r *fakeRepo) UpdateThreadMetrics(_ context.Context, threadID uint, m repository.ThreadMetrics) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.threads[threadID]
	if !ok {
		return nil
	}
	t.ParticipantCount = m.ParticipantCount
	t.PostCount = m.PostCount
	t.MaxDepth = m.MaxDepth
	t.TotalLikes = m.TotalLikes
	t.TotalReshares = m.TotalReshares
	t.LastActivityAt = m.LastActivityAt
	r.threads[threadID] = t
	return nil
}

func (r *fakeRepo) FindReaction(_ context.Context, userID, postID uint) (*models.Reaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rc := range r.reactions {
		if rc.UserID == userID && rc.PostID == postID {
			return &rc, nil
		}
	}
	return nil, missing("reaction", fmt.Sprintf("%d/%d", userID, postID))
}

func (r *fakeRepo) FindReactionByID(_ context.Context, id string) (*models.Reaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rc, ok := r.reactions[id]
	if !ok {
		return nil, missing("reaction", id)
	}
	return &rc, nil
}

func (r *fakeRepo) ListReactions(_ context.Context, f repository.ReactionFilter, page repository.Page) ([]models.Reaction, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Reaction
	for _, rc := range r.reactions {
		if f.PostID != 0 && rc.PostID != f.PostID {
			continue
		}
		if f.UserID != 0 && rc.UserID != f.UserID {
			continue
		}
		if f.Type != "" && rc.Type != f.Type {
			continue
		}
		out = append(out, rc)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	total := int64(len(out))
	if page.PageSize > 0 {
		start := min(page.Offset(), len(out))
		end := min(start+page.PageSize, len(out))
		out = out[start:end]
	}
	return out, total, nil
}

func (r *fakeRepo) InsertReaction(_ context.Context, rc *models.Reaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.reactions {
		if existing.UserID == rc.UserID && existing.PostID == rc.PostID {
			return fmt.Errorf("duplicate reaction for user %d on post %d", rc.UserID, rc.PostID)
		}
	}
	if rc.ID == "" {
		rc.ID = uuid.NewString()
	}
	r.reactions[rc.ID] = *rc
	return nil
}

func (r *fakeRepo) DeleteReaction(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rc, ok := r.reactions[id]
	if !ok {
		return missing("reaction", id)
	}
	if r.failDeleteOnPost[rc.PostID] {
		return errInjected
	}
	delete(r.reactions, id)
	return nil
}

func (r *fakeRepo) CountReactionsByType(_ context.Context, postID uint) (map[models.ReactionType]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := map[models.ReactionType]int64{}
	for _, rc := range r.reactions {
		if rc.PostID == postID {
			counts[rc.Type]++
		}
	}
	return counts, nil
}

func (r *fakeRepo) ReactionActivity(_ context.Context, types []models.ReactionType, windowStart, recentStart time.Time) ([]repository.Activity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	wanted := map[models.ReactionType]bool{}
	for _, t := range types {
		wanted[t] = true
	}
	byPost := map[uint]*repository.Activity{}
	for _, rc := range r.reactions {
		if !wanted[rc.Type] || rc.CreatedAt.Before(windowStart) {
			continue
		}
		if p, ok := r.posts[rc.PostID]; !ok || p.Hidden {
			continue
		}
		a, ok := byPost[rc.PostID]
		if !ok {
			a = &repository.Activity{PostID: rc.PostID}
			byPost[rc.PostID] = a
		}
		a.TotalReactions++
		if !rc.CreatedAt.Before(recentStart) {
			a.RecentReactions++
		}
	}
	out := make([]repository.Activity, 0, len(byPost))
	for _, a := range byPost {
		out = append(out, *a)
	}
	return out, nil
}

func (r *fakeRepo) WithTx(_ context.Context, fn func(tx repository.Repository) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	r.mu.Lock()
	snap := r.snapshot()
	r.mu.Unlock()

	if err := fn(r); err != nil {
		r.mu.Lock()
		r.restore(snap)
		r.mu.Unlock()
		return err
	}
	return nil
}

type fakeSnapshot struct {
	nextID    uint
	users     map[uint]models.User
	posts     map[uint]models.Post
	threads   map[uint]models.Thread
	reactions map[string]models.Reaction
}

func (r *fakeRepo) snapshot() fakeSnapshot {
	s := fakeSnapshot{
		nextID:    r.nextID,
		users:     make(map[uint]models.User, len(r.users)),
		posts:     make(map[uint]models.Post, len(r.posts)),
		threads:   make(map[uint]models.Thread, len(r.threads)),
		reactions: make(map[string]models.Reaction, len(r.reactions)),
	}
	for k, v := range r.users {
		s.users[k] = v
	}
	for k, v := range r.posts {
		s.posts[k] = v
	}
	for k, v := range r.threads {
		s.threads[k] = v
	}
	for k, v := range r.reactions {
		s.reactions[k] = v
	}
	return s
}

func (r *fakeRepo) restore(s fakeSnapshot) {
	r.nextID = s.nextID
	r.users = s.users
	r.posts = s.posts
	r.threads = s.threads
	r.reactions = s.reactions
}

// fixtures

var epoch = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func (r *fakeRepo) addUser(t *testing.T, name string) uint {
	t.Helper()
	u := &models.User{Username: name}
	if err := r.CreateUser(context.Background(), u); err != nil {
		t.Fatal(err)
	}
	return u.ID
}

// addPost stores a post directly, bypassing the publisher. createdAt is an
// offset from epoch.
func (r *fakeRepo) addPost(t *testing.T, author uint, parent, thread *uint, createdAt time.Duration) uint {
	t.Helper()
	p := &models.Post{
		AuthorID:     author,
		ParentPostID: parent,
		ThreadID:     thread,
		Content:      "post",
		CreatedAt:    epoch.Add(createdAt),
		PublishedAt:  epoch.Add(createdAt),
	}
	if err := r.CreatePost(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	return p.ID
}

func (r *fakeRepo) addThread(t *testing.T, root uint) uint {
	t.Helper()
	th := &models.Thread{OriginalPostID: root}
	if err := r.CreateThread(context.Background(), th); err != nil {
		t.Fatal(err)
	}
	if err := r.AssignThread(context.Background(), root, th.ID); err != nil {
		t.Fatal(err)
	}
	return th.ID
}

func (r *fakeRepo) addReaction(t *testing.T, user, post uint, typ models.ReactionType, at time.Time) {
	t.Helper()
	if err := r.InsertReaction(context.Background(), &models.Reaction{UserID: user, PostID: post, Type: typ, CreatedAt: at}); err != nil {
		t.Fatal(err)
	}
}

func (r *fakeRepo) post(t *testing.T, id uint) models.Post {
	t.Helper()
	p, err := r.readPost(id)
	if err != nil {
		t.Fatal(err)
	}
	return *p
}

func (r *fakeRepo) thread(t *testing.T, id uint) models.Thread {
	t.Helper()
	th, err := r.FindThread(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	return *th
}

func (r *fakeRepo) liveReactions(user, post uint) []models.Reaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Reaction
	for _, rc := range r.reactions {
		if rc.UserID == user && rc.PostID == post {
			out = append(out, rc)
		}
	}
	return out
}

func repoPage(page, size int) repository.Page {
	return repository.Page{Page: page, PageSize: size}
}
