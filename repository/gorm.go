package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/threadline/models"
)

// GormRepository implements Repository on top of a gorm connection.
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository wraps an initialized gorm DB.
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

var _ Repository = (*GormRepository)(nil)

func (r *GormRepository) conn(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}

// forUpdate adds a row lock where the dialect has one. SQLite serializes
// writers on the whole database and rejects FOR UPDATE.
func (r *GormRepository) forUpdate(db *gorm.DB) *gorm.DB {
	if r.db.Dialector.Name() == "sqlite" {
		return db
	}
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

func notFound(err error, what string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %v: %w", what, id, ErrNotFound)
	}
	return err
}

func (r *GormRepository) FindUser(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := r.conn(ctx).First(&u, id).Error; err != nil {
		return nil, notFound(err, "user", id)
	}
	return &u, nil
}

func (r *GormRepository) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	if err := r.conn(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, notFound(err, "user", username)
	}
	return &u, nil
}

func (r *GormRepository) CreateUser(ctx context.Context, user *models.User) error {
	return r.conn(ctx).Create(user).Error
}

func (r *GormRepository) FindPost(ctx context.Context, id uint) (*models.Post, error) {
	var p models.Post
	if err := r.conn(ctx).First(&p, id).Error; err != nil {
		return nil, notFound(err, "post", id)
	}
	return &p, nil
}

func (r *GormRepository) LockPost(ctx context.Context, id uint) (*models.Post, error) {
	var p models.Post
	if err := r.forUpdate(r.conn(ctx)).First(&p, id).Error; err != nil {
		return nil, notFound(err, "post", id)
	}
	return &p, nil
}

func (r *GormRepository) CreatePost(ctx context.Context, post *models.Post) error {
	return r.conn(ctx).Create(post).Error
}

func (r *GormRepository) AssignThread(ctx context.Context, postID, threadID uint) error {
	res := r.conn(ctx).Model(&models.Post{}).Where("id = ?", postID).Update("thread_id", threadID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("post %d: %w", postID, ErrNotFound)
	}
	return nil
}

func (r *GormRepository) ListPostsByThread(ctx context.Context, threadID uint) ([]models.Post, error) {
	var posts []models.Post
	err := r.conn(ctx).Where("thread_id = ?", threadID).Order("created_at ASC, id ASC").Find(&posts).Error
	return posts, err
}

func (r *GormRepository) UpdatePostCounters(ctx context.Context, postID uint, counters PostCounters) error {
	return r.conn(ctx).Model(&models.Post{}).Where("id = ?", postID).Updates(map[string]any{
		"like_count":   counters.LikeCount,
		"repost_count": counters.RepostCount,
	}).Error
}

func (r *GormRepository) UpdateCommentCount(ctx context.Context, postID uint, count int64) error {
	return r.conn(ctx).Model(&models.Post{}).Where("id = ?", postID).Update("comment_count", count).Error
}

func (r *GormRepository) FindThread(ctx context.Context, id uint) (*models.Thread, error) {
	var t models.Thread
	if err := r.conn(ctx).First(&t, id).Error; err != nil {
		return nil, notFound(err, "thread", id)
	}
	return &t, nil
}

func (r *GormRepository) LockThread(ctx context.Context, id uint) (*models.Thread, error) {
	var t models.Thread
	if err := r.forUpdate(r.conn(ctx)).First(&t, id).Error; err != nil {
		return nil, notFound(err, "thread", id)
	}
	return &t, nil
}

func (r *GormRepository) FindThreadByOriginalPost(ctx context.Context, postID uint) (*models.Thread, error) {
	var t models.Thread
	if err := r.conn(ctx).Where("original_post_id = ?", postID).First(&t).Error; err != nil {
		return nil, notFound(err, "thread for post", postID)
	}
	return &t, nil
}

func (r *GormRepository) CreateThread(ctx context.Context, thread *models.Thread) error {
	return r.conn(ctx).Create(thread).Error
}

func (r *GormRepository) UpdateThreadMetrics(ctx context.Context, threadID uint, m ThreadMetrics) error {
	return r.conn(ctx).Model(&models.Thread{}).Where("id = ?", threadID).Updates(map[string]any{
		"participant_count": m.ParticipantCount,
		"post_count":        m.PostCount,
		"max_depth":         m.MaxDepth,
		"total_likes":       m.TotalLikes,
		"total_reshares":    m.TotalReshares,
		"last_activity_at":  m.LastActivityAt,
	}).Error
}

func (r *GormRepository) FindReaction(ctx context.Context, userID, postID uint) (*models.Reaction, error) {
	var rc models.Reaction
	err := r.conn(ctx).Where("user_id = ? AND post_id = ?", userID, postID).First(&rc).Error
	if err != nil {
		return nil, notFound(err, "reaction", fmt.Sprintf("%d/%d", userID, postID))
	}
	return &rc, nil
}

func (r *GormRepository) FindReactionByID(ctx context.Context, id string) (*models.Reaction, error) {
	var rc models.Reaction
	if err := r.conn(ctx).Where("id = ?", id).First(&rc).Error; err != nil {
		return nil, notFound(err, "reaction", id)
	}
	return &rc, nil
}

func (r *GormRepository) ListReactions(ctx context.Context, filter ReactionFilter, page Page) ([]models.Reaction, int64, error) {
	scoped := func() *gorm.DB {
		q := r.conn(ctx).Model(&models.Reaction{})
		if filter.PostID != 0 {
			q = q.Where("post_id = ?", filter.PostID)
		}
		if filter.UserID != 0 {
			q = q.Where("user_id = ?", filter.UserID)
		}
		if filter.Type != "" {
			q = q.Where("reaction_type = ?", filter.Type)
		}
		return q
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q := scoped().Order("created_at DESC, id DESC")
	if page.PageSize > 0 {
		q = q.Offset(page.Offset()).Limit(page.PageSize)
	}
	var items []models.Reaction
	if err := q.Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *GormRepository) InsertReaction(ctx context.Context, reaction *models.Reaction) error {
	return r.conn(ctx).Create(reaction).Error
}

func (r *GormRepository) DeleteReaction(ctx context.Context, id string) error {
	res := r.conn(ctx).Where("id = ?", id).Delete(&models.Reaction{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("reaction %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *GormRepository) CountReactionsByType(ctx context.Context, postID uint) (map[models.ReactionType]int64, error) {
	var rows []struct {
		ReactionType models.ReactionType
		Total        int64
	}
	err := r.conn(ctx).Model(&models.Reaction{}).
		Select("reaction_type, COUNT(*) AS total").
		Where("post_id = ?", postID).
		Group("reaction_type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[models.ReactionType]int64, len(rows))
	for _, row := range rows {
		counts[row.ReactionType] = row.Total
	}
	return counts, nil
}

func (r *GormRepository) ReactionActivity(ctx context.Context, types []models.ReactionType, windowStart, recentStart time.Time) ([]Activity, error) {
	var rows []Activity
	err := r.conn(ctx).Table("reactions").
		Select("reactions.post_id AS post_id, COUNT(*) AS total_reactions, "+
			"SUM(CASE WHEN reactions.created_at >= ? THEN 1 ELSE 0 END) AS recent_reactions", recentStart.UTC()).
		Joins("JOIN posts ON posts.id = reactions.post_id").
		Where("reactions.reaction_type IN ?", types).
		Where("reactions.created_at >= ?", windowStart.UTC()).
		Where("posts.hidden = ?", false).
		Group("reactions.post_id").
		Scan(&rows).Error
	return rows, err
}

func (r *GormRepository) WithTx(ctx context.Context, fn func(tx Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormRepository{db: tx})
	})
}
