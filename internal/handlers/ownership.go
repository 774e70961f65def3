package handlers

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/vliewarden/backend/internal/models"
	"github.com/vliewarden/backend/internal/votes"
)

// gormOwnership resolves a user's votable content from the live content
// tables. Deleted content is simply absent.
type gormOwnership struct {
	db *gorm.DB
}

func NewContentOwnership(db *gorm.DB) votes.ContentOwnership {
	return &gormOwnership{db: db}
}

func (o *gormOwnership) OwnedTargets(ctx context.Context, userID int) ([]votes.Target, error) {
	sources := []struct {
		kind   votes.Kind
		model  any
		column string
	}{
		{votes.KindPost, &models.Post{}, "user_id"},
		{votes.KindComment, &models.Comment{}, "author_id"},
		{votes.KindArticle, &models.Article{}, "author_id"},
		{votes.KindArticleComment, &models.ArticleComment{}, "author_id"},
	}

	var refs []votes.Target
	for _, src := range sources {
		var ids []int
		err := o.db.WithContext(ctx).Model(src.model).
			Where(src.column+" = ?", userID).
			Pluck("id", &ids).Error
		if err != nil {
			return nil, fmt.Errorf("load owned %s ids: %w", src.kind, err)
		}
		for _, id := range ids {
			refs = append(refs, votes.Target{Kind: src.kind, ID: id})
		}
	}
	return refs, nil
}
