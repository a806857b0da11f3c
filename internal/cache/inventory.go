package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	PostKeyPrefix     = "post:%d"
	PostSlugKeyPrefix = "post:slug:%s"
	PostsListKeyName  = "posts:list:front"
	CategoriesKeyName = "categories:all"
	UserKeyPrefix     = "user:%d"
)

const (
	PostTTL       = 10 * time.Minute
	ListTTL       = 1 * time.Minute
	CategoriesTTL = 15 * time.Minute
	UserTTL       = 15 * time.Minute
)

func PostKey(postID uint) string {
	return fmt.Sprintf(PostKeyPrefix, postID)
}

func PostSlugKey(slug string) string {
	return fmt.Sprintf(PostSlugKeyPrefix, slug)
}

// PostsListKey caches only the default first page of the published listing,
// which absorbs the bulk of anonymous traffic.
func PostsListKey() string {
	return PostsListKeyName
}

func CategoriesKey() string {
	return CategoriesKeyName
}

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

// InvalidatePost drops both lookup paths for a post. The slug must be the one
// currently stored, so callers invalidate before reassigning slugs.
func InvalidatePost(ctx context.Context, postID uint, postSlug string) {
	Invalidate(ctx, PostKey(postID))
	if postSlug != "" {
		Invalidate(ctx, PostSlugKey(postSlug))
	}
}

func InvalidatePostsList(ctx context.Context) {
	Invalidate(ctx, PostsListKey())
}

func InvalidateCategories(ctx context.Context) {
	Invalidate(ctx, CategoriesKey())
}

func InvalidateUser(ctx context.Context, userID uint) {
	Invalidate(ctx, UserKey(userID))
}
