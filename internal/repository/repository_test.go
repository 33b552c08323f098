package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/social-feed/social-feed/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
)

func setupTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := Open(sqlite.Open(":memory:"), false)
	require.NoError(t, err)

	sqlDB, err := db.DB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate())
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func createUser(t *testing.T, db *Database, email string) *models.User {
	t.Helper()
	u := &models.User{Email: email, Name: "N", Surname: "S", HashedPassword: "x"}
	require.NoError(t, NewUserRepository(db.DB).Create(context.Background(), u))
	return u
}

func createPostAt(t *testing.T, db *Database, userID uint, at time.Time) *models.Post {
	t.Helper()
	p := &models.Post{UserID: userID, Content: fmt.Sprintf("post by %d at %s", userID, at.Format(time.RFC3339)), CreatedAt: at}
	require.NoError(t, NewPostRepository(db.DB).Create(context.Background(), p, nil))
	return p
}

func TestFollowRepository_UniquePair(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewFollowRepository(db.DB)
	a := createUser(t, db, "a@x.io")
	b := createUser(t, db, "b@x.io")

	require.NoError(t, repo.Create(ctx, &models.Follow{FollowerID: a.ID, FollowedID: b.ID}))
	err := repo.Create(ctx, &models.Follow{FollowerID: a.ID, FollowedID: b.ID})
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))

	followers, err := repo.GetFollowers(ctx, b.ID, 0, 10)
	require.NoError(t, err)
	require.Len(t, followers, 1)
	assert.Equal(t, a.ID, followers[0].ID)
	assert.Equal(t, "a@x.io", followers[0].Email)

	removed, err := repo.Delete(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = repo.Delete(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestPostRepository_FeedUnion(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewPostRepository(db.DB)
	follows := NewFollowRepository(db.DB)

	me := createUser(t, db, "me@x.io")
	friend := createUser(t, db, "friend@x.io")
	stranger := createUser(t, db, "stranger@x.io")
	require.NoError(t, follows.Create(ctx, &models.Follow{FollowerID: me.ID, FollowedID: friend.ID}))

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	p1 := createPostAt(t, db, me.ID, base)
	p2 := createPostAt(t, db, friend.ID, base.Add(time.Minute))
	createPostAt(t, db, stranger.ID, base.Add(2*time.Minute))
	p4 := createPostAt(t, db, me.ID, base.Add(3*time.Minute))

	total, err := repo.CountFeed(ctx, me.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	posts, err := repo.GetFeed(ctx, me.ID, 0, 10)
	require.NoError(t, err)
	require.Len(t, posts, 3)
	assert.Equal(t, []uint{p4.ID, p2.ID, p1.ID}, []uint{posts[0].ID, posts[1].ID, posts[2].ID})
	require.NotNil(t, posts[1].Author)
	assert.Equal(t, friend.ID, posts[1].Author.ID)

	page2, err := repo.GetFeed(ctx, me.ID, 2, 2)
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.Equal(t, p1.ID, page2[0].ID)
}

func TestPostRepository_DeleteCascade(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	posts := NewPostRepository(db.DB)
	comments := NewCommentRepository(db.DB)
	likes := NewLikeRepository(db.DB)

	u := createUser(t, db, "u@x.io")
	post := &models.Post{UserID: u.ID, Content: "hello"}
	img := &models.Image{Name: "abc.png", UserID: u.ID}
	require.NoError(t, posts.Create(ctx, post, []*models.Image{img}))
	require.NotNil(t, img.PostID)

	repost := &models.Post{UserID: u.ID, Content: "again", OriginalPostID: &post.ID}
	require.NoError(t, posts.Create(ctx, repost, nil))

	top := &models.Comment{Text: "top", UserID: u.ID, CommentableType: models.TargetPost, CommentableID: post.ID}
	require.NoError(t, comments.Create(ctx, top))
	onImage := &models.Comment{Text: "nice pic", UserID: u.ID, CommentableType: models.TargetImage, CommentableID: img.ID}
	require.NoError(t, comments.Create(ctx, onImage))
	require.NoError(t, likes.Create(ctx, &models.Like{UserID: u.ID, EntityType: models.TargetPost, EntityID: post.ID}))
	require.NoError(t, likes.Create(ctx, &models.Like{UserID: u.ID, EntityType: models.TargetImage, EntityID: img.ID}))

	names, err := posts.DeleteCascade(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"abc.png"}, names)

	gone, err := posts.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	var remaining int64
	require.NoError(t, db.Model(&models.Comment{}).Count(&remaining).Error)
	assert.Zero(t, remaining)
	require.NoError(t, db.Model(&models.Like{}).Count(&remaining).Error)
	assert.Zero(t, remaining)
	require.NoError(t, db.Model(&models.Image{}).Count(&remaining).Error)
	assert.Zero(t, remaining)

	still, err := posts.GetByID(ctx, repost.ID)
	require.NoError(t, err)
	require.NotNil(t, still)
	assert.Nil(t, still.OriginalPostID)
}

func TestCommentRepository_TreeAndDelete(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewCommentRepository(db.DB)
	u := createUser(t, db, "c@x.io")
	target := models.TargetRef{Type: models.TargetPost, ID: 7}

	mk := func(text string, parent *uint) *models.Comment {
		c := &models.Comment{Text: text, UserID: u.ID, CommentableType: target.Type, CommentableID: target.ID, ParentCommentID: parent}
		require.NoError(t, repo.Create(ctx, c))
		return c
	}
	root := mk("root", nil)
	reply := mk("reply", &root.ID)
	mk("nested", &reply.ID)
	other := mk("other root", nil)

	roots, err := repo.ListTopLevel(ctx, target)
	require.NoError(t, err)
	require.Len(t, roots, 2)
	assert.Equal(t, root.ID, roots[0].ID)
	require.Len(t, roots[0].Children, 1)
	require.Len(t, roots[0].Children[0].Children, 1)
	assert.Equal(t, "nested", roots[0].Children[0].Children[0].Text)
	assert.Empty(t, roots[1].Children)

	loaded, err := repo.GetWithReplies(ctx, reply.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Children, 1)

	deleted, err := repo.DeleteTree(ctx, root.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)

	roots, err = repo.ListTopLevel(ctx, target)
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Equal(t, other.ID, roots[0].ID)
}

func TestLikeRepository_UniqueAndCount(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewLikeRepository(db.DB)
	u := createUser(t, db, "l@x.io")
	target := models.TargetRef{Type: models.TargetImage, ID: 3}

	require.NoError(t, repo.Create(ctx, &models.Like{UserID: u.ID, EntityType: target.Type, EntityID: target.ID}))
	err := repo.Create(ctx, &models.Like{UserID: u.ID, EntityType: target.Type, EntityID: target.ID})
	assert.True(t, IsUniqueViolation(err))

	count, err := repo.Count(ctx, target)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	like, err := repo.Get(ctx, u.ID, target)
	require.NoError(t, err)
	require.NotNil(t, like)
	require.NoError(t, repo.Delete(ctx, like))

	like, err = repo.Get(ctx, u.ID, target)
	require.NoError(t, err)
	assert.Nil(t, like)
}

func TestUserRepository_DeleteCascade(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	users := NewUserRepository(db.DB)
	posts := NewPostRepository(db.DB)
	comments := NewCommentRepository(db.DB)
	follows := NewFollowRepository(db.DB)

	gone := createUser(t, db, "gone@x.io")
	stays := createUser(t, db, "stays@x.io")
	require.NoError(t, follows.Create(ctx, &models.Follow{FollowerID: stays.ID, FollowedID: gone.ID}))

	theirPost := &models.Post{UserID: stays.ID, Content: "mine"}
	require.NoError(t, posts.Create(ctx, theirPost, nil))
	c := &models.Comment{Text: "by gone", UserID: gone.ID, CommentableType: models.TargetPost, CommentableID: theirPost.ID}
	require.NoError(t, comments.Create(ctx, c))
	reply := &models.Comment{Text: "reply", UserID: stays.ID, CommentableType: models.TargetPost, CommentableID: theirPost.ID, ParentCommentID: &c.ID}
	require.NoError(t, comments.Create(ctx, reply))

	img := &models.Image{Name: "g.jpg", UserID: gone.ID}
	require.NoError(t, posts.Create(ctx, &models.Post{UserID: gone.ID, Content: "bye"}, []*models.Image{img}))

	names, err := users.DeleteCascade(ctx, gone.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"g.jpg"}, names)

	u, err := users.GetByID(ctx, gone.ID)
	require.NoError(t, err)
	assert.Nil(t, u)

	exists, err := users.Exists(ctx, gone.ID)
	require.NoError(t, err)
	assert.False(t, exists)
	exists, err = users.Exists(ctx, stays.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	n, err := follows.CountFollowed(ctx, stays.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	roots, err := comments.ListTopLevel(ctx, theirPost.TargetRef())
	require.NoError(t, err)
	assert.Empty(t, roots)

	kept, err := posts.GetByID(ctx, theirPost.ID)
	require.NoError(t, err)
	assert.NotNil(t, kept)
}

func TestImageRepository_CreateManyIsAtomic(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	images := NewImageRepository(db.DB)
	u := createUser(t, db, "pics@x.io")

	batch := []*models.Image{
		{Name: "one.png", UserID: u.ID},
		{Name: "two.png", UserID: u.ID},
		{Name: "one.png", UserID: u.ID},
	}
	require.Error(t, images.CreateMany(ctx, batch))

	saved, err := images.ListByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, saved)

	require.NoError(t, images.CreateMany(ctx, []*models.Image{
		{Name: "one.png", UserID: u.ID},
		{Name: "two.png", UserID: u.ID},
	}))
	saved, err = images.ListByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, saved, 2)
}
