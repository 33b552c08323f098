package services

import (
	"context"
	"testing"

	"github.com/social-feed/social-feed/internal/models"
	"github.com/social-feed/social-feed/pkg/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLikeService_LikeUnlike(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	u := env.register(t, "liker")
	post := env.post(t, u.ID, "like me")
	ref := post.TargetRef()

	_, err := env.likes.Create(ctx, u.ID, ref)
	require.NoError(t, err)

	_, err = env.likes.Create(ctx, u.ID, ref)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "already liked")

	count, err := env.likes.Count(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	liked, err := env.likes.IsLiked(ctx, u.ID, ref)
	require.NoError(t, err)
	assert.True(t, liked)

	require.NoError(t, env.likes.Remove(ctx, u.ID, ref))
	err = env.likes.Remove(ctx, u.ID, ref)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "like not found")

	count, err = env.likes.Count(ctx, ref)
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = env.likes.Create(ctx, u.ID, ref)
	require.NoError(t, err)
	assert.Equal(t, 2, env.events.count(queue.EventLikeCreated))
	assert.Equal(t, 1, env.events.count(queue.EventLikeDeleted))
}

func TestLikeService_CountsPerTarget(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	a := env.register(t, "a")
	b := env.register(t, "b")
	post := env.post(t, a.ID, "with picture", pngUpload("p.png"))
	require.Len(t, post.Images, 1)
	imageRef := post.Images[0].TargetRef()

	for _, u := range []*models.User{a, b} {
		_, err := env.likes.Create(ctx, u.ID, imageRef)
		require.NoError(t, err)
	}

	imageLikes, err := env.likes.Count(ctx, imageRef)
	require.NoError(t, err)
	assert.Equal(t, int64(2), imageLikes)

	postLikes, err := env.likes.Count(ctx, post.TargetRef())
	require.NoError(t, err)
	assert.Zero(t, postLikes)
}

func TestLikeService_MissingTarget(t *testing.T) {
	env := newTestEnv(t, nil)
	u := env.register(t, "u")

	_, err := env.likes.Create(context.Background(), u.ID, models.TargetRef{Type: models.TargetImage, ID: 404})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = env.likes.Count(context.Background(), models.TargetRef{Type: "video", ID: 1})
	assert.ErrorIs(t, err, ErrIntegrity)
}

func TestCommentService_RoundTrip(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	author := env.register(t, "author")
	other := env.register(t, "other")
	post := env.post(t, author.ID, "discuss")
	ref := post.TargetRef()

	comment, err := env.comments.Create(ctx, author.ID, ref, &CreateCommentRequest{Text: "first"})
	require.NoError(t, err)

	reply, err := env.comments.Create(ctx, other.ID, ref, &CreateCommentRequest{Text: "reply", ParentCommentID: &comment.ID})
	require.NoError(t, err)

	top, err := env.comments.ListTopLevel(ctx, ref)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, comment.ID, top[0].ID)
	require.Len(t, top[0].Children, 1)
	assert.Equal(t, reply.ID, top[0].Children[0].ID)

	target, err := env.comments.Target(ctx, reply)
	require.NoError(t, err)
	assert.Equal(t, ref, target.TargetRef())

	_, err = env.comments.Update(ctx, other.ID, comment.ID, &UpdateCommentRequest{Text: "hijack"})
	assert.ErrorIs(t, err, ErrForbidden)

	updated, err := env.comments.Update(ctx, author.ID, comment.ID, &UpdateCommentRequest{Text: "edited"})
	require.NoError(t, err)
	assert.Equal(t, "edited", updated.Text)
	assert.NotNil(t, updated.UpdatedAt)
	assert.Len(t, updated.Children, 1)

	assert.ErrorIs(t, env.comments.Remove(ctx, other.ID, comment.ID), ErrForbidden)
	require.NoError(t, env.comments.Remove(ctx, author.ID, comment.ID))

	top, err = env.comments.ListTopLevel(ctx, ref)
	require.NoError(t, err)
	assert.Empty(t, top)

	_, err = env.comments.Get(ctx, reply.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, env.comments.Remove(ctx, author.ID, comment.ID), ErrNotFound)
}

func TestCommentService_ReplyMustShareTarget(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	u := env.register(t, "u")
	first := env.post(t, u.ID, "one")
	second := env.post(t, u.ID, "two")

	parent, err := env.comments.Create(ctx, u.ID, first.TargetRef(), &CreateCommentRequest{Text: "on first"})
	require.NoError(t, err)

	_, err = env.comments.Create(ctx, u.ID, second.TargetRef(), &CreateCommentRequest{Text: "stray", ParentCommentID: &parent.ID})
	assert.ErrorIs(t, err, ErrValidation)

	missing := uint(999)
	_, err = env.comments.Create(ctx, u.ID, first.TargetRef(), &CreateCommentRequest{Text: "orphan", ParentCommentID: &missing})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCommentService_MissingImage(t *testing.T) {
	env := newTestEnv(t, nil)
	u := env.register(t, "u")

	_, err := env.comments.Create(context.Background(), u.ID, models.TargetRef{Type: models.TargetImage, ID: 77}, &CreateCommentRequest{Text: "hello"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)

	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, []string{"image_id"}, svcErr.Loc)
}

func TestCommentService_DanglingTarget(t *testing.T) {
	env := newTestEnv(t, nil)
	stale := &models.Comment{CommentableType: models.TargetPost, CommentableID: 12345}

	_, err := env.comments.Target(context.Background(), stale)
	assert.ErrorIs(t, err, ErrIntegrity)
}
