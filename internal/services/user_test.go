package services

import (
	"context"
	"errors"
	"testing"

	"github.com/social-feed/social-feed/pkg/mailer"
	"github.com/social-feed/social-feed/pkg/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserService_RegisterConflict(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	alice := env.register(t, "alice")
	assert.NotZero(t, alice.ID)
	assert.NotEqual(t, "password123", alice.HashedPassword)

	_, err := env.users.Register(ctx, &RegisterRequest{
		Email:    "alice@example.com",
		Password: "password456",
		Name:     "Other",
		Surname:  "Alice",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConflict)

	var svcErr *ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, []string{"body", "email"}, svcErr.Loc)
}

func TestUserService_IndexingIsBestEffort(t *testing.T) {
	env := newTestEnv(t, nil)
	env.index.upsertErr = errors.New("search cluster down")

	user := env.register(t, "bob")
	assert.NotZero(t, user.ID)
	assert.Empty(t, env.index.docs)

	env.index.upsertErr = nil
	name := "Robert"
	updated, err := env.users.Update(context.Background(), user.ID, &UpdateUserRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Robert", updated.Name)
	require.Len(t, env.index.docs, 1)
	assert.Equal(t, "Robert", env.index.docs[0].Name)
}

func TestUserService_Authenticate(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.register(t, "carol")

	user, err := env.users.Authenticate(ctx, "carol@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, "carol", user.Name)

	_, err = env.users.Authenticate(ctx, "carol@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = env.users.Authenticate(ctx, "nobody@example.com", "password123")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestUserService_FollowIsIdempotent(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	a := env.register(t, "a")
	b := env.register(t, "b")

	require.NoError(t, env.users.Follow(ctx, a.ID, b.ID))
	require.NoError(t, env.users.Follow(ctx, a.ID, b.ID))

	following, err := env.users.IsFollowing(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, following)

	followers, err := env.users.Followers(ctx, b.ID, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), followers.Total)
	require.Len(t, followers.Users, 1)
	assert.Equal(t, a.ID, followers.Users[0].ID)
	assert.Equal(t, 1, env.events.count(queue.EventFollowCreated))

	followed, err := env.users.Followed(ctx, b.ID, 0, 10)
	require.NoError(t, err)
	assert.Zero(t, followed.Total)
	assert.NotNil(t, followed.Users)

	require.NoError(t, env.users.Unfollow(ctx, a.ID, b.ID))
	require.NoError(t, env.users.Unfollow(ctx, a.ID, b.ID))
	assert.Equal(t, 1, env.events.count(queue.EventFollowDeleted))

	following, err = env.users.IsFollowing(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, following)
}

func TestUserService_FollowSelfAndMissing(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	a := env.register(t, "a")

	err := env.users.Follow(ctx, a.ID, a.ID)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Contains(t, err.Error(), "You can not follow yourself")

	assert.ErrorIs(t, env.users.Unfollow(ctx, a.ID, a.ID), ErrValidation)
	assert.ErrorIs(t, env.users.Follow(ctx, a.ID, a.ID+100), ErrNotFound)
}

func TestUserService_PasswordRecovery(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.register(t, "dave")

	err := env.users.RecoverPassword(ctx, "ghost@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, env.mails.messages)

	require.NoError(t, env.users.RecoverPassword(ctx, "dave@example.com"))
	require.Len(t, env.mails.messages, 1)
	job, ok := env.mails.messages[0].value.(queue.MailJob)
	require.True(t, ok)
	assert.Equal(t, "dave@example.com", job.To)
	assert.Equal(t, mailer.TemplatePasswordRecovery, job.Template)
	assert.Contains(t, job.Params["link"], "http://front.test/reset-password?token=")

	err = env.users.ResetPassword(ctx, &ResetPasswordRequest{Token: "garbage", NewPassword: "newpassword1"})
	assert.ErrorIs(t, err, ErrValidation)

	require.NoError(t, env.users.ResetPassword(ctx, &ResetPasswordRequest{Token: "reset:dave@example.com", NewPassword: "newpassword1"}))
	_, err = env.users.Authenticate(ctx, "dave@example.com", "newpassword1")
	assert.NoError(t, err)
}

func TestUserService_MailHandOffFailureDoesNotFail(t *testing.T) {
	env := newTestEnv(t, nil)
	env.mails.err = errors.New("broker unavailable")
	env.register(t, "erin")

	assert.NoError(t, env.users.RecoverPassword(context.Background(), "erin@example.com"))
}

func TestUserService_DeleteRemovesOwnedData(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	gone := env.register(t, "gone")
	stays := env.register(t, "stays")
	require.NoError(t, env.users.Follow(ctx, stays.ID, gone.ID))

	post := env.post(t, gone.ID, "farewell", pngUpload("a.png"))
	require.Len(t, post.Images, 1)
	blob := post.Images[0].Name

	require.NoError(t, env.users.Delete(ctx, gone.ID))

	_, err := env.users.GetByID(ctx, gone.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	exists, err := env.blobs.Exists(ctx, blob)
	require.NoError(t, err)
	assert.False(t, exists)

	followed, err := env.users.Followed(ctx, stays.ID, 0, 10)
	require.NoError(t, err)
	assert.Zero(t, followed.Total)
	for _, d := range env.index.docs {
		assert.NotEqual(t, gone.ID, d.ID)
	}
}
