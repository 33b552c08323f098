package services

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageService_UploadValidatesExtension(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	u := env.register(t, "uploader")

	_, err := env.images.Upload(ctx, u.ID, Upload{Filename: "script.exe", Reader: strings.NewReader("MZ")})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)

	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, []string{"body", "files"}, svcErr.Loc)

	_, err = env.images.UploadMany(ctx, u.ID, nil)
	assert.ErrorIs(t, err, ErrValidation)

	images, err := env.images.ListByUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, images)
}

func TestImageService_UploadOpenDelete(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	owner := env.register(t, "owner")
	other := env.register(t, "other")

	uploaded, err := env.images.UploadMany(ctx, owner.ID, []Upload{pngUpload("a.png"), pngUpload("b.jpg")})
	require.NoError(t, err)
	require.Len(t, uploaded, 2)
	assert.NotEqual(t, uploaded[0].Name, uploaded[1].Name)
	assert.True(t, strings.HasSuffix(uploaded[1].Name, ".jpg"))
	assert.Nil(t, uploaded[0].PostID)

	img, rc, err := env.images.Open(ctx, uploaded[0].ID)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG fake a.png", string(data))
	assert.Equal(t, uploaded[0].Name, img.Name)

	_, err = env.images.Get(ctx, 12345)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, env.images.Delete(ctx, other.ID, uploaded[0].ID), ErrForbidden)
	require.NoError(t, env.images.Delete(ctx, owner.ID, uploaded[0].ID))

	_, _, err = env.images.Open(ctx, uploaded[0].ID)
	assert.ErrorIs(t, err, ErrNotFound)

	exists, err := env.blobs.Exists(ctx, uploaded[0].Name)
	require.NoError(t, err)
	assert.False(t, exists)

	remaining, err := env.images.ListByUser(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, uploaded[1].ID, remaining[0].ID)
}

func TestImageService_DeleteMissingFileKeepsRow(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	owner := env.register(t, "owner")

	img, err := env.images.Upload(ctx, owner.ID, pngUpload("lost.png"))
	require.NoError(t, err)
	require.NoError(t, env.blobs.Delete(ctx, img.Name))

	err = env.images.Delete(ctx, owner.ID, img.ID)
	require.ErrorIs(t, err, ErrNotFound)
	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, []string{"path", "image_id"}, svcErr.Loc)

	kept, err := env.images.Get(ctx, img.ID)
	require.NoError(t, err)
	assert.Equal(t, img.Name, kept.Name)
}

func TestFeedService_RemoveImageWithMissingFile(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	author := env.register(t, "author")
	post := env.post(t, author.ID, "with picture", pngUpload("p.png"))
	require.Len(t, post.Images, 1)
	name := post.Images[0].Name
	require.NoError(t, env.blobs.Delete(ctx, name))

	err := env.feed.RemoveImage(ctx, author.ID, post.ID, name)
	require.ErrorIs(t, err, ErrNotFound)
	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, []string{"path", "filename"}, svcErr.Loc)

	reloaded, err := env.feed.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Len(t, reloaded.Images, 1)
}
