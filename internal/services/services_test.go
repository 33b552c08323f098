package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/social-feed/social-feed/internal/config"
	"github.com/social-feed/social-feed/internal/models"
	"github.com/social-feed/social-feed/internal/repository"
	"github.com/social-feed/social-feed/pkg/logger"
	"github.com/social-feed/social-feed/pkg/queue"
	"github.com/social-feed/social-feed/pkg/storage"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
)

type published struct {
	key   string
	value interface{}
}

type recordingPublisher struct {
	mu       sync.Mutex
	messages []published
	err      error
}

func (p *recordingPublisher) Publish(ctx context.Context, key string, value interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, published{key: key, value: value})
	return nil
}

func (p *recordingPublisher) eventTypes() []queue.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	var types []queue.EventType
	for _, m := range p.messages {
		if ev, ok := m.value.(queue.Event); ok {
			types = append(types, ev.Type)
		}
	}
	return types
}

func (p *recordingPublisher) count(eventType queue.EventType) int {
	n := 0
	for _, t := range p.eventTypes() {
		if t == eventType {
			n++
		}
	}
	return n
}

type stubIndex struct {
	mu        sync.Mutex
	docs      []repository.UserDocument
	upsertErr error
	searches  int
	furthest  int
}

func (s *stubIndex) Upsert(ctx context.Context, doc repository.UserDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return s.upsertErr
	}
	for i := range s.docs {
		if s.docs[i].ID == doc.ID {
			s.docs[i] = doc
			return nil
		}
	}
	s.docs = append(s.docs, doc)
	return nil
}

func (s *stubIndex) Delete(ctx context.Context, userID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.docs {
		if s.docs[i].ID == userID {
			s.docs = append(s.docs[:i], s.docs[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *stubIndex) Search(ctx context.Context, query string, offset, limit int) ([]repository.UserDocument, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searches++
	s.furthest = max(s.furthest, offset+limit)

	var hits []repository.UserDocument
	for _, d := range s.docs {
		if strings.Contains(strings.ToLower(d.Name+" "+d.Surname+" "+d.Email+" "+d.AboutMe), strings.ToLower(query)) {
			hits = append(hits, d)
		}
	}
	if offset >= len(hits) {
		return nil, len(hits), nil
	}
	end := offset + limit
	if end > len(hits) {
		end = len(hits)
	}
	return hits[offset:end], len(hits), nil
}

type stubTokens struct{}

func (stubTokens) NewResetToken(email string) (string, error) { return "reset:" + email, nil }

func (stubTokens) ParseResetToken(token string) (string, error) {
	if !strings.HasPrefix(token, "reset:") {
		return "", errors.New("bad token")
	}
	return strings.TrimPrefix(token, "reset:"), nil
}

func (stubTokens) ResetTTL() time.Duration { return 10 * time.Minute }

type testEnv struct {
	db       *repository.Database
	events   *recordingPublisher
	mails    *recordingPublisher
	index    *stubIndex
	blobs    storage.Storage
	users    *UserService
	images   *ImageService
	feed     *FeedService
	comments *CommentService
	likes    *LikeService
	search   *SearchService
}

func newTestEnv(t *testing.T, cache *FeedCache) *testEnv {
	t.Helper()

	db, err := repository.Open(sqlite.Open(":memory:"), false)
	require.NoError(t, err)
	sqlDB, err := db.DB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate())
	t.Cleanup(func() { _ = db.Close() })

	blobs, err := storage.NewLocalStorage(storage.LocalConfig{BasePath: t.TempDir()})
	require.NoError(t, err)

	log := logger.NewNopLogger()
	env := &testEnv{
		db:     db,
		events: &recordingPublisher{},
		mails:  &recordingPublisher{},
		index:  &stubIndex{},
		blobs:  blobs,
	}

	userRepo := repository.NewUserRepository(db.DB)
	followRepo := repository.NewFollowRepository(db.DB)
	postRepo := repository.NewPostRepository(db.DB)
	imageRepo := repository.NewImageRepository(db.DB)
	resolver := NewTargetResolver(postRepo, imageRepo)

	env.search = NewSearchService(env.index, 3, log)
	env.users = NewUserService(userRepo, followRepo, cache, env.events, env.search, NewMailDispatcher(env.mails, log), blobs, stubTokens{}, "http://front.test", log)
	env.images = NewImageService(imageRepo, blobs, log)
	env.feed = NewFeedService(postRepo, userRepo, env.images, cache, env.events, &config.FeedConfig{DefaultPageSize: 10, MaxPageSize: 100}, log)
	env.comments = NewCommentService(repository.NewCommentRepository(db.DB), resolver, env.events, log)
	env.likes = NewLikeService(repository.NewLikeRepository(db.DB), resolver, env.events, log)
	return env
}

func (e *testEnv) register(t *testing.T, name string) *models.User {
	t.Helper()
	user, err := e.users.Register(context.Background(), &RegisterRequest{
		Email:    name + "@example.com",
		Password: "password123",
		Name:     name,
		Surname:  "Tester",
	})
	require.NoError(t, err)
	return user
}

func (e *testEnv) post(t *testing.T, userID uint, content string, uploads ...Upload) *models.Post {
	t.Helper()
	post, err := e.feed.CreatePost(context.Background(), userID, &CreatePostRequest{Content: content}, uploads)
	require.NoError(t, err)
	return post
}

func pngUpload(name string) Upload {
	data := []byte("\x89PNG fake " + name)
	return Upload{Filename: name, Size: int64(len(data)), Reader: bytes.NewReader(data)}
}

func contents(posts []*models.Post) []string {
	out := make([]string, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.Content)
	}
	return out
}

func seq(prefix string, n int) []string {
	out := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, fmt.Sprintf("%s%d", prefix, i))
	}
	return out
}
