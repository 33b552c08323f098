package services

import (
	"context"
	"iter"

	"github.com/social-feed/social-feed/internal/models"
	"github.com/social-feed/social-feed/internal/repository"
	"github.com/social-feed/social-feed/pkg/logger"
)

// UserIndex is the text index behind user search.
type UserIndex interface {
	Upsert(ctx context.Context, doc repository.UserDocument) error
	Delete(ctx context.Context, userID uint) error
	Search(ctx context.Context, query string, offset, limit int) ([]repository.UserDocument, int, error)
}

type SearchService struct {
	index     UserIndex
	batchSize int
	window    int
	logger    *logger.Logger
}

func NewSearchService(index UserIndex, batchSize int, logger *logger.Logger) *SearchService {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &SearchService{index: index, batchSize: batchSize, window: repository.MaxResultWindow, logger: logger}
}

// IndexUser pushes the user's projection to the index. Failures are logged
// and never returned: the primary store stays authoritative.
func (s *SearchService) IndexUser(ctx context.Context, user *models.User) {
	if err := s.index.Upsert(ctx, repository.NewUserDocument(user)); err != nil {
		s.logger.WithError(err).WithField("user_id", user.ID).Error("Failed to index user")
		return
	}
	s.logger.WithField("user_id", user.ID).Debug("User indexed")
}

func (s *SearchService) RemoveUser(ctx context.Context, userID uint) {
	if err := s.index.Delete(ctx, userID); err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Error("Failed to remove user from index")
	}
}

// Search yields hits in relevance order, fetching further batches only as
// the caller keeps ranging. Breaking out of the loop stops the fetches.
// Hits past the index result window are not reachable and end the sequence.
func (s *SearchService) Search(ctx context.Context, text string) iter.Seq2[repository.UserDocument, error] {
	return func(yield func(repository.UserDocument, error) bool) {
		offset := 0
		for {
			size := min(s.batchSize, s.window-offset)
			if size <= 0 {
				return
			}
			batch, total, err := s.index.Search(ctx, text, offset, size)
			if err != nil {
				yield(repository.UserDocument{}, err)
				return
			}
			for _, doc := range batch {
				if !yield(doc, nil) {
					return
				}
			}
			offset += len(batch)
			if len(batch) == 0 || offset >= total {
				return
			}
		}
	}
}

// SearchLimit collects at most limit hits.
func (s *SearchService) SearchLimit(ctx context.Context, text string, limit int) ([]repository.UserDocument, error) {
	results := make([]repository.UserDocument, 0)
	if limit <= 0 {
		return results, nil
	}
	for doc, err := range s.Search(ctx, text) {
		if err != nil {
			return nil, Internal("search failed", err)
		}
		results = append(results, doc)
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}
