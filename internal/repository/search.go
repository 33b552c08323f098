package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/social-feed/social-feed/internal/models"
)

// MaxResultWindow is the default index.max_result_window: a search with
// from+size beyond it is rejected.
const MaxResultWindow = 10000

// UserDocument is the projection of a user stored in the text index.
type UserDocument struct {
	ID        uint   `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Surname   string `json:"surname"`
	BirthDate string `json:"birth_date,omitempty"`
	AboutMe   string `json:"about_me"`
}

func NewUserDocument(user *models.User) UserDocument {
	doc := UserDocument{
		ID:      user.ID,
		Email:   user.Email,
		Name:    user.Name,
		Surname: user.Surname,
		AboutMe: user.AboutMe,
	}
	if user.BirthDate != nil {
		doc.BirthDate = user.BirthDate.Format("2006-01-02")
	}
	return doc
}

type UserSearchRepository struct {
	client *elasticsearch.Client
	index  string
}

func NewUserSearchRepository(client *elasticsearch.Client, index string) *UserSearchRepository {
	return &UserSearchRepository{client: client, index: index}
}

// EnsureIndex creates the users index when it does not exist yet.
func (r *UserSearchRepository) EnsureIndex(ctx context.Context) error {
	res, err := r.client.Indices.Exists([]string{r.index}, r.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to check index: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	res, err = r.client.Indices.Create(r.index, r.client.Indices.Create.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() && !strings.Contains(res.String(), "resource_already_exists_exception") {
		return fmt.Errorf("elasticsearch error: %s", res.String())
	}
	return nil
}

// Upsert replaces the whole document keyed by user id.
func (r *UserSearchRepository) Upsert(ctx context.Context, doc UserDocument) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	res, err := r.client.Index(
		r.index,
		bytes.NewReader(data),
		r.client.Index.WithContext(ctx),
		r.client.Index.WithDocumentID(strconv.FormatUint(uint64(doc.ID), 10)),
	)
	if err != nil {
		return fmt.Errorf("failed to index user: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch error: %s", res.String())
	}
	return nil
}

func (r *UserSearchRepository) Delete(ctx context.Context, userID uint) error {
	res, err := r.client.Delete(
		r.index,
		strconv.FormatUint(uint64(userID), 10),
		r.client.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to delete user document: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("elasticsearch error: %s", res.String())
	}
	return nil
}

// Search runs a multi_match over every field and returns one batch.
func (r *UserSearchRepository) Search(ctx context.Context, query string, offset, limit int) ([]UserDocument, int, error) {
	body := map[string]interface{}{
		"from": offset,
		"size": limit,
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  query,
				"fields": []string{"*"},
			},
		},
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal query: %w", err)
	}

	res, err := r.client.Search(
		r.client.Search.WithContext(ctx),
		r.client.Search.WithIndex(r.index),
		r.client.Search.WithBody(bytes.NewReader(data)),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search users: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(res.Body)
		return nil, 0, fmt.Errorf("elasticsearch error: %s %s", res.Status(), msg)
	}

	var result esResponse
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, 0, fmt.Errorf("failed to decode response: %w", err)
	}

	users := make([]UserDocument, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		var user UserDocument
		if err := json.Unmarshal(hit.Source, &user); err != nil {
			continue
		}
		users = append(users, user)
	}

	return users, result.Hits.Total.Value, nil
}

type esResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}
