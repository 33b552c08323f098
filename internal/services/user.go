package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/social-feed/social-feed/internal/models"
	"github.com/social-feed/social-feed/internal/repository"
	"github.com/social-feed/social-feed/pkg/logger"
	"github.com/social-feed/social-feed/pkg/mailer"
	"github.com/social-feed/social-feed/pkg/queue"
	"github.com/social-feed/social-feed/pkg/storage"
	"golang.org/x/crypto/bcrypt"
)

const dateLayout = "2006-01-02"

// ResetTokens issues and verifies password reset tokens.
type ResetTokens interface {
	NewResetToken(email string) (string, error)
	ParseResetToken(token string) (string, error)
	ResetTTL() time.Duration
}

type UserService struct {
	userRepo    *repository.UserRepository
	followRepo  *repository.FollowRepository
	cache       *FeedCache
	producer    queue.Publisher
	search      *SearchService
	mail        *MailDispatcher
	blobs       storage.Storage
	tokens      ResetTokens
	frontendURL string
	logger      *logger.Logger
}

// NewUserService accepts a nil cache when feed caching is off.
func NewUserService(
	userRepo *repository.UserRepository,
	followRepo *repository.FollowRepository,
	cache *FeedCache,
	producer queue.Publisher,
	search *SearchService,
	mail *MailDispatcher,
	blobs storage.Storage,
	tokens ResetTokens,
	frontendURL string,
	logger *logger.Logger,
) *UserService {
	return &UserService{
		userRepo:    userRepo,
		followRepo:  followRepo,
		cache:       cache,
		producer:    producer,
		search:      search,
		mail:        mail,
		blobs:       blobs,
		tokens:      tokens,
		frontendURL: frontendURL,
		logger:      logger,
	}
}

type RegisterRequest struct {
	Email     string `json:"email" binding:"required,email,max=255"`
	Password  string `json:"password" binding:"required,min=8,max=64"`
	Name      string `json:"name" binding:"required,max=100"`
	Surname   string `json:"surname" binding:"required,max=100"`
	BirthDate string `json:"birth_date" binding:"omitempty,datetime=2006-01-02"`
	AboutMe   string `json:"about_me" binding:"max=2000"`
}

type LoginRequest struct {
	Email    string `json:"email" form:"username" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

type UpdateUserRequest struct {
	Email     *string `json:"email" binding:"omitempty,email,max=255"`
	Password  *string `json:"password" binding:"omitempty,min=8,max=64"`
	Name      *string `json:"name" binding:"omitempty,max=100"`
	Surname   *string `json:"surname" binding:"omitempty,max=100"`
	BirthDate *string `json:"birth_date" binding:"omitempty,datetime=2006-01-02"`
	AboutMe   *string `json:"about_me" binding:"omitempty,max=2000"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8,max=64"`
}

func userKey(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func parseDate(loc, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, Validation(loc, "invalid date, expected YYYY-MM-DD")
	}
	return &t, nil
}

func hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// invalidateFeeds drops cached feed pages made stale by a follow graph change.
func (s *UserService) invalidateFeeds(ctx context.Context, userIDs ...uint) {
	if s.cache == nil || len(userIDs) == 0 {
		return
	}
	if err := s.cache.Invalidate(ctx, userIDs...); err != nil {
		s.logger.WithError(err).WithField("user_ids", userIDs).Warn("Failed to invalidate feed cache")
	}
}

func (s *UserService) Register(ctx context.Context, req *RegisterRequest) (*models.User, error) {
	existing, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if existing != nil {
		return nil, Conflict("body.email", "The user with this email already exists in the system")
	}

	birthDate, err := parseDate("body.birth_date", req.BirthDate)
	if err != nil {
		return nil, err
	}

	hashed, err := hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:          req.Email,
		Name:           req.Name,
		Surname:        req.Surname,
		BirthDate:      birthDate,
		AboutMe:        req.AboutMe,
		HashedPassword: hashed,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, Conflict("body.email", "The user with this email already exists in the system")
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	publishEvent(ctx, s.producer, s.logger, userKey(user.ID), queue.EventUserCreated, queue.UserEventData{
		UserID: user.ID,
		Email:  user.Email,
	})
	s.search.IndexUser(ctx, user)

	s.logger.WithField("user_id", user.ID).Info("User registered successfully")
	return user, nil
}

// Authenticate checks the email/password pair.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, Unauthorized("Incorrect username or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)); err != nil {
		return nil, Unauthorized("Incorrect username or password")
	}

	s.logger.WithField("user_id", user.ID).Info("User logged in successfully")
	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, userID uint) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, NotFound("path.user_id", "The user with this id does not exist")
	}
	return user, nil
}

// Update applies only the fields present in req.
func (s *UserService) Update(ctx context.Context, userID uint, req *UpdateUserRequest) (*models.User, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.Email != nil && *req.Email != user.Email {
		other, err := s.userRepo.GetByEmail(ctx, *req.Email)
		if err != nil {
			return nil, fmt.Errorf("failed to check email: %w", err)
		}
		if other != nil {
			return nil, Conflict("body.email", "The user with this email already exists in the system")
		}
		user.Email = *req.Email
	}
	if req.Password != nil {
		hashed, err := hashPassword(*req.Password)
		if err != nil {
			return nil, err
		}
		user.HashedPassword = hashed
	}
	if req.Name != nil {
		user.Name = *req.Name
	}
	if req.Surname != nil {
		user.Surname = *req.Surname
	}
	if req.BirthDate != nil {
		birthDate, err := parseDate("body.birth_date", *req.BirthDate)
		if err != nil {
			return nil, err
		}
		user.BirthDate = birthDate
	}
	if req.AboutMe != nil {
		user.AboutMe = *req.AboutMe
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, Conflict("body.email", "The user with this email already exists in the system")
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	publishEvent(ctx, s.producer, s.logger, userKey(user.ID), queue.EventUserUpdated, queue.UserEventData{
		UserID: user.ID,
		Email:  user.Email,
	})
	s.search.IndexUser(ctx, user)

	s.logger.WithField("user_id", user.ID).Info("User updated successfully")
	return user, nil
}

// Delete removes the account and everything it owns. Blob removal happens
// after the rows are gone and is best-effort.
func (s *UserService) Delete(ctx context.Context, userID uint) error {
	if _, err := s.GetByID(ctx, userID); err != nil {
		return err
	}

	followerIDs, err := s.followRepo.GetFollowerIDs(ctx, userID)
	if err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Warn("Failed to collect followers before delete")
	}

	imageNames, err := s.userRepo.DeleteCascade(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	for _, name := range imageNames {
		if err := s.blobs.Delete(ctx, name); err != nil && !errors.Is(err, storage.ErrNotFound) {
			s.logger.WithError(err).WithField("image", name).Warn("Failed to delete image blob")
		}
	}
	s.search.RemoveUser(ctx, userID)
	s.invalidateFeeds(ctx, append(followerIDs, userID)...)

	publishEvent(ctx, s.producer, s.logger, userKey(userID), queue.EventUserDeleted, queue.UserEventData{
		UserID:      userID,
		FollowerIDs: followerIDs,
	})

	s.logger.WithField("user_id", userID).Info("User deleted successfully")
	return nil
}

// Follow makes followerID follow followedID. Following someone already
// followed is a no-op.
func (s *UserService) Follow(ctx context.Context, followerID, followedID uint) error {
	if followerID == followedID {
		return Validation("path.user_id", "You can not follow yourself")
	}

	if _, err := s.GetByID(ctx, followerID); err != nil {
		return err
	}
	if _, err := s.GetByID(ctx, followedID); err != nil {
		return err
	}

	existing, err := s.followRepo.Get(ctx, followerID, followedID)
	if err != nil {
		return fmt.Errorf("failed to check follow status: %w", err)
	}
	if existing != nil {
		return nil
	}

	follow := &models.Follow{
		FollowerID: followerID,
		FollowedID: followedID,
	}
	if err := s.followRepo.Create(ctx, follow); err != nil {
		// lost a race with a concurrent identical follow
		if repository.IsUniqueViolation(err) {
			return nil
		}
		return fmt.Errorf("failed to create follow: %w", err)
	}
	s.invalidateFeeds(ctx, followerID)

	publishEvent(ctx, s.producer, s.logger, userKey(followerID), queue.EventFollowCreated, queue.FollowEventData{
		FollowerID: followerID,
		FollowedID: followedID,
	})

	s.logger.WithFields(map[string]interface{}{
		"follower_id": followerID,
		"followed_id": followedID,
	}).Info("User followed successfully")
	return nil
}

// Unfollow removes the edge if present; a missing edge is not an error.
func (s *UserService) Unfollow(ctx context.Context, followerID, followedID uint) error {
	if followerID == followedID {
		return Validation("path.user_id", "You can not follow yourself")
	}

	removed, err := s.followRepo.Delete(ctx, followerID, followedID)
	if err != nil {
		return fmt.Errorf("failed to delete follow: %w", err)
	}
	if !removed {
		return nil
	}
	s.invalidateFeeds(ctx, followerID)

	publishEvent(ctx, s.producer, s.logger, userKey(followerID), queue.EventFollowDeleted, queue.FollowEventData{
		FollowerID: followerID,
		FollowedID: followedID,
	})

	s.logger.WithFields(map[string]interface{}{
		"follower_id": followerID,
		"followed_id": followedID,
	}).Info("User unfollowed successfully")
	return nil
}

func (s *UserService) IsFollowing(ctx context.Context, followerID, followedID uint) (bool, error) {
	return s.followRepo.IsFollowing(ctx, followerID, followedID)
}

type FollowList struct {
	User  *models.User   `json:"user"`
	Users []*models.User `json:"users"`
	Total int64          `json:"total"`
}

func (s *UserService) Followers(ctx context.Context, userID uint, offset, limit int) (*FollowList, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	users, err := s.followRepo.GetFollowers(ctx, userID, offset, limit)
	if err != nil {
		return nil, err
	}
	total, err := s.followRepo.CountFollowers(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &FollowList{User: user, Users: nonNilUsers(users), Total: total}, nil
}

func (s *UserService) Followed(ctx context.Context, userID uint, offset, limit int) (*FollowList, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	users, err := s.followRepo.GetFollowed(ctx, userID, offset, limit)
	if err != nil {
		return nil, err
	}
	total, err := s.followRepo.CountFollowed(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &FollowList{User: user, Users: nonNilUsers(users), Total: total}, nil
}

func nonNilUsers(users []*models.User) []*models.User {
	if users == nil {
		return []*models.User{}
	}
	return users
}

// RecoverPassword queues a mail with a reset link for the given address.
func (s *UserService) RecoverPassword(ctx context.Context, email string) error {
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return NotFound("path.email", "The user with this email does not exist in the system.")
	}

	token, err := s.tokens.NewResetToken(user.Email)
	if err != nil {
		return Internal("failed to create reset token", err)
	}

	link := fmt.Sprintf("%s/reset-password?token=%s", s.frontendURL, url.QueryEscape(token))
	s.mail.Enqueue(ctx, queue.MailJob{
		To:       user.Email,
		Template: mailer.TemplatePasswordRecovery,
		Params: map[string]string{
			"name":    user.Name,
			"link":    link,
			"expires": s.tokens.ResetTTL().String(),
		},
	})
	return nil
}

func (s *UserService) ResetPassword(ctx context.Context, req *ResetPasswordRequest) error {
	email, err := s.tokens.ParseResetToken(req.Token)
	if err != nil {
		return Validation("body.token", "Invalid token")
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return NotFound("body.token", "The user with this email does not exist in the system.")
	}

	hashed, err := hashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	user.HashedPassword = hashed
	if err := s.userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	s.logger.WithField("user_id", user.ID).Info("Password reset successfully")
	return nil
}
