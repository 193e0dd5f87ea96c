package profilesvc

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf16"

	"github.com/mkrupp/csrf-target/internal/domain"
	"github.com/mkrupp/csrf-target/internal/infra/logging"
	"github.com/mkrupp/csrf-target/internal/repo/user"
)

// ProfileService authenticates users and edits their profile.
// Passwords are stored and compared in plaintext on purpose.
type ProfileService struct {
	UserRepo user.Repository
	Log      logging.Logger
}

// NewProfileService creates a ProfileService with a repository from the given factory.
func NewProfileService(ctx context.Context, repoFactory user.RepositoryFactory) (*ProfileService, error) {
	log := logging.GetLogger("svc.profilesvc.profile_service")

	userRepo, err := repoFactory(ctx)
	if err != nil {
		return nil, fmt.Errorf("new user repo: %w", err)
	}

	return &ProfileService{
		UserRepo: userRepo,
		Log:      log,
	}, nil
}

// Login returns the user whose email and password both match exactly.
// Returns domain.ErrMissingCredentials if either is empty and
// domain.ErrInvalidCredentials if nothing matches.
func (s *ProfileService) Login(ctx context.Context, email, password string) (_ *domain.User, err error) {
	log := s.Log.With(logging.Group("user", "email", email))

	defer func() {
		if err != nil {
			log.InfoContext(ctx, "login failed", "error", err)
		} else {
			log.DebugContext(ctx, "login successful")
		}
	}()

	if email == "" || password == "" {
		return nil, domain.ErrMissingCredentials
	}

	user, ok, err := s.UserRepo.FindByCredentials(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	} else if !ok {
		return nil, domain.ErrInvalidCredentials
	}

	log = log.With(logging.Group("user", "id", user.ID.String()))

	return user, nil
}

// User looks up a user by id.
func (s *ProfileService) User(ctx context.Context, id domain.UserID) (*domain.User, bool, error) {
	user, ok, err := s.UserRepo.FindByID(ctx, id)
	if err != nil {
		return nil, false, fmt.Errorf("find user: %w", err)
	}

	return user, ok, nil
}

// UpdateProfile replaces the email and password of a user and returns the
// email it had before. Checks run in this order:
// - the user exists (domain.ErrUserNotFound)
// - the email contains "@" (domain.ErrInvalidEmail)
// - the password has at least domain.MinPasswordLength characters after
// trimming whitespace as browsers do (domain.ErrPasswordTooShort); the untrimmed value is stored.
func (s *ProfileService) UpdateProfile(
	ctx context.Context,
	id domain.UserID,
	email string,
	password string,
) (oldEmail string, err error) {
	log := s.Log.With(logging.Group("user", "id", id.String()))

	defer func() {
		if err != nil {
			log.InfoContext(ctx, "profile update rejected", "error", err)
		} else {
			log.InfoContext(ctx, "profile updated",
				"oldEmail", oldEmail,
				"newEmail", email,
				"csrf", "disabled",
			)
		}
	}()

	user, ok, err := s.UserRepo.FindByID(ctx, id)
	if err != nil {
		return "", fmt.Errorf("find user: %w", err)
	} else if !ok {
		return "", domain.ErrUserNotFound
	}

	if !strings.Contains(email, "@") {
		return "", domain.ErrInvalidEmail
	}

	if passwordLength(trimECMAScriptSpace(password)) < domain.MinPasswordLength {
		return "", domain.ErrPasswordTooShort
	}

	if err := s.UserRepo.Update(ctx, id, email, password); err != nil {
		return "", fmt.Errorf("update user: %w", err)
	}

	return user.Email, nil
}

// Close releases the user repository.
func (s *ProfileService) Close() error {
	if err := s.UserRepo.Close(); err != nil {
		return fmt.Errorf("close user repo: %w", err)
	}

	return nil
}

// trimECMAScriptSpace strips leading and trailing whitespace and line
// terminators as String.prototype.trim does. Unlike strings.TrimSpace it
// removes U+FEFF and keeps U+0085.
func trimECMAScriptSpace(s string) string {
	return strings.TrimFunc(s, isECMAScriptSpace)
}

func isECMAScriptSpace(r rune) bool {
	switch r {
	case '\t', '\n', '\v', '\f', '\r', ' ', '\u00a0', '\ufeff', '\u2028', '\u2029':
		return true
	default:
		return unicode.Is(unicode.Zs, r)
	}
}

// passwordLength counts UTF-16 code units, matching how browsers measure strings.
func passwordLength(password string) int {
	return len(utf16.Encode([]rune(password)))
}
