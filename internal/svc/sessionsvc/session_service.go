package sessionsvc

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mkrupp/csrf-target/internal/domain"
	"github.com/mkrupp/csrf-target/internal/infra/logging"
	"github.com/mkrupp/csrf-target/internal/repo/session"
	"github.com/mkrupp/csrf-target/internal/util/encoding"
)

const (
	// DefaultSecret is the insecure signing secret used when none is configured.
	DefaultSecret = "change-me-in-production"

	// SessionIDBytes is the amount of randomness in a session id.
	SessionIDBytes = 16

	signedPrefix = "s:"
)

// SessionConfig contains configuration parameters for the session layer.
type SessionConfig struct {
	// Secret signs the session cookie
	Secret string `env:"SECRET" default:"change-me-in-production"`

	// CookieName is the name of the session cookie
	CookieName string `env:"COOKIE_NAME" default:"sessionId"`

	// MaxAge is the session lifetime in seconds, counted from the last save
	MaxAge int64 `env:"MAX_AGE" default:"3600"` // 1h

	Store session.RepositoryConfig
}

// SessionService issues, loads, commits and destroys cookie-backed sessions.
// The cookie carries only the signed session id; state lives in the repository.
type SessionService struct {
	Config SessionConfig
	Repo   session.Repository
	Log    logging.Logger
	Now    func() time.Time
}

// NewSessionService creates a SessionService with a repository from the given factory.
func NewSessionService(
	ctx context.Context,
	repoFactory session.RepositoryFactory,
	cfg SessionConfig,
) (*SessionService, error) {
	log := logging.GetLogger("svc.sessionsvc.session_service")

	repo, err := repoFactory(ctx)
	if err != nil {
		return nil, fmt.Errorf("new session repo: %w", err)
	}

	if cfg.Secret == DefaultSecret {
		log.WarnContext(ctx, "session secret not configured, using insecure default")
	}

	return &SessionService{
		Config: cfg,
		Repo:   repo,
		Log:    log,
		Now:    time.Now,
	}, nil
}

// Load returns the session identified by the request's cookie. Requests
// without a cookie, with a bad signature or with an unknown or expired id get
// a fresh session, which is only stored once it is modified and committed.
func (s *SessionService) Load(ctx context.Context, r *http.Request) (*domain.Session, error) {
	if id, ok := s.sessionIDFromRequest(r); ok {
		data, found, err := s.Repo.Fetch(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("fetch session: %w", err)
		}

		if found {
			return domain.RestoreSession(id, data), nil
		}

		s.Log.DebugContext(ctx, "session not found", "id", domain.PreviewSessionID(id))
	}

	id, err := encoding.RandomCrockfordB32LC(SessionIDBytes)
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}

	return domain.NewSession(id), nil
}

// Commit stores a modified session and sends its cookie. Unmodified sessions
// are left alone.
func (s *SessionService) Commit(ctx context.Context, w http.ResponseWriter, sess *domain.Session) (err error) {
	if !sess.Modified() {
		return nil
	}

	log := s.Log.With(logging.Group("session", "id", sess.PreviewID(), "new", sess.IsNew()))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "session commit failed", "error", err)
		} else {
			log.DebugContext(ctx, "session committed")
		}
	}()

	expiresAt := s.Now().Add(s.maxAge())

	if err := s.Repo.Store(ctx, sess.ID(), sess.Data(), expiresAt); err != nil {
		return fmt.Errorf("store session: %w", err)
	}

	http.SetCookie(w, s.cookie(encoding.EncodeURIComponent(s.sign(sess.ID())), expiresAt))

	sess.MarkStored()

	return nil
}

// Destroy removes the session from the store and expires the cookie.
func (s *SessionService) Destroy(ctx context.Context, w http.ResponseWriter, sess *domain.Session) (err error) {
	log := s.Log.With(logging.Group("session", "id", sess.PreviewID()))

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "session destroy failed", "error", err)
		} else {
			log.DebugContext(ctx, "session destroyed")
		}
	}()

	if err := s.Repo.Delete(ctx, sess.ID()); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	cookie := s.cookie("", time.Unix(0, 0))
	cookie.MaxAge = -1
	http.SetCookie(w, cookie)

	return nil
}

// Close releases the session repository.
func (s *SessionService) Close() error {
	if err := s.Repo.Close(); err != nil {
		return fmt.Errorf("close session repo: %w", err)
	}

	return nil
}

func (s *SessionService) maxAge() time.Duration {
	return time.Duration(s.Config.MaxAge) * time.Second
}

//nolint:exhaustruct
func (s *SessionService) cookie(value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     s.Config.CookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(s.Config.MaxAge),
		HttpOnly: true,
		Secure:   false,
		SameSite: http.SameSiteLaxMode,
	}
}

// sign returns "s:<id>.<signature>", the signature being the unpadded base64
// HMAC-SHA256 of the id under the configured secret.
func (s *SessionService) sign(id string) string {
	return signedPrefix + id + "." + s.signature(id)
}

func (s *SessionService) signature(id string) string {
	mac := hmac.New(sha256.New, []byte(s.Config.Secret))
	mac.Write([]byte(id))

	return base64.RawStdEncoding.EncodeToString(mac.Sum(nil))
}

// unsign verifies a signed value and returns the session id it carries.
func (s *SessionService) unsign(value string) (string, bool) {
	value, ok := strings.CutPrefix(value, signedPrefix)
	if !ok {
		return "", false
	}

	dot := strings.LastIndexByte(value, '.')
	if dot < 0 {
		return "", false
	}

	id, signature := value[:dot], value[dot+1:]

	if !hmac.Equal([]byte(signature), []byte(s.signature(id))) {
		return "", false
	}

	if !encoding.IsCrockfordB32LC(id, SessionIDBytes) {
		return "", false
	}

	return id, true
}

func (s *SessionService) sessionIDFromRequest(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(s.Config.CookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}

	value, err := encoding.DecodeURIComponent(cookie.Value)
	if err != nil {
		return "", false
	}

	return s.unsign(value)
}
