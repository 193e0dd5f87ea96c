package profilesvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"golang.org/x/image/draw"

	"github.com/mkrupp/csrf-target/internal/domain"
	context_ "github.com/mkrupp/csrf-target/internal/infra/context"
	"github.com/mkrupp/csrf-target/internal/infra/logging"
	http_ "github.com/mkrupp/csrf-target/internal/infra/transport/http"
	"github.com/mkrupp/csrf-target/internal/util/encoding"
)

const (
	// MaxBodyBytes limits form and JSON request bodies.
	MaxBodyBytes = 100 << 10

	flashLoginRequired      = "You must log in to access this page"
	flashMissingFields      = "Please fill in all fields"
	flashInvalidCredentials = "Invalid credentials"

	msgUserNotFound     = "User not found"
	msgInvalidEmail     = "Invalid email"
	msgPasswordTooShort = "Password must be at least 3 characters"
	msgBodyTooLarge     = "Request entity too large"
	msgInvalidScale     = "Invalid scale"
	msgLogoutFailed     = "Error closing session"
)

// ErrNoSession is returned when a handler runs without the session middleware.
var ErrNoSession = errors.New("no session in request context")

// SessionManager loads, persists and destroys the sessions of requests.
type SessionManager interface {
	http_.SessionLoader
	Commit(ctx context.Context, w http.ResponseWriter, sess *domain.Session) error
	Destroy(ctx context.Context, w http.ResponseWriter, sess *domain.Session) error
}

// HTTPTransportConfig contains configuration parameters for the HTTP transport layer.
type HTTPTransportConfig struct {
	http_.HTTPTransportConfig

	Badge BadgeConfig `envPrefix:"BADGE_"`
}

// HTTPTransport serves the login, profile and status pages. None of the
// state-changing routes check for a CSRF token.
type HTTPTransport struct {
	profileSvc *ProfileService
	sessions   SessionManager
	views      *views
	interpol   draw.Interpolator
	handler    http.Handler
	log        logging.Logger
	cfg        HTTPTransportConfig
}

var _ http_.HTTPTransport = (*HTTPTransport)(nil)

// NewHTTPTransport creates a new HTTPTransport instance with the given configuration.
// Routes:
// - GET /home, GET /logout, GET /edit, POST /edit: require a logged in session
// - GET /login, POST /login: login form and credentials check
// - GET /status, GET /status/badge.png, GET /status/badge.tiff: session status
// - anything else: 404 page.
func NewHTTPTransport(
	profileSvc *ProfileService,
	sessions SessionManager,
	cfg HTTPTransportConfig,
) (*HTTPTransport, error) {
	views, err := parseViews()
	if err != nil {
		return nil, fmt.Errorf("parse views: %w", err)
	}

	interpol, err := getInterpolatorByName(cfg.Badge.Interpolator)
	if err != nil {
		return nil, fmt.Errorf("badge interpolator: %w", err)
	}

	ht := &HTTPTransport{
		profileSvc: profileSvc,
		sessions:   sessions,
		views:      views,
		interpol:   interpol,
		log:        logging.GetLogger("svc.profilesvc.http_transport"),
		cfg:        cfg,
	}

	protect := func(h http_.ErrorHandlerFunc) http.Handler {
		return http_.AuthorizingMiddleware(h, http_.ErrorHandlerFunc(ht.handleUnauthorized), ht.log)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /home", protect(ht.handleHome))
	mux.Handle("GET /login", http_.ErrorHandlerFunc(ht.handleLoginForm))
	mux.Handle("POST /login", http_.ErrorHandlerFunc(ht.handleLogin))
	mux.Handle("GET /logout", protect(ht.handleLogout))
	mux.Handle("GET /edit", protect(ht.handleEditForm))
	mux.Handle("POST /edit", protect(ht.handleEdit))
	mux.Handle("GET /status", http_.ErrorHandlerFunc(ht.handleStatus))
	mux.Handle("GET /status/badge.png", ht.badgeHandler(MIMETypePNG))
	mux.Handle("GET /status/badge.tiff", ht.badgeHandler(MIMETypeTIFF))
	mux.Handle("/", http_.ErrorHandlerFunc(ht.handleNotFound))

	ht.handler = http_.SessionMiddleware(mux, sessions, ht.log)

	return ht, nil
}

// ServeHTTP implements http.Handler.
func (ht *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ht.handler.ServeHTTP(w, r)
}

func (ht *HTTPTransport) requestLogger(r *http.Request) logging.Logger {
	return ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))
}

func session(r *http.Request) (*domain.Session, error) {
	sess, ok := context_.SessionFromContext(r.Context())
	if !ok {
		return nil, ErrNoSession
	}

	return sess, nil
}

// redirectWithFlash queues a flash message, commits the session and redirects
// with 302 Found.
func (ht *HTTPTransport) redirectWithFlash(
	w http.ResponseWriter,
	r *http.Request,
	sess *domain.Session,
	location string,
	message string,
) error {
	sess.AddFlash(message)

	if err := ht.sessions.Commit(r.Context(), w, sess); err != nil {
		return fmt.Errorf("commit session: %w", err)
	}

	http.Redirect(w, r, location, http.StatusFound)

	return nil
}

func (ht *HTTPTransport) handleUnauthorized(w http.ResponseWriter, r *http.Request) error {
	sess, err := session(r)
	if err != nil {
		return err
	}

	return ht.redirectWithFlash(w, r, sess, "/login", flashLoginRequired)
}

func (ht *HTTPTransport) handleHome(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.requestLogger(r)

	defer func(ctx context.Context) {
		if err != nil {
			log.ErrorContext(ctx, "home failed", "error", err)
		}
	}(r.Context())

	sess, err := session(r)
	if err != nil {
		return err
	}

	email := r.URL.Query().Get("email")
	if email == "" {
		user, ok, err := ht.profileSvc.User(r.Context(), sess.UserID())
		if err != nil {
			return fmt.Errorf("get user: %w", err)
		}

		if ok {
			email = user.Email
		}
	}

	if email == "" {
		email = "Unknown"
	}

	log.DebugContext(r.Context(), "home rendered", "email", email)

	return ht.views.render(w, http.StatusOK, "home", homeView{Email: email})
}

func (ht *HTTPTransport) handleLoginForm(w http.ResponseWriter, r *http.Request) error {
	sess, err := session(r)
	if err != nil {
		return err
	}

	if sess.Authenticated() {
		http.Redirect(w, r, "/home", http.StatusFound)

		return nil
	}

	messages := sess.Flashes()

	if err := ht.sessions.Commit(r.Context(), w, sess); err != nil {
		return fmt.Errorf("commit session: %w", err)
	}

	return ht.views.render(w, http.StatusOK, "login", loginView{Messages: messages})
}

func (ht *HTTPTransport) handleLogin(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.requestLogger(r)

	defer func(ctx context.Context) {
		if err != nil {
			log.ErrorContext(ctx, "user login failed", "error", err)
		}
	}(r.Context())

	sess, err := session(r)
	if err != nil {
		return err
	}

	creds, err := readCredentials(w, r)
	if err != nil {
		return err
	}

	if creds.Mismatched {
		return ht.redirectWithFlash(w, r, sess, "/login", flashInvalidCredentials)
	}

	user, err := ht.profileSvc.Login(r.Context(), creds.Email, creds.Password)

	switch {
	case errors.Is(err, domain.ErrMissingCredentials):
		return ht.redirectWithFlash(w, r, sess, "/login", flashMissingFields)
	case errors.Is(err, domain.ErrInvalidCredentials):
		return ht.redirectWithFlash(w, r, sess, "/login", flashInvalidCredentials)
	case err != nil:
		return fmt.Errorf("login: %w", err)
	}

	sess.SetUserID(user.ID)

	if err := ht.sessions.Commit(r.Context(), w, sess); err != nil {
		return fmt.Errorf("commit session: %w", err)
	}

	log.InfoContext(r.Context(), "user logged in",
		logging.Group("user", "id", user.ID.String(), "email", user.Email),
		logging.Group("session", "id", sess.PreviewID()),
	)

	http.Redirect(w, r, "/home", http.StatusFound)

	return nil
}

func (ht *HTTPTransport) handleLogout(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.requestLogger(r)

	defer func(ctx context.Context) {
		if err != nil {
			log.ErrorContext(ctx, "logout failed", "error", err)
		} else {
			log.InfoContext(ctx, "session closed")
		}
	}(r.Context())

	sess, err := session(r)
	if err != nil {
		return err
	}

	if err := ht.sessions.Destroy(r.Context(), w, sess); err != nil {
		http.Error(w, msgLogoutFailed, http.StatusInternalServerError)

		return fmt.Errorf("destroy session: %w", err)
	}

	return ht.views.render(w, http.StatusOK, "logout", nil)
}

func (ht *HTTPTransport) handleEditForm(w http.ResponseWriter, r *http.Request) error {
	sess, err := session(r)
	if err != nil {
		return err
	}

	var view editView

	user, ok, err := ht.profileSvc.User(r.Context(), sess.UserID())
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	} else if ok {
		view.CurrentEmail = user.Email
	}

	return ht.views.render(w, http.StatusOK, "edit", view)
}

func (ht *HTTPTransport) handleEdit(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.requestLogger(r)

	defer func(ctx context.Context) {
		if err != nil {
			log.ErrorContext(ctx, "profile edit failed", "error", err)
		}
	}(r.Context())

	sess, err := session(r)
	if err != nil {
		return err
	}

	creds, err := readCredentials(w, r)
	if err != nil {
		return err
	}

	oldEmail, err := ht.profileSvc.UpdateProfile(r.Context(), sess.UserID(), creds.Email, creds.Password)

	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		return http_.WriteJSONError(w, http.StatusNotFound, msgUserNotFound)
	case errors.Is(err, domain.ErrInvalidEmail):
		return http_.WriteJSONError(w, http.StatusBadRequest, msgInvalidEmail)
	case errors.Is(err, domain.ErrPasswordTooShort):
		return http_.WriteJSONError(w, http.StatusBadRequest, msgPasswordTooShort)
	case err != nil:
		return fmt.Errorf("update profile: %w", err)
	}

	http.Redirect(w, r, "/home?email="+encoding.EncodeURIComponent(oldEmail), http.StatusSeeOther)

	return nil
}

type statusResponse struct {
	CSRF struct {
		Enabled bool `json:"enabled"`
	} `json:"csrf"`
	Session struct {
		Authenticated bool   `json:"authenticated"`
		SessionID     string `json:"sessionId"`
	} `json:"session"`
}

func newStatusResponse(sess *domain.Session) statusResponse {
	var status statusResponse

	status.CSRF.Enabled = false
	status.Session.Authenticated = sess.Authenticated()
	status.Session.SessionID = sess.PreviewID()

	return status
}

func (ht *HTTPTransport) handleStatus(w http.ResponseWriter, r *http.Request) error {
	sess, err := session(r)
	if err != nil {
		return err
	}

	return http_.WriteJSON(w, http.StatusOK, newStatusResponse(sess))
}

func (ht *HTTPTransport) badgeHandler(ctype string) http.Handler {
	return http_.ErrorHandlerFunc(func(w http.ResponseWriter, r *http.Request) (err error) {
		log := ht.requestLogger(r)

		defer func(ctx context.Context) {
			if err != nil {
				log.ErrorContext(ctx, "badge failed", "error", err)
			}
		}(r.Context())

		sess, err := session(r)
		if err != nil {
			return err
		}

		scale := int(ht.cfg.Badge.Scale)

		if value := r.URL.Query().Get("scale"); value != "" {
			scale, err = strconv.Atoi(value)
			if err != nil || scale < 1 || scale > MaxBadgeScale {
				return http_.WriteJSONError(w, http.StatusBadRequest, msgInvalidScale)
			}
		}

		bitmap, err := renderBadge(newStatusResponse(sess), scale, ht.interpol)
		if err != nil {
			return fmt.Errorf("render badge: %w", err)
		}

		data, err := encodeBadge(bitmap, ctype)
		if err != nil {
			return fmt.Errorf("encode badge: %w", err)
		}

		w.Header().Set("Content-Type", ctype)
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.WriteHeader(http.StatusOK)

		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("write badge: %w", err)
		}

		return nil
	})
}

func (ht *HTTPTransport) handleNotFound(w http.ResponseWriter, r *http.Request) error {
	ht.log.DebugContext(r.Context(), "no route", "method", r.Method, "uri", r.RequestURI)

	return ht.views.render(w, http.StatusNotFound, "not_found", nil)
}

type credentials struct {
	Email    string
	Password string

	// Mismatched is set when both JSON fields are present but at least one
	// of them is not a string. Such credentials never match a stored user.
	Mismatched bool
}

// readCredentials reads email and password from a JSON or url-encoded body.
// Bodies of any other type yield empty credentials. An oversized body is
// answered with 413 and returned as error.
func readCredentials(w http.ResponseWriter, r *http.Request) (credentials, error) {
	var creds credentials

	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var err error

	if mediaType == "application/json" {
		var fields map[string]any
		if err = json.NewDecoder(r.Body).Decode(&fields); errors.Is(err, io.EOF) {
			err = nil
		}

		if err == nil {
			creds = credentialsFromJSON(fields)
		}
	} else {
		if err = r.ParseForm(); err == nil {
			creds.Email = r.PostForm.Get("email")
			creds.Password = r.PostForm.Get("password")
		}
	}

	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		_ = http_.WriteJSONError(w, http.StatusRequestEntityTooLarge, msgBodyTooLarge)

		return credentials{}, fmt.Errorf("read body: %w", err)
	}

	if err != nil {
		return credentials{}, fmt.Errorf("read body: %w", err)
	}

	return creds, nil
}

// credentialsFromJSON keeps string fields as they are. Empty values (null,
// false, 0, "") count as missing; any other non-string value is present but
// can never equal a stored string.
func credentialsFromJSON(fields map[string]any) credentials {
	email, emailPresent := jsonStringField(fields, "email")
	password, passwordPresent := jsonStringField(fields, "password")

	_, emailIsString := fields["email"].(string)
	_, passwordIsString := fields["password"].(string)

	return credentials{
		Email:      email,
		Password:   password,
		Mismatched: emailPresent && passwordPresent && (!emailIsString || !passwordIsString),
	}
}

func jsonStringField(fields map[string]any, key string) (value string, present bool) {
	switch v := fields[key].(type) {
	case string:
		return v, v != ""
	case nil:
		return "", false
	case bool:
		return "", v
	case float64:
		return "", v != 0
	default:
		return "", true
	}
}
