package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/mail"
	"net/url"
	"os"
	"strings"
	"time"
)

var (
	ErrInvalidEmail = errors.New("invalid email")
	ErrInvalidLink  = errors.New("invalid login link")
	ErrLinkExpired  = errors.New("login link expired")
)

// Mailer delivers login links. The default implementation just logs the
// link, which is enough for local development.
type Mailer interface {
	SendLoginLink(email, link string) error
}

type logMailer struct {
	logger *log.Logger
}

func (m logMailer) SendLoginLink(email, link string) error {
	m.logger.Printf("[auth] login link for %s: %s", email, link)
	return nil
}

type Service struct {
	repo   *FileRepo
	mailer Mailer

	logger *log.Logger

	baseURL    string
	cookieName string
	linkTTL    time.Duration
	sessionTTL time.Duration
}

func NewService(repo *FileRepo, baseURL string, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		repo:       repo,
		mailer:     logMailer{logger: logger},
		logger:     logger,
		baseURL:    strings.TrimRight(baseURL, "/"),
		cookieName: "dayparty_session",
		linkTTL:    15 * time.Minute,
		sessionTTL: 30 * 24 * time.Hour,
	}
}

// SetMailer swaps in a real delivery channel.
func (s *Service) SetMailer(m Mailer) {
	if m != nil {
		s.mailer = m
	}
}

func (s *Service) SetTTLs(link, session time.Duration) {
	if link > 0 {
		s.linkTTL = link
	}
	if session > 0 {
		s.sessionTTL = session
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if email == "" {
		return ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return ErrInvalidEmail
	}
	if strings.ToLower(addr.Address) != email {
		return ErrInvalidEmail
	}
	return nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func generateToken() (string, error) {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b[:]), nil
}

// RequestLoginLink creates a single-use link for the email and hands it to
// the mailer. The raw token is never persisted.
func (s *Service) RequestLoginLink(email string, now time.Time) (time.Time, error) {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return time.Time{}, err
	}
	token, err := generateToken()
	if err != nil {
		return time.Time{}, err
	}
	link := LoginLink{
		Email:       email,
		TokenHash:   hashToken(token),
		ExpiresAt:   now.Add(s.linkTTL),
		RequestedAt: now,
	}
	if err := s.repo.PutLink(link); err != nil {
		return time.Time{}, err
	}
	verifyURL := s.baseURL + "/auth/verify?token=" + url.QueryEscape(token)
	if err := s.mailer.SendLoginLink(email, verifyURL); err != nil {
		// The link stays valid; delivery can be retried by requesting again.
		s.logger.Printf("[auth] link delivery to %s failed: %v", email, err)
	}
	return link.ExpiresAt, nil
}

// VerifyLoginLink redeems a link token for a session.
func (s *Service) VerifyLoginLink(token string, now time.Time) (User, string, time.Time, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return User{}, "", time.Time{}, ErrInvalidLink
	}

	th := hashToken(token)
	link, ok := s.repo.GetLink(th)
	if !ok {
		return User{}, "", time.Time{}, ErrInvalidLink
	}
	if now.After(link.ExpiresAt) {
		_ = s.repo.DeleteLink(th)
		return User{}, "", time.Time{}, ErrLinkExpired
	}
	if err := s.repo.DeleteLink(th); err != nil {
		return User{}, "", time.Time{}, err
	}

	u, _, err := s.repo.GetOrCreateUser(link.Email, now)
	if err != nil {
		return User{}, "", time.Time{}, err
	}

	sessionToken, err := generateToken()
	if err != nil {
		return User{}, "", time.Time{}, err
	}
	exp := now.Add(s.sessionTTL)
	sess := Session{
		ID:        newID("sess"),
		UserID:    u.ID,
		TokenHash: hashToken(sessionToken),
		CreatedAt: now,
		LastSeen:  now,
		ExpiresAt: exp,
	}
	if err := s.repo.CreateSession(sess); err != nil {
		return User{}, "", time.Time{}, err
	}
	return u, sessionToken, exp, nil
}

// AuthenticateRequest accepts either the session cookie (browser) or a
// bearer token (CLI/sync client).
func (s *Service) AuthenticateRequest(r *http.Request, now time.Time) (User, Session, bool) {
	token := ""
	if cookie, err := r.Cookie(s.cookieName); err == nil {
		token = cookie.Value
	}
	if token == "" {
		if h := strings.TrimSpace(r.Header.Get("Authorization")); strings.HasPrefix(h, "Bearer ") {
			token = strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
		}
	}
	if token == "" {
		return User{}, Session{}, false
	}

	sess, ok := s.repo.GetSessionByTokenHash(hashToken(token))
	if !ok {
		return User{}, Session{}, false
	}
	if now.After(sess.ExpiresAt) {
		_ = s.repo.DeleteSessionByID(sess.ID)
		return User{}, Session{}, false
	}
	u, ok := s.repo.GetUserByID(sess.UserID)
	if !ok {
		_ = s.repo.DeleteSessionByID(sess.ID)
		return User{}, Session{}, false
	}

	// Best-effort last-seen update, throttled to reduce writes.
	if now.Sub(sess.LastSeen) >= 5*time.Minute {
		_ = s.repo.TouchSession(sess.ID, now)
		sess.LastSeen = now
	}

	return u, sess, true
}

func (s *Service) RevokeSessionForRequest(r *http.Request) {
	cookie, err := r.Cookie(s.cookieName)
	if err != nil || cookie.Value == "" {
		return
	}
	_ = s.repo.DeleteSessionByTokenHash(hashToken(cookie.Value))
}

func (s *Service) shouldUseSecureCookie(r *http.Request) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DAYPARTY_COOKIE_SECURE"))) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	}
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(r.Header.Get("X-Forwarded-Proto")), "https")
}

func (s *Service) SetSessionCookie(w http.ResponseWriter, r *http.Request, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   s.shouldUseSecureCookie(r),
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Service) ClearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.shouldUseSecureCookie(r),
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Service) RequirePage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, sess, ok := s.AuthenticateRequest(r, time.Now())
		if !ok {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		ctx := withIdentity(r.Context(), u, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Service) RequireAPI(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, sess, ok := s.AuthenticateRequest(r, time.Now())
		if !ok {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "unauthorized"})
			return
		}
		ctx := withIdentity(r.Context(), u, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Service) HandleAppRoute(w http.ResponseWriter, r *http.Request) {
	if _, _, ok := s.AuthenticateRequest(r, time.Now()); ok {
		http.Redirect(w, r, "/planner", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
