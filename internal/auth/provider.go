package auth

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/claimwildcats/internal/model"
	"github.com/erazemk/claimwildcats/internal/store"
)

// EventKind identifies a session change.
type EventKind int

// Session change kinds.
const (
	EventRegistered EventKind = iota
	EventSignedIn
	EventSignedOut
)

func (k EventKind) String() string {
	switch k {
	case EventRegistered:
		return "registered"
	case EventSignedIn:
		return "signed_in"
	case EventSignedOut:
		return "signed_out"
	default:
		return "unknown"
	}
}

// Event is delivered to subscribers after a session change.
type Event struct {
	Kind EventKind
	User model.User
	At   time.Time
}

// Options configures a Provider. Zero values select the defaults.
type Options struct {
	SessionTTL time.Duration
	IDTokenTTL time.Duration
	BcryptCost int
	// Federated enables the "Continue with Google" entry point. No federated
	// identity source is wired, so it only changes the reported error.
	Federated bool
	Logger    *slog.Logger
}

// Provider is the email/password identity provider. It issues session tokens
// for the browser cookie and short-lived ID tokens for calls to the items API.
type Provider struct {
	db     *sql.DB
	secret string
	opts   Options

	mu     sync.Mutex
	nextID int
	subs   map[int]func(Event)
}

// NewProvider creates a provider storing accounts in db and signing tokens
// with secret.
func NewProvider(db *sql.DB, secret string, opts Options) *Provider {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = SessionExpiry
	}
	if opts.IDTokenTTL <= 0 {
		opts.IDTokenTTL = IDTokenExpiry
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Provider{
		db:     db,
		secret: secret,
		opts:   opts,
		subs:   make(map[int]func(Event)),
	}
}

// Subscribe registers fn for session change events. The returned function
// removes the subscription; calling it more than once is harmless.
func (p *Provider) Subscribe(fn func(Event)) (unsubscribe func()) {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.subs[id] = fn
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, id)
			p.mu.Unlock()
		})
	}
}

func (p *Provider) notify(kind EventKind, user model.User) {
	p.mu.Lock()
	fns := make([]func(Event), 0, len(p.subs))
	for _, fn := range p.subs {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	ev := Event{Kind: kind, User: user, At: time.Now()}
	for _, fn := range fns {
		fn(ev)
	}
}

// Register creates an email/password account. It does not sign the user in.
func (p *Provider) Register(ctx context.Context, email, password, displayName string) (*model.User, error) {
	email, err := validateEmail(email)
	if err != nil {
		return nil, err
	}
	if err := model.ValidatePassword(password); err != nil {
		return nil, &Error{Code: CodeWeakPassword, Message: err.Error(), Err: err}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.opts.BcryptCost)
	if err != nil {
		return nil, &Error{Code: CodeInternal, Message: "failed to hash password", Err: err}
	}

	user, err := store.CreateUser(ctx, p.db, email, displayName, string(hash), model.RoleUser)
	if errors.Is(err, store.ErrEmailTaken) {
		return nil, &Error{Code: CodeEmailInUse, Message: err.Error(), Err: err}
	}
	if err != nil {
		return nil, backendError(ctx, err)
	}

	p.opts.Logger.Info("account registered", "user", user.Email)
	p.notify(EventRegistered, *user)
	return user, nil
}

// SignIn verifies the credentials and opens a session.
func (p *Provider) SignIn(ctx context.Context, email, password string) (*Session, error) {
	email, err := validateEmail(email)
	if err != nil {
		return nil, err
	}
	if password == "" {
		return nil, &Error{Code: CodeInvalidCredential, Message: "missing password"}
	}

	user, err := store.GetUserByEmail(ctx, p.db, email)
	if err != nil {
		return nil, backendError(ctx, err)
	}
	if user == nil || user.DeletedAt != nil {
		return nil, &Error{Code: CodeInvalidCredential, Message: "invalid credentials"}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		p.opts.Logger.Warn("sign-in failed", "user", email)
		return nil, &Error{Code: CodeInvalidCredential, Message: "invalid credentials"}
	}

	token, err := GenerateToken(p.secret, AudienceSession, claimsFor(user), p.opts.SessionTTL)
	if err != nil {
		return nil, &Error{Code: CodeInternal, Message: "failed to issue session", Err: err}
	}
	claims, err := ValidateToken(p.secret, AudienceSession, token)
	if err != nil {
		return nil, &Error{Code: CodeInternal, Message: "failed to issue session", Err: err}
	}

	p.opts.Logger.Info("user signed in", "user", user.Email, "role", user.Role)
	p.notify(EventSignedIn, *user)
	return &Session{user: *user, token: token, claims: claims, provider: p}, nil
}

// SignInFederated is the entry point for third-party sign-in.
func (p *Provider) SignInFederated(ctx context.Context, providerName string) (*Session, error) {
	if !p.opts.Federated {
		return nil, &Error{Code: CodeOperationNotAllowed, Message: providerName + " sign-in is not configured."}
	}
	return nil, &Error{Code: CodeOperationNotAllowed, Message: providerName + " sign-in is not available on this server."}
}

// SignOut revokes the session token.
func (p *Provider) SignOut(ctx context.Context, s *Session) error {
	if s == nil {
		return nil
	}
	if err := store.RevokeToken(ctx, p.db, s.claims.ID, s.ExpiresAt()); err != nil {
		return backendError(ctx, err)
	}
	p.opts.Logger.Info("user signed out", "user", s.user.Email)
	p.notify(EventSignedOut, s.user)
	return nil
}

// UpdateProfile changes the display name of the signed-in account. Sessions
// pick up the new name on their next Verify.
func (p *Provider) UpdateProfile(ctx context.Context, s *Session, displayName string) error {
	if s == nil {
		return &Error{Code: CodeInvalidCredential, Message: "not signed in"}
	}
	displayName = strings.TrimSpace(displayName)
	if err := store.UpdateUserProfile(ctx, p.db, s.user.ID, displayName); err != nil {
		return backendError(ctx, err)
	}
	p.opts.Logger.Info("profile updated", "user", s.user.Email)
	return nil
}

// DeleteAccount closes the signed-in account after checking its password
// again, and ends the session.
func (p *Provider) DeleteAccount(ctx context.Context, s *Session, password string) error {
	if s == nil {
		return &Error{Code: CodeInvalidCredential, Message: "not signed in"}
	}
	user, err := store.GetUser(ctx, p.db, s.user.ID)
	if err != nil {
		return backendError(ctx, err)
	}
	if user == nil || user.DeletedAt != nil {
		return &Error{Code: CodeInvalidCredential, Message: "account no longer exists"}
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return &Error{Code: CodeInvalidCredential, Message: "invalid credentials"}
	}

	if err := store.DeleteUser(ctx, p.db, user.ID); err != nil {
		return backendError(ctx, err)
	}
	if err := store.RevokeToken(ctx, p.db, s.claims.ID, s.ExpiresAt()); err != nil {
		return backendError(ctx, err)
	}
	p.opts.Logger.Info("account deleted", "user", user.Email)
	p.notify(EventSignedOut, s.user)
	return nil
}

// Verify restores the session from a token. It fails for expired, revoked or
// malformed tokens and for deleted accounts.
func (p *Provider) Verify(ctx context.Context, token string) (*Session, error) {
	claims, err := ValidateToken(p.secret, AudienceSession, token)
	if err != nil {
		return nil, &Error{Code: CodeInvalidCredential, Message: "invalid session", Err: err}
	}

	revoked, err := store.IsTokenRevoked(ctx, p.db, claims.ID)
	if err != nil {
		return nil, backendError(ctx, err)
	}
	if revoked {
		return nil, &Error{Code: CodeInvalidCredential, Message: "session revoked"}
	}

	user, err := store.GetUser(ctx, p.db, claims.UserID)
	if err != nil {
		return nil, backendError(ctx, err)
	}
	if user == nil || user.DeletedAt != nil {
		return nil, &Error{Code: CodeInvalidCredential, Message: "account no longer exists"}
	}

	return &Session{user: *user, token: token, claims: claims, provider: p}, nil
}

func claimsFor(user *model.User) Claims {
	return Claims{
		UserID:      user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Role:        user.Role,
	}
}

func validateEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", &Error{Code: CodeInvalidEmail, Message: "invalid email: " + email}
	}
	return strings.ToLower(email), nil
}
