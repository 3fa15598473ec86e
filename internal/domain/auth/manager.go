package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"chat-server-go/internal/domain/auth/model"
	"chat-server-go/internal/domain/auth/store"
	platformerrors "chat-server-go/internal/platform/errors"
)

type (
	// Identity re-exports the shared auth entity for callers.
	Identity = model.Identity
	// Logger re-exports the logging interface used across the domain.
	Logger = model.Logger
)

// ErrAuthFailure is the single failure reported for bad credentials or tokens.
// Callers must not be able to tell which check failed.
var ErrAuthFailure = platformerrors.New(platformerrors.KindAuth, "auth", "could not validate credentials")

// Options encapsulates the dependencies required to construct a Manager.
type Options struct {
	Store  store.Store
	Hasher PasswordHasher
	Token  TokenConfig
	Logger Logger
	Clock  func() time.Time
}

// Manager coordinates the credential store, password hashing and tokens.
type Manager struct {
	store     store.Store
	hasher    PasswordHasher
	issuer    *TokenIssuer
	validator *TokenValidator
	logger    Logger

	// dummyHash is verified when the email is unknown so a miss costs the
	// same as a wrong password.
	dummyHash string
}

// NewManager wires a Manager using the supplied options.
func NewManager(opts Options) (*Manager, error) {
	if opts.Store == nil {
		return nil, errors.New("auth manager requires a store")
	}
	if opts.Logger == nil {
		return nil, errors.New("auth manager requires a logger")
	}
	if opts.Hasher == nil {
		hasher, err := NewPasswordHasher(HasherConfig{})
		if err != nil {
			return nil, err
		}
		opts.Hasher = hasher
	}

	var tokenOpts []Option
	if opts.Clock != nil {
		tokenOpts = append(tokenOpts, WithClock(opts.Clock))
	}
	issuer, err := NewTokenIssuer(opts.Token, tokenOpts...)
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindConfig, "auth.NewManager", "invalid token config", err)
	}
	validator, err := NewTokenValidator(opts.Token, opts.Store, tokenOpts...)
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindConfig, "auth.NewManager", "invalid token config", err)
	}

	dummy, err := opts.Hasher.Hash("dummy-password-for-timing")
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindInternal, "auth.NewManager", "failed to prepare password hasher", err)
	}

	return &Manager{
		store:     opts.Store,
		hasher:    opts.Hasher,
		issuer:    issuer,
		validator: validator,
		logger:    opts.Logger,
		dummyHash: dummy,
	}, nil
}

// Register validates input, hashes the password and persists a new active identity.
func (m *Manager) Register(ctx context.Context, email, password string) (Identity, error) {
	email = strings.TrimSpace(email)
	if err := validateRegistration(registration{Email: email, Password: password}); err != nil {
		return Identity{}, err
	}
	if err := ctx.Err(); err != nil {
		return Identity{}, err
	}

	hash, err := m.hasher.Hash(password)
	if errors.Is(err, ErrPasswordTooLong) {
		return Identity{}, platformerrors.Wrap(platformerrors.KindValidation, "auth.Register", "password is too long", err)
	}
	if err != nil {
		return Identity{}, platformerrors.Wrap(platformerrors.KindInternal, "auth.Register", "failed to hash password", err)
	}

	created, err := m.store.Create(ctx, Identity{
		Email:        email,
		PasswordHash: hash,
		IsActive:     true,
	})
	if errors.Is(err, store.ErrConflict) {
		return Identity{}, platformerrors.Wrap(platformerrors.KindConflict, "auth.Register", "Email already registered", err)
	}
	if err != nil {
		m.logger.Error("failed to register identity %s: %v", email, err)
		return Identity{}, platformerrors.Wrap(platformerrors.KindStorage, "auth.Register", "failed to store user", err)
	}
	m.logger.Info("registered identity %d", created.ID)
	return created, nil
}

// AuthenticateLogin checks email and password. Unknown email, wrong password
// and inactive account all yield ErrAuthFailure.
func (m *Manager) AuthenticateLogin(ctx context.Context, email, password string) (Identity, error) {
	identity, err := m.store.FindByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, store.ErrNotFound) {
		m.hasher.Verify(password, m.dummyHash)
		m.logger.Debug("login rejected: unknown email")
		return Identity{}, ErrAuthFailure
	}
	if err != nil {
		m.logger.Error("login lookup failed: %v", err)
		return Identity{}, platformerrors.Wrap(platformerrors.KindStorage, "auth.AuthenticateLogin", "failed to load user", err)
	}

	if !m.hasher.Verify(password, identity.PasswordHash) {
		m.logger.Debug("login rejected for identity %d: wrong password", identity.ID)
		return Identity{}, ErrAuthFailure
	}
	if !identity.IsActive {
		m.logger.Debug("login rejected for identity %d: inactive", identity.ID)
		return Identity{}, ErrAuthFailure
	}
	return identity, nil
}

// Login authenticates and issues a bearer token.
func (m *Manager) Login(ctx context.Context, email, password string) (Credential, error) {
	identity, err := m.AuthenticateLogin(ctx, email, password)
	if err != nil {
		return Credential{}, err
	}
	cred, err := m.issuer.Issue(identity)
	if err != nil {
		return Credential{}, platformerrors.Wrap(platformerrors.KindInternal, "auth.Login", "failed to issue token", err)
	}
	m.logger.Info("issued token %s for identity %d", cred.ID, identity.ID)
	return cred, nil
}

// AuthenticateRequest resolves the identity behind a bearer token.
func (m *Manager) AuthenticateRequest(ctx context.Context, token string) (Identity, error) {
	result := m.validator.Validate(ctx, token)
	if result.OK() {
		return *result.Identity, nil
	}
	if result.Failure == FailureInternal {
		m.logger.Error("token validation failed: %v", result.Err)
		return Identity{}, platformerrors.Wrap(platformerrors.KindStorage, "auth.AuthenticateRequest", "failed to load user", result.Err)
	}
	m.logger.Debug("token rejected: %s: %v", result.Failure, result.Err)
	return Identity{}, ErrAuthFailure
}

// Get returns a single identity by ID.
func (m *Manager) Get(ctx context.Context, id uint) (Identity, error) {
	identity, err := m.store.FindByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return Identity{}, platformerrors.Wrap(platformerrors.KindNotFound, "auth.Get", "User not found", err)
	}
	if err != nil {
		return Identity{}, platformerrors.Wrap(platformerrors.KindStorage, "auth.Get", "failed to load user", err)
	}
	return identity, nil
}

// List pages through identities ordered by ID.
func (m *Manager) List(ctx context.Context, opts model.ListOptions) ([]Identity, error) {
	if opts.Offset < 0 {
		return nil, platformerrors.New(platformerrors.KindValidation, "auth.List", "skip must not be negative")
	}
	identities, err := m.store.List(ctx, opts)
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindStorage, "auth.List", "failed to list users", err)
	}
	return identities, nil
}

// Issuer exposes the token issuer, e.g. for CLI token minting.
func (m *Manager) Issuer() *TokenIssuer {
	return m.issuer
}

// Stats reports store information.
func (m *Manager) Stats(ctx context.Context) (map[string]any, error) {
	stats, err := m.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	if mh, ok := m.hasher.(*MultiHasher); ok {
		stats["password_algorithm"] = mh.Algorithm()
	}
	return stats, nil
}

// Close releases the underlying store.
func (m *Manager) Close(ctx context.Context) error {
	return m.store.Close(ctx)
}
