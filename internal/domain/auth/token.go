package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"chat-server-go/internal/domain/auth/model"
	"chat-server-go/internal/domain/auth/store"
)

// DefaultTokenTTL applies when TokenConfig.TTL is zero.
const DefaultTokenTTL = 30 * time.Minute

// TokenType is reported to clients next to the access token.
const TokenType = "bearer"

// TokenConfig holds the signing secret and lifetime shared by issuer and validator.
type TokenConfig struct {
	Secret string
	TTL    time.Duration
	Issuer string
}

// Option customises token components.
type Option func(*tokenOptions)

type tokenOptions struct {
	now func() time.Time
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *tokenOptions) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) tokenOptions {
	o := tokenOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Claims is the JWT payload. Subject carries the decimal identity ID; Email is informational.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Credential is an issued bearer token.
type Credential struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	ID          string    `json:"-"`
}

// TokenIssuer mints HS256 tokens. It holds no state besides the secret.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

func NewTokenIssuer(cfg TokenConfig, opts ...Option) (*TokenIssuer, error) {
	if cfg.Secret == "" {
		return nil, errors.New("token secret must not be empty")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTokenTTL
	}
	o := buildOptions(opts)
	return &TokenIssuer{
		secret: []byte(cfg.Secret),
		ttl:    cfg.TTL,
		issuer: cfg.Issuer,
		now:    o.now,
	}, nil
}

// TTL reports the default lifetime.
func (i *TokenIssuer) TTL() time.Duration {
	return i.ttl
}

// Issue mints a token for identity with the default TTL.
func (i *TokenIssuer) Issue(identity model.Identity) (Credential, error) {
	return i.IssueWithTTL(identity, i.ttl)
}

func (i *TokenIssuer) IssueWithTTL(identity model.Identity, ttl time.Duration) (Credential, error) {
	if identity.ID == 0 {
		return Credential{}, errors.New("cannot issue token for identity without id")
	}
	if ttl <= 0 {
		return Credential{}, fmt.Errorf("token ttl must be positive, got %s", ttl)
	}

	now := i.now()
	claims := Claims{
		Email: identity.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(identity.ID), 10),
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return Credential{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return Credential{
		AccessToken: signed,
		TokenType:   TokenType,
		ExpiresAt:   claims.ExpiresAt.Time,
		ID:          claims.ID,
	}, nil
}

// FailureKind classifies why a presented token was rejected.
type FailureKind string

const (
	FailureNone             FailureKind = ""
	FailureInvalidSignature FailureKind = "invalid_signature"
	FailureExpired          FailureKind = "expired"
	FailureMalformedToken   FailureKind = "malformed_token"
	FailureUnknownSubject   FailureKind = "unknown_subject"
	FailureInactive         FailureKind = "inactive"
	// FailureInternal means the token could not be checked, e.g. the store is down.
	FailureInternal FailureKind = "internal"
)

// AuthResult is the outcome of validating one token.
type AuthResult struct {
	Identity *model.Identity
	Claims   *Claims
	Failure  FailureKind
	Err      error
}

func (r AuthResult) OK() bool {
	return r.Failure == FailureNone && r.Identity != nil
}

func reject(kind FailureKind, err error) AuthResult {
	return AuthResult{Failure: kind, Err: err}
}

// IdentityLookup resolves a token subject. store.Store satisfies it.
type IdentityLookup interface {
	FindByID(ctx context.Context, id uint) (model.Identity, error)
}

// TokenValidator checks signature, expiry and subject, in that order.
type TokenValidator struct {
	secret []byte
	lookup IdentityLookup
	parser *jwt.Parser
}

func NewTokenValidator(cfg TokenConfig, lookup IdentityLookup, opts ...Option) (*TokenValidator, error) {
	if cfg.Secret == "" {
		return nil, errors.New("token secret must not be empty")
	}
	if lookup == nil {
		return nil, errors.New("token validator requires an identity lookup")
	}
	o := buildOptions(opts)
	return &TokenValidator{
		secret: []byte(cfg.Secret),
		lookup: lookup,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithTimeFunc(o.now),
		),
	}, nil
}

// Validate never returns an error directly; the failure is reported in the result.
func (v *TokenValidator) Validate(ctx context.Context, token string) AuthResult {
	token = strings.TrimSpace(token)
	if token == "" {
		return reject(FailureMalformedToken, errors.New("empty token"))
	}

	claims := &Claims{}
	_, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return reject(classifyParseError(err), err)
	}

	if claims.Subject == "" {
		return reject(FailureMalformedToken, errors.New("token has no subject"))
	}
	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return reject(FailureMalformedToken, fmt.Errorf("invalid subject %q", claims.Subject))
	}

	identity, err := v.lookup.FindByID(ctx, uint(id))
	if errors.Is(err, store.ErrNotFound) {
		return reject(FailureUnknownSubject, err)
	}
	if err != nil {
		return reject(FailureInternal, err)
	}
	if !identity.IsActive {
		return reject(FailureInactive, errors.New("identity is inactive"))
	}

	return AuthResult{Identity: &identity, Claims: claims}
}

func classifyParseError(err error) FailureKind {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return FailureMalformedToken
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return FailureInvalidSignature
	case errors.Is(err, jwt.ErrTokenExpired), errors.Is(err, jwt.ErrTokenNotValidYet):
		return FailureExpired
	default:
		return FailureMalformedToken
	}
}
