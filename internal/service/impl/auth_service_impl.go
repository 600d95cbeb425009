package impl

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"parcels/internal/codes"
	"parcels/internal/domain"
	"parcels/internal/dto"
	"parcels/internal/mail"
	obsmw "parcels/internal/observability/middleware"
	"parcels/internal/observability/metrics"
	"parcels/internal/service"
	"parcels/internal/store"

	"github.com/google/uuid"
)

const expiryLayout = "2006-01-02 15:04 MST"

type AuthServiceImpl struct {
	*Deps
	PasswordService service.PasswordService
}

var _ service.AuthService = (*AuthServiceImpl)(nil)

func NewAuthService(d *Deps, passwordService service.PasswordService) *AuthServiceImpl {
	return &AuthServiceImpl{Deps: d, PasswordService: passwordService}
}

func (a *AuthServiceImpl) newCredential(owner domain.OwnerID, password string) (*domain.PasswordCredential, error) {
	hash, salt, paramsJSON, algo, ver, err := a.PasswordService.Hash(password)
	if err != nil {
		return nil, err
	}
	return &domain.PasswordCredential{
		ID:          uuid.New(),
		OwnerID:     owner,
		Algo:        algo,
		Hash:        hash,
		Salt:        salt,
		ParamsJSON:  paramsJSON,
		PasswordVer: ver,
	}, nil
}

func (a *AuthServiceImpl) Signup(ctx context.Context, r dto.SignupRequest) (*domain.Owner, error) {
	email, err := validEmail(r.Email)
	if err != nil {
		return nil, err
	}
	if err := validPassword(r.Password); err != nil {
		return nil, err
	}
	name, err := validDisplayName(r.DisplayName)
	if err != nil {
		return nil, err
	}

	var owner *domain.Owner
	err = a.Store.WithTx(ctx, func(tx *store.Store) error {
		owner = &domain.Owner{Email: email, DisplayName: name}
		if err := tx.Owners().Create(ctx, owner); err != nil {
			if store.IsUniqueViolation(err) {
				return domain.ErrEmailTaken
			}
			return err
		}
		cred, err := a.newCredential(owner.ID, r.Password)
		if err != nil {
			return err
		}
		return tx.Credentials().UpsertPassword(ctx, cred)
	})
	metrics.LoginsTotal.WithLabelValues("signup", metrics.Result(err)).Inc()
	if err != nil {
		return nil, err
	}
	return owner, nil
}

// Login verifies a password. Every failure is reported as ErrInvalidCredentials.
func (a *AuthServiceImpl) Login(ctx context.Context, r dto.LoginRequest) (*domain.Owner, error) {
	owner, err := a.login(ctx, r)
	metrics.LoginsTotal.WithLabelValues("password", metrics.Result(err)).Inc()
	return owner, err
}

func (a *AuthServiceImpl) login(ctx context.Context, r dto.LoginRequest) (*domain.Owner, error) {
	if strings.TrimSpace(r.Email) == "" || r.Password == "" {
		return nil, domain.ErrInvalidCredentials
	}
	var owner *domain.Owner
	err := a.Store.WithTx(ctx, func(tx *store.Store) error {
		var err error
		owner, err = tx.Owners().GetByEmail(ctx, r.Email)
		if err != nil {
			if errors.Is(err, store.ErrRecordNotFound) {
				return domain.ErrInvalidCredentials
			}
			return err
		}
		cred, err := tx.Credentials().GetPasswordByOwnerID(ctx, owner.ID)
		if err != nil {
			if errors.Is(err, store.ErrRecordNotFound) {
				return domain.ErrInvalidCredentials
			}
			return err
		}
		rehashNeeded, ok := a.PasswordService.Verify(r.Password, cred)
		if !ok {
			return domain.ErrInvalidCredentials
		}
		if rehashNeeded {
			next, err := a.newCredential(owner.ID, r.Password)
			if err != nil {
				return err
			}
			if err := tx.Credentials().UpsertPassword(ctx, next); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return owner, nil
}

func (a *AuthServiceImpl) RequestPasswordReset(ctx context.Context, email string) error {
	owner, ok := a.knownOwner(ctx, email)
	if !ok {
		return nil
	}
	token, err := codes.NewResetToken()
	if err != nil {
		return err
	}
	expires := a.now().Add(a.ResetTTL)
	if err := a.storeAuthToken(ctx, owner.ID, domain.AuthPurposePasswordReset, token, expires); err != nil {
		return err
	}
	a.mailer().PasswordReset(ctx, owner.Email, mail.ResetData{
		Link:    a.url("/reset-password?token=" + url.QueryEscape(token)),
		Expires: expires.Format(expiryLayout),
	})
	return nil
}

// ResetPassword consumes a reset token and replaces the owner's password. An
// expired token is rejected without being marked used.
func (a *AuthServiceImpl) ResetPassword(ctx context.Context, r dto.ResetPasswordRequest) error {
	token := strings.TrimSpace(r.Token)
	if token == "" {
		return domain.ErrInvalidCode
	}
	if err := validPassword(r.Password); err != nil {
		return err
	}
	return a.Store.WithTx(ctx, func(tx *store.Store) error {
		tok, err := a.consumeAuthToken(ctx, tx, domain.AuthPurposePasswordReset, nil, token)
		if err != nil {
			return err
		}
		cred, err := a.newCredential(tok.OwnerID, r.Password)
		if err != nil {
			return err
		}
		return tx.Credentials().UpsertPassword(ctx, cred)
	})
}

func (a *AuthServiceImpl) RequestLoginCode(ctx context.Context, email string) error {
	owner, ok := a.knownOwner(ctx, email)
	if !ok {
		return nil
	}
	code, err := codes.NewLoginCode()
	if err != nil {
		return err
	}
	expires := a.now().Add(a.LoginCodeTTL)
	if err := a.storeAuthToken(ctx, owner.ID, domain.AuthPurposeLoginCode, code, expires); err != nil {
		return err
	}
	a.mailer().LoginCode(ctx, owner.Email, mail.LoginCodeData{
		Code:    code,
		Expires: expires.Format(expiryLayout),
	})
	return nil
}

func (a *AuthServiceImpl) VerifyLoginCode(ctx context.Context, r dto.LoginCodeVerifyRequest) (*domain.Owner, error) {
	var owner *domain.Owner
	err := a.Store.WithTx(ctx, func(tx *store.Store) error {
		var err error
		owner, err = tx.Owners().GetByEmail(ctx, r.Email)
		if err != nil {
			if errors.Is(err, store.ErrRecordNotFound) {
				return domain.ErrInvalidCode
			}
			return err
		}
		_, err = a.consumeAuthToken(ctx, tx, domain.AuthPurposeLoginCode, &owner.ID, strings.TrimSpace(r.Code))
		return err
	})
	metrics.LoginsTotal.WithLabelValues("login_code", metrics.Result(err)).Inc()
	if err != nil {
		return nil, err
	}
	return owner, nil
}

func (a *AuthServiceImpl) Profile(ctx context.Context, ownerID domain.OwnerID) (*dto.OwnerResponse, error) {
	owner, err := a.Store.Owners().GetByID(ctx, ownerID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, err
	}
	out := ownerResponse(owner)
	return &out, nil
}

func (a *AuthServiceImpl) UpdateProfile(ctx context.Context, ownerID domain.OwnerID, r dto.ProfileUpdateRequest) (*dto.OwnerResponse, error) {
	var name *string
	if r.DisplayName != nil {
		var err error
		if name, err = validDisplayName(*r.DisplayName); err != nil {
			return nil, err
		}
	}
	if err := a.Store.Owners().UpdateDisplayName(ctx, ownerID, name); err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, err
	}
	return a.Profile(ctx, ownerID)
}

// knownOwner resolves an address for the generic-response flows. Lookup
// failures are logged, never returned.
func (a *AuthServiceImpl) knownOwner(ctx context.Context, raw string) (*domain.Owner, bool) {
	email, err := validEmail(raw)
	if err != nil {
		return nil, false
	}
	owner, err := a.Store.Owners().GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, store.ErrRecordNotFound) {
			obsmw.Logger(ctx).Error("owner lookup failed", "error", err)
		}
		return nil, false
	}
	return owner, true
}

// storeAuthToken replaces the owner's outstanding tokens of purpose with one
// keyed by the digest of secret.
func (a *AuthServiceImpl) storeAuthToken(ctx context.Context, owner domain.OwnerID, purpose domain.AuthPurpose, secret string, expires time.Time) error {
	return a.Store.WithTx(ctx, func(tx *store.Store) error {
		if err := tx.AuthTokens().DeleteUnused(ctx, owner, purpose); err != nil {
			return err
		}
		return tx.AuthTokens().Create(ctx, &domain.AuthToken{
			Purpose:   purpose,
			OwnerID:   owner,
			TokenHash: a.Keyer.Digest(string(purpose), secret),
			ExpiresAt: expires,
			CreatedAt: a.now(),
		})
	})
}

func (a *AuthServiceImpl) consumeAuthToken(ctx context.Context, tx *store.Store, purpose domain.AuthPurpose, owner *domain.OwnerID, secret string) (*domain.AuthToken, error) {
	if secret == "" {
		return nil, domain.ErrInvalidCode
	}
	tok, err := tx.AuthTokens().GetByHashForUpdate(ctx, purpose, owner, a.Keyer.Digest(string(purpose), secret))
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, domain.ErrInvalidCode
		}
		return nil, err
	}
	now := a.now()
	switch {
	case tok.IsUsed():
		return nil, domain.ErrTokenUsed
	case tok.IsExpired(now):
		return nil, domain.ErrTokenExpired
	}
	if err := tx.AuthTokens().MarkUsed(ctx, tok.ID, now); err != nil {
		return nil, err
	}
	return tok, nil
}

func ownerResponse(o *domain.Owner) dto.OwnerResponse {
	return dto.OwnerResponse{
		ID:          o.ID.String(),
		Email:       o.Email,
		DisplayName: o.Name(),
		PayoutReady: o.PayoutAccountID != nil && *o.PayoutAccountID != "",
	}
}
