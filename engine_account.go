package rapidauth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
)

// CreateAccount registers a new account in PENDING_VERIFICATION state and
// issues an email verification code. The account can log in only after
// [Engine.VerifyEmail] succeeds. A duplicate email returns
// [ErrAccountExists].
func (e *Engine) CreateAccount(ctx context.Context, req CreateAccountRequest) (*CreateAccountResult, error) {
	if e == nil || e.provider == nil {
		return nil, ErrEngineNotReady
	}

	email := normalizeEmail(req.Email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}

	role := req.Role
	if role == "" {
		role = e.config.Account.DefaultRole
	}
	if !ValidRole(role) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	if err := e.checkPasswordPolicy(req.Password); err != nil {
		return nil, err
	}

	hash, err := e.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPasswordPolicy, err)
	}

	account, err := e.provider.CreateAccount(ctx, CreateAccountInput{
		Email:        email,
		Role:         role,
		Status:       AccountPendingVerification,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, ErrAccountExists) {
			e.metricInc(MetricAccountCreationDuplicate)
			e.auditFailure(ctx, auditEventAccountCreateFailed, "", ErrAccountExists)
			return nil, ErrAccountExists
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricAccountCreated)
	e.auditSuccess(ctx, auditEventAccountCreated, account.AccountID)

	// Verification delivery is best effort: the account exists either way
	// and the caller can resend.
	verificationSent := false
	if _, err := e.IssueOTP(ctx, account.AccountID, email, PurposeEmailVerification); err == nil {
		verificationSent = true
	}

	return &CreateAccountResult{
		AccountID:        account.AccountID,
		Email:            account.Email,
		Role:             account.Role,
		Status:           account.Status,
		VerificationSent: verificationSent,
	}, nil
}

func (e *Engine) checkPasswordPolicy(pass string) error {
	if len(pass) < e.config.Password.MinLength {
		return fmt.Errorf("%w: password must be at least %d bytes", ErrPasswordPolicy, e.config.Password.MinLength)
	}
	if len(pass) > 72 {
		return fmt.Errorf("%w: password must be at most 72 bytes", ErrPasswordPolicy)
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" || len(email) > 254 || strings.ContainsAny(email, " \t\r\n") {
		return ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrInvalidEmail
	}
	return nil
}
