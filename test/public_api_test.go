package test

import (
	"context"
	"net/http"
	"testing"

	rapidauth "github.com/shrimay18/rapidcare-auth"
	"github.com/shrimay18/rapidcare-auth/middleware"
)

// This test intentionally guards public API compile-compat for consumers.
func TestPublicAPISurfaceCompile(t *testing.T) {
	_ = rapidauth.New

	var _ *rapidauth.Engine
	var _ rapidauth.Config
	var _ rapidauth.AuthResult
	var _ rapidauth.TokenPair
	var _ rapidauth.SessionInfo
	var _ rapidauth.DeviceInfo
	var _ rapidauth.CreateAccountRequest
	var _ rapidauth.CreateAccountResult
	var _ rapidauth.AccountProvider
	var _ rapidauth.Notifier
	var _ rapidauth.AuditSink
	var _ rapidauth.MetricsSnapshot

	var _ error = rapidauth.ErrUnauthorized
	var _ error = rapidauth.ErrInvalidCredentials
	var _ error = rapidauth.ErrAccountExists
	var _ error = rapidauth.ErrAccountUnverified
	var _ error = rapidauth.ErrRefreshReuse
	var _ error = rapidauth.ErrRefreshInvalid
	var _ error = rapidauth.ErrTokenInvalid
	var _ error = rapidauth.ErrOTPInvalid
	var _ error = rapidauth.ErrSessionNotFound

	var _ func(*rapidauth.Engine) func(http.Handler) http.Handler = middleware.Authenticate
	var _ func(*rapidauth.Engine, ...string) func(http.Handler) http.Handler = middleware.RequireRole

	var _ func(*rapidauth.Engine, context.Context, string, string) (*rapidauth.TokenPair, error) = (*rapidauth.Engine).Login
	var _ func(*rapidauth.Engine, context.Context, string, rapidauth.DeviceInfo) (*rapidauth.TokenPair, error) = (*rapidauth.Engine).Refresh
	var _ func(*rapidauth.Engine, context.Context, string) (*rapidauth.AuthResult, error) = (*rapidauth.Engine).Validate
	var _ func(*rapidauth.Engine, context.Context, string) error = (*rapidauth.Engine).Logout
	var _ func(*rapidauth.Engine, context.Context, string) (int64, error) = (*rapidauth.Engine).LogoutAll
	var _ func(*rapidauth.Engine, context.Context, string) ([]rapidauth.SessionInfo, error) = (*rapidauth.Engine).ListSessions
	var _ func(*rapidauth.Engine, context.Context, rapidauth.CreateAccountRequest) (*rapidauth.CreateAccountResult, error) = (*rapidauth.Engine).CreateAccount
	var _ func(*rapidauth.Engine, context.Context, string, string) error = (*rapidauth.Engine).VerifyEmail
	var _ func(*rapidauth.Engine, context.Context, string) error = (*rapidauth.Engine).RequestPasswordReset
	var _ func(*rapidauth.Engine, context.Context, string, string, string) error = (*rapidauth.Engine).ConfirmPasswordReset
}
