package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/civicpulse/authcore"
	"github.com/civicpulse/authcore/httpapi/mocks"
	"github.com/civicpulse/authcore/jwt"
)

type HandlerSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	svc     *mocks.MockService
	tokens  *mocks.MockTokenParser
	handler http.Handler
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.svc = mocks.NewMockService(s.ctrl)
	s.tokens = mocks.NewMockTokenParser(s.ctrl)
	s.handler = New(s.svc, s.tokens, nil).Router()
}

func (s *HandlerSuite) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) errorBody(rec *httptest.ResponseRecorder) ErrorBody {
	var body ErrorBody
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func (s *HandlerSuite) TestRegisterReturnsUniformReceipt() {
	s.svc.EXPECT().
		Register(gomock.Any(), authcore.RegisterRequest{Identity: "ana@example.com", DisplayName: "Ana", Password: "long-enough-secret"}).
		Return(authcore.Receipt{Message: authcore.UniformReceiptMessage, Delivered: true}, nil)

	rec := s.do(http.MethodPost, "/v1/auth/register",
		`{"identity":"ana@example.com","displayName":"Ana","password":"long-enough-secret"}`)

	s.Equal(http.StatusAccepted, rec.Code)
	s.JSONEq(`{"message":"`+authcore.UniformReceiptMessage+`"}`, rec.Body.String())
	s.NotEmpty(rec.Header().Get("X-Request-ID"))
}

func (s *HandlerSuite) TestRegisterRejectsUnknownFields() {
	rec := s.do(http.MethodPost, "/v1/auth/register", `{"identity":"a@b.co","admin":true}`)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal(authcore.CodeValidation, s.errorBody(rec).Error)
}

func (s *HandlerSuite) TestRejectsNonJSONContentType() {
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", strings.NewReader("identity=a"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	s.Equal(http.StatusUnsupportedMediaType, rec.Code)
}

func (s *HandlerSuite) TestConfirmSignupMismatchReportsRemaining() {
	s.svc.EXPECT().
		ConfirmSignup(gomock.Any(), "ana@example.com", "000000").
		Return(authcore.Session{}, &authcore.CodeMismatchError{Remaining: 2})

	rec := s.do(http.MethodPost, "/v1/auth/register/confirm", `{"identity":"ana@example.com","code":"000000"}`)

	s.Equal(http.StatusBadRequest, rec.Code)
	body := s.errorBody(rec)
	s.Equal(authcore.CodeInvalidCode, body.Error)
	s.Require().NotNil(body.RemainingAttempts)
	s.Equal(2, *body.RemainingAttempts)
}

func (s *HandlerSuite) TestConfirmSignupAcceptsNumericCode() {
	s.svc.EXPECT().
		ConfirmSignup(gomock.Any(), "ana@example.com", "482913").
		Return(authcore.Session{SessionID: "sid-1", AccessToken: "tok"}, nil)

	rec := s.do(http.MethodPost, "/v1/auth/register/confirm", `{"identity":"ana@example.com","code":482913}`)

	s.Equal(http.StatusOK, rec.Code)
}

func (s *HandlerSuite) TestCodeLoginRejectsNonIntegerCode() {
	for _, body := range []string{
		`{"identity":"ana@example.com","code":-482913}`,
		`{"identity":"ana@example.com","code":4829.13}`,
		`{"identity":"ana@example.com","code":true}`,
	} {
		rec := s.do(http.MethodPost, "/v1/auth/login/code/confirm", body)
		s.Equal(http.StatusBadRequest, rec.Code, body)
		s.Equal(authcore.CodeValidation, s.errorBody(rec).Error)
	}
}

func (s *HandlerSuite) TestResendCooldownSetsRetryAfter() {
	s.svc.EXPECT().
		ResendCode(gomock.Any(), "ana@example.com", authcore.PurposeSignup).
		Return(authcore.Receipt{}, &authcore.RateLimitError{Wait: 44*time.Second + 10*time.Millisecond})

	rec := s.do(http.MethodPost, "/v1/auth/codes/resend", `{"identity":"ana@example.com","purpose":"signup"}`)

	s.Equal(http.StatusTooManyRequests, rec.Code)
	s.Equal("45", rec.Header().Get("Retry-After"))
	s.Equal(45, s.errorBody(rec).RetryAfterSeconds)
}

func (s *HandlerSuite) TestResendRejectsUnknownPurpose() {
	rec := s.do(http.MethodPost, "/v1/auth/codes/resend", `{"identity":"ana@example.com","purpose":"sudo"}`)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal(authcore.CodeValidation, s.errorBody(rec).Error)
}

func (s *HandlerSuite) TestLoginLockedAccount() {
	until := time.Date(2026, 3, 1, 12, 15, 0, 0, time.UTC)
	s.svc.EXPECT().
		Login(gomock.Any(), "ana@example.com", "wrong-secret-1").
		Return(authcore.Session{}, &authcore.LockedError{Until: until})

	rec := s.do(http.MethodPost, "/v1/auth/login", `{"identity":"ana@example.com","password":"wrong-secret-1"}`)

	s.Equal(http.StatusLocked, rec.Code)
	s.Equal(until.Format(http.TimeFormat), rec.Header().Get("Retry-After"))
	s.Equal(authcore.CodeAccountLocked, s.errorBody(rec).Error)
}

func (s *HandlerSuite) TestLoginSuccess() {
	s.svc.EXPECT().
		Login(gomock.Any(), "ana@example.com", "long-enough-secret").
		Return(authcore.Session{SessionID: "sid-1", AccessToken: "tok"}, nil)

	rec := s.do(http.MethodPost, "/v1/auth/login", `{"identity":"ana@example.com","password":"long-enough-secret"}`)

	s.Equal(http.StatusOK, rec.Code)
	var session authcore.Session
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &session))
	s.Equal("tok", session.AccessToken)
}

func (s *HandlerSuite) TestClientMetadataReachesService() {
	s.svc.EXPECT().
		RequestLoginCode(gomock.Any(), "ana@example.com").
		DoAndReturn(func(ctx context.Context, _ string) (authcore.Receipt, error) {
			s.Equal("203.0.113.9", authcore.ClientIPFromContext(ctx))
			s.Equal("test-agent/1.0", authcore.UserAgentFromContext(ctx))
			return authcore.Receipt{Message: authcore.UniformReceiptMessage}, nil
		})

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login/code", strings.NewReader(`{"identity":"ana@example.com"}`))
	req.RemoteAddr = "203.0.113.9:51000"
	req.Header.Set("User-Agent", "test-agent/1.0")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	s.Equal(http.StatusAccepted, rec.Code)
}

func (s *HandlerSuite) TestResetPasswordNoContent() {
	s.svc.EXPECT().ResetPassword(gomock.Any(), "ana@example.com", "123456", "new-long-secret").Return(nil)
	rec := s.do(http.MethodPost, "/v1/auth/password/reset",
		`{"identity":"ana@example.com","code":"123456","password":"new-long-secret"}`)
	s.Equal(http.StatusNoContent, rec.Code)
	s.Empty(rec.Body.String())
}

func (s *HandlerSuite) TestStoreErrorsAreOpaque() {
	s.svc.EXPECT().
		ForgotPassword(gomock.Any(), "ana@example.com").
		Return(authcore.Receipt{}, fmt.Errorf("%w: dial tcp 10.0.0.7:6379: refused", authcore.ErrStoreUnavailable))

	rec := s.do(http.MethodPost, "/v1/auth/password/forgot", `{"identity":"ana@example.com"}`)

	s.Equal(http.StatusInternalServerError, rec.Code)
	s.NotContains(rec.Body.String(), "10.0.0.7")
}

func (s *HandlerSuite) TestAccountRequiresBearer() {
	rec := s.do(http.MethodGet, "/v1/account", "")
	s.Equal(http.StatusUnauthorized, rec.Code)
	s.Contains(rec.Header().Get("WWW-Authenticate"), "Bearer")
}

func (s *HandlerSuite) TestAccountRejectsInvalidToken() {
	s.tokens.EXPECT().ParseAccess("bad").Return(nil, errors.New("token is malformed"))
	rec := s.do(http.MethodGet, "/v1/account", "", "Authorization", "Bearer bad")
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *HandlerSuite) TestEmailChangeUsesTokenSubject() {
	s.tokens.EXPECT().ParseAccess("good").Return(&jwt.AccessClaims{UID: "acct-1", Role: "standard"}, nil)
	s.svc.EXPECT().
		RequestEmailChange(gomock.Any(), "acct-1", "new@example.com").
		Return(authcore.Receipt{Message: authcore.UniformReceiptMessage}, nil)

	rec := s.do(http.MethodPost, "/v1/account/email", `{"newIdentity":"new@example.com"}`, "Authorization", "Bearer good")

	s.Equal(http.StatusAccepted, rec.Code)
}

func (s *HandlerSuite) TestConfirmEmailChange() {
	s.tokens.EXPECT().ParseAccess("good").Return(&jwt.AccessClaims{UID: "acct-1", Role: "standard"}, nil)
	s.svc.EXPECT().
		ConfirmEmailChange(gomock.Any(), "acct-1", "new@example.com", "654321").
		Return(authcore.Account{ID: "acct-1", Identity: "new@example.com", Verified: true}, nil)

	rec := s.do(http.MethodPost, "/v1/account/email/confirm",
		`{"newIdentity":"new@example.com","code":"654321"}`, "Authorization", "bearer good")

	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"identity":"new@example.com"`)
}

func (s *HandlerSuite) TestUnlockRequiresAdmin() {
	s.tokens.EXPECT().ParseAccess("std").Return(&jwt.AccessClaims{UID: "acct-1", Role: "standard"}, nil)
	rec := s.do(http.MethodPost, "/v1/admin/accounts/acct-2/unlock", "", "Authorization", "Bearer std")
	s.Equal(http.StatusForbidden, rec.Code)
}

func (s *HandlerSuite) TestUnlockAsAdmin() {
	s.tokens.EXPECT().ParseAccess("adm").Return(&jwt.AccessClaims{UID: "acct-9", Role: string(authcore.RoleAdmin)}, nil)
	s.svc.EXPECT().UnlockAccount(gomock.Any(), "acct-2").Return(authcore.Account{ID: "acct-2"}, nil)

	rec := s.do(http.MethodPost, "/v1/admin/accounts/acct-2/unlock", "", "Authorization", "Bearer adm")

	s.Equal(http.StatusOK, rec.Code)
}

func (s *HandlerSuite) TestRecoveryConvertsPanics() {
	s.svc.EXPECT().
		RequestLoginCode(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, string) (authcore.Receipt, error) { panic("boom") })

	rec := s.do(http.MethodPost, "/v1/auth/login/code", `{"identity":"ana@example.com"}`)

	s.Equal(http.StatusInternalServerError, rec.Code)
	s.Equal(authcore.CodeInternal, s.errorBody(rec).Error)
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{authcore.ErrCodeNotFound, http.StatusNotFound},
		{authcore.ErrCodeExpired, http.StatusBadRequest},
		{authcore.ErrAttemptsExhausted, http.StatusBadRequest},
		{&authcore.CodeMismatchError{Remaining: 1}, http.StatusBadRequest},
		{&authcore.RateLimitError{Wait: time.Second}, http.StatusTooManyRequests},
		{&authcore.LockedError{Until: time.Now()}, http.StatusLocked},
		{authcore.ErrInvalidCredentials, http.StatusUnauthorized},
		{authcore.ErrAccountUnverified, http.StatusForbidden},
		{authcore.ErrAlreadyVerified, http.StatusConflict},
		{authcore.ErrIdentityTaken, http.StatusConflict},
		{authcore.ErrInvalidIdentity, http.StatusBadRequest},
		{authcore.ErrDeliveryFailed, http.StatusBadGateway},
		{authcore.ErrStoreUnavailable, http.StatusInternalServerError},
		{errors.New("unmapped"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StatusFor(tc.err), "%v", tc.err)
	}
}

func TestBearerToken(t *testing.T) {
	tok, ok := bearerToken("Bearer abc")
	require.True(t, ok)
	assert.Equal(t, "abc", tok)

	for _, v := range []string{"", "Bearer", "Bearer   ", "Basic abc", "abc"} {
		_, ok := bearerToken(v)
		assert.False(t, ok, v)
	}
}

func TestRequestIDPreservedWhenSupplied(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "req-123", seen)
	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))
}

func TestCodeFieldUnmarshal(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: `"048213"`, want: "048213"},
		{in: `482913`, want: "482913"},
		{in: `null`, want: ""},
		{in: `-1`, wantErr: true},
		{in: `1e6`, wantErr: true},
		{in: `{}`, wantErr: true},
	}
	for _, tc := range cases {
		var c codeField
		err := json.Unmarshal([]byte(tc.in), &c)
		if tc.wantErr {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, string(c))
	}
}
