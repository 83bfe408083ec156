package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/otp-auth-api/internal/httputil"
)

func doJSON(t *testing.T, handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) httputil.ErrorResponse {
	t.Helper()
	var resp httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHandler_SendOTPThenRegisterThenLogin(t *testing.T) {
	f := newServiceFixture(t)
	f.fixedCodes("042917")
	h := NewHandler(f.svc, false)

	rec := doJSON(t, h.SendOTP, `{"name":"Ann","email":"ann@x.io","password":"pw1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var msg httputil.MessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msg))
	assert.Equal(t, "OTP sent to email", msg.Message)
	assert.NotContains(t, rec.Body.String(), "042917")

	rec = doJSON(t, h.Register, `{"name":"Ann","email":"ann@x.io","password":"pw1","otp":"042917"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "User registered successfully", created.Message)
	assert.Equal(t, "ann@x.io", created.User.Email)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = doJSON(t, h.Login, `{"email":"ann@x.io","password":"pw1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var loggedIn UserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &loggedIn))
	assert.Equal(t, created.User.ID, loggedIn.User.ID)
}

func TestHandler_SendOTPErrors(t *testing.T) {
	t.Run("malformed body", func(t *testing.T) {
		f := newServiceFixture(t)
		rec := doJSON(t, NewHandler(f.svc, false).SendOTP, `{"name":`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, httputil.CodeInvalidRequestBody, decodeError(t, rec).Code)
	})

	t.Run("missing name", func(t *testing.T) {
		f := newServiceFixture(t)
		rec := doJSON(t, NewHandler(f.svc, false).SendOTP, `{"email":"a@x.io","password":"pw"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, httputil.CodeNameRequired, decodeError(t, rec).Code)
	})

	t.Run("bad email", func(t *testing.T) {
		f := newServiceFixture(t)
		rec := doJSON(t, NewHandler(f.svc, false).SendOTP, `{"name":"A","email":"nope","password":"pw"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, httputil.CodeInvalidEmailFormat, decodeError(t, rec).Code)
	})

	t.Run("user exists", func(t *testing.T) {
		f := newServiceFixture(t)
		_, err := f.users.Create(t.Context(), "A", "a@x.io", "hash")
		require.NoError(t, err)
		rec := doJSON(t, NewHandler(f.svc, false).SendOTP, `{"name":"A","email":"a@x.io","password":"pw"}`)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, httputil.CodeUserAlreadyExists, decodeError(t, rec).Code)
	})

	t.Run("delivery failure", func(t *testing.T) {
		f := newServiceFixture(t)
		f.notifier.fail = errors.New("relay down")
		rec := doJSON(t, NewHandler(f.svc, false).SendOTP, `{"name":"A","email":"a@x.io","password":"pw"}`)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Equal(t, httputil.CodeOTPDeliveryFailed, decodeError(t, rec).Code)
	})

	t.Run("store down", func(t *testing.T) {
		f := newServiceFixture(t)
		f.svc.userRepo = failingUsers{}
		rec := doJSON(t, NewHandler(f.svc, false).SendOTP, `{"name":"A","email":"a@x.io","password":"pw"}`)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, httputil.CodeServiceUnavailable, decodeError(t, rec).Code)
		assert.NotContains(t, rec.Body.String(), "connection refused")
	})
}

func TestHandler_RegisterErrors(t *testing.T) {
	f := newServiceFixture(t)
	f.fixedCodes("555555")
	h := NewHandler(f.svc, false)

	rec := doJSON(t, h.Register, `{"name":"A","email":"a@x.io","password":"pw"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, httputil.CodeOTPRequired, decodeError(t, rec).Code)

	rec = doJSON(t, h.Register, `{"name":"A","email":"a@x.io","password":"pw","otp":"555555"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, httputil.CodeInvalidOTP, decodeError(t, rec).Code)

	require.Equal(t, http.StatusOK, doJSON(t, h.SendOTP, `{"name":"A","email":"a@x.io","password":"pw"}`).Code)
	_, err := f.users.Create(t.Context(), "A", "a@x.io", "hash")
	require.NoError(t, err)

	rec = doJSON(t, h.Register, `{"name":"A","email":"a@x.io","password":"pw","otp":"555555"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, httputil.CodeUserAlreadyExists, decodeError(t, rec).Code)
}

func TestHandler_LoginErrors(t *testing.T) {
	f := newServiceFixture(t)
	hash, err := f.svc.hasher.Hash("pw")
	require.NoError(t, err)
	_, err = f.users.Create(t.Context(), "A", "a@x.io", hash)
	require.NoError(t, err)

	t.Run("distinct answers", func(t *testing.T) {
		h := NewHandler(f.svc, false)

		rec := doJSON(t, h.Login, `{"email":"ghost@x.io","password":"pw"}`)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, httputil.CodeUserNotFound, decodeError(t, rec).Code)

		rec = doJSON(t, h.Login, `{"email":"a@x.io","password":"bad"}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, httputil.CodeInvalidCredentials, decodeError(t, rec).Code)

		rec = doJSON(t, h.Login, `{"email":"a@x.io"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, httputil.CodePasswordRequired, decodeError(t, rec).Code)
	})

	t.Run("concealed unknown email", func(t *testing.T) {
		h := NewHandler(f.svc, true)

		unknown := doJSON(t, h.Login, `{"email":"ghost@x.io","password":"pw"}`)
		wrong := doJSON(t, h.Login, `{"email":"a@x.io","password":"bad"}`)

		assert.Equal(t, http.StatusUnauthorized, unknown.Code)
		assert.Equal(t, wrong.Code, unknown.Code)
		assert.Equal(t, wrong.Body.String(), unknown.Body.String())
	})
}
