package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/shop-auth/internal/config"
	"github.com/pribylovaa/shop-auth/internal/http/middleware"
	"github.com/pribylovaa/shop-auth/internal/models"
	"github.com/pribylovaa/shop-auth/internal/service"
)

// fakeUsers — управляемая реализация Users: каждый метод задаётся функцией.
type fakeUsers struct {
	register func(ctx context.Context, in service.RegisterInput) (*models.PublicUser, error)
	login    func(ctx context.Context, username, email, password string) (*models.PublicUser, *models.TokenPair, error)
	rotate   func(ctx context.Context, presented string) (*models.TokenPair, error)
	logout   func(ctx context.Context, id uuid.UUID) error
	byID     func(ctx context.Context, rawID string) (*models.PublicUser, error)
}

func (f *fakeUsers) Register(ctx context.Context, in service.RegisterInput) (*models.PublicUser, error) {
	return f.register(ctx, in)
}

func (f *fakeUsers) Login(ctx context.Context, username, email, password string) (*models.PublicUser, *models.TokenPair, error) {
	return f.login(ctx, username, email, password)
}

func (f *fakeUsers) RotateRefreshToken(ctx context.Context, presented string) (*models.TokenPair, error) {
	return f.rotate(ctx, presented)
}

func (f *fakeUsers) Logout(ctx context.Context, id uuid.UUID) error {
	return f.logout(ctx, id)
}

func (f *fakeUsers) UserByID(ctx context.Context, rawID string) (*models.PublicUser, error) {
	return f.byID(ctx, rawID)
}

type envelope struct {
	StatusCode int             `json:"statusCode"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Success    bool            `json:"success"`
	Errors     []string        `json:"errors"`
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) envelope {
	t.Helper()

	var env envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	return env
}

func cookiesByName(rr *httptest.ResponseRecorder) map[string]*http.Cookie {
	out := map[string]*http.Cookie{}
	for _, c := range rr.Result().Cookies() {
		out[c.Name] = c
	}
	return out
}

var testPair = &models.TokenPair{AccessToken: "acc-1", RefreshToken: "ref-1"}

func newHandlers(u *fakeUsers) *Handlers {
	return New(u, config.CookieConfig{}, 1<<10)
}

type part struct {
	field, name, ctype, body string
}

func multipartBody(t *testing.T, fields map[string]string, files ...part) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		h := make(map[string][]string)
		h["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name=%q; filename=%q`, f.field, f.name)}
		h["Content-Type"] = []string{f.ctype}
		w, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = io.WriteString(w, f.body)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

var bobFields = map[string]string{
	"username": "bob",
	"email":    "bob@x.com",
	"fullName": "Bob Builder",
	"password": "pw123",
}

func TestRegister_OK(t *testing.T) {
	var got service.RegisterInput
	var avatarBody string
	u := &fakeUsers{register: func(_ context.Context, in service.RegisterInput) (*models.PublicUser, error) {
		got = in
		b, _ := io.ReadAll(in.Avatar.Body)
		avatarBody = string(b)
		return &models.PublicUser{ID: uuid.New(), Username: "bob", Avatar: "http://cdn/a.png"}, nil
	}}

	body, ctype := multipartBody(t, bobFields, part{"avatar", "fileA.png", "image/png", "PNGDATA"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register", body)
	req.Header.Set("Content-Type", ctype)
	rr := httptest.NewRecorder()
	newHandlers(u).Register(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	env := decode(t, rr)
	require.True(t, env.Success)
	require.Equal(t, http.StatusOK, env.StatusCode)

	var user models.PublicUser
	require.NoError(t, json.Unmarshal(env.Data, &user))
	require.Equal(t, "bob", user.Username)
	require.NotContains(t, string(env.Data), "password")
	require.NotContains(t, string(env.Data), "refresh")

	require.Equal(t, "bob", got.Username)
	require.Equal(t, "Bob Builder", got.FullName)
	require.Equal(t, "pw123", got.Password)
	require.NotNil(t, got.Avatar)
	require.Equal(t, "fileA.png", got.Avatar.Name)
	require.Equal(t, "image/png", got.Avatar.ContentType)
	require.Equal(t, "PNGDATA", avatarBody)
	require.Nil(t, got.CoverImage)
}

func TestRegister_WithCover(t *testing.T) {
	var got service.RegisterInput
	u := &fakeUsers{register: func(_ context.Context, in service.RegisterInput) (*models.PublicUser, error) {
		got = in
		return &models.PublicUser{Username: "bob"}, nil
	}}

	body, ctype := multipartBody(t, bobFields,
		part{"avatar", "a.png", "image/png", "A"},
		part{"coverImage", "c.jpg", "image/jpeg", "C"},
	)
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", ctype)
	rr := httptest.NewRecorder()
	newHandlers(u).Register(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, got.CoverImage)
	require.Equal(t, "c.jpg", got.CoverImage.Name)
}

func TestRegister_TwoAvatars_Rejected(t *testing.T) {
	u := &fakeUsers{register: func(context.Context, service.RegisterInput) (*models.PublicUser, error) {
		t.Fatal("service must not be called")
		return nil, nil
	}}

	body, ctype := multipartBody(t, bobFields,
		part{"avatar", "a.png", "image/png", "A"},
		part{"avatar", "b.png", "image/png", "B"},
	)
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", ctype)
	rr := httptest.NewRecorder()
	newHandlers(u).Register(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, []string{"avatar"}, decode(t, rr).Errors)
}

func TestRegister_FileTooLarge_Rejected(t *testing.T) {
	u := &fakeUsers{register: func(context.Context, service.RegisterInput) (*models.PublicUser, error) {
		t.Fatal("service must not be called")
		return nil, nil
	}}

	body, ctype := multipartBody(t, bobFields, part{"avatar", "a.png", "image/png", strings.Repeat("x", 2<<10)})
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", ctype)
	rr := httptest.NewRecorder()
	newHandlers(u).Register(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.False(t, decode(t, rr).Success)
}

func TestRegister_NotMultipart_Rejected(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"username":"bob"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	newHandlers(&fakeUsers{}).Register(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRegister_ServiceErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", &service.ValidationError{Fields: []string{"avatar"}, Reason: "invalid or missing fields"}, http.StatusBadRequest},
		{"conflict", fmt.Errorf("op: %w", service.ErrConflict), http.StatusUnauthorized},
		{"upstream", fmt.Errorf("op: %w", service.ErrUpstream), http.StatusBadGateway},
		{"upstream_timeout", fmt.Errorf("op: %w", service.ErrUpstreamTimeout), http.StatusGatewayTimeout},
		{"internal", fmt.Errorf("%w: %w", service.ErrInternal, fmt.Errorf("pq: relation users")), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			u := &fakeUsers{register: func(context.Context, service.RegisterInput) (*models.PublicUser, error) {
				return nil, tc.err
			}}

			body, ctype := multipartBody(t, bobFields)
			req := httptest.NewRequest(http.MethodPost, "/", body)
			req.Header.Set("Content-Type", ctype)
			rr := httptest.NewRecorder()
			newHandlers(u).Register(rr, req)

			require.Equal(t, tc.status, rr.Code)
			require.NotContains(t, rr.Body.String(), "pq:")
			require.NotContains(t, rr.Body.String(), "bob@x.com")
		})
	}
}

func TestLogin_OK_SetsCookiesAndBody(t *testing.T) {
	u := &fakeUsers{login: func(_ context.Context, username, email, password string) (*models.PublicUser, *models.TokenPair, error) {
		require.Equal(t, "bob", username)
		require.Empty(t, email)
		require.Equal(t, "pw123", password)
		return &models.PublicUser{Username: "bob"}, testPair, nil
	}}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"username":"bob","password":"pw123"}`))
	rr := httptest.NewRecorder()
	newHandlers(u).Login(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var data loginResponse
	require.NoError(t, json.Unmarshal(decode(t, rr).Data, &data))
	require.Equal(t, "bob", data.User.Username)
	require.Equal(t, "acc-1", data.AccessToken)
	require.Equal(t, "ref-1", data.RefreshToken)

	cookies := cookiesByName(rr)
	require.Equal(t, "acc-1", cookies[CookieAccessToken].Value)
	require.Equal(t, "ref-1", cookies[CookieRefreshToken].Value)
	for _, c := range cookies {
		require.True(t, c.HttpOnly)
		require.False(t, c.Secure)
	}
}

func TestLogin_CookieAttributesFromConfig(t *testing.T) {
	u := &fakeUsers{login: func(context.Context, string, string, string) (*models.PublicUser, *models.TokenPair, error) {
		return &models.PublicUser{}, testPair, nil
	}}
	h := New(u, config.CookieConfig{Secure: true, SameSite: "Strict"}, 0)

	rr := httptest.NewRecorder()
	h.Login(rr, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"bob@x.com","password":"pw"}`)))

	c := cookiesByName(rr)[CookieAccessToken]
	require.True(t, c.Secure)
	require.Equal(t, http.SameSiteStrictMode, c.SameSite)
}

func TestLogin_BadBody(t *testing.T) {
	for _, body := range []string{`not json`, `{"username":"bob","admin":true}`, strings.Repeat("a", maxJSONBody+1)} {
		rr := httptest.NewRecorder()
		newHandlers(&fakeUsers{}).Login(rr, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))
		require.Equal(t, http.StatusBadRequest, rr.Code)
	}
}

func TestLogin_Unauthorized_NoCookies(t *testing.T) {
	u := &fakeUsers{login: func(context.Context, string, string, string) (*models.PublicUser, *models.TokenPair, error) {
		return nil, nil, fmt.Errorf("op: %w", service.ErrUnauthorized)
	}}

	rr := httptest.NewRecorder()
	newHandlers(u).Login(rr, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"username":"bob","password":"x"}`)))

	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Empty(t, rr.Result().Cookies())
}

func TestRefresh_FromCookie(t *testing.T) {
	u := &fakeUsers{rotate: func(_ context.Context, presented string) (*models.TokenPair, error) {
		require.Equal(t, "R1", presented)
		return &models.TokenPair{AccessToken: "A2", RefreshToken: "R2"}, nil
	}}

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieRefreshToken, Value: "R1"})
	rr := httptest.NewRecorder()
	newHandlers(u).RefreshToken(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var data tokensResponse
	require.NoError(t, json.Unmarshal(decode(t, rr).Data, &data))
	require.Equal(t, "R2", data.RefreshToken)
	require.Equal(t, "R2", cookiesByName(rr)[CookieRefreshToken].Value)
	require.Equal(t, "A2", cookiesByName(rr)[CookieAccessToken].Value)
}

func TestRefresh_FromBody(t *testing.T) {
	u := &fakeUsers{rotate: func(_ context.Context, presented string) (*models.TokenPair, error) {
		require.Equal(t, "R1", presented)
		return &models.TokenPair{AccessToken: "A2", RefreshToken: "R2"}, nil
	}}

	rr := httptest.NewRecorder()
	newHandlers(u).RefreshToken(rr, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"refreshToken":"R1"}`)))
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestRefresh_Missing_Unauthorized(t *testing.T) {
	for _, body := range []string{"", `{}`, `{"refreshToken":"  "}`, `garbage`} {
		rr := httptest.NewRecorder()
		newHandlers(&fakeUsers{}).RefreshToken(rr, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))
		require.Equal(t, http.StatusUnauthorized, rr.Code, "body %q", body)
		require.Equal(t, "unauthorized request", decode(t, rr).Message)
	}
}

func TestRefresh_Stale_Unauthorized(t *testing.T) {
	u := &fakeUsers{rotate: func(context.Context, string) (*models.TokenPair, error) {
		return nil, fmt.Errorf("op: %w", service.ErrUnauthorized)
	}}

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieRefreshToken, Value: "R1"})
	rr := httptest.NewRecorder()
	newHandlers(u).RefreshToken(rr, req)

	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Empty(t, rr.Result().Cookies())
}

func TestLogout_ClearsCookies(t *testing.T) {
	id := uuid.New()
	var loggedOut uuid.UUID
	u := &fakeUsers{logout: func(_ context.Context, got uuid.UUID) error {
		loggedOut = got
		return nil
	}}

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req = req.WithContext(middleware.WithPrincipal(req.Context(), &models.PublicUser{ID: id}))
	rr := httptest.NewRecorder()
	newHandlers(u).Logout(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, id, loggedOut)

	cookies := cookiesByName(rr)
	require.Len(t, cookies, 2)
	for _, c := range cookies {
		require.Empty(t, c.Value)
		require.Negative(t, c.MaxAge)
	}
}

func TestLogout_NoPrincipal_Unauthorized(t *testing.T) {
	rr := httptest.NewRecorder()
	newHandlers(&fakeUsers{}).Logout(rr, httptest.NewRequest(http.MethodPost, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestGetByID(t *testing.T) {
	id := uuid.New()
	u := &fakeUsers{byID: func(_ context.Context, raw string) (*models.PublicUser, error) {
		if raw == id.String() {
			return &models.PublicUser{ID: id, Username: "bob"}, nil
		}
		return nil, fmt.Errorf("op: %w", service.ErrNotFound)
	}}

	r := chi.NewRouter()
	r.Get("/users/{id}", newHandlers(u).GetByID)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/users/"+id.String(), nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, string(decode(t, rr).Data), `"username":"bob"`)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/users/"+uuid.NewString(), nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHealthCheck(t *testing.T) {
	rr := httptest.NewRecorder()
	newHandlers(&fakeUsers{}).HealthCheck(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, decode(t, rr).Success)
}
