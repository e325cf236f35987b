package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/pribylovaa/shop-auth/internal/errors"
	"github.com/pribylovaa/shop-auth/internal/http/middleware"
	"github.com/pribylovaa/shop-auth/internal/models"
	"github.com/pribylovaa/shop-auth/internal/service"
)

const (
	// Поля формы сверх файлов.
	multipartFieldsLimit = 1 << 20
	// Сколько формы держать в памяти, остальное уходит во временные файлы.
	multipartMemory = 8 << 20

	defaultMaxUpload = 5 << 20
)

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type loginResponse struct {
	User         *models.PublicUser `json:"user"`
	AccessToken  string             `json:"accessToken"`
	RefreshToken string             `json:"refreshToken"`
}

type tokensResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Register — POST /users/register, multipart-форма:
// username, email, fullName, password, avatar (обязателен), coverImage.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	maxFile := h.MaxUploadBytes
	if maxFile <= 0 {
		maxFile = defaultMaxUpload
	}

	r.Body = http.MaxBytesReader(w, r.Body, 2*maxFile+multipartFieldsLimit)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			apierrors.WriteError(w, r, &service.ValidationError{Reason: "request body too large"})
			return
		}

		apierrors.WriteError(w, r, &service.ValidationError{Reason: "invalid multipart form"})
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	in := service.RegisterInput{
		Username: r.FormValue("username"),
		Email:    r.FormValue("email"),
		FullName: r.FormValue("fullName"),
		Password: r.FormValue("password"),
	}

	var err error
	var closers []multipart.File
	defer func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}()

	for _, field := range []struct {
		name string
		dst  **models.MediaFile
	}{
		{"avatar", &in.Avatar},
		{"coverImage", &in.CoverImage},
	} {
		var f multipart.File
		*field.dst, f, err = formFile(r.MultipartForm, field.name, maxFile)
		if err != nil {
			apierrors.WriteError(w, r, err)
			return
		}
		if f != nil {
			closers = append(closers, f)
		}
	}

	user, err := h.Users.Register(r.Context(), in)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	apierrors.WriteJSON(w, http.StatusOK, user, "User registered successfully")
}

// formFile открывает не более одного файла из поля формы.
// Отсутствие файла — (nil, nil, nil): обязательность проверяет сервис.
func formFile(form *multipart.Form, field string, maxSize int64) (*models.MediaFile, multipart.File, error) {
	headers := form.File[field]
	switch {
	case len(headers) == 0:
		return nil, nil, nil
	case len(headers) > 1:
		return nil, nil, &service.ValidationError{Fields: []string{field}, Reason: "only one file allowed"}
	case headers[0].Size > maxSize:
		return nil, nil, &service.ValidationError{Fields: []string{field}, Reason: "file too large"}
	}

	fh := headers[0]
	f, err := fh.Open()
	if err != nil {
		return nil, nil, &service.ValidationError{Fields: []string{field}, Reason: "unreadable file"}
	}

	return &models.MediaFile{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Body:        f,
	}, f, nil
}

// Login — POST /users/login. Токены возвращаются в теле и в httpOnly cookie.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := decodeStrict(w, r, &in); err != nil {
		apierrors.WriteError(w, r, invalidBody())
		return
	}

	user, pair, err := h.Users.Login(r.Context(), in.Username, in.Email, in.Password)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	h.setTokenCookies(w, pair)
	apierrors.WriteJSON(w, http.StatusOK, loginResponse{
		User:         user,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, "User logged in successfully")
}

// RefreshToken — POST /users/refresh-token.
// Токен берётся из cookie refreshToken, иначе из тела {"refreshToken": "..."}.
func (h *Handlers) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var presented string
	if c, err := r.Cookie(CookieRefreshToken); err == nil {
		presented = strings.TrimSpace(c.Value)
	}

	if presented == "" && r.ContentLength != 0 {
		var in refreshRequest
		if err := decodeStrict(w, r, &in); err != nil {
			apierrors.WriteError(w, r, service.ErrUnauthorized)
			return
		}
		presented = strings.TrimSpace(in.RefreshToken)
	}

	if presented == "" {
		apierrors.WriteError(w, r, service.ErrUnauthorized)
		return
	}

	pair, err := h.Users.RotateRefreshToken(r.Context(), presented)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	h.setTokenCookies(w, pair)
	apierrors.WriteJSON(w, http.StatusOK, tokensResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, "Access token refreshed successfully")
}

// Logout — POST /users/logout (за SessionGuard).
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	p, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		apierrors.WriteError(w, r, service.ErrUnauthorized)
		return
	}

	if err := h.Users.Logout(r.Context(), p.ID); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	h.clearTokenCookies(w)
	apierrors.WriteJSON(w, http.StatusOK, struct{}{}, "User logged out successfully")
}

// GetByID — GET /users/{id} (за SessionGuard).
func (h *Handlers) GetByID(w http.ResponseWriter, r *http.Request) {
	user, err := h.Users.UserByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	apierrors.WriteJSON(w, http.StatusOK, user, "User fetched successfully")
}
