package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"

	"github.com/pribylovaa/shop-auth/internal/metrics"
	"github.com/pribylovaa/shop-auth/internal/models"
	"github.com/pribylovaa/shop-auth/internal/pkg/log"
	"github.com/pribylovaa/shop-auth/internal/pkg/redact"
	"github.com/pribylovaa/shop-auth/internal/saga"
	"github.com/pribylovaa/shop-auth/internal/storage"
)

// Имена шагов саги регистрации.
const (
	sagaRegister = "register"

	StepValidate        = "validate"
	StepCheckUniqueness = "check_uniqueness"
	StepUploadAvatar    = "upload_avatar"
	StepUploadCover     = "upload_cover"
	StepCreateUser      = "create_user"
	StepVerifyUser      = "verify_user"
)

// bcrypt учитывает только первые 72 байта пароля.
const maxPasswordBytes = 72

// RegisterInput — данные формы регистрации.
// Avatar обязателен, CoverImage — нет.
type RegisterInput struct {
	Username   string
	Email      string
	FullName   string
	Password   string
	Avatar     *models.MediaFile
	CoverImage *models.MediaFile
}

// registrationForm — нормализованная форма; json-теги задают имена полей в ошибках.
type registrationForm struct {
	Username string            `json:"username"`
	Email    string            `json:"email"`
	FullName string            `json:"fullName"`
	Password string            `json:"password"`
	Avatar   *models.MediaFile `json:"avatar"`
}

func (f registrationForm) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Username, validation.Required),
		validation.Field(&f.Email, validation.Required, is.Email),
		validation.Field(&f.FullName, validation.Required),
		validation.Field(&f.Password, validation.Required, validation.By(notBlank), validation.By(maxBytes(maxPasswordBytes))),
		validation.Field(&f.Avatar, validation.NotNil),
	)
}

// notBlank отклоняет строки из одних пробелов; сам пароль не обрезается.
func notBlank(value interface{}) error {
	s, _ := value.(string)
	if strings.TrimSpace(s) == "" {
		return errors.New("cannot be blank")
	}

	return nil
}

func maxBytes(n int) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if len(s) > n {
			return fmt.Errorf("must be at most %d bytes long", n)
		}

		return nil
	}
}

// Register создаёт пользователя сагой:
// validate → check_uniqueness → upload_avatar → upload_cover → create_user → verify_user.
//
// Ошибка обязательного шага откатывает выполненные шаги в обратном порядке
// (удаление загруженных медиа и созданной записи). Ошибка загрузки обложки
// не прерывает регистрацию. Ошибки компенсаций логируются и не подменяют
// исходную ошибку.
//
// Предварительная проверка уникальности не атомарна с созданием:
// окончательно конфликт определяет уникальный индекс хранилища,
// и он возвращается тем же ErrConflict.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.PublicUser, error) {
	const op = "service.registration.Register"

	var (
		form    registrationForm
		avatar  models.MediaAsset
		cover   models.MediaAsset
		user    *models.User
		created *models.User
	)

	sg := &saga.Saga{
		Name:                sagaRegister,
		CompensationTimeout: s.mcfg.Timeout,
		OnCompensation: func(step string, err error) {
			metrics.ObserveCompensation(sagaRegister, step, err)
		},
		Steps: []saga.Step{
			{
				Name: StepValidate,
				Do: func(context.Context) error {
					form = registrationForm{
						Username: normalizeUsername(in.Username),
						Email:    normalizeEmail(in.Email),
						FullName: strings.TrimSpace(in.FullName),
						Password: in.Password,
						Avatar:   in.Avatar,
					}

					return validationError(form.Validate())
				},
			},
			{
				Name: StepCheckUniqueness,
				Do: func(ctx context.Context) error {
					exists, err := s.users.ExistsByUsernameOrEmail(ctx, form.Username, form.Email)
					if err != nil {
						return err
					}

					if exists {
						return ErrConflict
					}

					return nil
				},
			},
			{
				Name: StepUploadAvatar,
				Do: func(ctx context.Context) error {
					a, err := s.upload(ctx, *in.Avatar)
					if err != nil {
						return err
					}

					avatar = a
					return nil
				},
				Compensate: func(ctx context.Context) error {
					return s.media.Delete(ctx, avatar.PublicID)
				},
			},
			{
				Name:     StepUploadCover,
				Optional: true,
				Do: func(ctx context.Context) error {
					if in.CoverImage == nil {
						return nil
					}

					c, err := s.upload(ctx, *in.CoverImage)
					if err != nil {
						return err
					}

					cover = c
					return nil
				},
				Compensate: func(ctx context.Context) error {
					if cover.IsZero() {
						return nil
					}

					return s.media.Delete(ctx, cover.PublicID)
				},
			},
			{
				Name: StepCreateUser,
				Do: func(ctx context.Context) error {
					hash, err := hashPassword(form.Password, s.cfg.BcryptCost)
					if err != nil {
						return fmt.Errorf("%w: %w", ErrInternal, err)
					}

					now := s.now()
					user = &models.User{
						ID:           uuid.New(),
						Username:     form.Username,
						Email:        form.Email,
						PasswordHash: hash,
						FullName:     form.FullName,
						Avatar:       avatar,
						CoverImage:   cover,
						CreatedAt:    now,
						UpdatedAt:    now,
					}

					if err := s.users.CreateUser(ctx, user); err != nil {
						if errors.Is(err, storage.ErrAlreadyExists) {
							return fmt.Errorf("%w: %w", ErrConflict, err)
						}

						return fmt.Errorf("%w: %w", ErrInternal, err)
					}

					return nil
				},
				Compensate: func(ctx context.Context) error {
					err := s.users.DeleteUser(ctx, user.ID)
					if errors.Is(err, storage.ErrNotFound) {
						return nil
					}

					return err
				},
			},
			{
				Name: StepVerifyUser,
				Do: func(ctx context.Context) error {
					u, err := s.users.UserByID(ctx, user.ID)
					if err != nil {
						if errors.Is(err, storage.ErrNotFound) {
							return fmt.Errorf("%w: user was not persisted", ErrInternal)
						}

						return fmt.Errorf("%w: %w", ErrInternal, err)
					}

					created = u
					return nil
				},
			},
		},
	}

	report, err := sg.Run(ctx)
	if err != nil {
		log.From(ctx).Warn("registration_failed",
			slog.String("op", op),
			slog.String("failed_step", failedStep(report)),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.From(ctx).Info("user_registered",
		slog.String("op", op),
		slog.String("user_id", created.ID.String()),
		slog.String("email", redact.Email(created.Email)),
		slog.Bool("has_cover", !created.CoverImage.IsZero()),
		slog.Bool("cover_skipped", report.State(StepUploadCover) == saga.StateSkipped),
	)

	return created.Public(), nil
}

// failedStep — имя шага, на котором остановилась сага.
func failedStep(r saga.Report) string {
	for _, st := range r.Steps {
		if st.State == saga.StateFailed {
			return st.Name
		}
	}

	return ""
}

// upload загружает файл с таймаутом хранилища медиа.
// Истечение собственного таймаута — ErrUpstreamTimeout, отказ — ErrUpstream,
// отмена запроса клиента возвращается как есть.
func (s *Service) upload(ctx context.Context, f models.MediaFile) (models.MediaAsset, error) {
	uctx, cancel := ctx, context.CancelFunc(func() {})
	if s.mcfg.Timeout > 0 {
		uctx, cancel = context.WithTimeout(ctx, s.mcfg.Timeout)
	}
	defer cancel()

	asset, err := s.media.Upload(uctx, f)
	if err == nil {
		return asset, nil
	}

	switch {
	case ctx.Err() != nil:
		return models.MediaAsset{}, fmt.Errorf("%w: %w", ctx.Err(), err)
	case errors.Is(uctx.Err(), context.DeadlineExceeded):
		return models.MediaAsset{}, fmt.Errorf("%w: %w", ErrUpstreamTimeout, err)
	default:
		return models.MediaAsset{}, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
}

// validationError переводит ошибки ozzo-validation в *ValidationError.
func validationError(err error) error {
	if err == nil {
		return nil
	}

	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %w", ErrInternal, err)
	}

	fields := make([]string, 0, len(verrs))
	for name := range verrs {
		fields = append(fields, name)
	}
	sort.Strings(fields)

	return &ValidationError{Fields: fields, Reason: "invalid or missing fields"}
}
