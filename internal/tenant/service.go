// Package tenant はレストランアカウントの登録・ログイン・プロフィール管理を提供する。
package tenant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/hitoshi/menudigital/internal/model"
	"github.com/hitoshi/menudigital/internal/repository"
	"github.com/hitoshi/menudigital/internal/security"
)

// maxPasswordBytes はbcryptが受け付けるパスワードの最大バイト数。
const maxPasswordBytes = 72

// PasswordHasher はパスワードのハッシュ生成と照合のインターフェース。
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(hash, plain string) bool
	VerifyAbsent(plain string) bool
}

// TokenIssuer はテナントIDに対するトークンを発行する。
type TokenIssuer interface {
	Issue(tenantID string) (string, error)
}

// TrialGranter は新規テナントに初期購読を付与する。
type TrialGranter interface {
	InitialGrant(t *model.Tenant, now time.Time)
}

// RegisterInput は登録リクエストの入力。
type RegisterInput struct {
	DisplayName string `json:"restaurantName" validate:"required,max=100"`
	Email       string `json:"email" validate:"required,email,max=254"`
	Password    string `json:"password" validate:"required,min=6,max=72"`
}

// LoginInput はログインリクエストの入力。
type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// ProfileUpdate はプロフィール更新の入力。nilのフィールドは変更しない。
// Logoに空文字列を指定するとロゴを削除する。
type ProfileUpdate struct {
	DisplayName *string `json:"restaurantName" validate:"omitempty,max=100"`
	Logo        *string `json:"logo" validate:"omitempty,max=2048"`
	ThemeColor  *string `json:"themeColor" validate:"omitempty,hexcolor"`
}

// AuthResult は登録・ログイン・プロフィール更新の結果。
type AuthResult struct {
	Tenant *model.Tenant `json:"tenant"`
	Token  string        `json:"token"`
}

// ServiceConfig はServiceの設定。
type ServiceConfig struct {
	Now    func() time.Time
	Logger *slog.Logger
}

// Service はテナント管理のサービス層。
type Service struct {
	repo      repository.TenantRepository
	hasher    PasswordHasher
	tokens    TokenIssuer
	trial     TrialGranter
	sanitizer security.TextSanitizer
	validate  *validator.Validate
	now       func() time.Time
	logger    *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	repo repository.TenantRepository,
	hasher PasswordHasher,
	tokens TokenIssuer,
	trial TrialGranter,
	sanitizer security.TextSanitizer,
	cfg ServiceConfig,
) *Service {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		hasher:    hasher,
		tokens:    tokens,
		trial:     trial,
		sanitizer: sanitizer,
		validate:  validator.New(),
		now:       cfg.Now,
		logger:    cfg.Logger,
	}
}

// NormalizeEmail はメールアドレスの前後の空白を除去して小文字化する。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register は新規テナントを登録し、無料トライアルを付与してトークンを発行する。
// メールアドレス、スラッグの順に重複を確認し、それぞれ異なるConflictを返す。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.DisplayName = s.sanitizer.SanitizeText(in.DisplayName)
	in.Email = NormalizeEmail(in.Email)
	if err := s.validate.Struct(&in); err != nil {
		return nil, model.NewInvalidRequestError(describeValidation(err))
	}
	// validatorのmaxは文字数で数えるため、マルチバイト文字を含む場合はここで弾く
	if len(in.Password) > maxPasswordBytes {
		return nil, model.NewInvalidRequestError(fmt.Sprintf("password must be at most %d bytes", maxPasswordBytes))
	}

	slug := Slugify(in.DisplayName)
	if slug == "" {
		return nil, model.NewInvalidRequestError("restaurantName must contain letters or digits")
	}

	existing, err := s.repo.FindByEmail(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("メールアドレスの確認に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewEmailTakenError()
	}

	existing, err = s.repo.FindBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("スラッグの確認に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewSlugTakenError(slug)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("パスワードのハッシュ化に失敗しました: %w", err)
	}

	now := s.now()
	t := &model.Tenant{
		ID:          uuid.NewString(),
		DisplayName: in.DisplayName,
		Email:       in.Email,
		SecretHash:  hash,
		Slug:        slug,
		ThemeColor:  model.DefaultThemeColor,
		CreatedAt:   now,
	}
	s.trial.InitialGrant(t, now)

	if err := s.repo.Create(ctx, t); err != nil {
		// 事前確認と挿入の間に別のリクエストが登録した場合
		switch {
		case errors.Is(err, repository.ErrDuplicateEmail):
			return nil, model.NewEmailTakenError()
		case errors.Is(err, repository.ErrDuplicateSlug):
			return nil, model.NewSlugTakenError(slug)
		}
		return nil, fmt.Errorf("テナントの作成に失敗しました: %w", err)
	}

	token, err := s.tokens.Issue(t.ID)
	if err != nil {
		return nil, fmt.Errorf("トークンの発行に失敗しました: %w", err)
	}

	s.logger.Info("tenant registered",
		slog.String("tenant_id", t.ID),
		slog.String("slug", t.Slug),
	)
	return &AuthResult{Tenant: t, Token: token}, nil
}

// Login はメールアドレスとパスワードを照合してトークンを発行する。
// アカウントが存在しない場合とパスワード不一致の場合は同じエラーを返す。
func (s *Service) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	if err := s.validate.Struct(&in); err != nil {
		return nil, model.NewInvalidRequestError(describeValidation(err))
	}

	t, err := s.repo.FindByEmail(ctx, NormalizeEmail(in.Email))
	if err != nil {
		return nil, fmt.Errorf("テナントの取得に失敗しました: %w", err)
	}
	if t == nil {
		s.hasher.VerifyAbsent(in.Password)
		return nil, model.NewBadLoginError()
	}
	if !s.hasher.Verify(t.SecretHash, in.Password) {
		return nil, model.NewBadLoginError()
	}

	token, err := s.tokens.Issue(t.ID)
	if err != nil {
		return nil, fmt.Errorf("トークンの発行に失敗しました: %w", err)
	}

	s.logger.Info("tenant logged in", slog.String("tenant_id", t.ID))
	return &AuthResult{Tenant: t, Token: token}, nil
}

// GetProfile はテナントのプロフィールを返す。
func (s *Service) GetProfile(ctx context.Context, tenantID string) (*model.Tenant, error) {
	t, err := s.repo.FindByID(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("テナントの取得に失敗しました: %w", err)
	}
	if t == nil {
		return nil, model.NewTenantNotFoundError()
	}
	return t, nil
}

// UpdateProfile は店舗名・ロゴ・テーマカラーを更新し、新しいトークンを発行する。
// スラッグとメールアドレスは変更しない。
func (s *Service) UpdateProfile(ctx context.Context, tenantID string, in ProfileUpdate) (*AuthResult, error) {
	if err := s.validate.Struct(&in); err != nil {
		return nil, model.NewInvalidRequestError(describeValidation(err))
	}

	t, err := s.GetProfile(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	if in.DisplayName != nil {
		if name := s.sanitizer.SanitizeText(*in.DisplayName); name != "" {
			t.DisplayName = name
		}
	}
	if in.Logo != nil {
		logo := s.sanitizer.SanitizeURL(*in.Logo)
		if logo == "" && strings.TrimSpace(*in.Logo) != "" {
			return nil, model.NewInvalidRequestError("logo must be an http or https URL")
		}
		t.Logo = logo
	}
	if in.ThemeColor != nil && *in.ThemeColor != "" {
		t.ThemeColor = strings.ToLower(*in.ThemeColor)
	}

	if err := s.repo.Save(ctx, t); err != nil {
		if errors.Is(err, repository.ErrConcurrentUpdate) {
			return nil, model.NewServiceUnavailableError()
		}
		return nil, fmt.Errorf("プロフィールの更新に失敗しました: %w", err)
	}

	token, err := s.tokens.Issue(t.ID)
	if err != nil {
		return nil, fmt.Errorf("トークンの発行に失敗しました: %w", err)
	}
	return &AuthResult{Tenant: t, Token: token}, nil
}

// describeValidation はvalidatorのエラーを利用者向けの短い説明に変換する。
func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid input"
	}
	fe := verrs[0]
	field := fieldName(fe.StructField())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "hexcolor":
		return field + " must be a hex color such as #4f46e5"
	default:
		return field + " is invalid"
	}
}

func fieldName(structField string) string {
	switch structField {
	case "DisplayName":
		return "restaurantName"
	case "ThemeColor":
		return "themeColor"
	default:
		return strings.ToLower(structField[:1]) + structField[1:]
	}
}
