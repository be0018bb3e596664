// Package auth はパスワード認証によるサインアップ・サインインとJWTの発行・検証を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/localbite/internal/model"
	"github.com/hitoshi/localbite/internal/repository"
	"github.com/hitoshi/localbite/internal/security"
	"github.com/hitoshi/localbite/internal/validation"
)

// DefaultBcryptCost はパスワードハッシュのコスト。
const DefaultBcryptCost = 12

// SignupInput はサインアップの入力。
type SignupInput struct {
	Fullname string `json:"fullname" validate:"notblank,max=50"`
	Username string `json:"username" validate:"required,min=3,max=30,alphanum"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// SigninInput はサインインの入力。identifierはメールアドレスまたはユーザー名。
type SigninInput struct {
	Identifier string `json:"identifier" validate:"notblank"`
	Password   string `json:"password" validate:"required"`
}

// Session は認証に成功したユーザーと発行したトークン。
type Session struct {
	User  *model.User
	Token string
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	users      repository.UserRepository
	tokens     *TokenManager
	sanitizer  security.TextSanitizer
	logger     *slog.Logger
	bcryptCost int

	// dummyHash は存在しないユーザーでも照合時間を揃えるために使う。
	dummyHash []byte
}

// NewService はServiceを生成する。bcryptCostが0以下の場合はDefaultBcryptCostを使う。
func NewService(
	users repository.UserRepository,
	tokens *TokenManager,
	sanitizer security.TextSanitizer,
	logger *slog.Logger,
	bcryptCost int,
) *Service {
	if bcryptCost <= 0 {
		bcryptCost = DefaultBcryptCost
	}
	dummy, _ := bcrypt.GenerateFromPassword([]byte("localbite-dummy-password"), bcryptCost)
	return &Service{
		users:      users,
		tokens:     tokens,
		sanitizer:  sanitizer,
		logger:     logger,
		bcryptCost: bcryptCost,
		dummyHash:  dummy,
	}
}

// Signup はユーザーを作成してトークンを発行する。
// メールアドレスは小文字化して保存する。メールアドレスまたはユーザー名が使用済みの場合はConflictErrorを返す。
func (s *Service) Signup(ctx context.Context, in SignupInput) (*Session, error) {
	in.Fullname = s.sanitizer.Sanitize(in.Fullname)
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("パスワードのハッシュ化に失敗しました: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("ユーザーIDの生成に失敗しました: %w", err)
	}
	now := time.Now()
	user := &model.User{
		ID:           id.String(),
		Email:        in.Email,
		Username:     in.Username,
		Fullname:     in.Fullname,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if conflict := ConflictFromDuplicate(err); conflict != nil {
			return nil, conflict
		}
		return nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("ユーザーを登録しました",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)
	return &Session{User: user, Token: token}, nil
}

// Signin は認証情報を照合してトークンを発行する。
// identifierに@が含まれる場合はメールアドレス、それ以外はユーザー名として検索する。
// ユーザーが存在しない場合とパスワード不一致は区別しない。
func (s *Service) Signin(ctx context.Context, in SigninInput) (*Session, error) {
	in.Identifier = strings.TrimSpace(in.Identifier)
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}

	var (
		user *model.User
		err  error
	)
	if strings.Contains(in.Identifier, "@") {
		user, err = s.users.FindByEmail(ctx, strings.ToLower(in.Identifier))
	} else {
		user, err = s.users.FindByUsername(ctx, in.Identifier)
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}

	if user == nil {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(in.Password))
		return nil, model.NewInvalidCredentialsError()
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		s.logger.Info("パスワードが一致しません", slog.String("user_id", user.ID))
		return nil, model.NewInvalidCredentialsError()
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Token: token}, nil
}

// Authenticate はトークンを検証し、ユーザーIDを返す。
func (s *Service) Authenticate(token string) (string, error) {
	return s.tokens.Verify(token)
}

// ConflictFromDuplicate は一意制約違反をどの値が重複したかに応じたConflictErrorに変換する。
// 一意制約違反でない場合はnilを返す。
func ConflictFromDuplicate(err error) *model.APIError {
	var dup *repository.DuplicateKeyError
	if !errors.As(err, &dup) {
		return nil
	}
	switch dup.Constraint {
	case repository.ConstraintUserEmail:
		return model.NewConflictError("このメールアドレス")
	case repository.ConstraintUserUsername:
		return model.NewConflictError("このユーザー名")
	default:
		return model.NewConflictError("この値")
	}
}
