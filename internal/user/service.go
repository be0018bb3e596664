// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/localbite/internal/auth"
	"github.com/hitoshi/localbite/internal/model"
	"github.com/hitoshi/localbite/internal/repository"
	"github.com/hitoshi/localbite/internal/security"
	"github.com/hitoshi/localbite/internal/validation"
)

// LocationResolver は自由記述のロケーションをLocationへ解決する。
type LocationResolver interface {
	ResolveOrCreate(ctx context.Context, locality, area, country string) (*model.Location, error)
}

// LocationInput はデフォルトロケーションの入力。
type LocationInput struct {
	Locality string `json:"locality" validate:"max=100"`
	Area     string `json:"area" validate:"max=100"`
	Country  string `json:"country" validate:"max=100"`
}

// ProfileInput はプロフィール更新の入力。nilのフィールドは変更しない。
type ProfileInput struct {
	Fullname *string        `json:"fullname" validate:"omitempty,notblank,max=50"`
	Username *string        `json:"username" validate:"omitempty,min=3,max=30,alphanum"`
	Email    *string        `json:"email" validate:"omitempty,email,max=254"`
	Bio      *string        `json:"bio" validate:"omitempty,max=200"`
	Location *LocationInput `json:"location"`
}

// Service はユーザー管理のサービス層。
type Service struct {
	users     repository.UserRepository
	locations repository.LocationRepository
	recipes   repository.RecipeRepository
	favs      repository.FavRepository
	resolver  LocationResolver
	sanitizer security.TextSanitizer
	urlGuard  security.URLGuard
	logger    *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	users repository.UserRepository,
	locations repository.LocationRepository,
	recipes repository.RecipeRepository,
	favs repository.FavRepository,
	resolver LocationResolver,
	sanitizer security.TextSanitizer,
	urlGuard security.URLGuard,
	logger *slog.Logger,
) *Service {
	return &Service{
		users:     users,
		locations: locations,
		recipes:   recipes,
		favs:      favs,
		resolver:  resolver,
		sanitizer: sanitizer,
		urlGuard:  urlGuard,
		logger:    logger,
	}
}

// Me はログイン中のユーザーのプロフィールを返す。
func (s *Service) Me(ctx context.Context, userID string) (*model.UserProfile, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if u == nil {
		return nil, model.NewUserNotFoundError()
	}
	return s.profileOf(ctx, u)
}

// Profile はユーザー名で公開プロフィールを返す。ユーザー名の大文字小文字は区別しない。
func (s *Service) Profile(ctx context.Context, username string) (*model.UserProfile, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, model.NewUserNotFoundError()
	}
	u, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if u == nil {
		return nil, model.NewUserNotFoundError()
	}
	return s.profileOf(ctx, u)
}

// UpdateProfile はプロフィールを部分更新する。
// locationを指定した場合はロケーションを解決してデフォルトロケーションに設定する。
func (s *Service) UpdateProfile(ctx context.Context, userID string, in ProfileInput) (*model.UserProfile, error) {
	if in.Fullname != nil {
		v := s.sanitizer.Sanitize(*in.Fullname)
		in.Fullname = &v
	}
	if in.Bio != nil {
		v := s.sanitizer.Sanitize(*in.Bio)
		in.Bio = &v
	}
	if in.Username != nil {
		v := strings.TrimSpace(*in.Username)
		in.Username = &v
	}
	if in.Email != nil {
		v := strings.ToLower(strings.TrimSpace(*in.Email))
		in.Email = &v
	}
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}

	upd := model.UserUpdate{
		Fullname: in.Fullname,
		Username: in.Username,
		Email:    in.Email,
		Bio:      in.Bio,
	}
	if in.Location != nil {
		loc, err := s.resolver.ResolveOrCreate(ctx, in.Location.Locality, in.Location.Area, in.Location.Country)
		if err != nil {
			return nil, err
		}
		upd.DefaultLocationID = &loc.ID
	}

	if err := s.update(ctx, userID, upd); err != nil {
		return nil, err
	}
	return s.Me(ctx, userID)
}

// UpdateProfilePic はプロフィール画像のURLを更新する。URLは公開ホストを指している必要がある。
func (s *Service) UpdateProfilePic(ctx context.Context, userID, rawURL string) (*model.UserProfile, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, model.NewValidationError("profilePicは必須です")
	}
	if err := s.urlGuard.ValidatePublicURL(rawURL); err != nil {
		return nil, model.NewInvalidURLError(err.Error())
	}

	if err := s.update(ctx, userID, model.UserUpdate{ProfilePicURL: &rawURL}); err != nil {
		return nil, err
	}
	return s.Me(ctx, userID)
}

// Delete はユーザーの退会処理を実行する。
// お気に入り済みレシピのいいね数を減らしてからユーザーを削除する。
// 作成したレシピとお気に入りはCASCADE削除される。
func (s *Service) Delete(ctx context.Context, userID string) error {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if u == nil {
		return model.NewUserNotFoundError()
	}

	if err := s.users.DeleteWithFavs(ctx, userID); err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	s.logger.Info("退会処理が完了しました",
		slog.String("user_id", userID),
	)
	return nil
}

func (s *Service) update(ctx context.Context, userID string, upd model.UserUpdate) error {
	if err := s.users.Update(ctx, userID, upd); err != nil {
		if conflict := auth.ConflictFromDuplicate(err); conflict != nil {
			return conflict
		}
		return fmt.Errorf("プロフィールの更新に失敗しました: %w", err)
	}
	return nil
}

// profileOf はデフォルトロケーション・お気に入り・レシピ数を結合する。
func (s *Service) profileOf(ctx context.Context, u *model.User) (*model.UserProfile, error) {
	p := &model.UserProfile{User: *u}

	if u.DefaultLocationID != "" {
		loc, err := s.locations.FindByID(ctx, u.DefaultLocationID)
		if err != nil {
			return nil, fmt.Errorf("ロケーションの取得に失敗しました: %w", err)
		}
		p.DefaultLocation = loc
	}

	favs, err := s.favs.ListByUser(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("お気に入りの取得に失敗しました: %w", err)
	}
	p.Favs = favs

	count, err := s.recipes.CountByAuthor(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("レシピ数の取得に失敗しました: %w", err)
	}
	p.RecipeCount = count

	return p, nil
}
