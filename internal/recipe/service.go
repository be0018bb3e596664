// Package recipe はレシピの作成・編集・削除、フィード検索、いいね操作のドメインロジックを提供する。
package recipe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/localbite/internal/metrics"
	"github.com/hitoshi/localbite/internal/model"
	"github.com/hitoshi/localbite/internal/repository"
	"github.com/hitoshi/localbite/internal/security"
	"github.com/hitoshi/localbite/internal/validation"
)

// LocationResolver は自由記述のロケーションをLocationへ解決する。
type LocationResolver interface {
	ResolveOrCreate(ctx context.Context, locality, area, country string) (*model.Location, error)
}

// FeedItem はフィードの1件。LikedByMeは閲覧者が特定できた場合のみ設定する。
type FeedItem struct {
	*model.RecipeWithAuthor
	LikedByMe *bool
}

// FeedPage はフィードの1ページ分の結果。
type FeedPage struct {
	Items       []FeedItem
	NextCursor  string // 次ページがない場合は空
	HasNextPage bool
	PageSize    int
	Count       int
}

// Service はレシピのサービス層。
type Service struct {
	recipes   repository.RecipeRepository
	favs      repository.FavRepository
	resolver  LocationResolver
	sanitizer security.TextSanitizer
	urlGuard  security.URLGuard
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
}

// NewService はServiceを生成する。
func NewService(
	recipes repository.RecipeRepository,
	favs repository.FavRepository,
	resolver LocationResolver,
	sanitizer security.TextSanitizer,
	urlGuard security.URLGuard,
	logger *slog.Logger,
	mc metrics.MetricsCollector,
) *Service {
	if mc == nil {
		mc = metrics.NopCollector{}
	}
	return &Service{
		recipes:   recipes,
		favs:      favs,
		resolver:  resolver,
		sanitizer: sanitizer,
		urlGuard:  urlGuard,
		metrics:   mc,
		logger:    logger,
	}
}

// Create はロケーションを解決してレシピを作成する。
// 同じ作成者が同じタイトルのレシピを既に持っている場合はConflictErrorを返す。
func (s *Service) Create(ctx context.Context, authorID string, in CreateInput) (*FeedItem, error) {
	in.sanitize(s.sanitizer)
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}
	if err := s.validatePicture(in.PictureURL); err != nil {
		return nil, err
	}

	loc, err := s.resolver.ResolveOrCreate(ctx, in.Location.Locality, in.Location.Area, in.Location.Country)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("レシピIDの生成に失敗しました: %w", err)
	}
	now := createdAtOf(id)
	recipe := &model.Recipe{
		ID:               id.String(),
		AuthorID:         authorID,
		Title:            in.Title,
		Description:      in.Description,
		Ingredients:      toIngredients(in.Ingredients),
		Instructions:     in.Instructions,
		DishTypes:        in.DishTypes,
		PictureURL:       in.PictureURL,
		PicturePublicID:  in.PicturePublicID,
		LocationID:       loc.ID,
		LocationSnapshot: snapshotOf(loc),
		Point:            loc.Point,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.recipes.Create(ctx, recipe); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, model.NewConflictError("このタイトル")
		}
		return nil, fmt.Errorf("レシピの作成に失敗しました: %w", err)
	}

	s.logger.Info("レシピを作成しました",
		slog.String("recipe_id", recipe.ID),
		slog.String("author_id", authorID),
		slog.String("location_id", loc.ID),
	)

	return s.Get(ctx, recipe.ID, authorID)
}

// Get は指定IDのレシピを返す。viewerIDが空でなければいいね状態を付与する。
func (s *Service) Get(ctx context.Context, id, viewerID string) (*FeedItem, error) {
	rw, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	items := []FeedItem{{RecipeWithAuthor: rw}}
	s.personalize(ctx, viewerID, items)
	return &items[0], nil
}

// Edit は作成者本人の場合のみレシピを部分更新する。
// ロケーションを変更する場合はlocation_id・スナップショット・座標をまとめて書き換える。
func (s *Service) Edit(ctx context.Context, userID, id string, in EditInput) (*FeedItem, error) {
	current, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.AuthorID != userID {
		return nil, model.NewForbiddenError()
	}

	in.sanitize(s.sanitizer)
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}
	if in.PictureURL != nil {
		if err := s.validatePicture(*in.PictureURL); err != nil {
			return nil, err
		}
	}

	upd := model.RecipeUpdate{
		Title:           in.Title,
		Description:     in.Description,
		Ingredients:     toIngredients(in.Ingredients),
		Instructions:    in.Instructions,
		DishTypes:       in.DishTypes,
		PictureURL:      in.PictureURL,
		PicturePublicID: in.PicturePublicID,
	}
	if in.Location != nil {
		loc, err := s.resolver.ResolveOrCreate(ctx, in.Location.Locality, in.Location.Area, in.Location.Country)
		if err != nil {
			return nil, err
		}
		upd.Location = loc
	}

	if err := s.recipes.Update(ctx, current.ID, upd); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, model.NewConflictError("このタイトル")
		}
		return nil, fmt.Errorf("レシピの更新に失敗しました: %w", err)
	}

	return s.Get(ctx, current.ID, userID)
}

// Delete は作成者本人の場合のみレシピを削除する。お気に入りはCASCADE削除される。
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	current, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if current.AuthorID != userID {
		return model.NewForbiddenError()
	}

	if err := s.recipes.DeleteByID(ctx, current.ID); err != nil {
		return fmt.Errorf("レシピの削除に失敗しました: %w", err)
	}
	s.logger.Info("レシピを削除しました",
		slog.String("recipe_id", current.ID),
		slog.String("author_id", userID),
	)
	return nil
}

// Query はフィードの1ページを返す。
//
// limit+1件を取得し、余分な1件があればHasNextPageをtrueにして取り除く。
// NextCursorは次ページがある場合のみ、返却する最後の1件のIDとする。
// viewerIDが空でなければ、ページ内のレシピについていいね状態を1回のクエリで付与する。
func (s *Service) Query(ctx context.Context, p FeedParams, viewerID string) (*FeedPage, error) {
	rows, err := s.recipes.Query(ctx, p.query())
	if err != nil {
		return nil, fmt.Errorf("フィードの取得に失敗しました: %w", err)
	}

	hasNext := len(rows) > p.Limit
	if hasNext {
		rows = rows[:p.Limit]
	}

	items := make([]FeedItem, len(rows))
	for i, rw := range rows {
		items[i] = FeedItem{RecipeWithAuthor: rw}
	}
	s.personalize(ctx, viewerID, items)

	page := &FeedPage{
		Items:       items,
		HasNextPage: hasNext,
		PageSize:    p.Limit,
		Count:       len(items),
	}
	if hasNext && len(items) > 0 {
		page.NextCursor = items[len(items)-1].ID
	}
	return page, nil
}

// Like はレシピをお気に入りに追加する。既に追加済みの場合はいいね数を変えない。
func (s *Service) Like(ctx context.Context, userID, id string) (*model.LikeResult, error) {
	return s.toggle(ctx, userID, id, true)
}

// Unlike はレシピをお気に入りから外す。追加していない場合はいいね数を変えない。
func (s *Service) Unlike(ctx context.Context, userID, id string) (*model.LikeResult, error) {
	return s.toggle(ctx, userID, id, false)
}

func (s *Service) toggle(ctx context.Context, userID, id string, like bool) (*model.LikeResult, error) {
	recipeID, ok := parseUUID(id)
	if !ok {
		return nil, model.NewRecipeNotFoundError(id)
	}

	var (
		result *model.LikeResult
		err    error
	)
	if like {
		result, err = s.favs.Like(ctx, userID, recipeID)
	} else {
		result, err = s.favs.Unlike(ctx, userID, recipeID)
	}
	if err != nil {
		return nil, fmt.Errorf("いいねの更新に失敗しました: %w", err)
	}
	if result == nil {
		return nil, model.NewRecipeNotFoundError(id)
	}

	s.metrics.RecordLikeToggle(like)
	return result, nil
}

// personalize は閲覧者のいいね状態を付与する。取得に失敗した場合は付与せずに続行する。
func (s *Service) personalize(ctx context.Context, viewerID string, items []FeedItem) {
	if viewerID == "" || len(items) == 0 {
		return
	}

	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}

	liked, err := s.favs.LikedAmong(ctx, viewerID, ids)
	if err != nil {
		s.logger.Warn("いいね状態の取得に失敗しました",
			slog.String("viewer_id", viewerID),
			slog.String("error", err.Error()),
		)
		return
	}

	for i := range items {
		v := liked[items[i].ID]
		items[i].LikedByMe = &v
	}
}

// createdAtOf はUUIDv7に埋め込まれた時刻を作成日時として返す。
// 作成日時の降順とIDの降順が常に一致するため、IDをカーソルに使える。
func createdAtOf(id uuid.UUID) time.Time {
	sec, nsec := id.Time().UnixTime()
	return time.Unix(sec, nsec).UTC()
}

func (s *Service) find(ctx context.Context, id string) (*model.RecipeWithAuthor, error) {
	recipeID, ok := parseUUID(id)
	if !ok {
		return nil, model.NewRecipeNotFoundError(id)
	}
	rw, err := s.recipes.FindByID(ctx, recipeID)
	if err != nil {
		return nil, fmt.Errorf("レシピの取得に失敗しました: %w", err)
	}
	if rw == nil {
		return nil, model.NewRecipeNotFoundError(id)
	}
	return rw, nil
}

func (s *Service) validatePicture(rawURL string) error {
	if rawURL == "" {
		return nil
	}
	if err := s.urlGuard.ValidatePublicURL(rawURL); err != nil {
		return model.NewInvalidURLError(err.Error())
	}
	return nil
}

func snapshotOf(loc *model.Location) model.LocationSnapshot {
	return model.LocationSnapshot{
		Locality: loc.Locality,
		Area:     loc.Area,
		Country:  loc.Country,
	}
}
