// Package author は著者管理のドメインロジックを提供する。
package author

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/libman/internal/model"
	"github.com/hitoshi/libman/internal/repository"
	"github.com/hitoshi/libman/internal/security"
	"github.com/hitoshi/libman/internal/validator"
)

// CreateInput は著者登録の入力。
type CreateInput struct {
	Name        string
	Nationality string
	BirthDate   *time.Time
	Biography   string
}

// Service は著者管理のサービス層。
type Service struct {
	authors   repository.AuthorRepository
	sanitizer security.Sanitizer
	clock     model.Clock
	logger    *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(authors repository.AuthorRepository, sanitizer security.Sanitizer, clock model.Clock, logger *slog.Logger) *Service {
	return &Service{authors: authors, sanitizer: sanitizer, clock: clock, logger: logger}
}

// Create は著者を登録する。経歴はサニタイズしてから保存する。
func (s *Service) Create(ctx context.Context, in CreateInput) (*model.Author, error) {
	now := s.clock()
	author := &model.Author{
		ID:          uuid.New().String(),
		Name:        strings.TrimSpace(in.Name),
		Nationality: strings.TrimSpace(in.Nationality),
		Biography:   s.sanitizer.Sanitize(in.Biography),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.BirthDate != nil {
		d := model.DateOf(*in.BirthDate)
		author.BirthDate = &d
	}

	if err := validate(author, now); err != nil {
		return nil, err
	}
	if err := s.authors.Create(ctx, author); err != nil {
		return nil, fmt.Errorf("著者の登録に失敗しました: %w", err)
	}

	s.logger.Info("著者を登録しました", slog.String("author_id", author.ID))
	return author, nil
}

// Get は指定IDの著者を返す。
func (s *Service) Get(ctx context.Context, id string) (*model.Author, error) {
	author, err := s.authors.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("著者の取得に失敗しました: %w", err)
	}
	if author == nil {
		return nil, model.NewNotFoundError(model.EntityAuthor, id)
	}
	return author, nil
}

// List は著者一覧を返す。
func (s *Service) List(ctx context.Context, page model.Page) ([]*model.Author, error) {
	authors, err := s.authors.List(ctx, page)
	if err != nil {
		return nil, fmt.Errorf("著者一覧の取得に失敗しました: %w", err)
	}
	return authors, nil
}

// SearchByName は名前の部分一致で著者を検索する。
func (s *Service) SearchByName(ctx context.Context, name string, page model.Page) ([]*model.Author, error) {
	authors, err := s.authors.SearchByName(ctx, strings.TrimSpace(name), page)
	if err != nil {
		return nil, fmt.Errorf("著者の検索に失敗しました: %w", err)
	}
	return authors, nil
}

// Update は指定フィールドのみを更新する。
func (s *Service) Update(ctx context.Context, id string, patch model.AuthorPatch) (*model.Author, error) {
	author, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Biography != nil {
		bio := s.sanitizer.Sanitize(*patch.Biography)
		patch.Biography = &bio
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		patch.Name = &name
	}
	patch.Apply(author)

	now := s.clock()
	if err := validate(author, now); err != nil {
		return nil, err
	}
	author.UpdatedAt = now

	if err := s.authors.Update(ctx, author); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewNotFoundError(model.EntityAuthor, id)
		}
		return nil, fmt.Errorf("著者の更新に失敗しました: %w", err)
	}
	return author, nil
}

// Delete は著者を削除する。著者の書籍と、その貸出履歴も削除される。
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.authors.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewNotFoundError(model.EntityAuthor, id)
		}
		return fmt.Errorf("著者の削除に失敗しました: %w", err)
	}
	s.logger.Info("著者を削除しました", slog.String("author_id", id))
	return nil
}

func validate(a *model.Author, now time.Time) error {
	v := validator.New()
	v.Check(a.Name != "", "name", "必須です")
	v.Check(len(a.Name) <= 255, "name", "255文字以内で入力してください")
	v.Check(len(a.Nationality) <= 100, "nationality", "100文字以内で入力してください")
	if a.BirthDate != nil {
		v.Check(!a.BirthDate.After(model.DateOf(now)), "birth_date", "未来の日付は指定できません")
	}
	return v.Err()
}
