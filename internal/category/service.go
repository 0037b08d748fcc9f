// Package category は書籍分類の管理ロジックを提供する。
package category

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/hitoshi/libman/internal/model"
	"github.com/hitoshi/libman/internal/repository"
	"github.com/hitoshi/libman/internal/security"
	"github.com/hitoshi/libman/internal/validator"
)

// Service は分類管理のサービス層。分類名は一意。
type Service struct {
	categories repository.CategoryRepository
	sanitizer  security.Sanitizer
	clock      model.Clock
	logger     *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(categories repository.CategoryRepository, sanitizer security.Sanitizer, clock model.Clock, logger *slog.Logger) *Service {
	return &Service{categories: categories, sanitizer: sanitizer, clock: clock, logger: logger}
}

// Create は分類を登録する。
func (s *Service) Create(ctx context.Context, name, description string) (*model.Category, error) {
	now := s.clock()
	category := &model.Category{
		ID:          uuid.New().String(),
		Name:        strings.TrimSpace(name),
		Description: s.sanitizer.Sanitize(description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.validate(ctx, category); err != nil {
		return nil, err
	}
	if err := s.categories.Create(ctx, category); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, duplicateNameError()
		}
		return nil, fmt.Errorf("分類の登録に失敗しました: %w", err)
	}

	s.logger.Info("分類を登録しました", slog.String("category_id", category.ID), slog.String("name", category.Name))
	return category, nil
}

// Get は指定IDの分類を返す。
func (s *Service) Get(ctx context.Context, id string) (*model.Category, error) {
	category, err := s.categories.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("分類の取得に失敗しました: %w", err)
	}
	if category == nil {
		return nil, model.NewNotFoundError(model.EntityCategory, id)
	}
	return category, nil
}

// GetByName は分類名で分類を返す。
func (s *Service) GetByName(ctx context.Context, name string) (*model.Category, error) {
	name = strings.TrimSpace(name)
	category, err := s.categories.FindByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("分類の取得に失敗しました: %w", err)
	}
	if category == nil {
		return nil, model.NewNotFoundError(model.EntityCategory, name)
	}
	return category, nil
}

// List は分類一覧を返す。
func (s *Service) List(ctx context.Context, page model.Page) ([]*model.Category, error) {
	categories, err := s.categories.List(ctx, page)
	if err != nil {
		return nil, fmt.Errorf("分類一覧の取得に失敗しました: %w", err)
	}
	return categories, nil
}

// Update は指定フィールドのみを更新する。
func (s *Service) Update(ctx context.Context, id string, patch model.CategoryPatch) (*model.Category, error) {
	category, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		patch.Name = &name
	}
	if patch.Description != nil {
		desc := s.sanitizer.Sanitize(*patch.Description)
		patch.Description = &desc
	}
	patch.Apply(category)

	if err := s.validate(ctx, category); err != nil {
		return nil, err
	}
	category.UpdatedAt = s.clock()

	if err := s.categories.Update(ctx, category); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewNotFoundError(model.EntityCategory, id)
		}
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, duplicateNameError()
		}
		return nil, fmt.Errorf("分類の更新に失敗しました: %w", err)
	}
	return category, nil
}

// Delete は分類を削除する。所属していた書籍は分類なしになる。
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.categories.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewNotFoundError(model.EntityCategory, id)
		}
		return fmt.Errorf("分類の削除に失敗しました: %w", err)
	}
	s.logger.Info("分類を削除しました", slog.String("category_id", id))
	return nil
}

func (s *Service) validate(ctx context.Context, c *model.Category) error {
	v := validator.New()
	v.Check(c.Name != "", "name", "必須です")
	v.Check(len(c.Name) <= 100, "name", "100文字以内で入力してください")
	if err := v.Err(); err != nil {
		return err
	}

	existing, err := s.categories.FindByName(ctx, c.Name)
	if err != nil {
		return fmt.Errorf("分類名の確認に失敗しました: %w", err)
	}
	if existing != nil && existing.ID != c.ID {
		return duplicateNameError()
	}
	return nil
}

func duplicateNameError() error {
	return model.NewValidationError("name", "既に登録されています")
}
