// Package user は利用者管理のドメインロジックを提供する。
package user

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
	"github.com/hitoshi/libman/internal/validator"
)

// CreateInput は利用者登録の入力。
type CreateInput struct {
	Name      string
	Email     string
	BirthDate time.Time
	// Active が未指定の場合は有効として登録する。
	Active *bool
}

// Service は利用者管理のサービス層。
// 登録・更新時のメールアドレス形式、一意性、生年月日、最低年齢の検証を行う。
type Service struct {
	users      repository.UserRepository
	minimumAge int
	clock      model.Clock
	logger     *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(users repository.UserRepository, minimumAge int, clock model.Clock, logger *slog.Logger) *Service {
	return &Service{
		users:      users,
		minimumAge: minimumAge,
		clock:      clock,
		logger:     logger,
	}
}

// Create は利用者を登録する。
func (s *Service) Create(ctx context.Context, in CreateInput) (*model.User, error) {
	now := s.clock()
	user := &model.User{
		ID:        uuid.New().String(),
		Name:      strings.TrimSpace(in.Name),
		Email:     strings.TrimSpace(in.Email),
		BirthDate: model.DateOf(in.BirthDate),
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if in.Active != nil {
		user.Active = *in.Active
	}

	if err := s.validate(ctx, user, now); err != nil {
		return nil, err
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, duplicateEmailError()
		}
		return nil, fmt.Errorf("利用者の登録に失敗しました: %w", err)
	}

	s.logger.Info("利用者を登録しました", slog.String("user_id", user.ID))
	return user, nil
}

// Get は指定IDの利用者を返す。
func (s *Service) Get(ctx context.Context, id string) (*model.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("利用者の取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewNotFoundError(model.EntityUser, id)
	}
	return user, nil
}

// List は利用者一覧を返す。
func (s *Service) List(ctx context.Context, page model.Page) ([]*model.User, error) {
	users, err := s.users.List(ctx, page)
	if err != nil {
		return nil, fmt.Errorf("利用者一覧の取得に失敗しました: %w", err)
	}
	return users, nil
}

// Search は名前の部分一致と有効フラグで利用者を検索する。
func (s *Service) Search(ctx context.Context, filter model.UserFilter, page model.Page) ([]*model.User, error) {
	users, err := s.users.Search(ctx, filter, page)
	if err != nil {
		return nil, fmt.Errorf("利用者の検索に失敗しました: %w", err)
	}
	return users, nil
}

// Update は指定フィールドのみを更新する。更新後の値で全項目を再検証する。
func (s *Service) Update(ctx context.Context, id string, patch model.UserPatch) (*model.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		patch.Name = &name
	}
	if patch.Email != nil {
		email := strings.TrimSpace(*patch.Email)
		patch.Email = &email
	}
	patch.Apply(user)

	now := s.clock()
	if err := s.validate(ctx, user, now); err != nil {
		return nil, err
	}
	user.UpdatedAt = now

	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewNotFoundError(model.EntityUser, id)
		}
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, duplicateEmailError()
		}
		return nil, fmt.Errorf("利用者の更新に失敗しました: %w", err)
	}
	return user, nil
}

// Delete は利用者を削除する。利用者の貸出履歴も削除される。
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewNotFoundError(model.EntityUser, id)
		}
		return fmt.Errorf("利用者の削除に失敗しました: %w", err)
	}
	s.logger.Info("利用者を削除しました", slog.String("user_id", id))
	return nil
}

// validate は利用者の入力値を検証する。
// 最初に失敗したフィールドを*model.ValidationErrorとして返す。
func (s *Service) validate(ctx context.Context, user *model.User, now time.Time) error {
	today := model.DateOf(now)

	v := validator.New()
	v.Check(user.Name != "", "name", "必須です")
	v.Check(validator.Matches(user.Email, validator.EmailRX), "email", "メールアドレスの形式が不正です")
	v.Check(!user.BirthDate.IsZero(), "birth_date", "必須です")
	v.Check(!user.BirthDate.After(today), "birth_date", "未来の日付は指定できません")
	if _, failed := v.Errors["birth_date"]; !failed {
		v.Check(user.Age(today) >= s.minimumAge, "birth_date",
			fmt.Sprintf("%d歳以上である必要があります", s.minimumAge))
	}
	if err := v.Err(); err != nil {
		return err
	}

	existing, err := s.users.FindByEmail(ctx, user.Email)
	if err != nil {
		return fmt.Errorf("メールアドレスの確認に失敗しました: %w", err)
	}
	if existing != nil && existing.ID != user.ID {
		return duplicateEmailError()
	}
	return nil
}

// duplicateEmailError はメールアドレス重複の検証エラーを返す。
func duplicateEmailError() error {
	return model.NewValidationError("email", "既に登録されています")
}
