package user

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/hitoshi/libman/internal/model"
	"github.com/hitoshi/libman/internal/repository"
	"github.com/hitoshi/libman/internal/repository/memory"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, nil))
}

func fixedClock() model.Clock {
	return func() time.Time { return time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC) }
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	var buf bytes.Buffer
	return NewService(memory.NewStore().Repositories().Users, 12, fixedClock(), newTestLogger(&buf))
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func validationField(t *testing.T, err error) string {
	t.Helper()
	var vErr *model.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected *model.ValidationError, got %T (%v)", err, err)
	}
	return vErr.Field
}

func TestService_Create(t *testing.T) {
	svc := newTestService(t)

	user, err := svc.Create(context.Background(), CreateInput{
		Name:      " Alice ",
		Email:     "alice@example.com",
		BirthDate: date(1990, 5, 1),
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if user.ID == "" {
		t.Error("expected generated ID")
	}
	if user.Name != "Alice" {
		t.Errorf("Name = %q, want trimmed name", user.Name)
	}
	if !user.Active {
		t.Error("new users are active by default")
	}
}

func TestService_Create_ValidationFailures(t *testing.T) {
	tests := []struct {
		name      string
		input     CreateInput
		wantField string
	}{
		{"missing name", CreateInput{Email: "a@example.com", BirthDate: date(1990, 1, 1)}, "name"},
		{"malformed email", CreateInput{Name: "A", Email: "not-an-email", BirthDate: date(1990, 1, 1)}, "email"},
		{"birth date in the future", CreateInput{Name: "A", Email: "a@example.com", BirthDate: date(2030, 1, 1)}, "birth_date"},
		{"one day short of minimum age", CreateInput{Name: "A", Email: "a@example.com", BirthDate: date(2012, 6, 16)}, "birth_date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t)
			_, err := svc.Create(context.Background(), tt.input)
			if got := validationField(t, err); got != tt.wantField {
				t.Errorf("field = %q, want %q", got, tt.wantField)
			}
		})
	}
}

func TestService_Create_ExactlyMinimumAgeToday(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Create(context.Background(), CreateInput{
		Name: "Birthday", Email: "bday@example.com", BirthDate: date(2012, 6, 15),
	})
	if err != nil {
		t.Fatalf("twelfth birthday today should be accepted: %v", err)
	}
}

func TestService_Create_DuplicateEmail(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	in := CreateInput{Name: "A", Email: "dup@example.com", BirthDate: date(1990, 1, 1)}

	if _, err := svc.Create(ctx, in); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	_, err := svc.Create(ctx, in)
	if got := validationField(t, err); got != "email" {
		t.Errorf("field = %q, want email", got)
	}
}

// staleEmailLookup は重複確認の直後に別の登録が割り込んだ状況を再現するため、
// FindByEmailが常に未登録を返す。
type staleEmailLookup struct {
	repository.UserRepository
}

func (staleEmailLookup) FindByEmail(context.Context, string) (*model.User, error) {
	return nil, nil
}

// TestService_DuplicateEmailAtWrite は書き込み時の一意制約違反がemailの検証エラーになることを検証する。
func TestService_DuplicateEmailAtWrite(t *testing.T) {
	var buf bytes.Buffer
	users := memory.NewStore().Repositories().Users
	svc := NewService(staleEmailLookup{UserRepository: users}, 12, fixedClock(), newTestLogger(&buf))
	ctx := context.Background()

	first, err := svc.Create(ctx, CreateInput{Name: "A", Email: "dup@example.com", BirthDate: date(1990, 1, 1)})
	if err != nil {
		t.Fatalf("first Create: %v", err)
	}
	other, err := svc.Create(ctx, CreateInput{Name: "B", Email: "other@example.com", BirthDate: date(1990, 1, 1)})
	if err != nil {
		t.Fatalf("second Create: %v", err)
	}

	_, err = svc.Create(ctx, CreateInput{Name: "C", Email: first.Email, BirthDate: date(1990, 1, 1)})
	if got := validationField(t, err); got != "email" {
		t.Errorf("Create field = %q, want email", got)
	}

	email := first.Email
	_, err = svc.Update(ctx, other.ID, model.UserPatch{Email: &email})
	if got := validationField(t, err); got != "email" {
		t.Errorf("Update field = %q, want email", got)
	}
}

func TestService_Update(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	user, err := svc.Create(ctx, CreateInput{Name: "A", Email: "a@example.com", BirthDate: date(1990, 1, 1)})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	inactive := false
	name := "Alice"
	updated, err := svc.Update(ctx, user.ID, model.UserPatch{Name: &name, Active: &inactive})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Name != "Alice" || updated.Active {
		t.Errorf("unexpected user after update: %+v", updated)
	}
	if updated.Email != "a@example.com" {
		t.Error("unpatched fields must be preserved")
	}

	// 自分自身のメールアドレスは重複扱いしない
	email := "a@example.com"
	if _, err := svc.Update(ctx, user.ID, model.UserPatch{Email: &email}); err != nil {
		t.Errorf("re-saving own email should succeed: %v", err)
	}
}

func TestService_Update_RejectsTooYoungBirthDate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	user, err := svc.Create(ctx, CreateInput{Name: "A", Email: "a@example.com", BirthDate: date(1990, 1, 1)})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	birth := date(2020, 1, 1)
	_, err = svc.Update(ctx, user.ID, model.UserPatch{BirthDate: &birth})
	if got := validationField(t, err); got != "birth_date" {
		t.Errorf("field = %q, want birth_date", got)
	}

	stored, _ := svc.Get(ctx, user.ID)
	if !stored.BirthDate.Equal(date(1990, 1, 1)) {
		t.Error("rejected update must not be persisted")
	}
}

func TestService_GetAndDelete_NotFound(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Get(ctx, "missing"); !model.IsNotFound(err) {
		t.Errorf("Get: expected not found, got %v", err)
	}
	if err := svc.Delete(ctx, "missing"); !model.IsNotFound(err) {
		t.Errorf("Delete: expected not found, got %v", err)
	}
}

func TestService_Search(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	inactive := false
	for _, in := range []CreateInput{
		{Name: "Alice Smith", Email: "alice@example.com", BirthDate: date(1990, 1, 1)},
		{Name: "Bob Smith", Email: "bob@example.com", BirthDate: date(1990, 1, 1), Active: &inactive},
		{Name: "Carol", Email: "carol@example.com", BirthDate: date(1990, 1, 1)},
	} {
		if _, err := svc.Create(ctx, in); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	users, err := svc.Search(ctx, model.UserFilter{NameContains: "smith"}, model.Page{Limit: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(users) != 2 {
		t.Errorf("len = %d, want 2", len(users))
	}

	active := true
	users, err = svc.Search(ctx, model.UserFilter{NameContains: "smith", Active: &active}, model.Page{Limit: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(users) != 1 || users[0].Name != "Alice Smith" {
		t.Errorf("unexpected result: %+v", users)
	}
}
