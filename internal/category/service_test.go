package category

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
	"github.com/hitoshi/libman/internal/security"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	var buf bytes.Buffer
	clock := func() time.Time { return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC) }
	return NewService(memory.NewStore().Repositories().Categories, security.NewTextSanitizer(), clock,
		slog.New(slog.NewJSONHandler(&buf, nil)))
}

func TestService_Create_UniqueName(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "Ficção", "Romances e contos"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, err := svc.Create(ctx, " Ficção ", "")
	var vErr *model.ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "name" {
		t.Fatalf("expected duplicate name validation error, got %v", err)
	}
}

type staleNameLookup struct {
	repository.CategoryRepository
}

func (staleNameLookup) FindByName(context.Context, string) (*model.Category, error) {
	return nil, nil
}

func TestService_DuplicateNameAtWrite(t *testing.T) {
	var buf bytes.Buffer
	clock := func() time.Time { return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC) }
	categories := memory.NewStore().Repositories().Categories
	svc := NewService(staleNameLookup{CategoryRepository: categories}, security.NewTextSanitizer(), clock,
		slog.New(slog.NewJSONHandler(&buf, nil)))
	ctx := context.Background()

	if _, err := svc.Create(ctx, "Ficção", ""); err != nil {
		t.Fatalf("Create: %v", err)
	}
	poesia, err := svc.Create(ctx, "Poesia", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, err = svc.Create(ctx, "Ficção", "")
	var vErr *model.ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "name" {
		t.Fatalf("Create: expected duplicate name validation error, got %v", err)
	}

	name := "Ficção"
	_, err = svc.Update(ctx, poesia.ID, model.CategoryPatch{Name: &name})
	if !errors.As(err, &vErr) || vErr.Field != "name" {
		t.Fatalf("Update: expected duplicate name validation error, got %v", err)
	}
}

func TestService_Create_RequiresName(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Create(context.Background(), "", "sem nome")
	if !model.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestService_GetByName(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, "Poesia", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := svc.GetByName(ctx, "Poesia")
	if err != nil {
		t.Fatalf("GetByName: %v", err)
	}
	if got.ID != created.ID {
		t.Errorf("ID = %q, want %q", got.ID, created.ID)
	}

	if _, err := svc.GetByName(ctx, "Drama"); !model.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestService_Update_KeepsOwnName(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, "Poesia", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Create(ctx, "Drama", ""); err != nil {
		t.Fatalf("Create: %v", err)
	}

	desc := "Versos"
	name := "Poesia"
	if _, err := svc.Update(ctx, created.ID, model.CategoryPatch{Name: &name, Description: &desc}); err != nil {
		t.Errorf("updating with own name should succeed: %v", err)
	}

	taken := "Drama"
	if _, err := svc.Update(ctx, created.ID, model.CategoryPatch{Name: &taken}); !model.IsValidation(err) {
		t.Errorf("expected validation error for taken name, got %v", err)
	}
}

func TestService_ListAndDelete(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	for _, name := range []string{"B", "A"} {
		if _, err := svc.Create(ctx, name, ""); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	list, err := svc.List(ctx, model.Page{Limit: 10})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].Name != "A" {
		t.Errorf("expected name order, got %+v", list)
	}

	if err := svc.Delete(ctx, list[0].ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := svc.Delete(ctx, "missing"); !model.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}
