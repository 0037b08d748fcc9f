package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/hitoshi/libman/internal/model"
	"github.com/hitoshi/libman/internal/repository"
)

// bookColumns はCSVの列順。
var bookColumns = []string{
	"id", "title", "year", "publisher", "pages", "price",
	"total_quantity", "available_quantity", "available",
	"author_id", "category_id", "created_at", "updated_at",
}

// BookExporter は蔵書一覧をCSVとして書き出す。
type BookExporter struct {
	store     repository.Store
	logger    *slog.Logger
	batchSize int
}

// NewBookExporter はBookExporterを生成する。
func NewBookExporter(store repository.Store, logger *slog.Logger) *BookExporter {
	return &BookExporter{store: store, logger: logger, batchSize: defaultBatchSize}
}

// Export は全書籍をヘッダー付きCSVとしてwに書き出し、件数を返す。
// 書籍が0件でもヘッダー行は出力する。
func (e *BookExporter) Export(ctx context.Context, w io.Writer) (int, error) {
	books := e.store.Repositories().Books
	cw := csv.NewWriter(w)
	if err := cw.Write(bookColumns); err != nil {
		return 0, fmt.Errorf("CSVヘッダーの書き込みに失敗しました: %w", err)
	}

	count := 0
	for offset := 0; ; offset += e.batchSize {
		batch, err := books.List(ctx, model.Page{Offset: offset, Limit: e.batchSize})
		if err != nil {
			return 0, fmt.Errorf("書籍一覧の取得に失敗しました: %w", err)
		}
		for _, b := range batch {
			if err := cw.Write(bookRow(b)); err != nil {
				return 0, fmt.Errorf("CSVの書き込みに失敗しました: %w", err)
			}
			count++
		}
		if len(batch) < e.batchSize {
			break
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, fmt.Errorf("CSVの書き込みに失敗しました: %w", err)
	}

	e.logger.Info("蔵書一覧をエクスポートしました", slog.Int("count", count))
	return count, nil
}

// bookRow は書籍1件をbookColumnsの順に文字列化する。未設定の項目は空文字。
func bookRow(b *model.Book) []string {
	row := []string{
		b.ID,
		b.Title,
		optionalInt(b.Year),
		b.Publisher,
		optionalInt(b.Pages),
		"",
		strconv.Itoa(b.TotalQuantity),
		strconv.Itoa(b.AvailableQuantity),
		strconv.FormatBool(b.Available),
		b.AuthorID,
		"",
		b.CreatedAt.UTC().Format(time.RFC3339),
		b.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if b.Price != nil {
		row[5] = b.Price.StringFixed(2)
	}
	if b.CategoryID != nil {
		row[10] = *b.CategoryID
	}
	return row
}

func optionalInt(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}
