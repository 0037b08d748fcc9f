package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Book は蔵書を表す。
// AvailableQuantity は常に 0 以上 TotalQuantity 以下に保たれる。
type Book struct {
	ID                string
	Title             string
	Year              *int
	Publisher         string
	Pages             *int
	Synopsis          string
	Price             *decimal.Decimal
	Available         bool
	TotalQuantity     int
	AvailableQuantity int
	AuthorID          string
	CategoryID        *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsAvailable は貸出可能な在庫があるかを返す。
func (b *Book) IsAvailable() bool {
	return b.Available && b.AvailableQuantity > 0
}

// Checkout は在庫を1冊貸し出す。
// 在庫が0になった場合は貸出可能フラグを下ろす。貸出できなかった場合はfalseを返す。
func (b *Book) Checkout() bool {
	if !b.IsAvailable() {
		return false
	}
	b.AvailableQuantity--
	if b.AvailableQuantity == 0 {
		b.Available = false
	}
	return true
}

// Return は在庫を1冊戻す。総数を超える場合は何もしない。
func (b *Book) Return() {
	if b.AvailableQuantity < b.TotalQuantity {
		b.AvailableQuantity++
		b.Available = true
	}
}

// BookPatch は書籍の部分更新内容を表す。nilのフィールドは変更しない。
type BookPatch struct {
	Title             *string
	Year              *int
	Publisher         *string
	Pages             *int
	Synopsis          *string
	Price             *decimal.Decimal
	Available         *bool
	TotalQuantity     *int
	AvailableQuantity *int
	AuthorID          *string
	CategoryID        *string
	ClearCategory     bool
}

// Apply はパッチの指定フィールドを書籍に反映する。
func (p BookPatch) Apply(b *Book) {
	if p.Title != nil {
		b.Title = *p.Title
	}
	if p.Year != nil {
		y := *p.Year
		b.Year = &y
	}
	if p.Publisher != nil {
		b.Publisher = *p.Publisher
	}
	if p.Pages != nil {
		n := *p.Pages
		b.Pages = &n
	}
	if p.Synopsis != nil {
		b.Synopsis = *p.Synopsis
	}
	if p.Price != nil {
		price := *p.Price
		b.Price = &price
	}
	if p.Available != nil {
		b.Available = *p.Available
	}
	if p.TotalQuantity != nil {
		b.TotalQuantity = *p.TotalQuantity
	}
	if p.AvailableQuantity != nil {
		b.AvailableQuantity = *p.AvailableQuantity
	}
	if p.AuthorID != nil {
		b.AuthorID = *p.AuthorID
	}
	if p.ClearCategory {
		b.CategoryID = nil
	} else if p.CategoryID != nil {
		id := *p.CategoryID
		b.CategoryID = &id
	}
}

// BookSortField は書籍検索の並び替えキー。
type BookSortField string

const (
	BookSortTitle BookSortField = "title"
	BookSortYear  BookSortField = "year"
	BookSortPrice BookSortField = "price"
)

// BookFilter は書籍検索条件を表す。ゼロ値のフィールドは条件に含めない。
type BookFilter struct {
	TitleContains string
	AuthorID      string
	CategoryID    string
	AvailableOnly bool
	YearFrom      *int
	YearTo        *int
	SortBy        BookSortField
	Descending    bool
}
