package model

import "time"

// Author は著者を表す。
type Author struct {
	ID          string
	Name        string
	Nationality string
	BirthDate   *time.Time
	Biography   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Age はtoday時点の満年齢を返す。生年月日が未登録の場合はfalseを返す。
func (a *Author) Age(today time.Time) (int, bool) {
	if a.BirthDate == nil {
		return 0, false
	}
	return AgeOn(*a.BirthDate, today), true
}

// AuthorPatch は著者の部分更新内容を表す。
type AuthorPatch struct {
	Name        *string
	Nationality *string
	BirthDate   *time.Time
	Biography   *string
}

// Apply はパッチの指定フィールドを著者に反映する。
func (p AuthorPatch) Apply(a *Author) {
	if p.Name != nil {
		a.Name = *p.Name
	}
	if p.Nationality != nil {
		a.Nationality = *p.Nationality
	}
	if p.BirthDate != nil {
		d := DateOf(*p.BirthDate)
		a.BirthDate = &d
	}
	if p.Biography != nil {
		a.Biography = *p.Biography
	}
}

// Category は書籍の分類を表す。Nameは一意。
type Category struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CategoryPatch は分類の部分更新内容を表す。
type CategoryPatch struct {
	Name        *string
	Description *string
}

// Apply はパッチの指定フィールドを分類に反映する。
func (p CategoryPatch) Apply(c *Category) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Description != nil {
		c.Description = *p.Description
	}
}

// Page はオフセット方式のページ指定。
type Page struct {
	Offset int
	Limit  int
}

// Normalize はlimit未指定（0以下）の場合にdefaultLimitを、maxLimitを超える場合にmaxLimitを適用する。
// offsetが負の場合は0とする。
func (p Page) Normalize(defaultLimit, maxLimit int) Page {
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}
	if maxLimit > 0 && p.Limit > maxLimit {
		p.Limit = maxLimit
	}
	return p
}
