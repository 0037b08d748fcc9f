package model

import "time"

// User は図書館の利用者を表す。
type User struct {
	ID        string
	Name      string
	Email     string
	BirthDate time.Time
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Age はtoday時点の満年齢を返す。
func (u *User) Age(today time.Time) int {
	return AgeOn(u.BirthDate, today)
}

// CanBorrow は有効な利用者で、未返却の貸出数がmaxActive未満であるかを返す。
func (u *User) CanBorrow(activeLoans, maxActive int) bool {
	return u.Active && activeLoans < maxActive
}

// UserPatch は利用者の部分更新内容を表す。nilのフィールドは変更しない。
type UserPatch struct {
	Name      *string
	Email     *string
	BirthDate *time.Time
	Active    *bool
}

// Apply はパッチの指定フィールドを利用者に反映する。
func (p UserPatch) Apply(u *User) {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.BirthDate != nil {
		u.BirthDate = DateOf(*p.BirthDate)
	}
	if p.Active != nil {
		u.Active = *p.Active
	}
}

// UserFilter は利用者検索条件を表す。
type UserFilter struct {
	NameContains string
	Active       *bool
}
