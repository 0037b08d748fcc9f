// Package validator はフィールド単位の入力検証エラーを蓄積するValidatorを提供する。
package validator

import (
	"regexp"
	"sort"

	"github.com/hitoshi/libman/internal/model"
)

// EmailRX はメールアドレス（local@domain.tld）の形式を表す正規表現。
var EmailRX = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Validator はフィールド名ごとの検証エラーメッセージを保持する。
// Errorsが空であれば検証成功とみなす。
type Validator struct {
	Errors map[string]string
	order  []string
}

// New は空のValidatorを生成する。
func New() *Validator {
	return &Validator{Errors: make(map[string]string)}
}

// Valid はエラーが1件もなければtrueを返す。
func (v *Validator) Valid() bool {
	return len(v.Errors) == 0
}

// AddError はkeyに対するエラーを記録する。
// 同じkeyのエラーが既にある場合は上書きしない（最初の失敗を報告する）。
func (v *Validator) AddError(key, message string) {
	if _, exists := v.Errors[key]; !exists {
		v.Errors[key] = message
		v.order = append(v.order, key)
	}
}

// Check はokがfalseの場合にのみkeyのエラーを記録する。
//
//	v.Check(title != "", "title", "必須です")
func (v *Validator) Check(ok bool, key, message string) {
	if !ok {
		v.AddError(key, message)
	}
}

// Err は最初に記録されたエラーを*model.ValidationErrorとして返す。エラーがなければnil。
func (v *Validator) Err() error {
	if v.Valid() {
		return nil
	}
	key := v.order[0]
	return model.NewValidationError(key, v.Errors[key])
}

// Fields はエラーのあるフィールド名を昇順で返す。
func (v *Validator) Fields() []string {
	fields := make([]string, 0, len(v.Errors))
	for k := range v.Errors {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return fields
}

// Matches はvalueが正規表現rxに一致すればtrueを返す。
func Matches(value string, rx *regexp.Regexp) bool {
	return rx.MatchString(value)
}

// In はvalueがlistに含まれていればtrueを返す。
func In(value string, list ...string) bool {
	for _, item := range list {
		if value == item {
			return true
		}
	}
	return false
}
