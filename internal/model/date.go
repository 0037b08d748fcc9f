package model

import "time"

// DateOf は時刻を暦日に正規化する。
// 年月日はtの持つロケーションで解釈し、UTCの0時として返す。
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween はfromからtoまでの暦日数を返す。toがfromより前の場合は負数になる。
func DaysBetween(from, to time.Time) int {
	return int(DateOf(to).Sub(DateOf(from)).Hours() / 24)
}

// AgeOn はbirthDate生まれの人物のtoday時点の満年齢を返す。
// 今年の誕生日を迎えていない場合は1を引く。
func AgeOn(birthDate, today time.Time) int {
	age := today.Year() - birthDate.Year()
	if today.Month() < birthDate.Month() ||
		(today.Month() == birthDate.Month() && today.Day() < birthDate.Day()) {
		age--
	}
	return age
}

// Clock は現在時刻を返す関数。テストでは固定時刻を返す関数を注入する。
type Clock func() time.Time

// SystemClock はlocのタイムゾーンで現在時刻を返すClockを生成する。
// 「今日」の判定はこのタイムゾーンの暦日で行われる。
func SystemClock(loc *time.Location) Clock {
	if loc == nil {
		loc = time.Local
	}
	return func() time.Time { return time.Now().In(loc) }
}
