// Package normalize содержит разбор чисел и дат из ответов провайдеров.
package normalize

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultLayouts -- форматы дат, встречающиеся у OZON, WB, YM и в выгрузках 1С.
var DefaultLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"02.01.2006 15:04:05",
	"02.01.2006",
	"2006-01-02",
}

var ErrEmpty = errors.New("empty value")

// FieldError -- обязательное поле записи не удалось разобрать. Запись пропускается,
// импорт продолжается.
type FieldError struct {
	RecordID string
	Field    string
	Value    string
	Err      error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("record %s: field %s=%q: %v", e.RecordID, e.Field, e.Value, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// ParseDecimal понимает "1234.56", "1 234,56" и неразрывные пробелы между разрядами.
// Пустая строка -- ноль.
func ParseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	s = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "").Replace(s)
	if strings.Contains(s, ",") {
		if strings.Contains(s, ".") {
			// 1,234.56
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.ReplaceAll(s, ",", ".")
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal %q: %w", s, err)
	}
	return d, nil
}

// ParseTime пробует форматы по порядку. Без явных форматов используются DefaultLayouts.
// Время без зоны считается UTC.
func ParseTime(s string, layouts ...string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrEmpty
	}
	if len(layouts) == 0 {
		layouts = DefaultLayouts
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported date format %q", s)
}

// TimeOrNow -- для дат, которые не входят в ключ документа и не влияют на регистры.
func TimeOrNow(s string, now time.Time) time.Time {
	t, err := ParseTime(s)
	if err != nil {
		return now.UTC()
	}
	return t
}

// OptionalTime возвращает nil для пустой или неразборчивой даты.
func OptionalTime(s string) *time.Time {
	t, err := ParseTime(s)
	if err != nil {
		return nil
	}
	return &t
}

// RequiredTime оборачивает ошибку разбора в FieldError.
func RequiredTime(recordID, field, value string, layouts ...string) (time.Time, error) {
	t, err := ParseTime(value, layouts...)
	if err != nil {
		return time.Time{}, &FieldError{RecordID: recordID, Field: field, Value: value, Err: err}
	}
	return t, nil
}
