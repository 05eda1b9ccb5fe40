package utils

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// BrazilTime is the fixed UTC-3 offset used for every "today" decision.
// Day-bucketed aggregation must not depend on the host timezone.
var BrazilTime = time.FixedZone("BRT", -3*60*60)

func NowBrazil() time.Time {
	return time.Now().In(BrazilTime)
}

// DateOnly drops the time-of-day component, keeping the date in UTC.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// TodayBrazil is the current calendar date at UTC-3, UTC-normalized.
func TodayBrazil() time.Time {
	return DateOnly(NowBrazil())
}

// ParseDateOnly parses the YYYY-MM-DD form used on every service boundary.
func ParseDateOnly(value string) (time.Time, error) {
	return time.Parse("2006-01-02", strings.TrimSpace(value))
}

func FormatDateOnly(t time.Time) string {
	return t.Format("2006-01-02")
}

// DaysInclusive counts calendar days between two date-only values, both ends
// included.
func DaysInclusive(start, end time.Time) int {
	start = DateOnly(start)
	end = DateOnly(end)
	if end.Before(start) {
		return 0
	}
	return int(end.Sub(start).Hours()/24) + 1
}

// NormalizeSellerName lowercases and collapses internal whitespace so that
// upstream seller strings match user full names regardless of casing or
// double spaces.
func NormalizeSellerName(name string) string {
	fields := strings.Fields(strings.ToLower(name))
	return strings.Join(fields, " ")
}

func NewTrue() *bool {
	b := true
	return &b
}

func NewFalse() *bool {
	b := false
	return &b
}

func ProcessValidationErrors(err error) map[string]string {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]string{"error": err.Error()}
	}

	errorResponse := make(map[string]string)
	for _, ve := range validationErrors {
		errorResponse[ve.Field()] = ve.Tag()
	}
	return errorResponse
}
