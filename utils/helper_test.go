package utils_test

import (
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/resto_backend/utils"
	"github.com/shopspring/decimal"
)

func TestConvertToDateTruncatesInBusinessTimezone(t *testing.T) {
	// 18:30 UTC is already past midnight in Yangon (+06:30)
	instant := time.Date(2026, 3, 1, 18, 30, 0, 0, time.UTC)

	got, err := utils.ConvertToDate(instant, "Asia/Yangon")
	if err != nil {
		t.Fatalf("ConvertToDate: %v", err)
	}
	loc, err := time.LoadLocation("Asia/Yangon")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	want := time.Date(2026, 3, 2, 0, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestConvertToDateDefaultsTimezone(t *testing.T) {
	instant := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	withDefault, err := utils.ConvertToDate(instant, "")
	if err != nil {
		t.Fatalf("ConvertToDate: %v", err)
	}
	explicit, err := utils.ConvertToDate(instant, "Asia/Yangon")
	if err != nil {
		t.Fatalf("ConvertToDate: %v", err)
	}
	if !withDefault.Equal(explicit) {
		t.Fatalf("expected %s, got %s", explicit, withDefault)
	}

	if _, err := utils.ConvertToDate(instant, "No/SuchZone"); err == nil {
		t.Fatal("expected error for unknown timezone")
	}
}

func TestParseDecimal(t *testing.T) {
	got, err := utils.ParseDecimal(" 2.5 ")
	if err != nil {
		t.Fatalf("ParseDecimal: %v", err)
	}
	if !got.Equal(decimal.RequireFromString("2.5")) {
		t.Fatalf("expected 2.5, got %s", got)
	}

	if _, err := utils.ParseDecimal(""); err == nil {
		t.Fatal("expected error for empty string")
	}
	if _, err := utils.ParseDecimal("abc"); err == nil {
		t.Fatal("expected error for non-numeric string")
	}
}

func TestDereferencePtr(t *testing.T) {
	n := 7
	if got := utils.DereferencePtr(&n, 100); got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}
	if got := utils.DereferencePtr[int](nil, 100); got != 100 {
		t.Fatalf("expected default 100, got %d", got)
	}
	if got := utils.DereferencePtr[int](nil); got != 0 {
		t.Fatalf("expected zero value, got %d", got)
	}
}
