package valueobject

import (
	"fmt"
	"time"
)

// FiscalYearStartMonth is the first month of the Bangladesh fiscal year
const FiscalYearStartMonth = time.July

// FiscalYearStart returns the calendar year in which the fiscal year containing date begins
func FiscalYearStart(date time.Time) int {
	if date.Month() >= FiscalYearStartMonth {
		return date.Year()
	}
	return date.Year() - 1
}

// FiscalYear returns the July-June label for date, e.g. "2024-2025"
func FiscalYear(date time.Time) string {
	start := FiscalYearStart(date)
	return fmt.Sprintf("%d-%d", start, start+1)
}

// FiscalPeriodNumber returns 1 for July through 12 for June
func FiscalPeriodNumber(date time.Time) int {
	return (int(date.Month())-int(FiscalYearStartMonth)+12)%12 + 1
}

// FiscalPeriod returns the accounting period label for date, e.g. "FY2024-2025-P07"
func FiscalPeriod(date time.Time) string {
	return fmt.Sprintf("FY%s-P%02d", FiscalYear(date), FiscalPeriodNumber(date))
}

// FiscalYearBounds returns the first and last day of the fiscal year containing date
func FiscalYearBounds(date time.Time) (time.Time, time.Time) {
	start := time.Date(FiscalYearStart(date), FiscalYearStartMonth, 1, 0, 0, 0, 0, date.Location())
	return start, start.AddDate(1, 0, -1)
}

// OpenPeriodWindow bounds the dates that may still be posted to.
// The zero value is the default window. Any other value is taken as given, so
// PastFiscalYears 0 leaves only the current fiscal year open.
type OpenPeriodWindow struct {
	// PastFiscalYears is how many completed fiscal years before the current one stay open
	PastFiscalYears int
	// FutureDays is how far past today a date may lie
	FutureDays int

	explicit bool
}

const (
	DefaultPastFiscalYears = 1
	DefaultFutureDays      = 30
)

// DefaultOpenPeriodWindow keeps the previous fiscal year open and allows 30 days of forward dating
func DefaultOpenPeriodWindow() OpenPeriodWindow {
	return NewOpenPeriodWindow(DefaultPastFiscalYears, DefaultFutureDays)
}

// NewOpenPeriodWindow builds a window from configured bounds. Unlike a literal,
// the result is never replaced by the defaults, even when both bounds are zero.
// Negative bounds count as zero.
func NewOpenPeriodWindow(pastFiscalYears, futureDays int) OpenPeriodWindow {
	return OpenPeriodWindow{
		PastFiscalYears: max(pastFiscalYears, 0),
		FutureDays:      max(futureDays, 0),
		explicit:        true,
	}
}

func (w OpenPeriodWindow) normalized() OpenPeriodWindow {
	if w == (OpenPeriodWindow{}) {
		return DefaultOpenPeriodWindow()
	}
	w.PastFiscalYears = max(w.PastFiscalYears, 0)
	w.FutureDays = max(w.FutureDays, 0)
	return w
}

// Earliest returns the first open date relative to now
func (w OpenPeriodWindow) Earliest(now time.Time) time.Time {
	w = w.normalized()
	start, _ := FiscalYearBounds(now)
	return start.AddDate(-w.PastFiscalYears, 0, 0)
}

// Latest returns the last open date relative to now
func (w OpenPeriodWindow) Latest(now time.Time) time.Time {
	w = w.normalized()
	return truncateDay(now).AddDate(0, 0, w.FutureDays)
}

// Contains reports whether date falls inside the open window
func (w OpenPeriodWindow) Contains(date, now time.Time) bool {
	d := truncateDay(date)
	return !d.Before(w.Earliest(now)) && !d.After(w.Latest(now))
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
