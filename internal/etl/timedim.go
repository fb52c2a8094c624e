package etl

import (
	"time"

	"github.com/sur-analytics/opiniones-etl/internal/model"
)

// rangePadding widens the observed date range on both ends so facts
// with slightly out-of-range dates (clock skew, late batches) still
// resolve to a time row.
const rangePadding = 30 // days

var spanishMonths = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

var spanishDays = [...]string{
	"domingo", "lunes", "martes", "miércoles", "jueves", "viernes", "sábado",
}

// TimeRange is the covering range of the time dimension.
type TimeRange struct {
	Min       time.Time
	Max       time.Time
	Defaulted bool // no observed dates; the trailing-year default was substituted
}

// DateOnly drops the time-of-day component, keeping the calendar date in UTC.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// TimeKey formats a date as its 8-digit YYYYMMDD integer natural key.
func TimeKey(t time.Time) int {
	return t.Year()*10000 + int(t.Month())*100 + t.Day()
}

// CoveringRange computes [min-30d, max+30d] over the observed opinion
// dates. With no dates at all it substitutes [now-1y, now+1m]; the
// default endpoints are used as-is, they are already generous.
func CoveringRange(dates []time.Time, now time.Time) TimeRange {
	if len(dates) == 0 {
		today := DateOnly(now)
		return TimeRange{
			Min:       today.AddDate(-1, 0, 0),
			Max:       today.AddDate(0, 1, 0),
			Defaulted: true,
		}
	}

	min, max := DateOnly(dates[0]), DateOnly(dates[0])
	for _, d := range dates[1:] {
		day := DateOnly(d)
		if day.Before(min) {
			min = day
		}
		if day.After(max) {
			max = day
		}
	}
	return TimeRange{
		Min: min.AddDate(0, 0, -rangePadding),
		Max: max.AddDate(0, 0, rangePadding),
	}
}

// GenerateTimeDim emits one row per calendar day from Min to Max
// inclusive, contiguous and strictly increasing by natural key.
func GenerateTimeDim(r TimeRange) []model.TimeDim {
	var rows []model.TimeDim
	for d := r.Min; !d.After(r.Max); d = d.AddDate(0, 0, 1) {
		rows = append(rows, timeDimFor(d))
	}
	return rows
}

func timeDimFor(d time.Time) model.TimeDim {
	_, week := d.ISOWeek()
	weekday := d.Weekday()
	return model.TimeDim{
		Key:        TimeKey(d),
		Date:       d,
		Year:       d.Year(),
		Quarter:    (int(d.Month())-1)/3 + 1,
		Month:      int(d.Month()),
		MonthName:  spanishMonths[d.Month()-1],
		Day:        d.Day(),
		DayName:    spanishDays[weekday],
		WeekOfYear: week,
		IsWeekend:  weekday == time.Saturday || weekday == time.Sunday,
	}
}
