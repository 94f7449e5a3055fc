package analytics

import "time"

const (
	dayLayout   = "2006-01-02"
	monthLayout = "2006-01"
)

// calendar pins every aggregate to one location and one week boundary.
type calendar struct {
	loc       *time.Location
	weekStart time.Weekday
}

func (c calendar) startOfDay(t time.Time) time.Time {
	t = t.In(c.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.loc)
}

func (c calendar) startOfWeek(t time.Time) time.Time {
	day := c.startOfDay(t)
	offset := (int(day.Weekday()) - int(c.weekStart) + 7) % 7
	return day.AddDate(0, 0, -offset)
}

func (c calendar) startOfMonth(t time.Time) time.Time {
	t = t.In(c.loc)
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, c.loc)
}

func (c calendar) dayKey(t time.Time) string {
	return t.In(c.loc).Format(dayLayout)
}
