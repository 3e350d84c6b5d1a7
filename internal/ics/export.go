package ics

import (
	"errors"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"utrcal/internal/model"
)

const (
	productID = "-//utrcal//weekly timetable//KO"

	propProfessor = ical.ComponentProperty("X-UTR-PROFESSOR")
	propColor     = ical.ComponentProperty("X-UTR-COLOR")

	// Floating local time: the timetable has no timezone of its own.
	localLayout = "20060102T150405"
)

var byDay = []rrule.Weekday{rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR}

// Export renders entries as an iCalendar feed. Each entry becomes a
// weekly recurring VEVENT whose first occurrence falls in the week
// containing now, at the entry's clock times.
func Export(entries []model.ClassEntry, now time.Time) ([]byte, error) {
	cal := ical.NewCalendar()
	cal.SetProductId(productID)
	cal.SetMethod(ical.MethodPublish)

	monday := weekStart(now)
	stamp := now.UTC()

	for _, e := range entries {
		if e.ID == "" {
			return nil, errors.New("ics: entry without id")
		}
		day := monday.AddDate(0, 0, e.DayIndex())
		start := atClock(day, e.StartTime)
		end := atClock(day, e.EndTime)

		ev := cal.AddEvent(e.ID)
		ev.SetDtStampTime(stamp)
		ev.SetSummary(e.Title)
		if e.Location != "" {
			ev.SetLocation(e.Location)
		}
		if e.Professor != "" {
			ev.SetProperty(propProfessor, e.Professor)
		}
		ev.SetProperty(propColor, formatColor(e.Color))
		ev.SetProperty(ical.ComponentPropertyDtStart, start.Format(localLayout))
		ev.SetProperty(ical.ComponentPropertyDtEnd, end.Format(localLayout))
		ev.AddProperty(ical.ComponentPropertyRrule, weeklyRule(e.DayIndex()))
	}

	return []byte(cal.Serialize()), nil
}

// weeklyRule returns the RRULE value for a class held every week on the
// given day column.
func weeklyRule(dayIndex int) string {
	if dayIndex < 0 || dayIndex >= len(byDay) {
		dayIndex = 0
	}
	opt := rrule.ROption{
		Freq:      rrule.WEEKLY,
		Byweekday: []rrule.Weekday{byDay[dayIndex]},
	}
	return opt.RRuleString()
}

// weekStart returns midnight of the Monday of t's week.
func weekStart(t time.Time) time.Time {
	offset := int(t.Weekday())
	if offset == 0 {
		offset = 7
	}
	d := t.AddDate(0, 0, -offset+1)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, t.Location())
}

func atClock(day, clock time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), clock.Second(), 0, day.Location())
}

func formatColor(c model.Color) string {
	parts := make([]string, 0, 4)
	for _, v := range []float64{c.Red, c.Green, c.Blue, c.Opacity} {
		parts = append(parts, strconv.FormatFloat(v, 'g', -1, 64))
	}
	return strings.Join(parts, ",")
}

func parseColor(s string) (model.Color, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return model.Color{}, errors.New("ics: color needs four components")
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return model.Color{}, err
		}
		vals[i] = v
	}
	return model.Color{Red: vals[0], Green: vals[1], Blue: vals[2], Opacity: vals[3]}, nil
}
