package ics

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"utrcal/internal/editor"
	appLog "utrcal/internal/log"
	"utrcal/internal/model"
)

// Imported is one weekly class read from an iCalendar feed.
type Imported struct {
	// UID is the VEVENT UID. Feeds produced by Export use entry ids.
	UID   string
	Draft editor.Draft
}

// Import parses an iCalendar payload into drafts. Events that cannot be
// placed on a Mon..Fri column are skipped and logged, as are events
// missing a UID or a start time.
func Import(body []byte) ([]Imported, error) {
	if len(body) == 0 {
		return nil, errors.New("ics: empty body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err)
		return nil, err
	}

	out := make([]Imported, 0)
	for _, ve := range cal.Events() {
		item, perr := parseVEvent(ve)
		if perr != nil {
			appLog.Warn("ics vevent skipped", "reason", perr.Error())
			continue
		}
		out = append(out, item)
	}

	appLog.Info("ics import completed", "events", len(out))
	return out, nil
}

func parseVEvent(ve *ical.VEvent) (Imported, error) {
	var out Imported

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	startProp := ve.GetProperty(ical.ComponentPropertyDtStart)
	if startProp == nil {
		return out, errors.New("missing DTSTART for " + out.UID)
	}
	start, err := parseICSTime(startProp.Value)
	if err != nil {
		return out, err
	}
	end := start
	if endProp := ve.GetProperty(ical.ComponentPropertyDtEnd); endProp != nil {
		if t, err := parseICSTime(endProp.Value); err == nil {
			end = t
		}
	}

	day, ok := dayOf(ve, start)
	if !ok {
		return out, errors.New("not on a weekday: " + out.UID)
	}

	d := editor.Draft{
		Day:       day,
		Color:     model.Blue,
		StartTime: start,
		EndTime:   end,
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		d.Title = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		d.Location = p.Value
	}
	if p := ve.GetProperty(propProfessor); p != nil {
		d.Professor = p.Value
	}
	if p := ve.GetProperty(propColor); p != nil {
		if c, err := parseColor(p.Value); err == nil {
			d.Color = c
		}
	}

	out.Draft = d
	return out, nil
}

// dayOf picks the timetable column: the first BYDAY of a weekly RRULE if
// present, the weekday of DTSTART otherwise.
func dayOf(ve *ical.VEvent, start time.Time) (model.Day, bool) {
	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		opt, err := rrule.StrToROption(p.Value)
		if err == nil && len(opt.Byweekday) > 0 {
			idx := opt.Byweekday[0].Day() // 0 = Monday
			if idx > 4 {
				return "", false
			}
			return model.DayAt(idx), true
		}
	}

	switch wd := start.Weekday(); wd {
	case time.Saturday, time.Sunday:
		return "", false
	default:
		return model.DayAt(int(wd) - 1), true
	}
}

// parseICSTime parses a DATE or DATE-TIME value. UTC values are moved to
// local time; floating values are read as local wall clock.
func parseICSTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}

	if strings.HasSuffix(v, "Z") {
		t, err := time.Parse("20060102T150405Z", v)
		if err != nil {
			return time.Time{}, err
		}
		return t.In(time.Local), nil
	}
	if strings.Contains(v, "T") {
		return time.ParseInLocation(localLayout, v, time.Local)
	}
	return time.ParseInLocation("20060102", v, time.Local)
}
