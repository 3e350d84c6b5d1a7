package model

import "time"

// Day is a weekday column of the timetable. The week is fixed to
// Monday through Friday.
type Day string

const (
	Mon Day = "Mon"
	Tue Day = "Tue"
	Wed Day = "Wed"
	Thu Day = "Thu"
	Fri Day = "Fri"
)

// Weekdays lists the timetable columns in display order.
var Weekdays = []Day{Mon, Tue, Wed, Thu, Fri}

var dayIndex = map[Day]int{
	Mon: 0, Tue: 1, Wed: 2, Thu: 3, Fri: 4,
	// Labels stored by the Korean UI.
	"월": 0, "화": 1, "수": 2, "목": 3, "금": 4,
}

// Index maps the day to its column 0..4. Unrecognized values map to 0.
func (d Day) Index() int {
	return dayIndex[d]
}

// Valid reports whether d is one of the five known days.
func (d Day) Valid() bool {
	_, ok := dayIndex[d]
	return ok
}

// DayAt returns the day for column i, or Mon when i is out of range.
func DayAt(i int) Day {
	if i < 0 || i >= len(Weekdays) {
		return Mon
	}
	return Weekdays[i]
}

// DayLabels returns the column headers for the given locale ("ko" or "en").
func DayLabels(locale string) []string {
	if locale == "en" {
		return []string{"Mon", "Tue", "Wed", "Thu", "Fri"}
	}
	return []string{"월", "화", "수", "목", "금"}
}

// Color is an sRGB color with opacity, every component in [0,1].
type Color struct {
	Red     float64 `json:"red"`
	Green   float64 `json:"green"`
	Blue    float64 `json:"blue"`
	Opacity float64 `json:"opacity"`
}

// Blue is the color a new draft starts with.
var Blue = Color{Red: 0, Green: 0.478, Blue: 1, Opacity: 1}

// ClassEntry is a single class occupying one weekly day/hour range.
type ClassEntry struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Location  string `json:"location"`
	Professor string `json:"professor"`
	Color     Color  `json:"color"`
	Day       Day    `json:"day"`

	// StartTime / EndTime are local wall-clock values. Only the hour is
	// used for grid placement; the full date is used for the alert.
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

func (e ClassEntry) DayIndex() int {
	return e.Day.Index()
}

func (e ClassEntry) StartHour() int {
	return e.StartTime.Hour()
}

func (e ClassEntry) EndHour() int {
	return e.EndTime.Hour()
}

// Equal compares entries field by field, using time.Time.Equal for the
// wall-clock values so that decoded entries compare equal to the originals.
func (e ClassEntry) Equal(o ClassEntry) bool {
	return e.ID == o.ID &&
		e.Title == o.Title &&
		e.Location == o.Location &&
		e.Professor == o.Professor &&
		e.Color == o.Color &&
		e.Day == o.Day &&
		e.StartTime.Equal(o.StartTime) &&
		e.EndTime.Equal(o.EndTime)
}
