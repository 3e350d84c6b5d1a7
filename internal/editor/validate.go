package editor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"utrcal/internal/model"
)

// FieldError is used to indicate an error with a specific draft field.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (err *ValidationError) Error() string {
	msgs := make([]string, 0, len(err.Fields))
	for _, f := range err.Fields {
		msgs = append(msgs, f.Field+": "+f.Error)
	}
	return "editor: invalid draft: " + strings.Join(msgs, "; ")
}

var (
	weekdayTag  = "weekday"
	timeTag     = "time_order"
	colorTag    = "color_range"
	fieldLabels = map[string]string{
		"Title":     "title",
		"Day":       "day",
		"StartTime": "startTime",
		"EndTime":   "endTime",
		"Color":     "color",
	}
	fieldTexts = map[string]string{
		"required": "is required",
		weekdayTag: "must be one of Mon, Tue, Wed, Thu, Fri",
		timeTag:    "must be after the start time",
		colorTag:   "components must be within [0,1]",
	}
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation(weekdayTag, func(fl validator.FieldLevel) bool {
		return model.Day(fl.Field().String()).Valid()
	}); err != nil {
		panic("editor: register " + weekdayTag + " validation: " + err.Error())
	}
	v.RegisterStructValidation(draftStructValidation, Draft{})
	return v
}

// draftStructValidation checks rules spanning several fields: the clock
// time order and the color components.
func draftStructValidation(sl validator.StructLevel) {
	d := sl.Current().Interface().(Draft)

	if clockMinutes(d.EndTime.Hour(), d.EndTime.Minute()) <= clockMinutes(d.StartTime.Hour(), d.StartTime.Minute()) {
		sl.ReportError(d.EndTime, "EndTime", "EndTime", timeTag, "")
	}

	c := d.Color
	for _, v := range []float64{c.Red, c.Green, c.Blue, c.Opacity} {
		// NaN fails both comparisons.
		if !(v >= 0 && v <= 1) {
			sl.ReportError(d.Color, "Color", "Color", colorTag, "")
			break
		}
	}
}

func clockMinutes(h, m int) int {
	return h*60 + m
}

// Validate checks a draft before it becomes an entry. It is optional:
// Build accepts anything.
func Validate(d Draft) error {
	err := validate.Struct(d)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("editor: validate: %w", err)
	}

	out := &ValidationError{}
	for _, fe := range verrs {
		field := fieldLabels[fe.StructField()]
		if field == "" {
			field = fe.Field()
		}
		text := fieldTexts[fe.Tag()]
		if text == "" {
			text = "is invalid"
		}
		out.Fields = append(out.Fields, FieldError{Field: field, Error: text})
	}
	return out
}
