package web

import (
	"bytes"
	"fmt"
	"html/template"
	"math"
	"net/http"

	"utrcal/internal/grid"
	appLog "utrcal/internal/log"
	"utrcal/internal/model"
)

var templateFuncs = template.FuncMap{
	"rgba": rgba,
}

// rgba renders c as a CSS color. Components are clamped to [0,1].
func rgba(c model.Color) template.CSS {
	ch := func(v float64) int {
		return int(math.Round(clamp01(v) * 255))
	}
	return template.CSS(fmt.Sprintf("rgba(%d, %d, %d, %.3f)", ch(c.Red), ch(c.Green), ch(c.Blue), clamp01(c.Opacity)))
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

type pageBlock struct {
	Title    string
	Location string
	Color    template.CSS
	Column   int
	Row      int
	Span     int
}

type pageData struct {
	Days   []pageDay
	Hours  []pageHour
	Blocks []pageBlock
}

type pageDay struct {
	Label  string
	Column int
}

type pageHour struct {
	Label string
	Row   int
}

// gridPageData maps a layout onto CSS grid coordinates. Row 1 and
// column 1 hold the headers.
func gridPageData(layout *grid.Layout, locale string) pageData {
	var data pageData
	for i, label := range model.DayLabels(locale) {
		data.Days = append(data.Days, pageDay{Label: label, Column: i + 2})
	}
	for _, h := range grid.Hours() {
		data.Hours = append(data.Hours, pageHour{
			Label: fmt.Sprintf("%02d", h),
			Row:   h - grid.FirstHour + 2,
		})
	}
	for _, b := range layout.Blocks() {
		data.Blocks = append(data.Blocks, pageBlock{
			Title:    b.Entry.Title,
			Location: b.Entry.Location,
			Color:    rgba(b.Entry.Color),
			Column:   b.Day + 2,
			Row:      b.Hour - grid.FirstHour + 2,
			Span:     b.Span,
		})
	}
	return data
}

// handleGridPage renders the weekly grid as standalone HTML. It is also
// the page the snapshot capture loads.
func (s *Server) handleGridPage(w http.ResponseWriter, _ *http.Request) {
	var buf bytes.Buffer
	if err := s.page.Execute(&buf, gridPageData(s.svc.Grid(), s.cfg.Locale)); err != nil {
		appLog.Error("grid page render failed", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}
