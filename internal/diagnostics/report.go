package diagnostics

import (
	"fmt"
	"html"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/lodestar-guide/autoguide/internal/calibration"
)

// RenderCalibrationHTML writes an interactive two-series scatter of
// the calibration sweep traces, the same components.Page-plus-
// charts.NewScatter combination the teacher's echarts_handlers.go
// builds for its own sensor dashboards, followed by a plain HTML table
// of the Assistant summary (falling back to a raw HTML string for
// dashboard content go-echarts has no chart type for). Neither draws
// a polar-alignment circle: the only plotted series are RA/Dec
// displacement vs. pulse.
func RenderCalibrationHTML(details calibration.Details, assistant Assistant, w io.Writer) error {
	page := components.NewPage()

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Calibration sweep traces", Theme: "dark", Width: "900px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: "Calibration sweep traces", Subtitle: fmt.Sprintf("RA steps=%d Dec steps=%d ortho err=%.2f deg", details.RASteps, details.DecSteps, details.OrthoErrorDeg)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Cumulative pulse (ms)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Displacement (px)", NameLocation: "middle", NameGap: 30}),
	)
	scatter.AddSeries("RA/X", traceToScatterData(details.XTrace))
	scatter.AddSeries("Dec/Y", traceToScatterData(details.YTrace))

	page.AddCharts(scatter)

	if err := page.Render(w); err != nil {
		return fmt.Errorf("diagnostics: render calibration report: %w", err)
	}
	_, err := io.WriteString(w, assistantSummaryHTML(details, assistant))
	if err != nil {
		return fmt.Errorf("diagnostics: write assistant summary: %w", err)
	}
	return nil
}

func traceToScatterData(trace []calibration.CalibrationSample) []opts.ScatterData {
	if len(trace) == 0 {
		return nil
	}
	origin := trace[0].Pos
	data := make([]opts.ScatterData, len(trace))
	for i, s := range trace {
		data[i] = opts.ScatterData{Value: []interface{}{s.PulseMs, displacement(s.Pos, origin)}}
	}
	return data
}

const summaryRowHTML = "<tr><td>%s</td><td>%s</td></tr>\n"

// assistantSummaryHTML renders the Guiding Assistant numbers as a
// plain HTML table, HTML-escaping every label and value (LastIssue
// included).
func assistantSummaryHTML(details calibration.Details, a Assistant) string {
	rows := [][2]string{
		{"samples", fmt.Sprintf("%d", a.Samples)},
		{"RA RMS (px)", fmt.Sprintf("%.3f", a.RARMSPx)},
		{"Dec RMS (px)", fmt.Sprintf("%.3f", a.DecRMSPx)},
		{"combined RMS (px)", fmt.Sprintf("%.3f", a.CombinedRMSPx)},
		{"RA peak-to-peak (px)", fmt.Sprintf("%.3f", a.RAPeakToPeakPx)},
		{"RA drift (px/min)", fmt.Sprintf("%.3f", a.RADriftPxPerMin)},
		{"Dec drift (px/min)", fmt.Sprintf("%.3f", a.DecDriftPxPerMin)},
		{"mean SNR", fmt.Sprintf("%.1f", a.MeanSNR)},
		{"mean mass", fmt.Sprintf("%.0f", a.MeanMass)},
		{"recommended RA min-move (px)", fmt.Sprintf("%.2f", a.RecommendedRAMinMovePx)},
		{"recommended Dec min-move (px)", fmt.Sprintf("%.2f", a.RecommendedDecMinMovePx)},
		{"periodic error estimate (px)", fmt.Sprintf("%.3f", a.PeriodicErrorPx)},
		{"declination backlash (ms)", fmt.Sprintf("%d", a.BacklashMs)},
		{"last calibration issue", issueOrNone(details.LastIssue)},
	}

	out := "<h2>Guiding Assistant summary</h2>\n<table border=\"1\" cellpadding=\"4\">\n"
	for _, row := range rows {
		out += fmt.Sprintf(summaryRowHTML, html.EscapeString(row[0]), html.EscapeString(row[1]))
	}
	out += "</table>\n"
	return out
}

func issueOrNone(issue string) string {
	if issue == "" {
		return "none"
	}
	return issue
}
