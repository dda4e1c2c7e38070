package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/Sriram-PR/page-auditor/pkg/models"
)

// eventSink renders a run's event stream
type eventSink interface {
	Write(e models.Event) error
}

// jsonlSink writes every event as one JSON object per line
type jsonlSink struct {
	enc *json.Encoder
}

func newJSONLSink(w io.Writer) *jsonlSink {
	return &jsonlSink{enc: json.NewEncoder(w)}
}

func (s *jsonlSink) Write(e models.Event) error {
	return s.enc.Encode(e)
}

// textSink prints one line per result and a summary at the end. Progress events are skipped.
type textSink struct {
	w       io.Writer
	palette map[models.Bucket]*color.Color
	bold    *color.Color
}

func newTextSink(w io.Writer, noColor bool) *textSink {
	s := &textSink{
		w: w,
		palette: map[models.Bucket]*color.Color{
			models.BucketSuccess:  color.New(color.FgGreen),
			models.BucketWarnings: color.New(color.FgYellow),
			models.BucketErrors:   color.New(color.FgRed),
			models.BucketOther:    color.New(color.FgCyan),
		},
		bold: color.New(color.Bold),
	}
	if noColor {
		for _, c := range s.palette {
			c.DisableColor()
		}
		s.bold.DisableColor()
	}
	return s
}

func (s *textSink) Write(e models.Event) error {
	switch e.Type {
	case models.EventResult:
		if e.Result != nil {
			return s.writeResult(*e.Result)
		}
	case models.EventComplete:
		if e.Report != nil {
			return s.writeSummary(*e.Report)
		}
	}
	return nil
}

func (s *textSink) writeResult(r models.ProbeResult) error {
	label := s.palette[r.Status.Bucket()].Sprintf("%-11s", r.Status)
	code := "   "
	if r.StatusCode > 0 {
		code = fmt.Sprintf("%3d", r.StatusCode)
	}
	line := fmt.Sprintf("%s %s %-5s %s", label, code, r.Kind, r.URL)
	if r.StatusMessage != "" {
		line += "  (" + r.StatusMessage + ")"
	}
	if r.FromCache {
		line += " [cached]"
	}
	_, err := fmt.Fprintln(s.w, line)
	return err
}

func (s *textSink) writeSummary(report models.Report) error {
	sum := report.Summary
	var imageBytes int64
	for _, r := range report.Images {
		imageBytes += r.ContentLength
	}

	fmt.Fprintln(s.w)
	s.bold.Fprintln(s.w, "Summary")
	fmt.Fprintf(s.w, "  Links:   %d checked, %d successful\n", sum.TotalLinks, sum.SuccessfulLinks)
	fmt.Fprintf(s.w, "  Images:  %d checked, %d successful (%s reported)\n", sum.TotalImages, sum.SuccessfulImages, humanize.IBytes(uint64(imageBytes)))
	fmt.Fprintf(s.w, "  %s  %s  %s\n",
		s.palette[models.BucketSuccess].Sprintf("Success: %d", sum.Success),
		s.palette[models.BucketWarnings].Sprintf("Warnings: %d", sum.Warnings),
		s.palette[models.BucketErrors].Sprintf("Errors: %d", sum.Errors))
	if sum.MightBeValid > 0 {
		fmt.Fprintf(s.w, "  Might be valid: %d\n", sum.MightBeValid)
	}
	_, err := fmt.Fprintf(s.w, "  Duration: %s", sum.Duration.Round(time.Millisecond))
	if err != nil {
		return err
	}
	if sum.Aborted {
		fmt.Fprint(s.w, " (stopped early)")
	}
	_, err = fmt.Fprintln(s.w)
	return err
}
