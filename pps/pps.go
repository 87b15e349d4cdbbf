// Package pps formats the receiver's pulse-per-second output: one line
// format for FM's pilot-derived events, and a simpler periodic line for
// the other modes (which have no pilot to derive events from, but still
// report cadence for operator monitoring).
package pps

import (
	"fmt"
	"io"

	"github.com/sdrkit/fmradion/pilot"
)

// FMHeader is the header line for FM's PPS output.
const FMHeader = "#pps_index sample_index   unix_time\n"

// OtherHeader is the header line for non-FM modes' periodic output.
const OtherHeader = "#  block   unix_time\n"

// Writer formats PPS/periodic lines to an io.Writer.
type Writer struct {
	w          io.Writer
	headerDone bool
	fm         bool
}

// NewFMWriter builds a Writer for FM's pilot-derived PPS events.
func NewFMWriter(w io.Writer) *Writer { return &Writer{w: w, fm: true} }

// NewOtherWriter builds a Writer for the other modes' periodic block
// reports.
func NewOtherWriter(w io.Writer) *Writer { return &Writer{w: w, fm: false} }

// FM reports whether this writer formats pilot-derived PPS events (true)
// or periodic block reports (false).
func (p *Writer) FM() bool { return p.fm }

// WriteEvent formats one FM PPS event as "%8s %14s %18.6f\n", writing the
// header line first if it hasn't been written yet. unixTime is the wall
// clock time the event was observed.
func (p *Writer) WriteEvent(ev pilot.Event, unixTime float64) error {
	if !p.fm {
		return fmt.Errorf("pps: WriteEvent called on a non-FM Writer")
	}
	if !p.headerDone {
		if _, err := io.WriteString(p.w, FMHeader); err != nil {
			return err
		}
		p.headerDone = true
	}
	_, err := fmt.Fprintf(p.w, "%8s %14s %18.6f\n",
		fmt.Sprintf("%d", ev.PPSIndex),
		fmt.Sprintf("%d", ev.SampleIndex),
		unixTime)
	return err
}

// WriteBlock formats one non-FM periodic report as "%8d %18.6f\n".
func (p *Writer) WriteBlock(block int, unixTime float64) error {
	if p.fm {
		return fmt.Errorf("pps: WriteBlock called on an FM Writer")
	}
	if !p.headerDone {
		if _, err := io.WriteString(p.w, OtherHeader); err != nil {
			return err
		}
		p.headerDone = true
	}
	_, err := fmt.Fprintf(p.w, "%8d %18.6f\n", block, unixTime)
	return err
}
