package framecsv

import (
	"io"
	"os"

	"github.com/carbocation/pfx"
	"github.com/gocarina/gocsv"

	"github.com/danceqc/posemisc/landmark"
)

// Write renders the whole sequence as comma-delimited CSV with a header row.
// Empty frames are skipped, leaving gaps in the frame IDs.
func Write(w io.Writer, seq landmark.Sequence) error {
	all := make([]*Row, 0, len(seq)*landmark.Count)
	for _, fr := range seq {
		all = append(all, Rows(fr)...)
	}

	return pfx.Err(gocsv.Marshal(&all, w))
}

// WriteFile writes the sequence to path, replacing whatever was there.
func WriteFile(path string, seq landmark.Sequence) error {
	f, err := os.Create(path)
	if err != nil {
		return pfx.Err(err)
	}
	defer f.Close()

	if err := Write(f, seq); err != nil {
		return err
	}

	return pfx.Err(f.Close())
}

// Appender streams frame results to CSV as the pipeline produces them, one
// flushed batch per frame, so an interrupted run leaves a loadable file
// behind for resumption. Not safe for concurrent use.
type Appender struct {
	w         io.Writer
	needsHead bool
}

// NewAppender writes a header before the first appended frame.
func NewAppender(w io.Writer) *Appender {
	return &Appender{w: w, needsHead: true}
}

// NewResumingAppender appends to output that already carries a header.
func NewResumingAppender(w io.Writer) *Appender {
	return &Appender{w: w}
}

// Append writes one frame's rows. Empty frames write nothing.
func (a *Appender) Append(fr landmark.FrameResult) error {
	rows := Rows(fr)
	if len(rows) == 0 {
		return nil
	}

	if a.needsHead {
		if err := gocsv.Marshal(&[]*Row{}, a.w); err != nil {
			return pfx.Err(err)
		}
		a.needsHead = false
	}

	return pfx.Err(gocsv.MarshalWithoutHeaders(&rows, a.w))
}
