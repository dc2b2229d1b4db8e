package framecsv

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/carbocation/pfx"
	"github.com/gocarina/gocsv"

	"github.com/danceqc/posemisc"
	"github.com/danceqc/posemisc/landmark"
)

// Read parses landmark rows from r with the given delimiter and reassembles
// the sequence. Rows may arrive in any order as long as each frame's rows
// agree with one another; frames come back sorted by frame ID.
func Read(r io.Reader, comma rune) (landmark.Sequence, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.LazyQuotes = true

	var rows []*Row
	if err := gocsv.UnmarshalCSV(cr, &rows); err != nil {
		return nil, pfx.Err(err)
	}

	byFrame := make(map[int][]*Row)
	for _, row := range rows {
		if row.FrameID < 0 {
			return nil, fmt.Errorf("negative frame ID %d", row.FrameID)
		}
		byFrame[row.FrameID] = append(byFrame[row.FrameID], row)
	}

	frameIDs := make([]int, 0, len(byFrame))
	for id := range byFrame {
		frameIDs = append(frameIDs, id)
	}
	sort.Ints(frameIDs)

	seq := make(landmark.Sequence, 0, len(frameIDs))
	for _, id := range frameIDs {
		fr, err := frameFromRows(id, byFrame[id])
		if err != nil {
			return nil, pfx.Err(err)
		}
		seq = append(seq, fr)
	}

	return seq, nil
}

// ReadFile loads a landmark CSV from disk, transparently decompressing
// gzip/zip/xz/zlib/bzip2 files and sniffing the delimiter, so outputs that
// were compressed for archival or re-exported as TSV load the same way. The
// whole file is held in memory, which is fine at 33 rows per frame.
func ReadFile(path string) (landmark.Sequence, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, pfx.Err(err)
	}
	defer f.Close()

	rc, err := posemisc.MaybeDecompressReadCloserFromFile(f)
	if err != nil {
		return nil, pfx.Err(err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, pfx.Err(err)
	}

	comma := posemisc.DetermineDelimiter(bytes.NewReader(data))

	return Read(bytes.NewReader(data), comma)
}
