package framecsv

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/carbocation/pfx"

	"github.com/danceqc/posemisc"
	"github.com/danceqc/posemisc/landmark"
)

// extent is the byte range of one frame's contiguous block of rows.
type extent struct {
	Offset int64
	Length int
}

// RandomAccess indexes a landmark CSV by frame ID so single frames can be
// served without loading the run into memory. It requires an uncompressed
// file with each frame's rows written contiguously, which is how Write and
// Appender lay them out. The file is scanned once to build the index; reads
// then go straight to the frame's byte range.
type RandomAccess struct {
	file    *os.File
	comma   rune
	header  []byte
	extents map[int]extent
	frames  []int
}

// OpenRandomAccess indexes the file at path.
func OpenRandomAccess(path string) (*RandomAccess, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, pfx.Err(err)
	}

	ra, err := newRandomAccess(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	return ra, nil
}

func newRandomAccess(f *os.File) (*RandomAccess, error) {
	comma := posemisc.DetermineDelimiter(f)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, pfx.Err(err)
	}

	ra := &RandomAccess{
		file:    f,
		comma:   comma,
		extents: make(map[int]extent),
	}

	scanner := bufio.NewScanner(f)
	scanner.Split(scanLinesNondestructive)

	var offset int64
	frameCol := -1
	current := -1

	for scanner.Scan() {
		line := scanner.Bytes()
		n := len(line)

		if ra.header == nil {
			ra.header = append([]byte{}, line...)
			fields, err := parseLine(line, comma)
			if err != nil {
				return nil, pfx.Err(err)
			}
			for i, name := range fields {
				if name == "frame_id" {
					frameCol = i
					break
				}
			}
			if frameCol < 0 {
				return nil, fmt.Errorf("no frame_id column in header %q", string(line))
			}
			offset += int64(n)
			continue
		}

		fields, err := parseLine(line, comma)
		if err != nil {
			return nil, pfx.Err(err)
		}
		if frameCol >= len(fields) {
			return nil, fmt.Errorf("row at offset %d has %d fields, frame_id is column %d", offset, len(fields), frameCol)
		}
		id, err := strconv.Atoi(fields[frameCol])
		if err != nil {
			return nil, fmt.Errorf("bad frame ID %q at offset %d: %v", fields[frameCol], offset, err)
		}

		switch {
		case id == current:
			ext := ra.extents[id]
			ext.Length += n
			ra.extents[id] = ext
		default:
			if _, seen := ra.extents[id]; seen {
				return nil, fmt.Errorf("frame %d appears in two separate blocks; rows must be contiguous per frame", id)
			}
			ra.extents[id] = extent{Offset: offset, Length: n}
			ra.frames = append(ra.frames, id)
			current = id
		}

		offset += int64(n)
	}
	if err := scanner.Err(); err != nil {
		return nil, pfx.Err(err)
	}

	sort.Ints(ra.frames)

	return ra, nil
}

// Frame fetches one frame by ID. The second return is false when the file has
// no rows for that frame.
func (ra *RandomAccess) Frame(frameID int) (landmark.FrameResult, bool, error) {
	ext, ok := ra.extents[frameID]
	if !ok {
		return landmark.FrameResult{}, false, nil
	}

	buf := make([]byte, len(ra.header)+ext.Length)
	copy(buf, ra.header)
	if _, err := ra.file.ReadAt(buf[len(ra.header):], ext.Offset); err != nil {
		return landmark.FrameResult{}, false, pfx.Err(err)
	}

	seq, err := Read(bytes.NewReader(buf), ra.comma)
	if err != nil {
		return landmark.FrameResult{}, false, err
	}
	if len(seq) != 1 || seq[0].FrameID != frameID {
		return landmark.FrameResult{}, false, fmt.Errorf("block for frame %d parsed into %d frames", frameID, len(seq))
	}

	return seq[0], true, nil
}

// Frames lists the indexed frame IDs in ascending order.
func (ra *RandomAccess) Frames() []int {
	out := make([]int, len(ra.frames))
	copy(out, ra.frames)
	return out
}

func (ra *RandomAccess) Close() error {
	return ra.file.Close()
}

// parseLine runs a single raw line through a csv reader so quoting rules stay
// consistent with the bulk reader.
func parseLine(line []byte, comma rune) ([]string, error) {
	cr := csv.NewReader(bytes.NewReader(line))
	cr.Comma = comma
	cr.LazyQuotes = true
	return cr.Read()
}

// scanLinesNondestructive does not strip the \n or the possible \r\n from a
// line, so token lengths sum to exact byte offsets. Otherwise it is like
// bufio.ScanLines.
func scanLinesNondestructive(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return i + 1, data[0 : i+1], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
