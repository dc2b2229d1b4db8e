// Package vidio is a thin facade over ffmpeg-backed video decode/encode plus
// directories of dumped frame images, presenting both as an ordered frame
// stream. Paths are local; cloud inputs get staged to disk first.
package vidio

import (
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/carbocation/pfx"
	"github.com/unixpickle/ffmpego"

	// Frame dumps arrive in whatever format the extraction step chose.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
)

var (
	// ErrDecodeFailure marks a single undecodable frame. Callers skip the
	// frame and record the gap; it never aborts a run by itself.
	ErrDecodeFailure = errors.New("frame decode failure")

	// ErrNoFrames means the source opened cleanly but yielded nothing, which
	// is fatal for the run.
	ErrNoFrames = errors.New("no frames decoded")
)

// Info describes a frame source. FPS is 0 when the source has no intrinsic
// rate (image directories).
type Info struct {
	Width  int
	Height int
	FPS    float64
}

// Reader yields frames in order from a video file or a directory of images.
type Reader struct {
	info Info

	vr *ffmpego.VideoReader

	// Image-directory mode.
	files []string
	pos   int

	delivered int
}

// Open dispatches on path: directories become image-sequence readers,
// everything else is handed to ffmpeg.
func Open(path string) (*Reader, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, pfx.Err(err)
	}

	if st.IsDir() {
		return OpenImageDir(path)
	}

	return OpenVideo(path)
}

// OpenVideo opens a video file for decoding via ffmpeg.
func OpenVideo(path string) (*Reader, error) {
	vr, err := ffmpego.NewVideoReader(path)
	if err != nil {
		return nil, pfx.Err(err)
	}

	info := vr.VideoInfo()

	return &Reader{
		info: Info{Width: info.Width, Height: info.Height, FPS: info.FPS},
		vr:   vr,
	}, nil
}

// OpenImageDir opens a directory of dumped frames, ordered by filename. Frame
// dumps are zero-padded, so lexical order is frame order.
func OpenImageDir(path string) (*Reader, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, pfx.Err(err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".jpg", ".jpeg", ".gif", ".bmp":
			files = append(files, filepath.Join(path, e.Name()))
		}
	}
	sort.Strings(files)

	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no image files under %s", ErrNoFrames, path)
	}

	// Probe dimensions from the first decodable file.
	info := Info{}
	for _, name := range files {
		f, err := os.Open(name)
		if err != nil {
			continue
		}
		cfg, _, err := image.DecodeConfig(f)
		f.Close()
		if err == nil {
			info.Width, info.Height = cfg.Width, cfg.Height
			break
		}
	}

	return &Reader{info: info, files: files}, nil
}

// Info reports the source dimensions and frame rate.
func (r *Reader) Info() Info {
	return r.info
}

// ReadFrame returns the next frame and its zero-based index. At the end of
// the stream it returns io.EOF, or ErrNoFrames if nothing was ever delivered.
// A failed decode returns ErrDecodeFailure (wrapped with the frame index) and
// the stream moves past the bad frame where the backend allows it.
func (r *Reader) ReadFrame() (image.Image, int, error) {
	if r.vr != nil {
		return r.readVideoFrame()
	}
	return r.readImageFile()
}

func (r *Reader) readVideoFrame() (image.Image, int, error) {
	idx := r.pos

	img, err := r.vr.ReadFrame()
	if err == io.EOF {
		if r.delivered == 0 {
			return nil, idx, ErrNoFrames
		}
		return nil, idx, io.EOF
	}
	if err != nil {
		r.pos++
		return nil, idx, fmt.Errorf("%w at frame %d: %v", ErrDecodeFailure, idx, err)
	}

	r.pos++
	r.delivered++

	return img, idx, nil
}

func (r *Reader) readImageFile() (image.Image, int, error) {
	idx := r.pos

	if r.pos >= len(r.files) {
		if r.delivered == 0 {
			return nil, idx, ErrNoFrames
		}
		return nil, idx, io.EOF
	}

	name := r.files[r.pos]
	r.pos++

	f, err := os.Open(name)
	if err != nil {
		return nil, idx, fmt.Errorf("%w at frame %d (%s): %v", ErrDecodeFailure, idx, name, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, idx, fmt.Errorf("%w at frame %d (%s): %v", ErrDecodeFailure, idx, name, err)
	}

	r.delivered++

	return img, idx, nil
}

// Len returns the frame count when it is knowable up front (image
// directories), or -1 for streamed video.
func (r *Reader) Len() int {
	if r.vr != nil {
		return -1
	}
	return len(r.files)
}

func (r *Reader) Close() error {
	if r.vr != nil {
		return r.vr.Close()
	}
	return nil
}

// Writer encodes frames to a video file.
type Writer struct {
	vw *ffmpego.VideoWriter
}

// NewWriter creates an encoder at the given geometry and frame rate.
func NewWriter(path string, width, height int, fps float64) (*Writer, error) {
	vw, err := ffmpego.NewVideoWriter(path, width, height, fps)
	if err != nil {
		return nil, pfx.Err(err)
	}
	return &Writer{vw: vw}, nil
}

func (w *Writer) WriteFrame(img image.Image) error {
	return pfx.Err(w.vw.WriteFrame(img))
}

func (w *Writer) Close() error {
	return pfx.Err(w.vw.Close())
}
