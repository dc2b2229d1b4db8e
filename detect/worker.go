package detect

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"image"
	"image/draw"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/carbocation/pfx"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/danceqc/posemisc/landmark"
)

// WorkerConfig describes how to launch the external pose-model worker.
type WorkerConfig struct {
	// Command is the worker invocation, e.g. {"python3", "pose_worker.py"}.
	// The chosen mode is appended as "--mode independent|tracking" so the
	// worker configures its model to match.
	Command []string

	Mode Mode
}

// Worker bridges to a pose-model process over stdin/stdout. Each request and
// response is a 4-byte big-endian length prefix followed by a msgpack body.
// Calls are serialized with a mutex: the model is single-threaded, and in
// tracking mode the call order is the frame order.
type Worker struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	rd    *bufio.Reader
	mode  Mode

	mu sync.Mutex
}

// NewWorker launches the worker process and returns once its pipes are wired.
// The worker's stderr passes through to this process's stderr so model logs
// stay visible.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if err := cfg.Mode.Validate(); err != nil {
		return nil, err
	}
	if len(cfg.Command) == 0 {
		return nil, fmt.Errorf("worker command must not be empty")
	}

	args := append(append([]string{}, cfg.Command[1:]...), "--mode", cfg.Mode.String())
	cmd := exec.Command(cfg.Command[0], args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, pfx.Err(err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, pfx.Err(err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, pfx.Err(err)
	}

	return &Worker{
		cmd:   cmd,
		stdin: stdin,
		rd:    bufio.NewReader(stdout),
		mode:  cfg.Mode,
	}, nil
}

// Mode reports the mode the worker was launched with.
func (w *Worker) Mode() Mode {
	return w.mode
}

// Close shuts down the worker by closing its stdin and waiting for exit.
func (w *Worker) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.stdin.Close(); err != nil {
		return pfx.Err(err)
	}

	return pfx.Err(w.cmd.Wait())
}

type workerRequest struct {
	Width         int     `msgpack:"w"`
	Height        int     `msgpack:"h"`
	Data          []byte  `msgpack:"d"` // RGB uint8, row-major, shape (H, W, 3)
	MinConfidence float64 `msgpack:"c"`
}

type workerPoint struct {
	ID         int     `msgpack:"i"`
	X          float64 `msgpack:"x"`
	Y          float64 `msgpack:"y"`
	Z          float64 `msgpack:"z"`
	Visibility float64 `msgpack:"v"`
}

type workerResponse struct {
	Found  bool          `msgpack:"found"`
	Points []workerPoint `msgpack:"points"`
	Error  string        `msgpack:"error"`
}

// Detect implements Detector. Per-frame model errors come back as errors on
// this call; only a broken pipe means the worker itself has died, which the
// caller handles by recreating the Worker.
func (w *Worker) Detect(img image.Image, minConfidence float64) (landmark.Set, error) {
	if minConfidence <= 0 || minConfidence > 1 {
		return nil, fmt.Errorf("confidence threshold %f outside (0,1]", minConfidence)
	}

	b := img.Bounds()
	req := workerRequest{
		Width:         b.Dx(),
		Height:        b.Dy(),
		Data:          rgbBytes(img),
		MinConfidence: minConfidence,
	}
	body, err := msgpack.Marshal(req)
	if err != nil {
		return nil, pfx.Err(err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := writeFrame(w.stdin, body); err != nil {
		return nil, pfx.Err(err)
	}

	respBody, err := readFrame(w.rd)
	if err != nil {
		return nil, pfx.Err(err)
	}

	var resp workerResponse
	if err := msgpack.Unmarshal(respBody, &resp); err != nil {
		return nil, pfx.Err(err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("pose worker: %s", resp.Error)
	}
	if !resp.Found {
		return nil, ErrNoDetection
	}

	lms := make([]landmark.Landmark, 0, len(resp.Points))
	for _, p := range resp.Points {
		// The threshold gates per-point reporting: points the model could not
		// see above it are omitted, leaving a partial set for the scorer's
		// completeness signal.
		if p.Visibility < minConfidence {
			continue
		}
		lms = append(lms, landmark.Landmark{
			ID:         p.ID,
			X:          p.X,
			Y:          p.Y,
			Z:          p.Z,
			Visibility: p.Visibility,
		})
	}
	if len(lms) == 0 {
		return nil, ErrNoDetection
	}

	return landmark.NewSet(lms)
}

// writeFrame writes a 4-byte big-endian length prefix followed by the body.
func writeFrame(w io.Writer, body []byte) error {
	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, uint32(len(body)))
	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

// readFrame reads one length-prefixed message.
func readFrame(r io.Reader) ([]byte, error) {
	header := make([]byte, 4)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	body := make([]byte, binary.BigEndian.Uint32(header))
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}

	return body, nil
}

// rgbBytes flattens the image to RGB uint8, row-major, the layout pose workers
// expect.
func rgbBytes(img image.Image) []byte {
	b := img.Bounds()

	nrgba, ok := img.(*image.NRGBA)
	if !ok {
		nrgba = image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(nrgba, nrgba.Bounds(), img, b.Min, draw.Src)
	}

	nb := nrgba.Bounds()
	out := make([]byte, 0, nb.Dx()*nb.Dy()*3)
	for y := 0; y < nb.Dy(); y++ {
		start := nrgba.PixOffset(nb.Min.X, nb.Min.Y+y)
		row := nrgba.Pix[start : start+nb.Dx()*4]
		for x := 0; x < len(row); x += 4 {
			out = append(out, row[x], row[x+1], row[x+2])
		}
	}

	return out
}
