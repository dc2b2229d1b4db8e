package render

import (
	"fmt"
	"io"

	"github.com/carbocation/pfx"
	"github.com/wcharczuk/go-chart/v2"

	"github.com/danceqc/posemisc/landmark"
)

// ScoreChart renders a per-frame quality timeline as a PNG: one series for
// the selection score and one for mean visibility, with frame IDs on the X
// axis so gaps stay visible as gaps.
func ScoreChart(w io.Writer, seq landmark.Sequence) error {
	if len(seq) < 2 {
		return fmt.Errorf("need at least two frames to chart, have %d", len(seq))
	}

	xs := make([]float64, 0, len(seq))
	scores := make([]float64, 0, len(seq))
	vis := make([]float64, 0, len(seq))
	for _, fr := range seq {
		xs = append(xs, float64(fr.FrameID))
		scores = append(scores, fr.Score)
		vis = append(vis, fr.Landmarks.MeanVisibility())
	}

	graph := chart.Chart{
		Width:  1024,
		Height: 256,
		XAxis: chart.XAxis{
			Name: "frame",
		},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: 1},
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "score",
				XValues: xs,
				YValues: scores,
			},
			chart.ContinuousSeries{
				Name:    "mean visibility",
				XValues: xs,
				YValues: vis,
			},
		},
	}

	return pfx.Err(graph.Render(chart.PNG, w))
}
