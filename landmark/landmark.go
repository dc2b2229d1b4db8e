// Package landmark defines the pose data model shared by every stage of the
// frame quality pipeline: a 33-point full-body topology with normalized
// coordinates, per-frame landmark sets, scored frame results, and ordered
// sequences of frame results.
package landmark

import "fmt"

// Count is the number of points in the full-body pose topology. Detectors that
// emit fewer points still use these identifiers; absent points are simply not
// present in a Set.
const Count = 33

// Landmark identifiers. The numbering is fixed by the pose model and is part
// of the persisted CSV contract, so these values must never be reordered.
const (
	Nose = iota
	LeftEyeInner
	LeftEye
	LeftEyeOuter
	RightEyeInner
	RightEye
	RightEyeOuter
	LeftEar
	RightEar
	MouthLeft
	MouthRight
	LeftShoulder
	RightShoulder
	LeftElbow
	RightElbow
	LeftWrist
	RightWrist
	LeftPinky
	RightPinky
	LeftIndex
	RightIndex
	LeftThumb
	RightThumb
	LeftHip
	RightHip
	LeftKnee
	RightKnee
	LeftAnkle
	RightAnkle
	LeftHeel
	RightHeel
	LeftFootIndex
	RightFootIndex
)

// Names maps each landmark ID to its human-readable body part name. Indexed by
// ID, so iteration over this array is always in ID order.
var Names = [Count]string{
	"nose",
	"left_eye_inner", "left_eye", "left_eye_outer",
	"right_eye_inner", "right_eye", "right_eye_outer",
	"left_ear", "right_ear",
	"mouth_left", "mouth_right",
	"left_shoulder", "right_shoulder",
	"left_elbow", "right_elbow",
	"left_wrist", "right_wrist",
	"left_pinky", "right_pinky",
	"left_index", "right_index",
	"left_thumb", "right_thumb",
	"left_hip", "right_hip",
	"left_knee", "right_knee",
	"left_ankle", "right_ankle",
	"left_heel", "right_heel",
	"left_foot_index", "right_foot_index",
}

// mirror maps each landmark ID to its left/right counterpart. Midline points
// (here, only the nose) map to themselves.
var mirror = [Count]int{
	Nose,
	RightEyeInner, RightEye, RightEyeOuter,
	LeftEyeInner, LeftEye, LeftEyeOuter,
	RightEar, LeftEar,
	MouthRight, MouthLeft,
	RightShoulder, LeftShoulder,
	RightElbow, LeftElbow,
	RightWrist, LeftWrist,
	RightPinky, LeftPinky,
	RightIndex, LeftIndex,
	RightThumb, LeftThumb,
	RightHip, LeftHip,
	RightKnee, LeftKnee,
	RightAnkle, LeftAnkle,
	RightHeel, LeftHeel,
	RightFootIndex, LeftFootIndex,
}

// Name returns the body part name for a landmark ID. IDs outside the topology
// get a numeric placeholder rather than a panic, since CSVs from newer models
// may carry points this package does not know.
func Name(id int) string {
	if id < 0 || id >= Count {
		return fmt.Sprintf("landmark_%d", id)
	}
	return Names[id]
}

// MirrorID returns the ID of the left/right counterpart of the given landmark,
// or the same ID for midline landmarks. IDs outside the topology are returned
// unchanged.
func MirrorID(id int) int {
	if id < 0 || id >= Count {
		return id
	}
	return mirror[id]
}

// Connections is the bone graph over the 33-point topology, used for skeleton
// rendering and for grouping landmarks into body regions. Within a pair the
// smaller ID does not necessarily come first; the list order is fixed.
var Connections = [][2]int{
	{Nose, LeftEyeInner}, {LeftEyeInner, LeftEye}, {LeftEye, LeftEyeOuter}, {LeftEyeOuter, LeftEar},
	{Nose, RightEyeInner}, {RightEyeInner, RightEye}, {RightEye, RightEyeOuter}, {RightEyeOuter, RightEar},
	{MouthLeft, MouthRight},
	{LeftShoulder, RightShoulder},
	{LeftShoulder, LeftElbow}, {LeftElbow, LeftWrist},
	{LeftWrist, LeftPinky}, {LeftWrist, LeftIndex}, {LeftWrist, LeftThumb}, {LeftPinky, LeftIndex},
	{RightShoulder, RightElbow}, {RightElbow, RightWrist},
	{RightWrist, RightPinky}, {RightWrist, RightIndex}, {RightWrist, RightThumb}, {RightPinky, RightIndex},
	{LeftShoulder, LeftHip}, {RightShoulder, RightHip},
	{LeftHip, RightHip},
	{LeftHip, LeftKnee}, {RightHip, RightKnee},
	{LeftKnee, LeftAnkle}, {RightKnee, RightAnkle},
	{LeftAnkle, LeftHeel}, {RightAnkle, RightHeel},
	{LeftHeel, LeftFootIndex}, {RightHeel, RightFootIndex},
	{LeftAnkle, LeftFootIndex}, {RightAnkle, RightFootIndex},
}

// Landmark is one observed (or synthesized) point. X and Y are normalized to
// [0,1] relative to the frame; Z is a unitless relative depth; Visibility is
// the model's confidence in [0,1]. Derived marks points that were interpolated
// or blended rather than observed; once a point is derived it stays derived.
// RenderOpacity is a drawing hint for synthesized points only (zero means
// "use Visibility") and is deliberately kept separate from Visibility so that
// rendering policy never contaminates the detection confidence.
type Landmark struct {
	ID            int
	X             float64
	Y             float64
	Z             float64
	Visibility    float64
	Derived       bool
	RenderOpacity float64
}

// Mirrored returns the landmark as it would appear on a horizontally flipped
// frame: the X coordinate is reflected about the vertical midline and the ID
// is swapped with its left/right counterpart.
func (l Landmark) Mirrored() Landmark {
	out := l
	out.X = 1.0 - l.X
	out.ID = MirrorID(l.ID)
	return out
}
