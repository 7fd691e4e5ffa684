// Package interpolate fills the frames between sampled key-frames of a
// video with linearly interpolated detections.
package interpolate

import (
	"sort"

	"github.com/swdee/go-visionedge/postprocess"
)

// MatchIoU is the IoU a detection in the later key-frame must exceed to be
// paired with one in the earlier key-frame
const MatchIoU = 0.3

// FrameMap holds detections keyed by zero based frame index
type FrameMap map[int][]postprocess.Detection

// Keys returns the frame indices in ascending order
func (m FrameMap) Keys() []int {

	keys := make([]int, 0, len(m))

	for k := range m {
		keys = append(keys, k)
	}

	sort.Ints(keys)

	return keys
}

// pair is a detection in the earlier key-frame matched to one in the later
type pair struct {
	a postprocess.Detection
	b postprocess.Detection
}

// Build returns a dense frame map from the sparse key-frame detections of a
// video with total frames.  Key-frames are kept as is, frames before the
// first key-frame carry it back and frames after the last carry it forward
// up to total-1.  Frames between two key-frames get detections linearly
// interpolated between matched pairs.  Detection slices of key-frames and
// carried frames are shared with sparse
func Build(sparse FrameMap, total int) FrameMap {

	dense := make(FrameMap)

	if len(sparse) == 0 {
		return dense
	}

	keys := sparse.Keys()

	for _, k := range keys {
		dense[k] = sparse[k]
	}

	first := keys[0]

	for fi := 0; fi < first; fi++ {
		dense[fi] = sparse[first]
	}

	last := keys[len(keys)-1]

	for fi := last + 1; fi < total; fi++ {
		dense[fi] = sparse[last]
	}

	for i := 0; i < len(keys)-1; i++ {
		ka, kb := keys[i], keys[i+1]
		gap := kb - ka

		if gap <= 1 {
			continue
		}

		pairs := match(sparse[ka], sparse[kb])

		for fi := ka + 1; fi < kb; fi++ {
			t := float32(fi-ka) / float32(gap)
			dets := make([]postprocess.Detection, 0, len(pairs))

			for _, p := range pairs {
				dets = append(dets, lerpDetection(p.a, p.b, t))
			}

			dense[fi] = dets
		}
	}

	return dense
}

// match greedily pairs each detection of curr, in order, with the unused
// detection of prev having the same label and the highest IoU above
// MatchIoU.  Ties keep the first found.  A detection without a match is
// paired with itself
func match(prev, curr []postprocess.Detection) []pair {

	used := make([]bool, len(prev))
	pairs := make([]pair, 0, len(curr))

	for _, cd := range curr {

		bestIoU := float32(MatchIoU)
		best := -1

		for pi, pd := range prev {

			if used[pi] || pd.Label != cd.Label {
				continue
			}

			if iou := postprocess.IoU(pd.Box, cd.Box); iou > bestIoU {
				bestIoU = iou
				best = pi
			}
		}

		if best < 0 {
			pairs = append(pairs, pair{a: cd, b: cd})
			continue
		}

		used[best] = true
		pairs = append(pairs, pair{a: prev[best], b: cd})
	}

	return pairs
}

// lerpDetection interpolates score and box between a and b, identity comes
// from b
func lerpDetection(a, b postprocess.Detection, t float32) postprocess.Detection {
	return postprocess.Detection{
		ClassID: b.ClassID,
		Label:   b.Label,
		Score:   lerp(a.Score, b.Score, t),
		Box: postprocess.Box{
			X1: lerp(a.Box.X1, b.Box.X1, t),
			Y1: lerp(a.Box.Y1, b.Box.Y1, t),
			X2: lerp(a.Box.X2, b.Box.X2, t),
			Y2: lerp(a.Box.Y2, b.Box.Y2, t),
		},
	}
}

func lerp(a, b, t float32) float32 {
	return a + (b-a)*t
}
