package postprocess

import (
	"sort"

	"github.com/bmharper/flatbush-go"
	"github.com/chewxy/math32"
)

// nmsIndexMin is the number of boxes above which candidate overlaps are
// found through a spatial index instead of a full scan
const nmsIndexMin = 16

// NMS implements a greedy Non-Maximum Suppression over faces.  Faces are
// visited by descending score, each kept face suppresses every remaining
// face with an IoU above threshold.  The kept faces are returned in
// descending score order
func NMS(faces []FaceBox, threshold float32) []FaceBox {

	boxes := make([]Box, len(faces))
	scores := make([]float32, len(faces))

	for i, f := range faces {
		boxes[i] = f.Box
		scores[i] = f.Score
	}

	keep := nmsIndices(boxes, scores, threshold)
	out := make([]FaceBox, 0, len(keep))

	for _, i := range keep {
		out = append(out, faces[i])
	}

	return out
}

// nmsIndices returns the indices of the boxes kept by greedy NMS in
// descending score order.  Equal scores keep their input order
func nmsIndices(boxes []Box, scores []float32, threshold float32) []int {

	n := len(boxes)
	keep := make([]int, 0)

	if n == 0 {
		return keep
	}

	order := make([]int, n)

	for i := range order {
		order[i] = i
	}

	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	// boxes with IoU above a non negative threshold must intersect, so only
	// those returned by the index need testing
	var index *flatbush.Flatbush[float32]

	if n > nmsIndexMin && threshold >= 0 {
		index = flatbush.NewFlatbush[float32]()
		index.Reserve(n)

		for _, b := range boxes {
			index.Add(math32.Min(b.X1, b.X2), math32.Min(b.Y1, b.Y2),
				math32.Max(b.X1, b.X2), math32.Max(b.Y1, b.Y2))
		}

		index.Finish()
	}

	suppressed := make([]bool, n)

	for _, i := range order {

		if suppressed[i] {
			continue
		}

		keep = append(keep, i)
		suppressed[i] = true

		if index == nil {
			for j := 0; j < n; j++ {
				if !suppressed[j] && IoU(boxes[i], boxes[j]) > threshold {
					suppressed[j] = true
				}
			}

			continue
		}

		b := boxes[i]

		for _, j := range index.Search(math32.Min(b.X1, b.X2), math32.Min(b.Y1, b.Y2),
			math32.Max(b.X1, b.X2), math32.Max(b.Y1, b.Y2)) {

			if !suppressed[j] && IoU(b, boxes[j]) > threshold {
				suppressed[j] = true
			}
		}
	}

	return keep
}
