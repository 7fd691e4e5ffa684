package postprocess

// Box are the corner coordinates of a bounding box in original image pixels
type Box struct {
	X1 float32 `json:"x1"`
	Y1 float32 `json:"y1"`
	X2 float32 `json:"x2"`
	Y2 float32 `json:"y2"`
}

// Detection defines the attributes of a single object detected
type Detection struct {
	// ClassID is the line number in the labels file the Model was trained on
	// defining the Class of the detected object
	ClassID int `json:"class_id"`
	// Label is the class name, or the class id as a string if the labels
	// file has no entry for it
	Label string `json:"label"`
	// Score is the confidence score of the object detected
	Score float32 `json:"score"`
	// Box are the bounding box dimensions of the object location
	Box Box `json:"box"`
}

// FaceBox defines a detected face.  Faces have a single implicit class so
// carry no label
type FaceBox struct {
	Box
	Score float32 `json:"score"`
}
