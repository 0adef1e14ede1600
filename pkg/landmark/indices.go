package landmark

// Cardinality is the number of points in a face-mesh landmark set.
const Cardinality = 468

// Outer eye corners; the inter-ocular distance is measured between them.
const (
	RightEyeOuter = 33
	LeftEyeOuter  = 263
)

// FaceOval lists the face contour landmarks in polygon order, starting at the
// forehead and running clockwise.
var FaceOval = [...]int{
	10, 338, 297, 332, 284, 251, 389, 356, 454, 323, 361, 288,
	397, 365, 379, 378, 400, 377, 152, 148, 176, 149, 150, 136,
	172, 58, 132, 93, 234, 127, 162, 21, 54, 103, 67, 109,
}

// OvalCheck lists the interior landmarks that must fall inside the guide oval:
// nose tip, nose bridge, outer eye corners, mouth corners and the point under the lower lip.
var OvalCheck = [...]int{1, 168, RightEyeOuter, LeftEyeOuter, 61, 291, 199}
