package main

// WithinRadius reports whether (px,py) lies strictly inside the circle of
// radius r centred on (cx,cy).
func WithinRadius(cx, cy, r, px, py float64) bool {
	dx := px - cx
	dy := py - cy
	return dx*dx+dy*dy < r*r
}

// ClosestPointOnRect returns the point of the rectangle nearest to (px,py).
// Points inside the rectangle map to themselves.
func ClosestPointOnRect(px, py float64, w Wall) (float64, float64) {
	return Clamp(px, w.X, w.X+w.W), Clamp(py, w.Y, w.Y+w.H)
}

// DistanceToRect returns the distance from (px,py) to the nearest point of w,
// zero when the point is inside.
func DistanceToRect(px, py float64, w Wall) float64 {
	cx, cy := ClosestPointOnRect(px, py, w)
	return Distance(px, py, cx, cy)
}

// CircleHitsRect checks if a circle overlaps the rectangle
func CircleHitsRect(x, y, r float64, w Wall) bool {
	return DistanceToRect(x, y, w) < r
}
