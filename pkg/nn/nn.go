package nn

// Package nn is the interface layer between an object detector
// and the tracking pipeline.

import (
	"image"
)

const DefaultProbabilityThreshold = 0.4
const DefaultNmsIouThreshold = 0.45

// A single object found by the detector in one frame.
type Detection struct {
	Class      Class   `json:"class"`
	Confidence float32 `json:"confidence"`
	Box        Rect    `json:"box"`
}

// Centroid of the detection's bounding box
func (d *Detection) Centroid() Point {
	return d.Box.Center()
}

// Object detection parameters
type DetectionParams struct {
	ProbabilityThreshold float32 // Value between 0 and 1. Lower values will find more objects. Zero value will use the default.
	NmsIouThreshold      float32 // Value between 0 and 1. Lower values will merge more objects together into one. Zero value will use the default.
}

// Create a default DetectionParams object
func NewDetectionParams() *DetectionParams {
	return &DetectionParams{
		ProbabilityThreshold: DefaultProbabilityThreshold,
		NmsIouThreshold:      DefaultNmsIouThreshold,
	}
}

// ObjectDetector is given an image, and returns zero or more detected objects.
// Implementations do not need to be safe for concurrent use; the monitor
// serializes access.
type ObjectDetector interface {
	// Close the detector (you MUST call this when finished, because there may be a C++ object underneath)
	Close()

	// DetectObjects returns the list of objects detected in the image
	DetectObjects(img image.Image, params *DetectionParams) ([]Detection, error)
}
