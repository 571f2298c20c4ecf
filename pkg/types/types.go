package types

import (
	"image"
	"time"
)

// BoundingBox is an axis-aligned rectangle in absolute screen pixels.
// End coordinates are exclusive, matching image.Rectangle.
type BoundingBox struct {
	StartX int `json:"start_x" mapstructure:"start_x"`
	StartY int `json:"start_y" mapstructure:"start_y"`
	EndX   int `json:"end_x" mapstructure:"end_x"`
	EndY   int `json:"end_y" mapstructure:"end_y"`
}

// Box builds a BoundingBox from its corner coordinates.
func Box(startX, startY, endX, endY int) BoundingBox {
	return BoundingBox{StartX: startX, StartY: startY, EndX: endX, EndY: endY}
}

// FromRect converts an image rectangle into a BoundingBox.
func FromRect(r image.Rectangle) BoundingBox {
	return BoundingBox{StartX: r.Min.X, StartY: r.Min.Y, EndX: r.Max.X, EndY: r.Max.Y}
}

// Valid reports whether start does not exceed end on both axes.
func (b BoundingBox) Valid() bool {
	return b.StartX <= b.EndX && b.StartY <= b.EndY
}

func (b BoundingBox) Width() int  { return b.EndX - b.StartX }
func (b BoundingBox) Height() int { return b.EndY - b.StartY }

// Center returns the absolute midpoint of the box.
func (b BoundingBox) Center() image.Point {
	return image.Pt(b.StartX+b.Width()/2, b.StartY+b.Height()/2)
}

// Rect returns the box as an image.Rectangle.
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.StartX, b.StartY, b.EndX, b.EndY)
}

// Translate shifts the box by (dx, dy).
func (b BoundingBox) Translate(dx, dy int) BoundingBox {
	return BoundingBox{StartX: b.StartX + dx, StartY: b.StartY + dy, EndX: b.EndX + dx, EndY: b.EndY + dy}
}

// Empty reports whether the box covers no pixels.
func (b BoundingBox) Empty() bool {
	return b.Width() <= 0 || b.Height() <= 0
}

// MatchCandidate is the best template match observed during a scale sweep
type MatchCandidate struct {
	TemplateIndex int         `json:"template_index"`
	Score         float64     `json:"score"`
	Location      image.Point `json:"location"`
	ScaleRatio    float64     `json:"scale_ratio"`
}

// ExtractionResult holds recognised text and, when word-level data was used, its box
type ExtractionResult struct {
	Text string       `json:"text"`
	Box  *BoundingBox `json:"box,omitempty"`
}

// OutcomeKind tags the result of one mission cycle
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeConflict
	OutcomeExhausted
	OutcomeTransientFailure
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeConflict:
		return "conflict"
	case OutcomeExhausted:
		return "exhausted"
	case OutcomeTransientFailure:
		return "transient_failure"
	default:
		return "unknown"
	}
}

// Outcome is returned by one iteration of a mission state machine.
// Travel is only meaningful for OutcomeSuccess; Reason and Err describe the
// other kinds.
type Outcome struct {
	Kind   OutcomeKind   `json:"kind"`
	Travel time.Duration `json:"travel"`
	Reason Reason        `json:"reason,omitempty"`
	Err    error         `json:"-"`
}

// Success builds a successful outcome with the one-way travel time.
func Success(travel time.Duration) Outcome {
	return Outcome{Kind: OutcomeSuccess, Travel: travel}
}

// Exhausted builds an outcome for a workflow that ran out of options.
func Exhausted(err error) Outcome {
	return Outcome{Kind: OutcomeExhausted, Reason: ReasonOf(err), Err: err}
}

// Transient builds an outcome for a recoverable perception failure.
func Transient(err error) Outcome {
	return Outcome{Kind: OutcomeTransientFailure, Reason: ReasonOf(err), Err: err}
}

// SlotState is the occupancy of a fleet slot
type SlotState int

const (
	SlotIdle SlotState = iota
	SlotBusy
)

func (s SlotState) String() string {
	if s == SlotBusy {
		return "busy"
	}
	return "idle"
}

// FleetSlot is a point-in-time view of one fleet slot
type FleetSlot struct {
	ID        int           `json:"id"`
	State     SlotState     `json:"state"`
	Remaining time.Duration `json:"remaining"`
	Failures  int           `json:"failures"`
}

// Budget is the consumable resource that bounds dispatching.
// Only the scheduler decrements Current.
type Budget struct {
	Current int `json:"current"`
	Floor   int `json:"floor"`
}
