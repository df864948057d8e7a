package canvas

import "time"

// Tool selects how a stroke is painted
type Tool string

const (
	ToolBrush  Tool = "brush"
	ToolEraser Tool = "eraser"
)

const (
	DefaultColor = "#000000"
	DefaultWidth = 5.0

	// Erasers paint in the background color
	BackgroundColor = "#FFFFFF"
)

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// One continuous pen gesture. Points are append-only until Closed is set,
// after which the stroke is immutable.
type Stroke struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Tool      Tool      `json:"tool"`
	Color     string    `json:"color"`
	Width     float64   `json:"width"`
	Points    []Point   `json:"points"`
	Closed    bool      `json:"closed"`
	StartedAt time.Time `json:"startedAt"`
}

// Copy returns a deep copy, so operations can carry stroke payloads
// that do not alias the live active set.
func (s *Stroke) Copy() *Stroke {
	dup := *s
	dup.Points = make([]Point, len(s.Points))
	copy(dup.Points, s.Points)
	return &dup
}

// StartRequest carries the caller-supplied parameters of a new stroke.
// Zero-valued fields fall back to defaults.
type StartRequest struct {
	StrokeID string
	Tool     Tool
	Color    string
	Width    float64
	X        float64
	Y        float64
}
