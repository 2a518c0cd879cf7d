// Package canvas implements the infinite notebook canvas: free-floating text
// blocks, viewport state, an op-based patch protocol, and the spatial
// clustering that groups blocks into idea areas.
package canvas

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// nowFn stamps normalized blocks; swappable in tests.
var nowFn = time.Now

// Geometry constraints applied on every write.
const (
	MinBlockWidth      = 220.0
	MinBlockHeight     = 140.0
	DefaultBlockWidth  = 420.0
	DefaultBlockHeight = 220.0

	MinZoom = 0.4
	MaxZoom = 2.5

	// ClusterDistance is the maximum center-to-center distance at which two
	// blocks belong to the same idea area. Connectivity is transitive.
	ClusterDistance = 1000.0
)

// Viewport is the pan/zoom state of a canvas.
type Viewport struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

// Point is a coordinate on the canvas plane.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Block is a positioned, resizable rectangle of freeform text. Its identity
// is stable across edits; AreaID is derived state owned by the clustering
// pass and must never be set by hand.
type Block struct {
	ID        string    `json:"id"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	W         float64   `json:"w"`
	H         float64   `json:"h"`
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updatedAt"`
	AreaID    string    `json:"areaId,omitempty"`
}

// Center returns the geometric center of the block.
func (b Block) Center() Point {
	return Point{X: b.X + b.W/2, Y: b.Y + b.H/2}
}

// Empty reports whether the block has no meaningful content. Empty blocks
// never participate in clustering.
func (b Block) Empty() bool {
	return strings.TrimSpace(b.Content) == ""
}

// Area is a derived grouping of non-empty blocks that are mutually reachable
// within ClusterDistance. Areas are recomputed from blocks on every mutation
// and never patched directly.
type Area struct {
	ID       string   `json:"id"`
	BlockIDs []string `json:"blockIds"`
	Centroid Point    `json:"centroid"`
}

// Canvas is one notebook entry's drawing surface.
type Canvas struct {
	Viewport Viewport `json:"viewport"`
	Blocks   []Block  `json:"blocks"`
	Areas    []Area   `json:"areas"`
}

// DefaultViewport returns the neutral pan/zoom state.
func DefaultViewport() Viewport {
	return Viewport{X: 0, Y: 0, Zoom: 1}
}

// DefaultCanvas returns an empty canvas with a neutral viewport.
func DefaultCanvas() Canvas {
	return Canvas{Viewport: DefaultViewport(), Blocks: []Block{}, Areas: []Area{}}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// NormalizeViewport coerces a viewport to valid coordinates. A zero or
// non-finite zoom means "unset" and resets to 1; otherwise zoom is clamped
// to [MinZoom, MaxZoom].
func NormalizeViewport(v Viewport) Viewport {
	if !finite(v.X) {
		v.X = 0
	}
	if !finite(v.Y) {
		v.Y = 0
	}
	if v.Zoom == 0 || !finite(v.Zoom) {
		v.Zoom = 1
	} else {
		v.Zoom = math.Min(MaxZoom, math.Max(MinZoom, v.Zoom))
	}
	return v
}

// NormalizeBlock coerces a block to valid geometry: missing identity gets a
// fresh UUID, non-finite coordinates reset, dimensions are floor-clamped and
// a zero timestamp is stamped with now.
func NormalizeBlock(b Block, now time.Time) Block {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if !finite(b.X) {
		b.X = 0
	}
	if !finite(b.Y) {
		b.Y = 0
	}
	if finite(b.W) && b.W != 0 {
		b.W = math.Max(MinBlockWidth, b.W)
	} else {
		b.W = DefaultBlockWidth
	}
	if finite(b.H) && b.H != 0 {
		b.H = math.Max(MinBlockHeight, b.H)
	} else {
		b.H = DefaultBlockHeight
	}
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = now
	}
	return b
}

// NormalizeBlocks applies NormalizeBlock to every block, returning a new slice.
func NormalizeBlocks(blocks []Block, now time.Time) []Block {
	out := make([]Block, len(blocks))
	for i, b := range blocks {
		out[i] = NormalizeBlock(b, now)
	}
	return out
}
