package slideshow

// SwipeThreshold is the horizontal distance a drag must exceed to navigate.
const SwipeThreshold = 50.0

type SwipeDirection int

const (
	SwipeNone SwipeDirection = iota
	// SwipeLeft moves to the next slide.
	SwipeLeft
	// SwipeRight moves to the previous slide.
	SwipeRight
)

// Gesture tracks one horizontal drag.
type Gesture struct {
	startX, endX float64
	started      bool
	moved        bool
}

func (g *Gesture) Start(x float64) {
	g.startX = x
	g.endX = 0
	g.started = true
	g.moved = false
}

func (g *Gesture) Move(x float64) {
	if !g.started {
		return
	}
	g.endX = x
	g.moved = true
}

// End classifies the drag and clears the gesture. A touch without movement
// is never a swipe.
func (g *Gesture) End() SwipeDirection {
	defer func() { *g = Gesture{} }()

	if !g.started || !g.moved {
		return SwipeNone
	}
	distance := g.startX - g.endX
	switch {
	case distance > SwipeThreshold:
		return SwipeLeft
	case distance < -SwipeThreshold:
		return SwipeRight
	default:
		return SwipeNone
	}
}
