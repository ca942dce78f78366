// Package slideshow drives which slide is displayed and when it advances
package slideshow

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/aouyang1/quoteframe/slides"
)

var ErrIndexOutOfRange = errors.New("slide index out of range")

// Source is the part of the slide store the controller follows.
type Source interface {
	Len() int
	Preferences() slides.Preferences
	OnChange(l slides.Listener) func()
}

// State is a snapshot of the controller. Index is meaningless when Length is 0.
type State struct {
	Index       int                `json:"index"`
	Length      int                `json:"length"`
	Empty       bool               `json:"empty"`
	Preferences slides.Preferences `json:"preferences"`
}

type Listener func(State)

type subscription struct {
	id int
	fn Listener
}

// Controller owns the display index. It mirrors the collection length and
// preferences from store change notifications and never calls into the store
// while locked, so store listeners may safely block on it.
//
// Auto-advance is a single-shot timer that is replaced on every index,
// length or interval change. Listeners run synchronously under the
// controller lock and must not call back into the Controller.
type Controller struct {
	mu sync.Mutex

	index  int
	length int
	prefs  slides.Preferences
	synced bool

	timer *time.Timer
	gen   uint64

	gesture Gesture

	listeners []subscription
	nextID    int

	unsubscribe func()
	closed      bool
}

func NewController(src Source) *Controller {
	c := &Controller{}
	c.unsubscribe = src.OnChange(c.handleChange)

	length := src.Len()
	prefs := src.Preferences()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.synced {
		c.length = length
		c.prefs = prefs
	}
	c.schedule()
	return c
}

func (c *Controller) interval() time.Duration {
	return time.Duration(min(c.prefs.SlideDuration, slides.MaxSlideDuration)) * time.Millisecond
}

func (c *Controller) handleChange(ch slides.Change) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.synced = true

	prevIndex, prevLength, prevInterval := c.index, c.length, c.interval()
	c.length = ch.Len
	c.prefs = ch.Preferences

	restart := false
	switch ch.Kind {
	case slides.SlideAdded:
		c.index = ch.Len - 1
		restart = true
	case slides.SlidesReplaced, slides.StoreReset:
		c.index = 0
		restart = true
	}
	c.repair()

	if restart || c.index != prevIndex || c.length != prevLength || c.interval() != prevInterval {
		c.schedule()
	}
	c.notify()
}

// repair keeps the index inside the collection.
func (c *Controller) repair() {
	if c.length == 0 {
		c.index = 0
		return
	}
	c.index = min(max(c.index, 0), c.length-1)
}

// schedule cancels any pending advance and arms a new one when rotation is
// possible.
func (c *Controller) schedule() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++

	d := c.interval()
	if c.closed || c.length < 2 || d <= 0 {
		return
	}
	gen := c.gen
	c.timer = time.AfterFunc(d, func() { c.advance(gen) })
}

func (c *Controller) advance(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// superseded timers can still fire once after Stop
	if gen != c.gen || c.closed {
		return
	}
	c.timer = nil
	slog.Debug("auto advancing slide", "from", c.index)
	c.step(1)
}

func (c *Controller) step(delta int) {
	if c.length < 2 {
		return
	}
	c.index = (c.index + delta + c.length) % c.length
	c.schedule()
	c.notify()
}

func (c *Controller) Next() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.step(1)
	return c.state()
}

func (c *Controller) Previous() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.step(-1)
	return c.state()
}

// GoTo shows slide k. Selecting the current slide does not restart the timer.
func (c *Controller) GoTo(k int) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if k < 0 || k >= c.length {
		return c.state(), fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, k, c.length)
	}
	if k != c.index {
		c.index = k
		c.schedule()
		c.notify()
	}
	return c.state(), nil
}

// TouchStart begins a swipe at horizontal position x.
func (c *Controller) TouchStart(x float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gesture.Start(x)
}

func (c *Controller) TouchMove(x float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gesture.Move(x)
}

// TouchEnd finishes the swipe and navigates when it was long enough.
func (c *Controller) TouchEnd() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.gesture.End() {
	case SwipeLeft:
		c.step(1)
	case SwipeRight:
		c.step(-1)
	}
	return c.state()
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state()
}

func (c *Controller) state() State {
	return State{
		Index:       c.index,
		Length:      c.length,
		Empty:       c.length == 0,
		Preferences: c.prefs,
	}
}

// OnChange registers l to receive the state after every change. The returned
// func removes the registration.
func (c *Controller) OnChange(l Listener) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	c.listeners = append(c.listeners, subscription{id: id, fn: l})

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.listeners = slices.DeleteFunc(c.listeners, func(sub subscription) bool { return sub.id == id })
	}
}

func (c *Controller) notify() {
	s := c.state()
	for _, sub := range c.listeners {
		sub.fn(s)
	}
}

// Close cancels the pending advance and stops following the store.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.schedule()
	unsubscribe := c.unsubscribe
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}
