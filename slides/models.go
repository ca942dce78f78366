package slides

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidSlide      = errors.New("invalid slide")
	ErrIndexOutOfRange   = errors.New("slide index out of range")
	ErrMalformedBackup   = errors.New("invalid backup file format")
	ErrUnknownPreference = errors.New("unknown preference")
	ErrInvalidPreference = errors.New("invalid preference value")
)

// Slide is one image, quote and author display unit. Slides are never edited
// in place; editing is a remove followed by an add.
type Slide struct {
	ImageURL string `json:"imageUrl"`
	Quote    string `json:"quote"`
	Author   string `json:"author"`
}

// Validate reports which required fields are missing.
func (s Slide) Validate() error {
	var missing []string
	if strings.TrimSpace(s.ImageURL) == "" {
		missing = append(missing, "imageUrl")
	}
	if strings.TrimSpace(s.Quote) == "" {
		missing = append(missing, "quote")
	}
	if strings.TrimSpace(s.Author) == "" {
		missing = append(missing, "author")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: all fields are required, missing %s", ErrInvalidSlide, strings.Join(missing, ", "))
	}
	return nil
}

type Preferences struct {
	GlowColor string `json:"glowColor"`
	// SlideDuration is the rotation interval in milliseconds, 0 disables rotation.
	SlideDuration int  `json:"slideDuration"`
	Muted         bool `json:"muted"`
	SoundEnabled  bool `json:"soundEnabled"`
}

type PreferenceKey string

const (
	PrefGlowColor     PreferenceKey = "glowColor"
	PrefSlideDuration PreferenceKey = "slideDuration"
	PrefMuted         PreferenceKey = "muted"
	PrefSoundEnabled  PreferenceKey = "soundEnabled"
)

type ChangeKind int

const (
	SlideAdded ChangeKind = iota
	SlideRemoved
	SlidesReplaced
	PreferencesChanged
	StoreReset
)

func (k ChangeKind) String() string {
	switch k {
	case SlideAdded:
		return "added"
	case SlideRemoved:
		return "removed"
	case SlidesReplaced:
		return "replaced"
	case PreferencesChanged:
		return "preferences"
	case StoreReset:
		return "reset"
	default:
		return fmt.Sprintf("ChangeKind(%d)", int(k))
	}
}

// Change describes a completed store mutation.
type Change struct {
	Kind ChangeKind
	// Index is the affected position for SlideAdded and SlideRemoved.
	Index int
	// Len is the collection length after the mutation.
	Len         int
	Preferences Preferences
}

type Listener func(Change)
