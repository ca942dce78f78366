package slides

import "math"

const (
	DefaultNamespace     = "dream-achiever"
	DefaultGlowColor     = "#a855f7"
	DefaultSlideDuration = 7000

	// MaxSlideDuration is the largest interval in milliseconds that still
	// fits a time.Duration.
	MaxSlideDuration = math.MaxInt64 / 1_000_000
)

// DefaultSlides is the seed collection used when nothing has been saved yet.
var DefaultSlides = []Slide{
	{
		ImageURL: "https://storage.googleapis.com/aistudio-hosting/vedic-1.jpg",
		Quote:    "You have a right to perform your prescribed duties, but you are not entitled to the fruits of your actions.",
		Author:   "Bhagavad Gita",
	},
	{
		ImageURL: "https://storage.googleapis.com/aistudio-hosting/vedic-2.jpg",
		Quote:    "The mind is restless and difficult to restrain, but it is subdued by practice.",
		Author:   "Bhagavad Gita",
	},
	{
		ImageURL: "https://storage.googleapis.com/aistudio-hosting/vedic-3.jpg",
		Quote:    "Calmness, gentleness, silence, self-restraint, and purity: these are the disciplines of the mind.",
		Author:   "Ancient Vedic Text",
	},
}

func DefaultPreferences() Preferences {
	return Preferences{
		GlowColor:     DefaultGlowColor,
		SlideDuration: DefaultSlideDuration,
		Muted:         false,
		SoundEnabled:  true,
	}
}

// Config holds the namespace and defaults a Store is built with.
type Config struct {
	Namespace          string
	DefaultSlides      []Slide
	DefaultPreferences Preferences
}

func DefaultConfig() Config {
	return Config{
		Namespace:          DefaultNamespace,
		DefaultSlides:      DefaultSlides,
		DefaultPreferences: DefaultPreferences(),
	}
}

func (c Config) key(suffix string) string {
	return c.Namespace + "-" + suffix
}

func (c Config) SlidesKey() string        { return c.key("slides") }
func (c Config) GlowColorKey() string     { return c.key("glow-color") }
func (c Config) SlideDurationKey() string { return c.key("slide-duration") }
func (c Config) MutedKey() string         { return c.key("muted") }
func (c Config) SoundEnabledKey() string  { return c.key("sound-enabled") }

// BackupFileName is the suggested file name for an exported backup.
func (c Config) BackupFileName() string { return c.key("backup.json") }

func (c Config) keys() []string {
	return []string{
		c.SlidesKey(),
		c.GlowColorKey(),
		c.SlideDurationKey(),
		c.MutedKey(),
		c.SoundEnabledKey(),
	}
}
