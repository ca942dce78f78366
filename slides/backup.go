package slides

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
)

// Backup is the export/import interchange document.
type Backup struct {
	Slides    []Slide `json:"slides"`
	GlowColor string  `json:"glowColor"`
}

// Marshal encodes b the way exported backup files are written.
func (b Backup) Marshal() ([]byte, error) {
	if b.Slides == nil {
		b.Slides = []Slide{}
	}
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal backup: %w", err)
	}
	return data, nil
}

type backupSlide struct {
	ImageURL *string `json:"imageUrl"`
	Quote    string  `json:"quote"`
	Author   string  `json:"author"`
}

// ParseBackup decodes and validates an interchange document. The document
// must be an object whose slides field is an array of objects with a string
// imageUrl and whose glowColor field is a string.
func ParseBackup(data []byte) (Backup, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return Backup{}, fmt.Errorf("%w: failed to read or parse the backup file: %v", ErrMalformedBackup, err)
	}

	rawSlides := bytes.TrimSpace(doc["slides"])
	if len(rawSlides) == 0 || rawSlides[0] != '[' {
		return Backup{}, fmt.Errorf("%w: slides must be an array", ErrMalformedBackup)
	}
	rawColor := bytes.TrimSpace(doc["glowColor"])
	if len(rawColor) == 0 || rawColor[0] != '"' {
		return Backup{}, fmt.Errorf("%w: glowColor must be a string", ErrMalformedBackup)
	}

	var b Backup
	if err := json.Unmarshal(rawColor, &b.GlowColor); err != nil {
		return Backup{}, fmt.Errorf("%w: glowColor: %v", ErrMalformedBackup, err)
	}

	var parsed []backupSlide
	if err := json.Unmarshal(rawSlides, &parsed); err != nil {
		return Backup{}, fmt.Errorf("%w: slides: %v", ErrMalformedBackup, err)
	}
	b.Slides = make([]Slide, 0, len(parsed))
	for i, p := range parsed {
		if p.ImageURL == nil {
			return Backup{}, fmt.Errorf("%w: slide %d has no imageUrl", ErrMalformedBackup, i)
		}
		b.Slides = append(b.Slides, Slide{ImageURL: *p.ImageURL, Quote: p.Quote, Author: p.Author})
	}
	return b, nil
}

func (s *Store) Export() Backup {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Backup{
		Slides:    slices.Clone(s.slides),
		GlowColor: s.prefs.GlowColor,
	}
}

// Import replaces the collection and accent color from b as one change.
// Callers confirm with the user before calling it.
func (s *Store) Import(b Backup) error {
	if err := validateCollection(b.Slides); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.slides = slices.Clone(b.Slides)
	if s.slides == nil {
		s.slides = []Slide{}
	}
	s.prefs.GlowColor = b.GlowColor
	s.writeSlides()
	s.write(s.cfg.GlowColorKey(), b.GlowColor)
	s.notify(SlidesReplaced, 0)

	return nil
}
