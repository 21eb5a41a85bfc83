// Package notify publishes sighting alerts when an uploaded photo matches a
// gallery identity.
package notify

import (
	"context"
	"time"

	"github.com/kozaktomas/traceon/internal/gallery"
)

// Sighting is the alert payload for one match.
type Sighting struct {
	CheckID  string           `json:"check_id"`
	Label    string           `json:"label"`
	Metadata gallery.Metadata `json:"metadata"`
	Distance float64          `json:"distance"`
	Time     time.Time        `json:"time"`
}

// Notifier delivers sightings somewhere outside the process.
type Notifier interface {
	NotifyMatch(ctx context.Context, s Sighting) error
}

// Nop drops every sighting.
type Nop struct{}

func (Nop) NotifyMatch(context.Context, Sighting) error { return nil }
