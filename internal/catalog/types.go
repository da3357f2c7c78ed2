// Package catalog stores the sales-training course listing served next to the
// realtime roleplay endpoint.
package catalog

import (
	"context"
	"errors"
	"time"
)

var ErrCourseNotFound = errors.New("course not found")

type Course struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Level       string    `json:"level"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store is the course catalog persistence interface.
type Store interface {
	List(ctx context.Context) ([]Course, error)
	Get(ctx context.Context, id string) (Course, error)
	Put(ctx context.Context, course Course) error
	Close() error
}

// DefaultCourses seeds an empty catalog so a fresh deployment serves a
// non-empty listing.
func DefaultCourses() []Course {
	now := time.Now().UTC()
	return []Course{
		{
			ID:          "cold-open-basics",
			Title:       "Cold Open Basics",
			Description: "Structure the first thirty seconds of a cold call: pattern interrupt, permission, and a reason to stay on the line.",
			Level:       "beginner",
			CreatedAt:   now,
		},
		{
			ID:          "discovery-questions",
			Title:       "Discovery Questions That Land",
			Description: "Move from feature pitches to problem questions. Practice open prompts that get a buyer talking about their pain.",
			Level:       "intermediate",
			CreatedAt:   now,
		},
		{
			ID:          "objection-handling",
			Title:       "Objection Handling Under Pressure",
			Description: "Price pushback, competitor comparisons, and the silent buyer. Hold your ground without getting defensive.",
			Level:       "intermediate",
			CreatedAt:   now,
		},
		{
			ID:          "closing-hard-buyers",
			Title:       "Closing Hard Buyers",
			Description: "Trial closes, summary closes, and when to walk away. Built for the skeptical end of the difficulty range.",
			Level:       "advanced",
			CreatedAt:   now,
		},
	}
}
