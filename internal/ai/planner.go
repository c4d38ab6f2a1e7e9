package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/MKBarhoumi/tripcraft-sub000/internal/models"
	"github.com/MKBarhoumi/tripcraft-sub000/internal/utils"
)

// Planner turns a trip's parameters into day and activity records via
// Gemini. The records it returns are server-minted: uuid ids, the
// trip owner's scope, local_updated_at stamped at generation time.
// They reach devices through the normal sync download.
type Planner struct {
	client *GeminiClient
}

// NewPlanner creates a planner on top of a Gemini client.
func NewPlanner(client *GeminiClient) *Planner {
	return &Planner{client: client}
}

// PlanTrip generates a full itinerary for the trip. The caller is
// responsible for persisting the returned records.
func (p *Planner) PlanTrip(ctx context.Context, trip *models.Trip, req ItineraryRequest) ([]*models.Day, []*models.Activity, error) {
	prompt := ItineraryPrompt(trip, req)

	log.Printf("🤖 Generating itinerary: trip=%s destination=%s", trip.ID, trip.Destination)
	raw, err := p.client.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, nil, fmt.Errorf("itinerary generation failed: %w", err)
	}

	days, activities, err := BuildItinerary(raw, trip, time.Now().UTC())
	if err != nil {
		return nil, nil, err
	}

	log.Printf("✅ Itinerary ready: trip=%s days=%d activities=%d", trip.ID, len(days), len(activities))
	return days, activities, nil
}

// RefineTrip reworks an existing itinerary according to a free-form
// instruction. It returns replacement records for the whole plan; the
// caller tombstones what these replace.
func (p *Planner) RefineTrip(ctx context.Context, trip *models.Trip, days []*models.Day, activities []*models.Activity, instruction string) ([]*models.Day, []*models.Activity, error) {
	prompt := RefinePrompt(trip, days, activities, instruction)

	log.Printf("🤖 Refining itinerary: trip=%s days=%d instruction=%q", trip.ID, len(days), instruction)
	raw, err := p.client.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, nil, fmt.Errorf("itinerary refinement failed: %w", err)
	}

	newDays, newActivities, err := BuildItinerary(raw, trip, time.Now().UTC())
	if err != nil {
		return nil, nil, err
	}

	log.Printf("✅ Refined itinerary ready: trip=%s days=%d activities=%d", trip.ID, len(newDays), len(newActivities))
	return newDays, newActivities, nil
}

// generatedDay mirrors the model's output contract.
type generatedDay struct {
	Title      string              `json:"title"`
	Summary    string              `json:"summary"`
	Activities []generatedActivity `json:"activities"`
}

type generatedActivity struct {
	Title         string  `json:"title"`
	Category      string  `json:"category"`
	Location      string  `json:"location"`
	StartTime     string  `json:"start_time"`
	EndTime       string  `json:"end_time"`
	EstimatedCost float64 `json:"estimated_cost"`
	Notes         string  `json:"notes"`
}

// BuildItinerary parses raw model output into persistable records.
// Malformed clock strings are dropped rather than failing the run;
// everything else malformed fails it, because half an itinerary is
// worse than none.
func BuildItinerary(raw string, trip *models.Trip, now time.Time) ([]*models.Day, []*models.Activity, error) {
	cleaned := utils.SanitizeJSON(raw)

	var payload struct {
		Days []generatedDay `json:"days"`
	}
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, nil, fmt.Errorf("model returned unparseable itinerary: %w", err)
	}
	if len(payload.Days) == 0 {
		return nil, nil, fmt.Errorf("model returned no days")
	}

	var days []*models.Day
	var activities []*models.Activity

	for i, gd := range payload.Days {
		day := &models.Day{
			Syncable: models.Syncable{
				ID:             uuid.NewString(),
				UserID:         trip.UserID,
				LocalUpdatedAt: now,
			},
			TripID:    trip.ID,
			Title:     gd.Title,
			Summary:   gd.Summary,
			SortOrder: i,
		}
		if !trip.StartDate.IsZero() {
			day.Date = trip.StartDate.AddDate(0, 0, i)
		}
		days = append(days, day)

		for j, ga := range gd.Activities {
			if ga.Title == "" {
				continue
			}
			cost := ga.EstimatedCost
			if cost < 0 {
				cost = 0
			}
			activities = append(activities, &models.Activity{
				Syncable: models.Syncable{
					ID:             uuid.NewString(),
					UserID:         trip.UserID,
					LocalUpdatedAt: now,
				},
				DayID:     day.ID,
				Title:     ga.Title,
				Category:  ga.Category,
				Location:  ga.Location,
				StartTime: normalizeClock(ga.StartTime),
				EndTime:   normalizeClock(ga.EndTime),
				Cost:      cost,
				Notes:     ga.Notes,
				SortOrder: j,
			})
		}
	}

	return days, activities, nil
}

// normalizeClock keeps only well-formed HH:MM wall-clock strings.
func normalizeClock(s string) string {
	if _, err := time.Parse("15:04", s); err != nil {
		return ""
	}
	return s
}
