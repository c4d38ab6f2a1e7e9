package ai

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/MKBarhoumi/tripcraft-sub000/internal/models"
)

const ItinerarySystemPrompt = `
You are the trip-planning brain of TripCraft. Your goal is to build realistic, well-paced daily itineraries.

### RULES
1. Plan real places that exist at the destination. Never invent attractions.
2. Respect opening hours and travel time between activities.
3. Keep each day to 3-5 activities with room for meals and rest.
4. Costs are estimates per person in the trip's currency.

### OUTPUT FORMAT
You must return ONLY a JSON object with the following structure, no prose around it:
{
  "days": [
    {
      "title": "Short headline for the day",
      "summary": "One or two sentences describing the day",
      "activities": [
        {
          "title": "Activity name",
          "category": "sightseeing" | "food" | "transport" | "culture" | "nature" | "leisure",
          "location": "Human readable place",
          "start_time": "09:30",
          "end_time": "11:00",
          "estimated_cost": 20,
          "notes": "Practical tips, booking hints"
        }
      ]
    }
  ]
}
`

// ItineraryRequest carries the user's knobs for a generation run.
type ItineraryRequest struct {
	Interests   []string `json:"interests"`
	BudgetLevel string   `json:"budget_level"` // budget, moderate, luxury
	Pace        string   `json:"pace"`         // relaxed, balanced, packed
}

// ItineraryPrompt assembles the full generation prompt for a trip.
func ItineraryPrompt(trip *models.Trip, req ItineraryRequest) string {
	var b strings.Builder
	b.WriteString(ItinerarySystemPrompt)
	b.WriteString("\n### TRIP\n")
	fmt.Fprintf(&b, "Destination: %s\n", trip.Destination)

	days := tripLengthDays(trip)
	fmt.Fprintf(&b, "Length: %d days\n", days)
	if !trip.StartDate.IsZero() {
		fmt.Fprintf(&b, "Starting: %s\n", trip.StartDate.Format("2006-01-02"))
	}
	if trip.TotalBudget > 0 {
		fmt.Fprintf(&b, "Total budget: %.0f %s\n", trip.TotalBudget, tripCurrency(trip))
	}
	if len(req.Interests) > 0 {
		fmt.Fprintf(&b, "Traveler interests: %s\n", strings.Join(req.Interests, ", "))
	}
	if req.BudgetLevel != "" {
		fmt.Fprintf(&b, "Spending style: %s\n", req.BudgetLevel)
	}
	if req.Pace != "" {
		fmt.Fprintf(&b, "Pace: %s\n", req.Pace)
	}
	fmt.Fprintf(&b, "\nReturn exactly %d entries in \"days\".\n", days)

	return b.String()
}

// RefinePrompt asks the model to rework an existing itinerary
// according to a traveller's instruction. The current plan is embedded
// in the same shape the output contract uses, so the model edits in
// place and the reply feeds the same decoder as a fresh generation.
func RefinePrompt(trip *models.Trip, days []*models.Day, activities []*models.Activity, instruction string) string {
	dayCount := len(days)
	if dayCount == 0 {
		dayCount = tripLengthDays(trip)
	}

	var b strings.Builder
	b.WriteString(ItinerarySystemPrompt)
	b.WriteString("\n### TRIP\n")
	fmt.Fprintf(&b, "Destination: %s\n", trip.Destination)
	fmt.Fprintf(&b, "Length: %d days\n", dayCount)
	if trip.TotalBudget > 0 {
		fmt.Fprintf(&b, "Total budget: %.0f %s\n", trip.TotalBudget, tripCurrency(trip))
	}

	b.WriteString("\n### CURRENT PLAN\n")
	b.WriteString(currentPlanJSON(days, activities))
	b.WriteString("\n")

	b.WriteString("\n### INSTRUCTION\n")
	fmt.Fprintf(&b, "Rework the current plan: %s\n", instruction)
	b.WriteString("Keep every day and activity the instruction does not touch.\n")
	fmt.Fprintf(&b, "\nReturn exactly %d entries in \"days\".\n", dayCount)

	return b.String()
}

// currentPlanJSON renders the live itinerary in the output contract's
// shape. Days and activities arrive in itinerary order from the
// caller.
func currentPlanJSON(days []*models.Day, activities []*models.Activity) string {
	byDay := make(map[string][]generatedActivity, len(days))
	for _, act := range activities {
		byDay[act.DayID] = append(byDay[act.DayID], generatedActivity{
			Title:         act.Title,
			Category:      act.Category,
			Location:      act.Location,
			StartTime:     act.StartTime,
			EndTime:       act.EndTime,
			EstimatedCost: act.Cost,
			Notes:         act.Notes,
		})
	}

	var plan struct {
		Days []generatedDay `json:"days"`
	}
	for _, day := range days {
		plan.Days = append(plan.Days, generatedDay{
			Title:      day.Title,
			Summary:    day.Summary,
			Activities: byDay[day.ID],
		})
	}

	out, err := json.Marshal(plan)
	if err != nil {
		return "{}"
	}
	return string(out)
}

// tripLengthDays derives the day count from the trip's date range,
// defaulting to 3 when no range is set.
func tripLengthDays(trip *models.Trip) int {
	if trip.StartDate.IsZero() || trip.EndDate.IsZero() {
		return 3
	}
	days := int(trip.EndDate.Sub(trip.StartDate)/(24*time.Hour)) + 1
	if days < 1 {
		return 1
	}
	if days > 30 {
		return 30
	}
	return days
}

func tripCurrency(trip *models.Trip) string {
	if trip.Currency == "" {
		return "EUR"
	}
	return trip.Currency
}
