package export

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/skip2/go-qrcode"

	"github.com/MKBarhoumi/tripcraft-sub000/internal/models"
)

// TripDocument bundles everything the PDF renders: the trip, its days
// in order, activities grouped per day, and the budget and note
// records for the summary sections. Tombstones must be filtered out
// by the caller.
type TripDocument struct {
	Trip       *models.Trip
	Days       []*models.Day
	Activities map[string][]*models.Activity // keyed by day id
	Budget     []*models.BudgetItem
	Notes      []*models.Note
}

// GenerateTripPDF renders a printable A4 itinerary. The QR code in the
// header deep-links back into the app (tripcraft://trip/<id>) so a
// printed copy can reopen the live trip.
func GenerateTripPDF(doc TripDocument) ([]byte, error) {
	if doc.Trip == nil {
		return nil, fmt.Errorf("no trip to render")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(15, 18, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	// Header: trip name, destination, dates, deep-link QR on the right
	pdf.SetFont("Arial", "B", 22)
	pdf.CellFormat(150, 10, tr(doc.Trip.Name), "", 1, "L", false, 0, "")

	pdf.SetFont("Arial", "", 11)
	pdf.SetTextColor(90, 90, 90)
	pdf.CellFormat(150, 6, tr(doc.Trip.Destination), "", 1, "L", false, 0, "")
	if dates := dateRange(doc.Trip); dates != "" {
		pdf.CellFormat(150, 6, dates, "", 1, "L", false, 0, "")
	}
	pdf.SetTextColor(0, 0, 0)

	if err := drawTripQR(pdf, doc.Trip.ID); err != nil {
		return nil, err
	}
	pdf.Ln(6)

	// Day-by-day itinerary
	sortedDays := append([]*models.Day(nil), doc.Days...)
	sort.SliceStable(sortedDays, func(i, j int) bool {
		return sortedDays[i].SortOrder < sortedDays[j].SortOrder
	})

	for i, day := range sortedDays {
		pdf.SetFont("Arial", "B", 13)
		pdf.SetFillColor(240, 240, 240)
		pdf.CellFormat(180, 8, tr(dayHeading(i, day)), "", 1, "L", true, 0, "")
		pdf.Ln(1)

		acts := append([]*models.Activity(nil), doc.Activities[day.ID]...)
		sort.SliceStable(acts, func(a, b int) bool {
			return acts[a].SortOrder < acts[b].SortOrder
		})

		if len(acts) == 0 {
			pdf.SetFont("Arial", "I", 10)
			pdf.CellFormat(180, 6, "Nothing planned yet", "", 1, "L", false, 0, "")
		}

		for _, act := range acts {
			pdf.SetFont("Arial", "B", 10)
			pdf.CellFormat(24, 6, clockRange(act), "", 0, "L", false, 0, "")
			pdf.CellFormat(116, 6, tr(act.Title), "", 0, "L", false, 0, "")
			pdf.SetFont("Arial", "", 10)
			pdf.CellFormat(40, 6, costLabel(act.Cost, doc.Trip.Currency), "", 1, "R", false, 0, "")

			if act.Location != "" {
				pdf.SetFont("Arial", "", 9)
				pdf.SetTextColor(90, 90, 90)
				pdf.CellFormat(24, 5, "", "", 0, "L", false, 0, "")
				pdf.CellFormat(156, 5, tr(act.Location), "", 1, "L", false, 0, "")
				pdf.SetTextColor(0, 0, 0)
			}
		}
		pdf.Ln(3)
	}

	drawBudgetSummary(pdf, tr, doc)
	drawPinnedNotes(pdf, tr, doc)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// drawTripQR places the deep-link QR code in the top-right corner.
func drawTripQR(pdf *gofpdf.Fpdf, tripID string) error {
	qrPng, err := qrcode.Encode(fmt.Sprintf("tripcraft://trip/%s", tripID), qrcode.Medium, 256)
	if err != nil {
		return fmt.Errorf("failed to encode trip QR: %w", err)
	}

	opts := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
	pdf.RegisterImageOptionsReader("trip_qr", opts, bytes.NewReader(qrPng))
	pdf.ImageOptions("trip_qr", 167, 16, 28, 28, false, opts, 0, "")
	return nil
}

func drawBudgetSummary(pdf *gofpdf.Fpdf, tr func(string) string, doc TripDocument) {
	if len(doc.Budget) == 0 {
		return
	}

	pdf.Ln(2)
	pdf.SetFont("Arial", "B", 13)
	pdf.SetFillColor(240, 240, 240)
	pdf.CellFormat(180, 8, "Budget", "", 1, "L", true, 0, "")
	pdf.Ln(1)

	var planned, paid float64
	byCategory := make(map[string]float64)
	var categories []string
	for _, item := range doc.Budget {
		planned += item.Amount
		if item.IsPaid {
			paid += item.Amount
		}
		if _, seen := byCategory[item.Category]; !seen {
			categories = append(categories, item.Category)
		}
		byCategory[item.Category] += item.Amount
	}
	sort.Strings(categories)

	pdf.SetFont("Arial", "", 10)
	for _, cat := range categories {
		pdf.CellFormat(140, 6, tr(cat), "", 0, "L", false, 0, "")
		pdf.CellFormat(40, 6, costLabel(byCategory[cat], doc.Trip.Currency), "", 1, "R", false, 0, "")
	}

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(140, 6, "Planned total", "T", 0, "L", false, 0, "")
	pdf.CellFormat(40, 6, costLabel(planned, doc.Trip.Currency), "T", 1, "R", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(140, 6, "Already paid", "", 0, "L", false, 0, "")
	pdf.CellFormat(40, 6, costLabel(paid, doc.Trip.Currency), "", 1, "R", false, 0, "")
}

func drawPinnedNotes(pdf *gofpdf.Fpdf, tr func(string) string, doc TripDocument) {
	var pinned []*models.Note
	for _, n := range doc.Notes {
		if n.Pinned {
			pinned = append(pinned, n)
		}
	}
	if len(pinned) == 0 {
		return
	}

	pdf.Ln(2)
	pdf.SetFont("Arial", "B", 13)
	pdf.SetFillColor(240, 240, 240)
	pdf.CellFormat(180, 8, "Notes", "", 1, "L", true, 0, "")
	pdf.Ln(1)

	for _, n := range pinned {
		if n.Title != "" {
			pdf.SetFont("Arial", "B", 10)
			pdf.CellFormat(180, 6, tr(n.Title), "", 1, "L", false, 0, "")
		}
		pdf.SetFont("Arial", "", 10)
		pdf.MultiCell(180, 5, tr(n.Content), "", "L", false)
		pdf.Ln(2)
	}
}

func dayHeading(index int, day *models.Day) string {
	heading := fmt.Sprintf("Day %d", index+1)
	if !day.Date.IsZero() {
		heading += " - " + day.Date.Format("Mon, Jan 2")
	}
	if day.Title != "" {
		heading += ": " + day.Title
	}
	return heading
}

func dateRange(trip *models.Trip) string {
	if trip.StartDate.IsZero() {
		return ""
	}
	if trip.EndDate.IsZero() || trip.EndDate.Equal(trip.StartDate) {
		return trip.StartDate.Format("January 2, 2006")
	}
	return fmt.Sprintf("%s - %s",
		trip.StartDate.Format("January 2, 2006"),
		trip.EndDate.Format("January 2, 2006"))
}

func clockRange(act *models.Activity) string {
	switch {
	case act.StartTime == "":
		return ""
	case act.EndTime == "":
		return act.StartTime
	default:
		return act.StartTime + "-" + act.EndTime
	}
}

func costLabel(amount float64, currency string) string {
	if amount == 0 {
		return ""
	}
	if currency == "" {
		currency = "EUR"
	}
	return fmt.Sprintf("%.2f %s", amount, currency)
}

// FileName builds a stable, filesystem-safe name for a generated
// document. Download handlers use it for the attachment header.
func FileName(trip *models.Trip, now time.Time) string {
	return fmt.Sprintf("trip-%s-%s.pdf", trip.ID, now.Format("20060102-150405"))
}
