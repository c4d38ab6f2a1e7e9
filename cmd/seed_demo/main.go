package main

import (
	"fmt"
	"log"
	"time"

	"github.com/MKBarhoumi/tripcraft-sub000/internal/config"
	"github.com/MKBarhoumi/tripcraft-sub000/internal/database"
	"github.com/MKBarhoumi/tripcraft-sub000/internal/models"
	"github.com/MKBarhoumi/tripcraft-sub000/internal/utils"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	demoEmail    = "demo@tripcraft.app"
	demoPassword = "demo1234"
)

func main() {
	fmt.Println("🌍 TripCraft Demo Data Seeder")
	fmt.Println()

	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	// Connect to database
	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()

	fmt.Println("✅ Connected to database")
	fmt.Println()

	// Run migrations first
	fmt.Println("🔨 Running database migrations...")
	err = db.AutoMigrate(
		&models.User{},
		&models.RegisteredDevice{},
		&models.SyncLog{},
		&models.Trip{},
		&models.Day{},
		&models.Activity{},
		&models.BudgetItem{},
		&models.Note{},
	)
	if err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}
	fmt.Println("✅ Migrations complete")
	fmt.Println()

	// Check if the demo account already exists
	var existing models.User
	if err := db.Where("email = ?", demoEmail).First(&existing).Error; err == nil {
		fmt.Printf("⚠️  Demo account %s already exists. Wipe its data and reseed? (y/N): ", demoEmail)
		var answer string
		fmt.Scanln(&answer)
		if answer != "y" && answer != "Y" {
			fmt.Println("❌ Aborted. Database not modified.")
			return
		}

		fmt.Println("🗑️  Clearing demo data...")
		db.Where("user_id = ?", existing.ID).Delete(&models.Activity{})
		db.Where("user_id = ?", existing.ID).Delete(&models.BudgetItem{})
		db.Where("user_id = ?", existing.ID).Delete(&models.Note{})
		db.Where("user_id = ?", existing.ID).Delete(&models.Day{})
		db.Where("user_id = ?", existing.ID).Delete(&models.Trip{})
		db.Where("user_id = ?", existing.ID).Delete(&models.RegisteredDevice{})
		db.Where("user_id = ?", existing.ID).Delete(&models.SyncLog{})
		db.Unscoped().Delete(&existing)
		fmt.Println("✅ Demo data cleared")
	}

	fmt.Println()
	fmt.Println("📦 Creating demo data...")
	fmt.Println()

	// 1. Demo user
	fmt.Println("👤 Creating demo user...")
	hashed, err := utils.HashPassword(demoPassword)
	if err != nil {
		log.Fatalf("❌ Failed to hash password: %v", err)
	}
	user := models.User{
		Email:        demoEmail,
		Password:     hashed,
		DisplayName:  "Demo Traveler",
		HomeCurrency: "EUR",
		IsActive:     true,
	}
	if err := db.Create(&user).Error; err != nil {
		log.Fatalf("❌ Failed to create demo user: %v", err)
	}
	fmt.Printf("   ✓ %s (password: %s)\n\n", demoEmail, demoPassword)

	now := time.Now().UTC()
	start := time.Date(2026, 10, 9, 0, 0, 0, 0, time.UTC)

	// 2. Trip
	fmt.Println("🧳 Creating trip...")
	trip := models.Trip{
		Syncable:    stamp(user.ID, now),
		Name:        "Lisbon Long Weekend",
		Destination: "Lisbon, Portugal",
		Description: "Three days of miradouros, pastéis de nata and one Sintra day trip.",
		StartDate:   start,
		EndDate:     start.AddDate(0, 0, 2),
		TotalBudget: 900,
		Currency:    "EUR",
		Preferences: datatypes.JSON(`{"interests": ["food", "history"], "budget_level": "moderate", "pace": "relaxed"}`),
	}
	if err := db.Create(&trip).Error; err != nil {
		log.Fatalf("❌ Failed to create trip: %v", err)
	}
	fmt.Printf("   ✓ %s (%s)\n\n", trip.Name, trip.Destination)

	// 3. Days and activities
	fmt.Println("📅 Creating days and activities...")

	day1 := models.Day{
		Syncable:  stamp(user.ID, now),
		TripID:    trip.ID,
		Date:      start,
		Title:     "Alfama & the Castle",
		Summary:   "Old town on foot, castle views, fado after dark.",
		SortOrder: 0,
	}
	day2 := models.Day{
		Syncable:  stamp(user.ID, now),
		TripID:    trip.ID,
		Date:      start.AddDate(0, 0, 1),
		Title:     "Belém & the River",
		Summary:   "Monastery, custard tarts at the source, tower at the water.",
		SortOrder: 1,
	}
	day3 := models.Day{
		Syncable:  stamp(user.ID, now),
		TripID:    trip.ID,
		Date:      start.AddDate(0, 0, 2),
		Title:     "Sintra Day Trip",
		Summary:   "Palaces in the hills, back for a last sunset.",
		SortOrder: 2,
	}
	days := []*models.Day{&day1, &day2, &day3}
	for _, day := range days {
		if err := db.Create(day).Error; err != nil {
			log.Fatalf("❌ Failed to create day %q: %v", day.Title, err)
		}
	}

	activities := []models.Activity{
		{Syncable: stamp(user.ID, now), DayID: day1.ID, Title: "São Jorge Castle", Category: "sightseeing", Location: "Castelo de S. Jorge", StartTime: "09:30", EndTime: "11:30", Cost: 15, SortOrder: 0},
		{Syncable: stamp(user.ID, now), DayID: day1.ID, Title: "Lunch at Time Out Market", Category: "food", Location: "Mercado da Ribeira", StartTime: "12:30", EndTime: "14:00", Cost: 25, SortOrder: 1},
		{Syncable: stamp(user.ID, now), DayID: day1.ID, Title: "Alfama walking tour", Category: "culture", Location: "Alfama", StartTime: "15:00", EndTime: "17:00", Cost: 0, Notes: "Free tour, tip based", SortOrder: 2},
		{Syncable: stamp(user.ID, now), DayID: day1.ID, Title: "Fado dinner", Category: "food", Location: "Clube de Fado", StartTime: "19:30", EndTime: "21:30", Cost: 45, BookingRef: "CF-88412", SortOrder: 3},

		{Syncable: stamp(user.ID, now), DayID: day2.ID, Title: "Jerónimos Monastery", Category: "culture", Location: "Belém", StartTime: "09:00", EndTime: "10:30", Cost: 12, SortOrder: 0},
		{Syncable: stamp(user.ID, now), DayID: day2.ID, Title: "Pastéis de Belém", Category: "food", Location: "R. de Belém 84", StartTime: "10:45", EndTime: "11:15", Cost: 5, Notes: "Expect a queue, it moves fast", SortOrder: 1},
		{Syncable: stamp(user.ID, now), DayID: day2.ID, Title: "Belém Tower", Category: "sightseeing", Location: "Torre de Belém", StartTime: "11:30", EndTime: "12:30", Cost: 8, SortOrder: 2},
		{Syncable: stamp(user.ID, now), DayID: day2.ID, Title: "MAAT museum", Category: "culture", Location: "Av. Brasília", StartTime: "15:00", EndTime: "17:00", Cost: 11, SortOrder: 3},

		{Syncable: stamp(user.ID, now), DayID: day3.ID, Title: "Train to Sintra", Category: "transport", Location: "Rossio Station", StartTime: "08:30", EndTime: "09:15", Cost: 5, SortOrder: 0},
		{Syncable: stamp(user.ID, now), DayID: day3.ID, Title: "Pena Palace", Category: "sightseeing", Location: "Sintra", StartTime: "10:00", EndTime: "12:30", Cost: 20, SortOrder: 1},
		{Syncable: stamp(user.ID, now), DayID: day3.ID, Title: "Lunch in Sintra old town", Category: "food", Location: "Sintra", StartTime: "13:00", EndTime: "14:00", Cost: 20, SortOrder: 2},
		{Syncable: stamp(user.ID, now), DayID: day3.ID, Title: "Quinta da Regaleira", Category: "sightseeing", Location: "Sintra", StartTime: "14:30", EndTime: "16:00", Cost: 12, SortOrder: 3},
	}
	for i := range activities {
		if err := db.Create(&activities[i]).Error; err != nil {
			log.Fatalf("❌ Failed to create activity %q: %v", activities[i].Title, err)
		}
	}
	for _, day := range days {
		count := 0
		for _, act := range activities {
			if act.DayID == day.ID {
				count++
			}
		}
		fmt.Printf("   ✓ %s — %d activities\n", day.Title, count)
	}
	fmt.Println()

	// 4. Budget items
	fmt.Println("💶 Creating budget items...")
	budget := []models.BudgetItem{
		{Syncable: stamp(user.ID, now), TripID: &trip.ID, Category: "transport", Description: "Return flights", Amount: 180, Currency: "EUR", IsPaid: true},
		{Syncable: stamp(user.ID, now), TripID: &trip.ID, Category: "accommodation", Description: "Hotel, 2 nights", Amount: 320, Currency: "EUR", IsPaid: true},
		{Syncable: stamp(user.ID, now), DayID: &day1.ID, Category: "food", Description: "Fado dinner for two", Amount: 90, Currency: "EUR"},
		{Syncable: stamp(user.ID, now), DayID: &day3.ID, Category: "activities", Description: "Sintra palace tickets", Amount: 64, Currency: "EUR"},
	}
	for i := range budget {
		if err := db.Create(&budget[i]).Error; err != nil {
			log.Fatalf("❌ Failed to create budget item %q: %v", budget[i].Description, err)
		}
		fmt.Printf("   ✓ %s — %.0f EUR\n", budget[i].Description, budget[i].Amount)
	}
	fmt.Println()

	// 5. Notes
	fmt.Println("📝 Creating notes...")
	notes := []models.Note{
		{Syncable: stamp(user.ID, now), TripID: &trip.ID, Title: "Packing list", Content: "Comfortable shoes (cobblestones!), power adapter, sunscreen, light jacket for the evening.", Pinned: true},
		{Syncable: stamp(user.ID, now), DayID: &day3.ID, Title: "Sintra tickets", Content: "Buy Pena Palace tickets online the night before, the box office queue is brutal."},
	}
	for i := range notes {
		if err := db.Create(&notes[i]).Error; err != nil {
			log.Fatalf("❌ Failed to create note %q: %v", notes[i].Title, err)
		}
		fmt.Printf("   ✓ %s\n", notes[i].Title)
	}
	fmt.Println()

	fmt.Println("✅ Demo data ready")
	fmt.Printf("   Log in with %s / %s\n", demoEmail, demoPassword)
}

// stamp builds the sync envelope of one seeded record.
func stamp(userID string, now time.Time) models.Syncable {
	return models.Syncable{
		ID:             uuid.NewString(),
		UserID:         userID,
		LocalUpdatedAt: now,
	}
}
