// Seed script for loading a demo fraud case into the snapshot store.
// Run with: go run ./scripts/seed.go
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/Harshitk-cp/hyperholmes/internal/config"
	"github.com/Harshitk-cp/hyperholmes/internal/domain"
	"github.com/Harshitk-cp/hyperholmes/internal/service"
	"github.com/Harshitk-cp/hyperholmes/internal/store"
	"go.uber.org/zap"
)

const demoCaseID = "demo-shell-companies"

func main() {
	if err := config.Load(); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if config.StoreDriver() == config.StoreDriverNone {
		log.Fatal("STORE_DRIVER is none; nothing to seed into")
	}

	logger := zap.NewNop()
	ctx := context.Background()

	st, err := store.Open(ctx, store.Options{
		Driver:      config.StoreDriver(),
		DatabaseURL: config.DatabaseURL(),
		SQLitePath:  config.SQLitePath(),
	}, logger)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	cfg, err := service.ConfigFromEnv(logger)
	if err != nil {
		log.Fatalf("Failed to build config: %v", err)
	}
	svc, err := service.NewCaseService(demoCaseID, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to create case: %v", err)
	}

	res, err := svc.ImportCase(demoCase())
	if err != nil {
		log.Fatalf("Failed to import demo case: %v", err)
	}
	report := svc.RunCompleteAnalysis()

	if err := svc.Persist(ctx, st); err != nil {
		log.Fatalf("Failed to persist demo case: %v", err)
	}

	fmt.Println("=== Seed Complete ===")
	fmt.Printf("Case ID:        %s\n", demoCaseID)
	fmt.Printf("Imported atoms: %d\n", res.Entities+res.Events+res.Relationships+res.Evidence)
	fmt.Printf("Inferences:     %d\n", report.Summary.Inferences)
	fmt.Printf("Leads:          %d (%d critical)\n", report.Summary.LeadsGenerated, report.Summary.CriticalLeads)
	fmt.Println()
	fmt.Println("Query it with:")
	fmt.Printf("  curl -X POST localhost:%d/v1/cases/%s/query -d '{\"query\":\"FIND ENTITY\"}'\n", config.ServerPort(), demoCaseID)
}

func demoCase() domain.CaseFile {
	day := func(n int) *time.Time {
		t := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC).AddDate(0, 0, n)
		return &t
	}
	amount := func(v float64) *float64 { return &v }

	return domain.CaseFile{
		CaseID: demoCaseID,
		Entities: []domain.EntityRecord{
			{ID: "marcus", Name: "Marcus Hale", EntityType: "person"},
			{ID: "dana", Name: "Dana Reyes", EntityType: "person"},
			{ID: "northwind", Name: "Northwind Holdings", EntityType: "company"},
			{ID: "bluecrest", Name: "Bluecrest Trading", EntityType: "company"},
			{ID: "cayman-acct", Name: "Offshore account 7731", EntityType: "account"},
		},
		Events: []domain.EventRecord{
			{ID: "wire-1", Name: "Wire transfer", Date: day(0), Participants: []string{"northwind", "cayman-acct"}, Amount: amount(48000)},
			{ID: "wire-2", Name: "Wire transfer", Date: day(1), Participants: []string{"northwind", "cayman-acct"}, Amount: amount(51000)},
			{ID: "wire-3", Name: "Wire transfer", Date: day(2), Participants: []string{"bluecrest", "cayman-acct"}, Amount: amount(49500)},
			{ID: "meeting", Name: "Board meeting", Date: day(2), Participants: []string{"marcus", "dana"}},
		},
		Relationships: []domain.RelationshipRecord{
			{Name: "director_of", SourceID: "marcus", TargetID: "northwind"},
			{Name: "director_of", SourceID: "dana", TargetID: "bluecrest"},
			{Name: "controls", SourceID: "northwind", TargetID: "bluecrest"},
		},
		Evidence: []domain.EvidenceRecord{
			{ID: "ledger", Name: "Northwind ledger export", References: []string{"wire-1", "wire-2"}},
			{ID: "minutes", Name: "Board minutes", References: []string{"meeting", "marcus"}},
			{ID: "tip", Name: "Anonymous tip", Description: "Mentions an unnamed intermediary"},
		},
	}
}
