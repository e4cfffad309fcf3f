// seed loads a demo week of schedules through the schedule service, so the
// same validation and conflict rules apply as over the API.
// Run: go run ./cmd/seed
package main

import (
	"context"
	"errors"
	"log"

	"github.com/ErlanBelekov/signage-scheduler/config"
	"github.com/ErlanBelekov/signage-scheduler/internal/bootstrap"
	"github.com/ErlanBelekov/signage-scheduler/internal/domain"
	"github.com/ErlanBelekov/signage-scheduler/internal/usecase"
)

func ptr[T any](v T) *T { return &v }

var seeds = []usecase.ScheduleInput{
	// Weekday baseline
	{
		Name:      "Office hours",
		Playlist:  "office",
		Days:      []string{"mon", "tue", "wed", "thu", "fri"},
		StartTime: "08:00",
		EndTime:   "18:00",
	},
	// Overrides the baseline during the Monday all-hands
	{
		Name:             "Monday all-hands",
		Playlist:         "all-hands",
		Priority:         ptr(2),
		Days:             []string{"mon"},
		StartTime:        "09:00",
		EndTime:          "10:00",
		ConflictBehavior: string(domain.ConflictIgnore),
		PostActions:      &domain.PostActions{RevertToDefaultPlaylist: true, CaptureScreenshot: true},
	},
	// Lunch menu overlaps the baseline too
	{
		Name:             "Lunch menu",
		Playlist:         "cafeteria",
		Priority:         ptr(3),
		Days:             []string{"1", "2", "3", "4", "5"},
		StartTime:        "11:30",
		EndTime:          "13:30",
		ConflictBehavior: string(domain.ConflictIgnore),
	},
	// Weekend, disabled until the lobby reopens on Saturdays
	{
		Name:        "Weekend promo",
		Description: "Shown in the lobby on weekends",
		Playlist:    "promo",
		Enabled:     ptr(false),
		Days:        []string{"Saturday", "Sunday"},
		StartTime:   "10:00",
		EndTime:     "16:00",
		PostActions: &domain.PostActions{StopPlayback: true},
	},
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := bootstrap.NewLogger(cfg.Env, cfg.SlogLevel())

	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	store, err := bootstrap.OpenStore(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer store.Close()

	uc := usecase.NewScheduleUsecase(store, nil, loc, logger)

	created := 0
	for _, in := range seeds {
		in.CreatedBy = "seed"
		s, err := uc.CreateSchedule(ctx, in)
		var cerr *domain.ConflictError
		switch {
		case errors.As(err, &cerr):
			log.Printf("skip %q: overlaps %d existing schedule(s)", in.Name, len(cerr.Conflicts))
		case err != nil:
			log.Fatalf("create %q: %v", in.Name, err)
		default:
			created++
			log.Printf("created %q (%s), next run %v", s.Name, s.ID, s.Metadata.NextRunAt)
		}
	}

	log.Printf("seeded %d of %d schedules into %s store", created, len(seeds), cfg.StoreDriver)
}
