package strata_test

import (
	"context"
	"fmt"
	"log"

	"github.com/aretw0/strata"
	"github.com/aretw0/strata/internal/config"
	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/workflow"
)

// ExampleOpen stores a received sample in a box of an in-memory repository.
func ExampleOpen() {
	ctx := context.Background()

	cfg := strata.DefaultConfig()
	cfg.Storage.Driver = config.DriverMemory

	app, err := strata.Open(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer app.Close()

	// Imports the sample workflow and merges the storage patch into it.
	if _, err := app.Install(ctx); err != nil {
		log.Fatal(err)
	}

	facility, _ := app.Storage.CreateFacility(ctx, "Main", domain.FacilityInfo{})
	fridge, _ := app.Storage.CreateContainer(ctx, facility.ID, domain.KindContainer, "Fridge", 1, 1)
	box, _ := app.Storage.CreateContainer(ctx, fridge.ID, domain.KindSamplesContainer, "Box", 2, 2)

	clerk := workflow.Actor{ID: "clerk", Roles: []string{"LabClerk"}}
	sample, _ := app.Storage.RegisterSample(ctx, "Blood 01")
	if _, err := app.Storage.FireSample(ctx, sample.ID, "receive", clerk); err != nil {
		log.Fatal(err)
	}
	sample, err = app.Storage.StoreSample(ctx, sample.ID, box.ID, clerk)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(sample.Title, "is", sample.ReviewState)

	rows, _ := app.Storage.ListFacilities(ctx)
	for _, r := range rows {
		fmt.Printf("%s: %d/%d samples (%.0f%%)\n", r.Title, r.Samples, r.Capacity, r.Usage)
	}
	// Output:
	// Blood 01 is stored
	// Main: 1/4 samples (25%)
}
