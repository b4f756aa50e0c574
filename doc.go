/*
Package strata manages a laboratory sample storage hierarchy and the workflow
patches that teach the sample workflow how to store and recover samples.

# Concept

Facilities hold containers (fridges, racks) and containers hold sample boxes.
Every container and box has a fixed Rows x Columns grid: a child occupies one
slot and a full holder rejects new children with domain.ErrCapacityExceeded.

Samples follow a workflow definition. The install sequence imports the base
sample workflow and merges the storage patch into it, adding a "stored" state
and the store/recover transitions without dropping transitions that other
extensions contributed.

# Usage

Open builds the repository selected by the configuration and wires the storage
service, the patcher and the metrics registry around it.

	cfg, err := strata.LoadConfig("")
	if err != nil {
		log.Fatal(err)
	}
	app, err := strata.Open(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer app.Close()

	if _, err := app.Install(ctx); err != nil {
		log.Fatal(err)
	}
	rows, err := app.Storage.ListFacilities(ctx)

The same App backs the strata CLI, the HTTP API (pkg/adapters/http) and the
MCP server (pkg/adapters/mcp).
*/
package strata
