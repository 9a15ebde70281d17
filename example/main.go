package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meikuraledutech/chartflow"
	"github.com/meikuraledutech/chartflow/badger"
	"github.com/meikuraledutech/chartflow/ctxlog"
	"github.com/meikuraledutech/chartflow/navigator"
	"github.com/meikuraledutech/chartflow/postgres"
	"github.com/meikuraledutech/chartflow/versions"
)

func main() {
	ctx := context.Background()
	logger := ctxlog.New("warn", "text", os.Stderr)
	ctx = ctxlog.WithLogger(ctx, logger)

	// Postgres when DATABASE_URL is set, otherwise an in-memory badger.
	var store chartflow.Store
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(ctx, dbURL)
		if err != nil {
			log.Fatalf("connect: %v", err)
		}
		defer pool.Close()
		store = postgres.New(pool)
	} else {
		db, err := badger.Open(badger.InMemoryConfig())
		if err != nil {
			log.Fatalf("open badger: %v", err)
		}
		defer db.Close()
		store = db
	}

	if err := store.CreateSchema(ctx); err != nil {
		log.Fatalf("schema: %v", err)
	}
	fmt.Println("schema created")

	svc, err := versions.Open(ctx, store, "example", versions.WithLogger(logger))
	if err != nil {
		log.Fatalf("open session: %v", err)
	}

	// ── Travel chart: start → flights? → (yes: weight → redirect) ──────
	travel, err := svc.AddChart(ctx, "Travel")
	if err != nil {
		log.Fatalf("add chart: %v", err)
	}
	mustNodes(ctx, svc, travel.ID,
		chartflow.Node{ID: "t-start", Payload: chartflow.Start{}},
		chartflow.Node{ID: "t-fly", Label: "Did you fly this year?", Payload: chartflow.YesNo{}},
		chartflow.Node{ID: "t-weight", Label: "Flight footprint", Payload: chartflow.Weight{Weight: 3}},
		chartflow.Node{ID: "t-offset", Payload: chartflow.End{EndType: chartflow.EndRedirect, RedirectTab: "Offset"}},
		chartflow.Node{ID: "t-end", Payload: chartflow.End{}},
	)
	mustEdges(ctx, svc, travel.ID,
		chartflow.Edge{Source: "t-start", Target: "t-fly"},
		chartflow.Edge{Source: "t-fly", Target: "t-weight", SourceHandle: chartflow.LabelYes},
		chartflow.Edge{Source: "t-fly", Target: "t-end", SourceHandle: chartflow.LabelNo},
		chartflow.Edge{Source: "t-weight", Target: "t-offset"},
	)

	// ── Offset chart ──────────────────────────────────────────────────
	offset, err := svc.AddChart(ctx, "Offset")
	if err != nil {
		log.Fatalf("add chart: %v", err)
	}
	mustNodes(ctx, svc, offset.ID,
		chartflow.Node{ID: "o-start", Payload: chartflow.Start{}},
		chartflow.Node{ID: "o-plant", Label: "Would you plant trees?", Payload: chartflow.YesNo{}},
		chartflow.Node{ID: "o-end", Payload: chartflow.End{}},
	)
	mustEdges(ctx, svc, offset.ID,
		chartflow.Edge{Source: "o-start", Target: "o-plant"},
		chartflow.Edge{Source: "o-plant", Target: "o-end", SourceHandle: chartflow.LabelYes},
		chartflow.Edge{Source: "o-plant", Target: "o-end", SourceHandle: chartflow.LabelNo},
	)

	// The redirect was compiled before Offset existed.
	if err := svc.Recompile(ctx, travel.ID); err != nil {
		log.Fatalf("recompile: %v", err)
	}

	// ── Publish ───────────────────────────────────────────────────────
	for _, id := range []string{travel.ID, offset.ID} {
		v, err := svc.Publish(ctx, id, "initial")
		if err != nil {
			log.Fatalf("publish: %v", err)
		}
		fmt.Printf("published %s v%d\n", id, v.Version)
	}

	fmt.Println("\nquestions:")
	printJSON(navigator.AllQuestions(svc.ListCharts()))

	// ── Navigate ──────────────────────────────────────────────────────
	nav := navigator.New(svc)
	cur, err := nav.Start(ctx, "Travel", "Be a hero, fly carbon zero")
	if err != nil {
		log.Fatalf("start: %v", err)
	}
	fmt.Printf("\nat %s (%s)\n", cur.NodeID, cur.Location())

	cur, err = nav.Answer(ctx, cur, chartflow.LabelYes)
	if err != nil {
		log.Fatalf("answer: %v", err)
	}
	fmt.Printf("redirected to %s/%s with score %.1f\n", cur.ChartName, cur.NodeID, cur.Score)

	cur, err = nav.Answer(ctx, cur, chartflow.LabelYes)
	if err != nil {
		log.Fatalf("answer: %v", err)
	}
	fmt.Printf("done=%v after %d answers\n", cur.Done(), len(cur.Answers))

	// ── Resume from a stale URL ───────────────────────────────────────
	res, err := nav.Resume(ctx, navigator.Location{Chart: "Travel", Question: "deleted-node"})
	if err != nil {
		log.Fatalf("resume: %v", err)
	}
	fmt.Printf("\nresumed at %s (corrected=%v)\n", res.Cursor.Location(), res.Corrected)

	// ── Cleanup ───────────────────────────────────────────────────────
	if err := svc.Close(ctx); err != nil {
		log.Fatalf("close: %v", err)
	}
	if err := store.DeleteCollection(ctx, "example"); err != nil {
		log.Fatalf("delete: %v", err)
	}
	fmt.Println("\nsession deleted")
}

func mustNodes(ctx context.Context, svc *versions.Service, chartID string, nodes ...chartflow.Node) {
	for _, n := range nodes {
		if _, err := svc.AddNode(ctx, chartID, n); err != nil {
			log.Fatalf("add node %s: %v", n.ID, err)
		}
	}
}

func mustEdges(ctx context.Context, svc *versions.Service, chartID string, edges ...chartflow.Edge) {
	for _, e := range edges {
		if _, err := svc.Connect(ctx, chartID, e); err != nil {
			log.Fatalf("connect %s -> %s: %v", e.Source, e.Target, err)
		}
	}
}

func printJSON(v any) {
	out, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(out))
}
