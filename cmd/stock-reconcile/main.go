package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/rasamasa/franchise_backend/config"
	"github.com/rasamasa/franchise_backend/workflow"
	"github.com/sirupsen/logrus"
)

func main() {
	outletID := flag.Int("outlet-id", 0, "Optional: reconcile a single outlet; defaults to all active outlets")
	actor := flag.String("actor", "stock-reconcile-cli", "Actor name stamped on the rebuilt snapshot")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	logger := logrus.New()
	ctx := context.Background()

	if *outletID > 0 {
		if err := workflow.ReconcileOutletStock(ctx, logger, *outletID, *actor); err != nil {
			fmt.Fprintf(os.Stderr, "reconcile failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("outlet %d reconciled\n", *outletID)
		return
	}

	if err := workflow.ReconcileAllOutletStocks(ctx, logger, *actor); err != nil {
		fmt.Fprintf(os.Stderr, "reconcile failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("stock reconcile complete")
}
