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
	loop := flag.Bool("loop", false, "Keep sweeping on the configured interval instead of one pass")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	logger := logrus.New()
	ctx := context.Background()

	if *loop {
		workflow.StartRepairSweep(ctx, logger)
		return
	}

	repaired, err := workflow.RunRepairSweep(ctx, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sweep failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("repair sweep complete, %d entries repaired\n", repaired)
}
