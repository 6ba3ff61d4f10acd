package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/rasamasa/franchise_backend/config"
	"github.com/rasamasa/franchise_backend/models"
)

func main() {
	name := flag.String("name", "Administrator", "Display name")
	username := flag.String("username", "admin", "Login username")
	password := flag.String("password", "", "Required: initial password (min 8 chars)")
	flag.Parse()

	if len(*password) < 8 {
		fmt.Fprintln(os.Stderr, "--password is required (min 8 chars)")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	models.MigrateTable()

	user, err := models.CreateUser(context.Background(), &models.NewUser{
		Name:     *name,
		Username: *username,
		Password: *password,
		Role:     "ADMIN",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed admin failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("admin user %q created (id=%d)\n", user.Username, user.ID)
}
