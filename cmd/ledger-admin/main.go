package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"rental-ledger/config"
	"rental-ledger/internal/auth"
	"rental-ledger/internal/database"
	"rental-ledger/internal/logging"
)

func main() {
	fmt.Println("========================================")
	fmt.Println(" Ledger Administration Tool")
	fmt.Println("========================================")

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	db, err := database.NewDB(database.Config{
		Host:     cfg.DatabaseConfig.Host,
		Port:     cfg.DatabaseConfig.Port,
		User:     cfg.DatabaseConfig.User,
		Password: cfg.DatabaseConfig.Password,
		Database: cfg.DatabaseConfig.Database,
		SSLMode:  cfg.DatabaseConfig.SSLMode,
	})
	if err != nil {
		fmt.Printf("Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.RunMigrations(context.Background()); err != nil {
		fmt.Printf("Failed to run migrations: %v\n", err)
		os.Exit(1)
	}

	repo := database.NewRepository(db)
	authSvc := auth.NewService(repo, cfg.AuthConfig, logging.Nop())

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Println("\nOptions:")
		fmt.Println("  1. Create user")
		fmt.Println("  2. List periods")
		fmt.Println("  3. Exit")
		fmt.Print("\nSelect option: ")

		input, _ := reader.ReadString('\n')
		switch strings.TrimSpace(input) {
		case "1":
			createUser(reader, authSvc)
		case "2":
			listPeriods(repo)
		case "3":
			fmt.Println("Goodbye!")
			os.Exit(0)
		default:
			fmt.Println("Invalid option")
		}
	}
}

func createUser(reader *bufio.Reader, authSvc *auth.Service) {
	fmt.Println("\n--- Create User ---")
	fmt.Print("Email: ")
	email, _ := reader.ReadString('\n')
	email = strings.TrimSpace(email)

	fmt.Print("Password: ")
	password, _ := reader.ReadString('\n')
	password = strings.TrimSpace(password)

	fmt.Println("Roles:")
	fmt.Println("  1. Accountant (record and correct entries)")
	fmt.Println("  2. Admin      (plus close/reopen periods)")
	fmt.Print("Select role (1-2): ")
	roleInput, _ := reader.ReadString('\n')

	role := auth.RoleAccountant
	if strings.TrimSpace(roleInput) == "2" {
		role = auth.RoleAdmin
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	user, err := authSvc.CreateUser(ctx, email, password, role)
	if err != nil {
		fmt.Printf("Failed to create user: %v\n", err)
		return
	}
	fmt.Println("\n========================================")
	fmt.Printf("  User ID: %s\n", user.ID)
	fmt.Printf("  Email:   %s\n", user.Email)
	fmt.Printf("  Role:    %s\n", user.Role)
	fmt.Println("========================================")
}

func listPeriods(repo *database.Repository) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	periods, err := repo.ListPeriods(ctx)
	if err != nil {
		fmt.Printf("Failed to list periods: %v\n", err)
		return
	}
	if len(periods) == 0 {
		fmt.Println("No periods recorded yet.")
		return
	}

	fmt.Println("\nYear-Month  Status  Closed By")
	for _, p := range periods {
		status := "open"
		closedBy := ""
		if p.IsClosed {
			status = "closed"
			if p.ClosedBy != nil {
				closedBy = *p.ClosedBy
			}
		}
		fmt.Printf("%04d-%02d     %-6s  %s\n", p.Year, p.Month, status, closedBy)
	}
}
