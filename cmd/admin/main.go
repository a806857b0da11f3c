// Package main provides admin management utilities for Inkwell. Category
// management endpoints are admin-only, so a fresh install needs at least one
// promoted account.
package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"inkwell/internal/config"
	"inkwell/internal/database"
	"inkwell/internal/models"

	"gorm.io/gorm"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage:")
		fmt.Println("  go run ./cmd/admin/main.go promote <user_id|email>   - Grant admin role")
		fmt.Println("  go run ./cmd/admin/main.go demote <user_id|email>    - Revoke admin role")
		fmt.Println("  go run ./cmd/admin/main.go list-admins               - List all admins")
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	switch command := os.Args[1]; command {
	case "promote":
		setAdmin(db, arg(2), true)
	case "demote":
		setAdmin(db, arg(2), false)
	case "list-admins":
		listAdmins(db)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		os.Exit(1)
	}
}

func arg(n int) string {
	if len(os.Args) <= n {
		fmt.Println("Usage: go run ./cmd/admin/main.go <promote|demote> <user_id|email>")
		os.Exit(1)
	}
	return os.Args[n]
}

// findUser resolves an identifier that may be a numeric ID or an email.
func findUser(db *gorm.DB, identifier string) (*models.User, error) {
	var user models.User
	query := db.Where("id = ?", identifier)
	if strings.Contains(identifier, "@") {
		query = db.Where("email = ?", strings.ToLower(identifier))
	}
	if err := query.First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func setAdmin(db *gorm.DB, identifier string, admin bool) {
	user, err := findUser(db, identifier)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			fmt.Printf("User %q not found\n", identifier)
			os.Exit(1)
		}
		log.Fatalf("Database error: %v", err)
	}

	if user.IsAdmin == admin {
		fmt.Printf("User %s (ID: %d) already has role %s\n", user.Username, user.ID, user.Role())
		return
	}

	if err := db.Model(user).Update("is_admin", admin).Error; err != nil {
		log.Fatalf("Failed to update role: %v", err)
	}

	if admin {
		fmt.Printf("✅ Granted admin to %s (ID: %d)\n", user.Username, user.ID)
	} else {
		fmt.Printf("✅ Revoked admin from %s (ID: %d)\n", user.Username, user.ID)
	}
}

func listAdmins(db *gorm.DB) {
	var admins []models.User
	if err := db.Where("is_admin = ?", true).Find(&admins).Error; err != nil {
		log.Fatalf("Failed to fetch admins: %v", err)
	}

	if len(admins) == 0 {
		fmt.Println("No admins found in the system")
		return
	}

	fmt.Println("\n📋 Current Admins:")
	fmt.Println("─────────────────────────────────────")
	for _, admin := range admins {
		fmt.Printf("ID: %d | Username: %s | Email: %s\n", admin.ID, admin.Username, admin.Email)
	}
	fmt.Println("─────────────────────────────────────")
}
