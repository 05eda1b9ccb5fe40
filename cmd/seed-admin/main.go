// seed-admin creates or updates the dashboard admin user.
//
// Usage (from backend directory):
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-admin
//
// Username and password come from PAINEL_ADMIN_USERNAME / PAINEL_ADMIN_PASSWORD,
// with development defaults.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/grupovitrine/painel_backend/config"
	"github.com/grupovitrine/painel_backend/models"
	"github.com/grupovitrine/painel_backend/utils"
	"gorm.io/gorm"
)

const (
	defaultAdminUsername = "painelAdmin"
	defaultAdminPassword = "Painel@dmin"
	adminName            = "Painel Admin"
)

func main() {
	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	username := os.Getenv("PAINEL_ADMIN_USERNAME")
	if username == "" {
		username = defaultAdminUsername
	}
	password := os.Getenv("PAINEL_ADMIN_PASSWORD")
	if password == "" {
		password = defaultAdminPassword
	}

	hashed, err := utils.HashPassword(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}

	var existing models.User
	err = db.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).First(&existing).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			fmt.Fprintf(os.Stderr, "failed to lookup user: %v\n", err)
			os.Exit(1)
		}
		u := models.User{
			Username: username,
			Name:     adminName,
			Password: string(hashed),
			Role:     models.UserRoleAdmin,
			IsActive: utils.NewTrue(),
		}
		if err := db.WithContext(ctx).Create(&u).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to create admin user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("created admin user %q (id %d)\n", username, u.ID)
		return
	}

	updates := map[string]interface{}{
		"password":  string(hashed),
		"role":      models.UserRoleAdmin,
		"is_active": true,
	}
	if err := db.WithContext(ctx).Model(&existing).Updates(updates).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to update admin user: %v\n", err)
		os.Exit(1)
	}

	// Drop any cached copy so the next login sees the new password.
	_ = existing.RemoveInstanceRedis()
	fmt.Printf("updated admin user %q (id %d)\n", username, existing.ID)
}
