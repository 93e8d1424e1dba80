package daemon

import (
	"gorm.io/gorm"

	"github.com/glassview-analytics/glassview/internal/config"
	"github.com/glassview-analytics/glassview/internal/db/models"
)

func seed(cfg *config.Config, db *gorm.DB) {
	// Seed initial data if user table is empty

	var count int64

	db.Model(&models.User{}).Count(&count)
	if count == 0 {
		// Create default superuser, password must be changed on first login
		db.Create(
			&models.User{
				Username:    "admin",
				Password:    models.HashPassword("changeme"),
				Active:      true,
				IsSuperuser: true,
			},
		)
	}

	// Create the built-in default group every user belongs to
	db.Model(&models.Group{}).Where("is_default = ?", true).Count(&count)
	if count == 0 {
		db.Create(
			&models.Group{
				Name:        cfg.Permissions.DefaultGroup,
				Description: "Built-in group containing every user",
				IsDefault:   true,
			},
		)
	}
}
