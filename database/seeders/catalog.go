package seeders

import (
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/shashiranjanraj/eshop/app/models"
	"github.com/shashiranjanraj/eshop/config"
	"github.com/shashiranjanraj/eshop/pkg/auth"
)

func init() {
	Register("catalog", SeedCatalog)
	Register("admin", SeedAdmin)
}

func kg(v float64) *float64 { return &v }

// SeedCatalog inserts a demo collection. Existing rows are left as they are.
func SeedCatalog(db *gorm.DB) error {
	products := []models.Product{
		{ID: "tee-classic", Name: "Tričko Classic", PriceCZK: 590, WeightKg: kg(0.25), Active: true},
		{ID: "hoodie-heavy", Name: "Mikina Heavyweight", PriceCZK: 1490, WeightKg: kg(0.85), Active: true},
		{ID: "cap-logo", Name: "Kšiltovka Logo", PriceCZK: 450, Active: true},
		{ID: "jacket-winter", Name: "Zimní bunda", PriceCZK: 3290, WeightKg: kg(1.6), Active: true},
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&products).Error; err != nil {
		return err
	}

	stock := map[string]map[string]int{
		"tee-classic":   {"S": 12, "M": 20, "L": 15, "XL": 4},
		"hoodie-heavy":  {"S": 3, "M": 8, "L": 6, "XL": 0},
		"cap-logo":      {"UNI": 30},
		"jacket-winter": {"M": 2, "L": 5},
	}

	var skus []models.SKU
	for productID, sizes := range stock {
		for size, n := range sizes {
			skus = append(skus, models.SKU{ProductID: productID, Size: size, Stock: n})
		}
	}
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&skus).Error
}

// SeedAdmin creates the back-office admin from ADMIN_EMAIL / ADMIN_PASSWORD.
func SeedAdmin(db *gorm.DB) error {
	email := config.Get("ADMIN_EMAIL", "admin@eshop.local")
	password := config.Get("ADMIN_PASSWORD", "")
	if password == "" {
		return nil
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	admin := models.AdminUser{Email: strings.ToLower(email), PasswordHash: hash, Role: models.RoleAdmin}
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&admin).Error
}
