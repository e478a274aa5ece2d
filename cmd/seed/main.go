package main

import (
	"errors"
	"fmt"
	"log"

	"github.com/hanbitlab/storefront-backend/config"
	"github.com/hanbitlab/storefront-backend/internal/app/model"
	"github.com/hanbitlab/storefront-backend/internal/app/repository"
	"github.com/hanbitlab/storefront-backend/internal/db"
	"gorm.io/gorm"
)

// Seeds a small demo catalog with stock so the cart API can be
// exercised locally. Safe to re-run: existing SKUs and emails are
// skipped.

type seedVariant struct {
	sku   string
	price float64
	stock int
}

type seedProduct struct {
	title       string
	description string
	variants    []seedVariant
}

var products = []seedProduct{
	{
		title:       "Canvas Tote Bag",
		description: "Heavy-duty cotton canvas tote, 20L capacity.",
		variants: []seedVariant{
			{sku: "TOTE-NAT", price: 24.00, stock: 120},
			{sku: "TOTE-BLK", price: 24.00, stock: 80},
		},
	},
	{
		title:       "Ceramic Pour-Over Dripper",
		description: "Cone dripper for 1-2 cup brews, matte glaze.",
		variants: []seedVariant{
			{sku: "DRIP-WHT", price: 32.50, stock: 45},
			{sku: "DRIP-GRY", price: 32.50, stock: 30},
		},
	},
	{
		title:       "Merino Wool Beanie",
		description: "Single-layer knit, one size.",
		variants: []seedVariant{
			{sku: "BEAN-CHR", price: 28.00, stock: 60},
			{sku: "BEAN-NVY", price: 28.00, stock: 5},
		},
	},
}

var users = []model.User{
	{Email: "demo@example.com", Name: "Demo User", Role: model.RoleUser},
	{Email: "admin@example.com", Name: "Demo Admin", Role: model.RoleAdmin},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	if err := db.Initialize(&cfg.Database); err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	gdb := db.GetDB()
	inventoryRepo := repository.NewInventoryRepository(gdb)

	for i := range users {
		if err := seedUser(gdb, &users[i]); err != nil {
			log.Fatal("Failed to seed user:", err)
		}
	}

	created := 0
	for i := range products {
		n, err := seedOneProduct(gdb, inventoryRepo, &products[i])
		if err != nil {
			log.Fatal("Failed to seed product:", err)
		}
		created += n
	}

	fmt.Printf("Seed complete: %d new variants\n", created)
}

func seedUser(gdb *gorm.DB, u *model.User) error {
	var existing model.User
	err := gdb.Where("email = ?", u.Email).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return gdb.Create(u).Error
}

func seedOneProduct(gdb *gorm.DB, inventoryRepo repository.InventoryRepository, p *seedProduct) (int, error) {
	created := 0
	err := gdb.Transaction(func(tx *gorm.DB) error {
		var product model.Product
		err := tx.Where("title = ?", p.title).First(&product).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			product = model.Product{Title: p.title, Description: p.description}
			if err := tx.Create(&product).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		for _, v := range p.variants {
			var existing model.ProductVariant
			err := tx.Where("sku = ?", v.sku).First(&existing).Error
			if err == nil {
				continue
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}

			variant := model.ProductVariant{
				ProductID: product.ID,
				SKU:       v.sku,
				Price:     v.price,
				Status:    model.VariantStatusActive,
			}
			if err := tx.Create(&variant).Error; err != nil {
				return err
			}

			stock := model.StockItem{
				VariantID: variant.ID,
				Quantity:  v.stock,
			}
			if err := inventoryRepo.WithTx(tx).CreateStock(&stock); err != nil {
				return err
			}

			movement := model.StockMovement{
				StockItemID:  stock.ID,
				MovementType: model.MovementTypeInbound,
				Quantity:     v.stock,
				Reason:       "initial seed",
			}
			if err := tx.Create(&movement).Error; err != nil {
				return err
			}
			created++
		}
		return nil
	})
	return created, err
}
