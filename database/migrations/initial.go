package migrations

import (
	"gorm.io/gorm"

	"github.com/shashiranjanraj/eshop/app/models"
	"github.com/shashiranjanraj/eshop/pkg/migration"
	"github.com/shashiranjanraj/eshop/pkg/queue"
)

func init() {
	migration.Register("20260301000000_create_products_table", &CreateProductsTable{})
	migration.Register("20260301000001_create_skus_table", &CreateSKUsTable{})
	migration.Register("20260301000002_create_orders_tables", &CreateOrdersTables{})
	migration.Register("20260301000003_create_shipments_table", &CreateShipmentsTable{})
	migration.Register("20260301000004_create_admin_users_table", &CreateAdminUsersTable{})
	migration.Register("20260301000005_create_failed_jobs_table", &CreateFailedJobsTable{})
}

// -------- products --------

type CreateProductsTable struct{}

func (m *CreateProductsTable) Up(db *gorm.DB) error {
	return db.AutoMigrate(&models.Product{})
}

func (m *CreateProductsTable) Down(db *gorm.DB) error {
	return db.Migrator().DropTable("products")
}

// -------- skus --------

type CreateSKUsTable struct{}

func (m *CreateSKUsTable) Up(db *gorm.DB) error {
	return db.AutoMigrate(&models.SKU{})
}

func (m *CreateSKUsTable) Down(db *gorm.DB) error {
	return db.Migrator().DropTable("skus")
}

// -------- orders + order_items --------

type CreateOrdersTables struct{}

func (m *CreateOrdersTables) Up(db *gorm.DB) error {
	return db.AutoMigrate(&models.Order{}, &models.OrderItem{})
}

func (m *CreateOrdersTables) Down(db *gorm.DB) error {
	return db.Migrator().DropTable("order_items", "orders")
}

// -------- shipments --------

type CreateShipmentsTable struct{}

func (m *CreateShipmentsTable) Up(db *gorm.DB) error {
	return db.AutoMigrate(&models.Shipment{})
}

func (m *CreateShipmentsTable) Down(db *gorm.DB) error {
	return db.Migrator().DropTable("shipments")
}

// -------- admin_users --------

type CreateAdminUsersTable struct{}

func (m *CreateAdminUsersTable) Up(db *gorm.DB) error {
	return db.AutoMigrate(&models.AdminUser{})
}

func (m *CreateAdminUsersTable) Down(db *gorm.DB) error {
	return db.Migrator().DropTable("admin_users")
}

// -------- failed_jobs --------

type CreateFailedJobsTable struct{}

func (m *CreateFailedJobsTable) Up(db *gorm.DB) error {
	return db.AutoMigrate(&queue.FailedJobRecord{})
}

func (m *CreateFailedJobsTable) Down(db *gorm.DB) error {
	return db.Migrator().DropTable(&queue.FailedJobRecord{})
}
