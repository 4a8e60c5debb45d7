package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/farmflow/farmflow-backend/pkg/database"
	"github.com/farmflow/farmflow-backend/pkg/errors"
)

// Product represents a farm produce product
type Product struct {
	ID        string          `db:"id" json:"id"`
	Name      string          `db:"name" json:"name"`
	SKU       string          `db:"sku" json:"sku"`
	Category  string          `db:"category" json:"category"`
	Unit      string          `db:"unit" json:"unit"`
	UnitPrice decimal.Decimal `db:"unit_price" json:"unit_price"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// Stock represents a storage location holding lots of a product
type Stock struct {
	ID        string    `db:"id" json:"id"`
	ProductID string    `db:"product_id" json:"product_id"`
	Location  string    `db:"location" json:"location"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ProductRepository handles product and stock persistence
type ProductRepository struct {
	db *database.DB
}

// NewProductRepository creates a new product repository
func NewProductRepository(db *database.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// Create creates a new product
func (r *ProductRepository) Create(ctx context.Context, product *Product) error {
	if product.ID == "" {
		product.ID = uuid.New().String()
	}

	query := `
		INSERT INTO products (id, name, sku, category, unit, unit_price)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		product.ID, product.Name, product.SKU, product.Category,
		product.Unit, product.UnitPrice,
	).Scan(&product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// GetByID gets a product by ID
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*Product, error) {
	var product Product
	query := `SELECT * FROM products WHERE id = $1`
	if err := r.db.GetContext(ctx, &product, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("product")
		}
		return nil, err
	}
	return &product, nil
}

// List lists all products
func (r *ProductRepository) List(ctx context.Context) ([]*Product, error) {
	var products []*Product
	query := `SELECT * FROM products ORDER BY name`
	if err := r.db.SelectContext(ctx, &products, query); err != nil {
		return nil, err
	}
	return products, nil
}

// Exists checks whether a product exists
func (r *ProductRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)`
	if err := r.db.GetContext(ctx, &exists, query, id); err != nil {
		return false, err
	}
	return exists, nil
}

// CreateStock creates a new stock location for a product
func (r *ProductRepository) CreateStock(ctx context.Context, stock *Stock) error {
	if stock.ID == "" {
		stock.ID = uuid.New().String()
	}

	query := `
		INSERT INTO stocks (id, product_id, location)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		stock.ID, stock.ProductID, stock.Location,
	).Scan(&stock.CreatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// GetStock gets a stock location by ID
func (r *ProductRepository) GetStock(ctx context.Context, id string) (*Stock, error) {
	var stock Stock
	query := `SELECT * FROM stocks WHERE id = $1`
	if err := r.db.GetContext(ctx, &stock, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFound("stock")
		}
		return nil, err
	}
	return &stock, nil
}

// ListStocksByProduct lists stock locations for a product
func (r *ProductRepository) ListStocksByProduct(ctx context.Context, productID string) ([]*Stock, error) {
	var stocks []*Stock
	query := `SELECT * FROM stocks WHERE product_id = $1 ORDER BY location`
	if err := r.db.SelectContext(ctx, &stocks, query, productID); err != nil {
		return nil, err
	}
	return stocks, nil
}
