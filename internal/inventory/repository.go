package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists products and categories in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const productColumns = `p.id, p.name, p.category_id, COALESCE(c.name, ''), p.scent, p.price, p.price_achat, p.stock, p.user_id, p.created_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.CategoryID, &p.CategoryName, &p.Scent, &p.Price, &p.PurchasePrice, &p.Stock, &p.OwnerID, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrProductNotFound
	}
	return p, err
}

// ListProducts returns the owner's products, newest first.
func (r *Repository) ListProducts(ctx context.Context, ownerID int64) ([]Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+`
FROM products p LEFT JOIN categories c ON c.id = p.category_id
WHERE p.user_id = $1
ORDER BY p.id DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetProduct loads one product scoped to its owner.
func (r *Repository) GetProduct(ctx context.Context, ownerID, id int64) (Product, error) {
	return scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+`
FROM products p LEFT JOIN categories c ON c.id = p.category_id
WHERE p.id = $1 AND p.user_id = $2`, id, ownerID))
}

// InsertProduct creates a product.
func (r *Repository) InsertProduct(ctx context.Context, ownerID int64, in ProductInput) (Product, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO products (name, category_id, scent, price, price_achat, stock, user_id)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		in.Name, in.CategoryID, in.Scent, in.Price, in.PurchasePrice, in.Stock, ownerID).Scan(&id)
	if err != nil {
		return Product{}, err
	}
	return r.GetProduct(ctx, ownerID, id)
}

// UpdateProduct applies the non-nil fields of patch in one statement so a stock
// edit never overwrites concurrent sale adjustments to other columns.
func (r *Repository) UpdateProduct(ctx context.Context, ownerID, id int64, patch ProductPatch) (Product, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE products SET
    name = COALESCE($3, name),
    category_id = CASE WHEN $4::boolean THEN NULL ELSE COALESCE($5, category_id) END,
    scent = COALESCE($6, scent),
    price = COALESCE($7, price),
    price_achat = COALESCE($8, price_achat),
    stock = COALESCE($9, stock)
WHERE id = $1 AND user_id = $2`,
		id, ownerID, patch.Name, patch.ClearCategory, patch.CategoryID, patch.Scent, patch.Price, patch.PurchasePrice, patch.Stock)
	if err != nil {
		return Product{}, err
	}
	if tag.RowsAffected() == 0 {
		return Product{}, ErrProductNotFound
	}
	return r.GetProduct(ctx, ownerID, id)
}

// DeleteProduct removes a product. Products referenced by sales are kept.
func (r *Repository) DeleteProduct(ctx context.Context, ownerID, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1 AND user_id = $2`, id, ownerID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrProductHasSales
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

// ListCategories returns the owner's categories by name.
func (r *Repository) ListCategories(ctx context.Context, ownerID int64) ([]Category, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, user_id, created_at FROM categories WHERE user_id = $1 ORDER BY name`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.OwnerID, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CategoryOwned reports whether the category exists for the owner.
func (r *Repository) CategoryOwned(ctx context.Context, ownerID, id int64) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM categories WHERE id = $1 AND user_id = $2)`, id, ownerID).Scan(&ok)
	return ok, err
}

// InsertCategory creates a category.
func (r *Repository) InsertCategory(ctx context.Context, ownerID int64, name string) (Category, error) {
	c := Category{Name: name, OwnerID: ownerID}
	err := r.pool.QueryRow(ctx, `INSERT INTO categories (name, user_id) VALUES ($1, $2) RETURNING id, created_at`, name, ownerID).
		Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Category{}, ErrCategoryExists
		}
		return Category{}, err
	}
	return c, nil
}

// DeleteCategory removes a category; its products keep existing uncategorised.
func (r *Repository) DeleteCategory(ctx context.Context, ownerID, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM categories WHERE id = $1 AND user_id = $2`, id, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCategoryNotFound
	}
	return nil
}
