package inventory

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ASS429/ma-boutique-backend/internal/shared"
)

// RepositoryPort describes persistence used by the service.
type RepositoryPort interface {
	ListProducts(ctx context.Context, ownerID int64) ([]Product, error)
	GetProduct(ctx context.Context, ownerID, id int64) (Product, error)
	InsertProduct(ctx context.Context, ownerID int64, in ProductInput) (Product, error)
	UpdateProduct(ctx context.Context, ownerID, id int64, patch ProductPatch) (Product, error)
	DeleteProduct(ctx context.Context, ownerID, id int64) error
	ListCategories(ctx context.Context, ownerID int64) ([]Category, error)
	CategoryOwned(ctx context.Context, ownerID, id int64) (bool, error)
	InsertCategory(ctx context.Context, ownerID int64, name string) (Category, error)
	DeleteCategory(ctx context.Context, ownerID, id int64) error
}

// AuditPort records committed changes.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service implements product and category management.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	logger *slog.Logger
}

// NewService builds the inventory service.
func NewService(repo RepositoryPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger}
}

// ListProducts returns the owner's products.
func (s *Service) ListProducts(ctx context.Context, ownerID int64) ([]Product, error) {
	return s.repo.ListProducts(ctx, ownerID)
}

// GetProduct returns one owned product.
func (s *Service) GetProduct(ctx context.Context, ownerID, id int64) (Product, error) {
	return s.repo.GetProduct(ctx, ownerID, id)
}

// CreateProduct validates and stores a new product.
func (s *Service) CreateProduct(ctx context.Context, ownerID int64, in ProductInput) (Product, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return Product{}, ErrNameRequired
	}
	if in.Price.IsNegative() || in.PurchasePrice.IsNegative() {
		return Product{}, ErrNegativePrice
	}
	if in.Stock < 0 {
		return Product{}, ErrNegativeStock
	}
	if err := s.checkCategory(ctx, ownerID, in.CategoryID); err != nil {
		return Product{}, err
	}
	product, err := s.repo.InsertProduct(ctx, ownerID, in)
	if err != nil {
		return Product{}, err
	}
	s.record(ctx, ownerID, "product.create", product.ID, map[string]any{"stock": product.Stock})
	return product, nil
}

// UpdateProduct applies a partial update. Setting stock here is a direct manual
// correction and bypasses sale accounting.
func (s *Service) UpdateProduct(ctx context.Context, ownerID, id int64, patch ProductPatch) (Product, error) {
	if patch.Empty() {
		return Product{}, ErrEmptyPatch
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return Product{}, ErrNameRequired
		}
		patch.Name = &name
	}
	if (patch.Price != nil && patch.Price.IsNegative()) || (patch.PurchasePrice != nil && patch.PurchasePrice.IsNegative()) {
		return Product{}, ErrNegativePrice
	}
	if patch.Stock != nil && *patch.Stock < 0 {
		return Product{}, ErrNegativeStock
	}
	if !patch.ClearCategory {
		if err := s.checkCategory(ctx, ownerID, patch.CategoryID); err != nil {
			return Product{}, err
		}
	}
	product, err := s.repo.UpdateProduct(ctx, ownerID, id, patch)
	if err != nil {
		return Product{}, err
	}
	meta := map[string]any{}
	if patch.Stock != nil {
		meta["stock"] = *patch.Stock
	}
	s.record(ctx, ownerID, "product.update", id, meta)
	return product, nil
}

// DeleteProduct removes an owned product.
func (s *Service) DeleteProduct(ctx context.Context, ownerID, id int64) error {
	if err := s.repo.DeleteProduct(ctx, ownerID, id); err != nil {
		return err
	}
	s.record(ctx, ownerID, "product.delete", id, nil)
	return nil
}

// ListCategories returns the owner's categories.
func (s *Service) ListCategories(ctx context.Context, ownerID int64) ([]Category, error) {
	return s.repo.ListCategories(ctx, ownerID)
}

// CreateCategory stores a new category.
func (s *Service) CreateCategory(ctx context.Context, ownerID int64, name string) (Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Category{}, ErrNameRequired
	}
	return s.repo.InsertCategory(ctx, ownerID, name)
}

// DeleteCategory removes an owned category.
func (s *Service) DeleteCategory(ctx context.Context, ownerID, id int64) error {
	return s.repo.DeleteCategory(ctx, ownerID, id)
}

func (s *Service) checkCategory(ctx context.Context, ownerID int64, id *int64) error {
	if id == nil {
		return nil
	}
	ok, err := s.repo.CategoryOwned(ctx, ownerID, *id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrCategoryNotFound
	}
	return nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "product",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Any("error", err))
	}
}
