package inventory

import "github.com/ASS429/ma-boutique-backend/internal/shared"

var (
	// ErrProductNotFound indicates the product is absent or owned by someone else.
	ErrProductNotFound = shared.NewError(shared.ErrNotFound, "produit introuvable")
	// ErrCategoryNotFound indicates the category is absent or owned by someone else.
	ErrCategoryNotFound = shared.NewError(shared.ErrNotFound, "catégorie introuvable")
	// ErrCategoryExists is returned for a duplicate category name.
	ErrCategoryExists = shared.NewError(shared.ErrConflict, "cette catégorie existe déjà")
	// ErrProductHasSales prevents deleting a product referenced by recorded sales.
	ErrProductHasSales = shared.NewError(shared.ErrConflict, "produit lié à des ventes, suppression impossible")
	// ErrNameRequired is returned when a product or category has no name.
	ErrNameRequired = shared.NewError(shared.ErrValidation, "le nom est obligatoire")
	// ErrNegativePrice is returned for prices below zero.
	ErrNegativePrice = shared.NewError(shared.ErrValidation, "le prix doit être positif")
	// ErrNegativeStock is returned when stock would be set below zero.
	ErrNegativeStock = shared.NewError(shared.ErrValidation, "le stock ne peut pas être négatif")
	// ErrEmptyPatch is returned by UpdateProduct when no field is supplied.
	ErrEmptyPatch = shared.NewError(shared.ErrValidation, "aucun champ à mettre à jour")
)
