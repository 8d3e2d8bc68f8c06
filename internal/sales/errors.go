package sales

import "github.com/ASS429/ma-boutique-backend/internal/shared"

var (
	// ErrSaleNotFound indicates the sale is absent or owned by someone else.
	ErrSaleNotFound = shared.NewError(shared.ErrNotFound, "vente introuvable")
	// ErrProductNotFound indicates the product is absent or owned by someone else.
	ErrProductNotFound = shared.NewError(shared.ErrNotFound, "produit introuvable")
	// ErrInsufficientStock is returned when the product cannot cover the quantity.
	ErrInsufficientStock = shared.NewError(shared.ErrInsufficientStock, "stock insuffisant")
	// ErrInvalidQuantity is returned for quantities below one.
	ErrInvalidQuantity = shared.NewError(shared.ErrValidation, "la quantité doit être supérieure à zéro")
	// ErrPaymentMethodRequired is returned when no payment method is given.
	ErrPaymentMethodRequired = shared.NewError(shared.ErrValidation, "le mode de paiement est obligatoire")
	// ErrProductRequired is returned when no product id is given.
	ErrProductRequired = shared.NewError(shared.ErrValidation, "le produit est obligatoire")
	// ErrNothingToAmend is returned by AmendSale without quantity or payment method.
	ErrNothingToAmend = shared.NewError(shared.ErrValidation, "aucune modification fournie")
)
