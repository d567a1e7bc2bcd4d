package httphandler

import "github.com/niksmo/club-stock/internal/core/domain"

type (
	CreateProductRequest struct {
		Name     string          `json:"name"`
		Price    int64           `json:"price"`
		Category string          `json:"category"`
		Sizes    domain.RawSizes `json:"sizes"`
	}

	CreateProductResponse struct {
		ID int64 `json:"id"`
	}

	SetQuantityRequest struct {
		Quantity int    `json:"quantity"`
		Location string `json:"location"`
	}

	MoveInventoryRequest struct {
		Size         string `json:"size"`
		Quantity     int    `json:"quantity"`
		FromLocation string `json:"from_location"`
		ToLocation   string `json:"to_location"`
	}

	MoveInventoryResponse struct {
		Message string            `json:"message"`
		Sizes   domain.SizeRecord `json:"sizes"`
	}
)

type (
	CheckoutRequest struct {
		Items []CheckoutItem `json:"items"`
	}

	CheckoutItem struct {
		ID           int64  `json:"id"`
		SelectedSize string `json:"selectedSize"`
		Quantity     int    `json:"quantity"`
	}
)

type StockSnapshotResponse struct {
	ProductID int64             `json:"product_id"`
	Reason    string            `json:"reason"`
	Sizes     domain.SizeRecord `json:"sizes"`
}

type ErrorResponse struct {
	Detail string `json:"detail"`
}
