package usecase

import (
	"context"
	"net/http"
	"strings"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

type ProductUsecase struct {
	productRepo repo.ProductRepository
}

// DI
func NewProductUsecase(productRepo repo.ProductRepository) *ProductUsecase {
	return &ProductUsecase{productRepo: productRepo}
}

// GET /products の入力（?category=&sort=）
type ListProductsInput struct {
	Category string
	Sort     string
}

type ProductListOutput struct {
	Items    []model.Product `json:"items"`
	Category string          `json:"category"`
}

// GET /products/:id の入力（?size=&color=）
type ProductDetailInput struct {
	ID    model.ProductID
	Size  string
	Color string
}

type ProductDetailOutput struct {
	Product       model.Product `json:"product"`
	SelectedSize  string        `json:"selectedSize"`
	SelectedColor string        `json:"selectedColor"`
	Image         string        `json:"image"`
}

func (u *ProductUsecase) ListProducts(ctx context.Context, in ListProductsInput) (ProductListOutput, error) {
	category := strings.TrimSpace(in.Category)
	if category == "" {
		category = model.CategoryAll
	}
	if !model.IsKnownCategory(category) {
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid category")
	}

	switch in.Sort {
	case "", "price_asc", "price_desc":
	default:
		return ProductListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid sort")
	}

	items, err := u.productRepo.List(ctx, repo.ProductListQuery{
		Category: category,
		Sort:     in.Sort,
	})
	if err != nil {
		return ProductListOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return ProductListOutput{Items: items, Category: category}, nil
}

func (u *ProductUsecase) GetProductDetail(ctx context.Context, in ProductDetailInput) (ProductDetailOutput, error) {
	if in.ID == "" {
		return ProductDetailOutput{}, NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	p, err := u.productRepo.FindByID(ctx, in.ID)
	if err == repo.ErrNotFound {
		return ProductDetailOutput{}, NewHTTPError(http.StatusNotFound, "not found")
	}
	if err != nil {
		return ProductDetailOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	size, color, err := resolveSelection(p, in.Size, in.Color)
	if err != nil {
		return ProductDetailOutput{}, err
	}

	return ProductDetailOutput{
		Product:       p,
		SelectedSize:  size,
		SelectedColor: color,
		Image:         p.ImageFor(color),
	}, nil
}

// 未指定は先頭のサイズ/色。商品に無い値は400。
func resolveSelection(p model.Product, size, color string) (string, string, error) {
	if size == "" {
		size = p.DefaultSize()
	} else if !p.HasSize(size) {
		return "", "", NewHTTPError(http.StatusBadRequest, "invalid size")
	}

	if color == "" {
		color = p.DefaultColor()
	} else if !p.HasColor(color) {
		return "", "", NewHTTPError(http.StatusBadRequest, "invalid color")
	}

	return size, color, nil
}
