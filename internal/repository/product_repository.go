package repository

import (
	"context"

	"storefront/internal/domain/model"
)

// 一覧検索
type ProductListQuery struct {
	Category string // 空 or "all" は絞り込みなし
	Sort     string // "", "price_asc", "price_desc"
}

// カタログの読み取りだけを約束。
type ProductRepository interface {
	List(ctx context.Context, q ProductListQuery) ([]model.Product, error)
	FindByID(ctx context.Context, id model.ProductID) (model.Product, error)
}
