package usecase

import (
	"context"
	"errors"
	"net/http"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
	"storefront/internal/store"

	"github.com/shopspring/decimal"
)

// CartUsecase が使うカートストアの操作
type CartStore interface {
	Snapshot() store.State
	AddToCart(ctx context.Context, item model.CartLineItem) error
	RemoveFromCart(ctx context.Context, item model.CartLineItem) error
	ClearCart(ctx context.Context) error
	TakeCart(ctx context.Context) (model.Cart, error)
}

// CartUsecase は /cart の業務ロジックです。
type CartUsecase struct {
	cart        CartStore
	productRepo repo.ProductRepository
}

func NewCartUsecase(cart CartStore, productRepo repo.ProductRepository) *CartUsecase {
	return &CartUsecase{
		cart:        cart,
		productRepo: productRepo,
	}
}

type CartItemResponse struct {
	model.CartLineItem
	Image    string          `json:"image"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

type CartResponse struct {
	Items       []CartItemResponse `json:"items"`
	Count       int                `json:"count"`
	Total       decimal.Decimal    `json:"total"`
	HasHydrated bool               `json:"hasHydrated"`
}

type AddCartInput struct {
	ProductID model.ProductID
	Size      string
	Color     string
	Quantity  int
}

type RemoveCartInput struct {
	ProductID model.ProductID
	Size      string
	Color     string
}

// GetCart は現在のカート。復元前は hasHydrated=false の空カートになる。
func (u *CartUsecase) GetCart(ctx context.Context) (CartResponse, error) {
	return BuildCartResponse(u.cart.Snapshot()), nil
}

// AddToCart はカタログから商品を引いて追加（同一キーは数量加算）。
func (u *CartUsecase) AddToCart(ctx context.Context, in AddCartInput) (CartResponse, error) {
	if in.ProductID == "" {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid productId")
	}
	if in.Quantity < 0 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid quantity")
	}

	p, err := u.productRepo.FindByID(ctx, in.ProductID)
	if err == repo.ErrNotFound {
		return CartResponse{}, NewHTTPError(http.StatusNotFound, "product not found")
	}
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	size, color, err := resolveSelection(p, in.Size, in.Color)
	if err != nil {
		return CartResponse{}, err
	}

	item := model.CartLineItem{
		Product:       p,
		Quantity:      in.Quantity,
		SelectedSize:  size,
		SelectedColor: color,
	}
	if err := u.cart.AddToCart(ctx, item); err != nil {
		return CartResponse{}, storeError(err)
	}

	return BuildCartResponse(u.cart.Snapshot()), nil
}

// 明細削除（ID・サイズ・色の完全一致）
func (u *CartUsecase) RemoveFromCart(ctx context.Context, in RemoveCartInput) (CartResponse, error) {
	if in.ProductID == "" {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid productId")
	}

	item := model.CartLineItem{
		Product:       model.Product{ID: in.ProductID},
		SelectedSize:  in.Size,
		SelectedColor: in.Color,
	}
	if err := u.cart.RemoveFromCart(ctx, item); err != nil {
		return CartResponse{}, storeError(err)
	}

	return BuildCartResponse(u.cart.Snapshot()), nil
}

func (u *CartUsecase) ClearCart(ctx context.Context) (CartResponse, error) {
	if err := u.cart.ClearCart(ctx); err != nil {
		return CartResponse{}, storeError(err)
	}
	return BuildCartResponse(u.cart.Snapshot()), nil
}

// スナップショットからレスポンスを作る
func BuildCartResponse(st store.State) CartResponse {
	items := make([]CartItemResponse, 0, len(st.Cart))
	for _, it := range st.Cart {
		items = append(items, CartItemResponse{
			CartLineItem: it,
			Image:        it.ImageFor(it.SelectedColor),
			Subtotal:     it.Subtotal(),
		})
	}

	return CartResponse{
		Items:       items,
		Count:       st.Cart.Count(),
		Total:       st.Cart.Total(),
		HasHydrated: st.HasHydrated,
	}
}

func storeError(err error) error {
	switch {
	case errors.Is(err, store.ErrInvalidQuantity):
		return NewHTTPError(http.StatusBadRequest, "invalid quantity")
	case errors.Is(err, store.ErrInvalidLineItem):
		return NewHTTPError(http.StatusBadRequest, "invalid item")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return NewHTTPError(http.StatusServiceUnavailable, "cart is not ready")
	default:
		return NewHTTPError(http.StatusInternalServerError, "cart error")
	}
}
