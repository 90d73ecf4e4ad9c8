package usecase

import (
	"context"
	"net/http"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/store"
	"storefront/internal/validator"

	"github.com/shopspring/decimal"
)

type IDGenerator interface {
	NewID() string
}

type Clock interface {
	Now() time.Time
}

// 配送→支払いの2ステップ。決済処理は行わない。
type CheckoutUsecase struct {
	cart  CartStore
	idGen IDGenerator
	clock Clock
}

// DI
func NewCheckoutUsecase(cart CartStore, idGen IDGenerator, clock Clock) *CheckoutUsecase {
	return &CheckoutUsecase{
		cart:  cart,
		idGen: idGen,
		clock: clock,
	}
}

type ShippingOutput struct {
	Shipping model.ShippingForm `json:"shipping"`
	NextStep int                `json:"nextStep"`
}

type PaymentInput struct {
	Shipping model.ShippingForm
	Payment  model.PaymentForm
}

type OrderSummary struct {
	OrderID  string             `json:"orderId"`
	Items    []CartItemResponse `json:"items"`
	Count    int                `json:"count"`
	Total    decimal.Decimal    `json:"total"`
	Shipping model.ShippingForm `json:"shipping"`
	CardLast string             `json:"cardLast4"`
	PlacedAt time.Time          `json:"placedAt"`
}

// 配送先フォーム（step 2）を検証
func (u *CheckoutUsecase) SubmitShipping(ctx context.Context, form model.ShippingForm) (ShippingOutput, error) {
	if errs := validator.ValidateShipping(form); len(errs) > 0 {
		return ShippingOutput{}, &ValidationError{Fields: errs}
	}
	return ShippingOutput{Shipping: form, NextStep: 3}, nil
}

// 支払いフォーム（step 3）。両フォームを検証し、注文サマリを返してカートを空にする。
func (u *CheckoutUsecase) SubmitPayment(ctx context.Context, in PaymentInput) (OrderSummary, error) {
	errs := validator.ValidateShipping(in.Shipping)
	for k, v := range validator.ValidatePayment(in.Payment) {
		errs[k] = v
	}
	if len(errs) > 0 {
		return OrderSummary{}, &ValidationError{Fields: errs}
	}

	if !u.cart.Snapshot().HasHydrated {
		return OrderSummary{}, NewHTTPError(http.StatusServiceUnavailable, "cart is not ready")
	}

	// 取り出しと全削除は1回の変更で行う（間に入った追加を失わない）
	taken, err := u.cart.TakeCart(ctx)
	if err != nil {
		return OrderSummary{}, storeError(err)
	}
	if len(taken) == 0 {
		return OrderSummary{}, NewHTTPError(http.StatusBadRequest, "cart is empty")
	}

	cart := BuildCartResponse(store.State{Cart: taken, HasHydrated: true})
	return OrderSummary{
		OrderID:  u.idGen.NewID(),
		Items:    cart.Items,
		Count:    cart.Count,
		Total:    cart.Total,
		Shipping: in.Shipping,
		CardLast: in.Payment.CardNumber[len(in.Payment.CardNumber)-4:],
		PlacedAt: u.clock.Now(),
	}, nil
}
