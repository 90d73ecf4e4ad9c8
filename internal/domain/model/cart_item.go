package model

import "github.com/shopspring/decimal"

// カートの明細
// 商品情報は追加時点のものを保持する。
type CartLineItem struct {
	Product
	Quantity      int    `json:"quantity"`
	SelectedSize  string `json:"selectedSize"`
	SelectedColor string `json:"selectedColor"`
}

// 明細の同一性キー（商品ID・サイズ・色）
type LineKey struct {
	ProductID ProductID
	Size      string
	Color     string
}

func (it CartLineItem) Key() LineKey {
	return LineKey{
		ProductID: it.ID,
		Size:      it.SelectedSize,
		Color:     it.SelectedColor,
	}
}

func (it CartLineItem) Subtotal() decimal.Decimal {
	return it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

func (it CartLineItem) Clone() CartLineItem {
	it.Product = it.Product.Clone()
	return it
}
