package model

import "github.com/shopspring/decimal"

// 明細の並び。追加順を保持する。
type Cart []CartLineItem

// 同一キーがあれば数量だけ加算、無ければ末尾に追加。
// 元のスライスは変更しない。
func (c Cart) Add(item CartLineItem) Cart {
	key := item.Key()
	next := c.Clone()

	for i := range next {
		if next[i].Key() == key {
			next[i].Quantity += item.Quantity
			return next
		}
	}

	return append(next, item.Clone())
}

// キーが一致する明細をすべて取り除く
func (c Cart) Remove(key LineKey) Cart {
	next := make(Cart, 0, len(c))
	for _, it := range c {
		if it.Key() == key {
			continue
		}
		next = append(next, it.Clone())
	}
	return next
}

func (c Cart) Find(key LineKey) (CartLineItem, bool) {
	for _, it := range c {
		if it.Key() == key {
			return it, true
		}
	}
	return CartLineItem{}, false
}

// バッジ表示用の合計数量
func (c Cart) Count() int {
	n := 0
	for _, it := range c {
		n += it.Quantity
	}
	return n
}

func (c Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c {
		total = total.Add(it.Subtotal())
	}
	return total
}

func (c Cart) Clone() Cart {
	if c == nil {
		return Cart{}
	}
	out := make(Cart, len(c))
	for i, it := range c {
		out[i] = it.Clone()
	}
	return out
}
