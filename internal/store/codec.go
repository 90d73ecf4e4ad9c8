package store

import (
	"fmt"

	"storefront/internal/domain/model"

	json "github.com/goccy/go-json"
)

const persistVersion = 1

// 永続スロットに書く形
type persistedCart struct {
	Cart    model.Cart `json:"cart"`
	Version int        `json:"version"`
}

// 読み込み時はブラウザ側のenvelope（{"state":{...},"version":N}）も受け付ける。
// 明細は1件ずつ読むので、型が崩れた明細があっても他は残る。
type persistedEnvelope struct {
	State *struct {
		Cart []json.RawMessage `json:"cart"`
	} `json:"state"`
	Cart    []json.RawMessage `json:"cart"`
	Version int               `json:"version"`
}

func encodeCart(c model.Cart) (string, error) {
	if c == nil {
		c = model.Cart{}
	}
	b, err := json.Marshal(persistedCart{Cart: c, Version: persistVersion})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// 保存値を復元する。必須項目が欠けた明細は捨て、同一キーはまとめる。
func decodeCart(raw string) (model.Cart, int, error) {
	var env persistedEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, 0, fmt.Errorf("decode persisted cart: %w", err)
	}

	items := env.Cart
	if env.State != nil {
		items = env.State.Cart
	}

	var (
		out     = model.Cart{}
		dropped int
	)
	for _, rawItem := range items {
		var it model.CartLineItem
		if err := json.Unmarshal(rawItem, &it); err != nil {
			dropped++
			continue
		}
		if it.ID == "" || it.Quantity < 1 {
			dropped++
			continue
		}
		out = out.Add(it)
	}
	return out, dropped, nil
}
