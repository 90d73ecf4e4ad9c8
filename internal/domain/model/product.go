package model

import (
	"bytes"
	"fmt"
	"slices"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// 商品ID。カタログ由来のデータは文字列と数値が混在する。
type ProductID string

// 文字列・数値どちらのJSONでも受け付ける
func (id *ProductID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}

	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ProductID(strings.TrimSpace(s))
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("product id must be string or number: %w", err)
	}
	*id = ProductID(n.String())
	return nil
}

func (id ProductID) String() string {
	return string(id)
}

type Product struct {
	ID               ProductID         `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Name             string            `gorm:"type:varchar(255);not null" json:"name"`
	ShortDescription string            `gorm:"type:varchar(255)" json:"shortDescription"`
	Description      string            `gorm:"type:text" json:"description"`
	Price            decimal.Decimal   `gorm:"type:numeric(12,2);not null" json:"price"`
	Category         string            `gorm:"type:varchar(64);index" json:"category,omitempty"`
	Sizes            []string          `gorm:"serializer:json" json:"sizes"`
	Colors           []string          `gorm:"serializer:json" json:"colors"`
	Images           map[string]string `gorm:"serializer:json" json:"images"`
	CreatedAt        time.Time         `gorm:"autoCreateTime" json:"-"`
	UpdatedAt        time.Time         `gorm:"autoUpdateTime" json:"-"`
}

func (p Product) HasSize(size string) bool {
	return slices.Contains(p.Sizes, size)
}

func (p Product) HasColor(color string) bool {
	return slices.Contains(p.Colors, color)
}

// 色に対応する画像。無ければ空文字
func (p Product) ImageFor(color string) string {
	return p.Images[color]
}

// 商品カードの初期選択は先頭のサイズ
func (p Product) DefaultSize() string {
	if len(p.Sizes) == 0 {
		return ""
	}
	return p.Sizes[0]
}

func (p Product) DefaultColor() string {
	if len(p.Colors) == 0 {
		return ""
	}
	return p.Colors[0]
}

// スライスとマップもコピーする
func (p Product) Clone() Product {
	p.Sizes = slices.Clone(p.Sizes)
	p.Colors = slices.Clone(p.Colors)
	if p.Images != nil {
		images := make(map[string]string, len(p.Images))
		for k, v := range p.Images {
			images[k] = v
		}
		p.Images = images
	}
	return p
}
