package repository

import (
	"context"
	"fmt"
	"os"
	"sort"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type catalogFile struct {
	Products []catalogProduct `yaml:"products"`
}

type catalogProduct struct {
	ID               string            `yaml:"id"`
	Name             string            `yaml:"name"`
	ShortDescription string            `yaml:"shortDescription"`
	Description      string            `yaml:"description"`
	Price            string            `yaml:"price"`
	Category         string            `yaml:"category"`
	Sizes            []string          `yaml:"sizes"`
	Colors           []string          `yaml:"colors"`
	Images           map[string]string `yaml:"images"`
}

// カタログファイルをメモリに載せて返す読み取り専用リポジトリ。
type ProductYAMLRepository struct {
	products []model.Product
	byID     map[model.ProductID]int
}

func LoadProductCatalog(path string) (*ProductYAMLRepository, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return ParseProductCatalog(b)
}

func ParseProductCatalog(b []byte) (*ProductYAMLRepository, error) {
	var f catalogFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	r := &ProductYAMLRepository{
		products: make([]model.Product, 0, len(f.Products)),
		byID:     make(map[model.ProductID]int, len(f.Products)),
	}

	for i, cp := range f.Products {
		if cp.ID == "" {
			return nil, fmt.Errorf("catalog product #%d: id is required", i)
		}
		id := model.ProductID(cp.ID)
		if _, dup := r.byID[id]; dup {
			return nil, fmt.Errorf("catalog product %q: duplicate id", cp.ID)
		}

		price, err := decimal.NewFromString(cp.Price)
		if err != nil {
			return nil, fmt.Errorf("catalog product %q: invalid price: %w", cp.ID, err)
		}

		r.byID[id] = len(r.products)
		r.products = append(r.products, model.Product{
			ID:               id,
			Name:             cp.Name,
			ShortDescription: cp.ShortDescription,
			Description:      cp.Description,
			Price:            price,
			Category:         cp.Category,
			Sizes:            cp.Sizes,
			Colors:           cp.Colors,
			Images:           cp.Images,
		})
	}

	return r, nil
}

func (r *ProductYAMLRepository) List(ctx context.Context, q repo.ProductListQuery) ([]model.Product, error) {
	out := make([]model.Product, 0, len(r.products))
	for _, p := range r.products {
		if q.Category != "" && q.Category != model.CategoryAll && p.Category != q.Category {
			continue
		}
		out = append(out, p.Clone())
	}

	switch q.Sort {
	case "price_asc":
		sort.SliceStable(out, func(i, j int) bool { return out[i].Price.LessThan(out[j].Price) })
	case "price_desc":
		sort.SliceStable(out, func(i, j int) bool { return out[i].Price.GreaterThan(out[j].Price) })
	}

	return out, nil
}

func (r *ProductYAMLRepository) FindByID(ctx context.Context, id model.ProductID) (model.Product, error) {
	i, ok := r.byID[id]
	if !ok {
		return model.Product{}, repo.ErrNotFound
	}
	return r.products[i].Clone(), nil
}

// Seed用
func (r *ProductYAMLRepository) All() []model.Product {
	out := make([]model.Product, len(r.products))
	for i, p := range r.products {
		out[i] = p.Clone()
	}
	return out
}
