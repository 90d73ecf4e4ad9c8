package model

// カテゴリ（URLの ?category= に入るslug）
type Category struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

const CategoryAll = "all"

var Categories = []Category{
	{Slug: CategoryAll, Name: "All"},
	{Slug: "t-shirts", Name: "T-shirts"},
	{Slug: "shoes", Name: "Shoes"},
	{Slug: "accessories", Name: "Accessories"},
	{Slug: "bags", Name: "Bags"},
	{Slug: "dresses", Name: "Dresses"},
	{Slug: "jackets", Name: "Jackets"},
	{Slug: "gloves", Name: "Gloves"},
}

func IsKnownCategory(slug string) bool {
	for _, c := range Categories {
		if c.Slug == slug {
			return true
		}
	}
	return false
}
