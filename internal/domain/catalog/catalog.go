// Package catalog lists the token packages offered to users.
package catalog

// Package is a purchasable token bundle.
type Package struct {
	ID           string
	Name         string
	TokensAmount int
	PriceCents   int
	Description  string
}

var packages = []Package{
	{ID: "basic", Name: "基础套餐", TokensAmount: 100000, PriceCents: 9900, Description: "适合轻度使用"},
	{ID: "standard", Name: "标准套餐", TokensAmount: 500000, PriceCents: 39900, Description: "适合日常使用"},
	{ID: "premium", Name: "高级套餐", TokensAmount: 2000000, PriceCents: 129900, Description: "适合重度使用"},
}

// Packages returns a copy of the static package list.
func Packages() []Package {
	out := make([]Package, len(packages))
	copy(out, packages)
	return out
}
