package catalog

import (
	"sort"

	"listquote/internal"
	"listquote/internal/util"
)

type Index struct {
	ProductsByID       map[string]internal.CatalogProduct
	ByCode             map[string][]internal.CatalogProduct
	ByName             map[string][]internal.CatalogProduct
	TokenToProductIDs  map[string]map[string]struct{}
	NormalizedNameByID map[string]string
	// IDs is every product id in ascending order, used for deterministic scans.
	IDs []string
}

func BuildIndex(products []internal.CatalogProduct) *Index {
	idx := &Index{
		ProductsByID:       map[string]internal.CatalogProduct{},
		ByCode:             map[string][]internal.CatalogProduct{},
		ByName:             map[string][]internal.CatalogProduct{},
		TokenToProductIDs:  map[string]map[string]struct{}{},
		NormalizedNameByID: map[string]string{},
	}

	for _, p := range products {
		if _, dup := idx.ProductsByID[p.ID]; dup {
			continue
		}
		idx.ProductsByID[p.ID] = p
		idx.IDs = append(idx.IDs, p.ID)

		normName := util.NormalizeName(p.Name)
		idx.NormalizedNameByID[p.ID] = normName
		idx.ByName[normName] = append(idx.ByName[normName], p)

		if p.SKU != nil {
			if code := util.NormalizeCode(*p.SKU); code != "" {
				idx.ByCode[code] = append(idx.ByCode[code], p)
			}
		}

		tokens := util.Tokenize(p.Name)
		if p.Brand != nil {
			tokens = append(tokens, util.Tokenize(*p.Brand)...)
		}
		for _, token := range tokens {
			if _, ok := idx.TokenToProductIDs[token]; !ok {
				idx.TokenToProductIDs[token] = map[string]struct{}{}
			}
			idx.TokenToProductIDs[token][p.ID] = struct{}{}
		}
	}

	sort.Strings(idx.IDs)
	return idx
}

func (idx *Index) Len() int {
	return len(idx.IDs)
}
