// Package catalog содержит каталог товаров витрины.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/mmeshcher/bakery-storefront/internal/model"
)

//go:embed catalog.yaml
var defaultDocument []byte

// ErrInvalidCatalog возвращается для документа каталога с некорректными товарами.
var ErrInvalidCatalog = errors.New("invalid catalog")

// Catalog хранит упорядоченный набор товаров только для чтения.
type Catalog struct {
	products []model.Product
	byID     map[string]int
}

type document struct {
	Products []model.Product `yaml:"products"`
}

// Default возвращает каталог, встроенный в бинарный файл.
func Default() (*Catalog, error) {
	return Parse(defaultDocument)
}

// Parse разбирает YAML-документ каталога и проверяет товары.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	c := &Catalog{
		products: make([]model.Product, 0, len(doc.Products)),
		byID:     make(map[string]int, len(doc.Products)),
	}

	for _, p := range doc.Products {
		switch {
		case p.ID == "":
			return nil, fmt.Errorf("%w: product without id", ErrInvalidCatalog)
		case p.Price < 0:
			return nil, fmt.Errorf("%w: negative price for %s", ErrInvalidCatalog, p.ID)
		case p.Stock != nil && *p.Stock < 0:
			return nil, fmt.Errorf("%w: negative stock for %s", ErrInvalidCatalog, p.ID)
		case !p.Category.Valid():
			return nil, fmt.Errorf("%w: unknown category %q for %s", ErrInvalidCatalog, p.Category, p.ID)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %s", ErrInvalidCatalog, p.ID)
		}

		c.byID[p.ID] = len(c.products)
		c.products = append(c.products, p)
	}

	return c, nil
}

// List возвращает все товары в порядке документа.
func (c *Catalog) List() []model.Product {
	return append([]model.Product(nil), c.products...)
}

// ByCategory возвращает товары указанной категории.
func (c *Catalog) ByCategory(category model.Category) []model.Product {
	var res []model.Product
	for _, p := range c.products {
		if p.Category == category {
			res = append(res, p)
		}
	}
	return res
}

// Get возвращает товар по идентификатору.
func (c *Catalog) Get(id string) (model.Product, bool) {
	idx, ok := c.byID[id]
	if !ok {
		return model.Product{}, false
	}
	return c.products[idx], true
}
