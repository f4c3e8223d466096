package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"shop-service/internal/model"
	"shop-service/prometheus"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProductInput carries catalog writes. Nil fields are left untouched on update.
// Brand and Category arrive as wire codes.
type ProductInput struct {
	Name        *string     `json:"name" validate:"omitnil,min=1,max=100"`
	Brand       *model.Code `json:"brand"`
	Category    *model.Code `json:"type"`
	Price       *int64      `json:"price" validate:"omitnil,min=0"`
	Quantity    *int        `json:"quantity" validate:"omitnil,min=0"`
	Img         *string     `json:"img" validate:"omitnil,min=1,max=255"`
	Description *string     `json:"description"`
}

// ProductQuery holds the list filters taken from the query string
type ProductQuery struct {
	Search   string
	Ordering string
	MinPrice string
	MaxPrice string
	Brand    string
	Category string
}

// ProductPage is one page of a filtered product listing
type ProductPage struct {
	Count    int64
	Page     int
	PageSize int
	NumPages int
	Results  []model.Product
}

func (p *ProductPage) HasNext() bool     { return p.Page < p.NumPages }
func (p *ProductPage) HasPrevious() bool { return p.Page > 1 }

// orderable maps public ordering names to columns
var orderable = map[string]string{
	"id":          "id",
	"name":        "name",
	"brand":       "brand",
	"type":        "category",
	"price":       "price",
	"quantity":    "quantity",
	"img":         "img",
	"description": "description",
}

var searchSplit = regexp.MustCompile(`[\s,]+`)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// CatalogService manages products
type CatalogService struct {
	db              *gorm.DB
	log             *zap.Logger
	defaultPageSize int
}

// NewCatalogService creates a catalog service
func NewCatalogService(db *gorm.DB, log *zap.Logger, defaultPageSize int) *CatalogService {
	return &CatalogService{db: db, log: log, defaultPageSize: defaultPageSize}
}

// List returns every product matching the query, unpaginated
func (s *CatalogService) List(ctx context.Context, q ProductQuery) ([]model.Product, error) {
	filter, err := productFilter(q)
	if err != nil {
		return nil, err
	}

	defer prometheus.TrackDBOperation("product_list")(time.Now())

	var products []model.Product
	if err := s.db.WithContext(ctx).Scopes(filter, productOrdering(q.Ordering)).Find(&products).Error; err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

// ListPage returns one page of products matching the query. page may be a
// number or "last"; pageSize falls back to the default when malformed.
func (s *CatalogService) ListPage(ctx context.Context, q ProductQuery, page, pageSize string) (*ProductPage, error) {
	filter, err := productFilter(q)
	if err != nil {
		return nil, err
	}

	size := s.defaultPageSize
	if n, err := strconv.Atoi(pageSize); err == nil && n > 0 {
		size = n
	}

	defer prometheus.TrackDBOperation("product_list")(time.Now())

	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Product{}).Scopes(filter).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}

	numPages := int(math.Ceil(float64(count) / float64(size)))
	if numPages == 0 {
		numPages = 1
	}

	number, err := pageNumber(page, numPages)
	if err != nil {
		return nil, err
	}

	var products []model.Product
	err = s.db.WithContext(ctx).
		Scopes(filter, productOrdering(q.Ordering)).
		Offset((number - 1) * size).
		Limit(size).
		Find(&products).Error
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	return &ProductPage{
		Count:    count,
		Page:     number,
		PageSize: size,
		NumPages: numPages,
		Results:  products,
	}, nil
}

func pageNumber(page string, numPages int) (int, error) {
	if page == "" {
		return 1, nil
	}
	if page == "last" {
		return numPages, nil
	}
	n, err := strconv.Atoi(page)
	if err != nil || n < 1 || n > numPages {
		return 0, fmt.Errorf("invalid page %q: %w", page, ErrNotFound)
	}
	return n, nil
}

func productFilter(q ProductQuery) (func(*gorm.DB) *gorm.DB, error) {
	minPrice, err := priceBound("min_price", q.MinPrice)
	if err != nil {
		return nil, err
	}
	maxPrice, err := priceBound("max_price", q.MaxPrice)
	if err != nil {
		return nil, err
	}

	var terms []string
	for _, term := range searchSplit.Split(strings.TrimSpace(q.Search), -1) {
		if term != "" {
			terms = append(terms, "%"+likeEscaper.Replace(strings.ToLower(term))+"%")
		}
	}

	return func(db *gorm.DB) *gorm.DB {
		for _, term := range terms {
			db = db.Where(`(LOWER(name) LIKE ? ESCAPE '\' OR LOWER(brand) LIKE ? ESCAPE '\')`, term, term)
		}
		if minPrice != nil {
			db = db.Where("price >= ?", *minPrice)
		}
		if maxPrice != nil {
			db = db.Where("price <= ?", *maxPrice)
		}
		if q.Brand != "" {
			db = db.Where("brand = ?", q.Brand)
		}
		if q.Category != "" {
			db = db.Where("category = ?", q.Category)
		}
		return db
	}, nil
}

// priceBound parses an optional price filter. NaN and infinities are not
// numbers a price can be compared with.
func priceBound(field, raw string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, invalid(field, "enter a number")
	}
	return &v, nil
}

// productOrdering applies a comma separated ordering such as "-price,name".
// Unknown fields are ignored and id is always the final tiebreaker.
func productOrdering(ordering string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		seen := map[string]bool{}
		for _, field := range strings.Split(ordering, ",") {
			field = strings.TrimSpace(field)
			desc := strings.HasPrefix(field, "-")
			column, ok := orderable[strings.TrimPrefix(field, "-")]
			if !ok || seen[column] {
				continue
			}
			seen[column] = true
			db = db.Order(clause.OrderByColumn{Column: clause.Column{Name: column}, Desc: desc})
		}
		if !seen["id"] {
			db = db.Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}})
		}
		return db
	}
}

// Get returns a product by id
func (s *CatalogService) Get(ctx context.Context, id uint) (*model.Product, error) {
	defer prometheus.TrackDBOperation("product_get")(time.Now())

	var product model.Product
	if err := s.db.WithContext(ctx).First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get product %d: %w", id, err)
	}
	return &product, nil
}

// Create validates the input, decodes brand and category codes and stores a
// new product. Nothing is written when any field is rejected.
func (s *CatalogService) Create(ctx context.Context, in ProductInput) (*model.Product, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if err := in.requireAll(); err != nil {
		return nil, err
	}

	product := model.Product{}
	if err := in.applyTo(&product); err != nil {
		return nil, err
	}

	defer prometheus.TrackDBOperation("product_insert")(time.Now())

	if err := s.db.WithContext(ctx).Create(&product).Error; err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	prometheus.RecordProductOperation("create")
	prometheus.UpdateProductInventory(product.ID, product.Name, product.Category, product.Quantity)
	s.log.Info("Product created",
		zap.Uint("product_id", product.ID),
		zap.String("name", product.Name),
		zap.String("brand", product.Brand),
		zap.String("type", product.Category))

	return &product, nil
}

// Update applies the supplied fields to an existing product. Codes are
// decoded before the row is touched.
func (s *CatalogService) Update(ctx context.Context, id uint, in ProductInput) (*model.Product, error) {
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	defer prometheus.TrackDBOperation("product_update")(time.Now())

	var product model.Product
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&product, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("product %d: %w", id, ErrNotFound)
			}
			return err
		}

		if err := in.applyTo(&product); err != nil {
			return err
		}

		return tx.Save(&product).Error
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation) {
			return nil, err
		}
		return nil, fmt.Errorf("update product %d: %w", id, err)
	}

	prometheus.RecordProductOperation("update")
	prometheus.UpdateProductInventory(product.ID, product.Name, product.Category, product.Quantity)
	s.log.Info("Product updated", zap.Uint("product_id", product.ID))

	return &product, nil
}

// Delete removes a product. Products referenced by any order line are kept so
// order history stays readable.
func (s *CatalogService) Delete(ctx context.Context, id uint) error {
	defer prometheus.TrackDBOperation("product_delete")(time.Now())

	var product model.Product
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&product, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("product %d: %w", id, ErrNotFound)
			}
			return err
		}

		var lines int64
		if err := tx.Model(&model.OrderedProduct{}).Where("product_id = ?", id).Count(&lines).Error; err != nil {
			return err
		}
		if lines > 0 {
			return fmt.Errorf("product %d is referenced by %d order line(s): %w", id, lines, ErrConflict)
		}

		return tx.Delete(&product).Error
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) {
			return err
		}
		return fmt.Errorf("delete product %d: %w", id, err)
	}

	prometheus.RecordProductOperation("delete")
	prometheus.RemoveProductInventory(product.ID)
	s.log.Info("Product deleted", zap.Uint("product_id", id))

	return nil
}

func (in ProductInput) requireAll() error {
	switch {
	case in.Name == nil:
		return invalid("name", "this field is required")
	case in.Brand == nil:
		return invalid("brand", "this field is required")
	case in.Category == nil:
		return invalid("type", "this field is required")
	case in.Price == nil:
		return invalid("price", "this field is required")
	case in.Quantity == nil:
		return invalid("quantity", "this field is required")
	case in.Img == nil:
		return invalid("img", "this field is required")
	}
	return nil
}

// applyTo decodes codes first so a bad code leaves p untouched
func (in ProductInput) applyTo(p *model.Product) error {
	var brand, category string
	if in.Brand != nil {
		label, err := model.DecodeBrand(*in.Brand)
		if err != nil {
			return &ValidationError{Field: "brand", Message: err.Error()}
		}
		brand = label
	}
	if in.Category != nil {
		label, err := model.DecodeCategory(*in.Category)
		if err != nil {
			return &ValidationError{Field: "type", Message: err.Error()}
		}
		category = label
	}

	if in.Name != nil {
		p.Name = *in.Name
	}
	if in.Brand != nil {
		p.Brand = brand
	}
	if in.Category != nil {
		p.Category = category
	}
	if in.Price != nil {
		p.Price = *in.Price
	}
	if in.Quantity != nil {
		p.Quantity = *in.Quantity
	}
	if in.Img != nil {
		p.Img = *in.Img
	}
	if in.Description != nil {
		p.Description = in.Description
	}
	return nil
}
