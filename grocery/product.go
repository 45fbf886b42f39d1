package grocery

import "github.com/dekarrin/grocer/resource"

// Product is the representation of a product resource.
type Product struct {
	ID         string  `json:"P_id"`
	Name       string  `json:"name"`
	Category   string  `json:"category"`
	Stock      int64   `json:"stock"`
	Price      float64 `json:"price"`
	SupplierID *int64  `json:"s_id"`
}

// ProductRequest is the body of a product create or update. All fields
// except the supplier are required.
type ProductRequest struct {
	Name       *string  `json:"name"`
	Category   *string  `json:"category"`
	Stock      *int64   `json:"stock"`
	Price      *float64 `json:"price"`
	SupplierID *int64   `json:"s_id"`
}

func (r ProductRequest) Validate() error {
	var v resource.Validator
	v.Require("name", r.Name != nil)
	v.Require("category", r.Category != nil)
	v.Require("stock", r.Stock != nil)
	v.Require("price", r.Price != nil)
	return v.Err()
}

// Products maps products onto the product table.
var Products = resource.Entity[ProductRequest, Product]{
	Name:    "Product",
	Path:    "products",
	Table:   "product",
	Key:     "p_id",
	Columns: []string{"name", "category", "stock", "price", "s_id"},
	Values: func(r ProductRequest) []any {
		return []any{str(r.Name), str(r.Category), i64(r.Stock), f64(r.Price), fk(r.SupplierID)}
	},
	ToWire: func(r resource.Row) Product {
		return Product{
			ID:         idString(r, "p_id"),
			Name:       r.String("name"),
			Category:   r.String("category"),
			Stock:      r.Int("stock"),
			Price:      r.Float("price"),
			SupplierID: r.OptInt("s_id"),
		}
	},
}
