package grocery

import "github.com/dekarrin/grocer/resource"

// Supplier is the representation of a supplier resource.
type Supplier struct {
	ID      string   `json:"S_id"`
	Name    string   `json:"name"`
	Address string   `json:"address"`
	Email   string   `json:"email"`
	Phone   []string `json:"phone"`
}

// SupplierRequest is the body of a supplier create or update. All fields are
// required.
type SupplierRequest struct {
	Name    *string  `json:"name"`
	Address *string  `json:"address"`
	Email   *string  `json:"email"`
	Phone   []string `json:"phone"`
}

func (r SupplierRequest) Validate() error {
	var v resource.Validator
	v.Require("name", r.Name != nil)
	v.Require("address", r.Address != nil)
	v.Require("email", r.Email != nil)
	v.Require("phone", r.Phone != nil)
	return v.Err()
}

// Suppliers maps suppliers onto the supplier table.
var Suppliers = resource.Entity[SupplierRequest, Supplier]{
	Name:    "Supplier",
	Path:    "suppliers",
	Table:   "supplier",
	Key:     "s_id",
	Columns: []string{"name", "address", "email", "phone"},
	Values: func(r SupplierRequest) []any {
		return []any{str(r.Name), str(r.Address), str(r.Email), JoinPhones(r.Phone)}
	},
	ToWire: func(r resource.Row) Supplier {
		return Supplier{
			ID:      idString(r, "s_id"),
			Name:    r.String("name"),
			Address: r.String("address"),
			Email:   r.String("email"),
			Phone:   SplitPhones(r.String("phone")),
		}
	},
}
