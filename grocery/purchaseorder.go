package grocery

import "github.com/dekarrin/grocer/resource"

// PurchaseOrder is the representation of a purchase order resource.
type PurchaseOrder struct {
	ID         string  `json:"Purchase_id"`
	Date       string  `json:"date"`
	Amount     float64 `json:"amount"`
	SupplierID *int64  `json:"s_id"`
}

// PurchaseOrderRequest is the body of a purchase order create or update. All
// fields except the supplier are required.
type PurchaseOrderRequest struct {
	Date       *string  `json:"date"`
	Amount     *float64 `json:"amount"`
	SupplierID *int64   `json:"s_id"`
}

func (r PurchaseOrderRequest) Validate() error {
	var v resource.Validator
	v.Require("date", r.Date != nil)
	v.Require("amount", r.Amount != nil)
	return v.Err()
}

// PurchaseOrders maps purchase orders onto the purchaseorder table.
var PurchaseOrders = resource.Entity[PurchaseOrderRequest, PurchaseOrder]{
	Name:    "Purchase order",
	Path:    "purchase-orders",
	Table:   "purchaseorder",
	Key:     "purchase_id",
	Columns: []string{"date", "amount", "s_id"},
	Values: func(r PurchaseOrderRequest) []any {
		return []any{str(r.Date), f64(r.Amount), fk(r.SupplierID)}
	},
	ToWire: func(r resource.Row) PurchaseOrder {
		return PurchaseOrder{
			ID:         idString(r, "purchase_id"),
			Date:       r.Date("date"),
			Amount:     r.Float("amount"),
			SupplierID: r.OptInt("s_id"),
		}
	},
}
