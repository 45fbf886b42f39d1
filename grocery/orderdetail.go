package grocery

import "github.com/dekarrin/grocer/resource"

// OrderDetail is the representation of an order line item resource.
type OrderDetail struct {
	ID        string  `json:"Order_Id"`
	Quantity  int64   `json:"quantity"`
	Cost      float64 `json:"cost"`
	InvoiceID *int64  `json:"i_id"`
	ProductID *int64  `json:"p_id"`
}

// OrderDetailRequest is the body of an order detail create or update. Unlike
// the other entities, the key is chosen by the client and sent as a string of
// digits. All fields except the invoice and product are required.
type OrderDetailRequest struct {
	OrderID   *string  `json:"Order_Id"`
	Quantity  *int64   `json:"quantity"`
	Cost      *float64 `json:"cost"`
	InvoiceID *int64   `json:"i_id"`
	ProductID *int64   `json:"p_id"`
}

func (r OrderDetailRequest) Validate() error {
	var v resource.Validator
	v.Require("Order_Id", r.OrderID != nil)
	v.Require("quantity", r.Quantity != nil)
	v.Require("cost", r.Cost != nil)
	if err := v.Err(); err != nil {
		return err
	}

	_, err := ParseOrderID(*r.OrderID)
	return err
}

// OrderDetails maps order line items onto the orderdetails table.
var OrderDetails = resource.Entity[OrderDetailRequest, OrderDetail]{
	Name:    "Order detail",
	Path:    "order-details",
	Table:   "orderdetails",
	Key:     "order_id",
	Columns: []string{"order_id", "quantity", "cost", "i_id", "p_id"},
	Values: func(r OrderDetailRequest) []any {
		id, _ := ParseOrderID(str(r.OrderID))
		return []any{id, i64(r.Quantity), f64(r.Cost), fk(r.InvoiceID), fk(r.ProductID)}
	},
	KeyOf: func(r OrderDetailRequest) (int64, error) {
		return ParseOrderID(str(r.OrderID))
	},
	ToWire: func(r resource.Row) OrderDetail {
		return OrderDetail{
			ID:        idString(r, "order_id"),
			Quantity:  r.Int("quantity"),
			Cost:      r.Float("cost"),
			InvoiceID: r.OptInt("i_id"),
			ProductID: r.OptInt("p_id"),
		}
	},
}
