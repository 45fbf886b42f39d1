package grocery

import "github.com/dekarrin/grocer/resource"

// Invoice is the representation of an invoice resource.
type Invoice struct {
	ID            string  `json:"Lid"`
	Date          string  `json:"date"`
	Amount        float64 `json:"amount"`
	PaymentMethod string  `json:"paymentMethod"`
	CustomerID    *int64  `json:"c_id"`
	EmployeeID    *int64  `json:"e_id"`
}

// InvoiceRequest is the body of an invoice create or update. All fields
// except the customer and employee are required.
type InvoiceRequest struct {
	Date          *string  `json:"date"`
	Amount        *float64 `json:"amount"`
	PaymentMethod *string  `json:"paymentMethod"`
	CustomerID    *int64   `json:"c_id"`
	EmployeeID    *int64   `json:"e_id"`
}

func (r InvoiceRequest) Validate() error {
	var v resource.Validator
	v.Require("date", r.Date != nil)
	v.Require("amount", r.Amount != nil)
	v.Require("paymentMethod", r.PaymentMethod != nil)
	return v.Err()
}

// Invoices maps invoices onto the invoice table.
var Invoices = resource.Entity[InvoiceRequest, Invoice]{
	Name:    "Invoice",
	Path:    "invoices",
	Table:   "invoice",
	Key:     "i_id",
	Columns: []string{"date", "amount", "payment_method", "c_id", "e_id"},
	Values: func(r InvoiceRequest) []any {
		return []any{str(r.Date), f64(r.Amount), str(r.PaymentMethod), fk(r.CustomerID), fk(r.EmployeeID)}
	},
	ToWire: func(r resource.Row) Invoice {
		return Invoice{
			ID:     idString(r, "i_id"),
			Date:   r.Date("date"),
			Amount: r.Float("amount"),

			// older schemas named the column paymentMethod
			PaymentMethod: r.String("payment_method", "paymentmethod"),

			CustomerID: r.OptInt("c_id"),
			EmployeeID: r.OptInt("e_id"),
		}
	},
}
