package grocery

import "github.com/dekarrin/grocer/resource"

// PersonName is a customer's name as sent to clients.
type PersonName struct {
	FirstName  string `json:"firstName"`
	SecondName string `json:"secondName"`
}

// Customer is the representation of a customer resource.
type Customer struct {
	ID      string     `json:"C_id"`
	Name    PersonName `json:"name"`
	Email   string     `json:"email"`
	Phone   []string   `json:"phone"`
	Address string     `json:"address"`
}

// PersonNameRequest is the name part of a CustomerRequest.
type PersonNameRequest struct {
	FirstName  *string `json:"firstName"`
	SecondName *string `json:"secondName"`
}

// CustomerRequest is the body of a customer create or update. All fields are
// required.
type CustomerRequest struct {
	Name    *PersonNameRequest `json:"name"`
	Email   *string            `json:"email"`
	Phone   []string           `json:"phone"`
	Address *string            `json:"address"`
}

func (r CustomerRequest) Validate() error {
	var v resource.Validator
	v.Require("name", r.Name != nil)
	if r.Name != nil {
		v.Require("name.firstName", r.Name.FirstName != nil)
		v.Require("name.secondName", r.Name.SecondName != nil)
	}
	v.Require("email", r.Email != nil)
	v.Require("phone", r.Phone != nil)
	v.Require("address", r.Address != nil)
	return v.Err()
}

// Customers maps customers onto the customer table.
var Customers = resource.Entity[CustomerRequest, Customer]{
	Name:    "Customer",
	Path:    "customers",
	Table:   "customer",
	Key:     "c_id",
	Columns: []string{"first_name", "second_name", "email", "phone", "address"},
	Values: func(r CustomerRequest) []any {
		return []any{str(r.Name.FirstName), str(r.Name.SecondName), str(r.Email), JoinPhones(r.Phone), str(r.Address)}
	},
	ToWire: func(r resource.Row) Customer {
		return Customer{
			ID: idString(r, "c_id"),
			Name: PersonName{
				FirstName:  r.String("first_name"),
				SecondName: r.String("second_name"),
			},
			Email:   r.String("email"),
			Phone:   SplitPhones(r.String("phone")),
			Address: r.String("address"),
		}
	},
}
