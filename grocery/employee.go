package grocery

import "github.com/dekarrin/grocer/resource"

// Employee is the representation of an employee resource.
type Employee struct {
	ID    string   `json:"E_id"`
	Name  string   `json:"name"`
	Role  string   `json:"role"`
	Phone []string `json:"phone"`
}

// EmployeeRequest is the body of an employee create or update. All fields are
// required.
type EmployeeRequest struct {
	Name  *string  `json:"name"`
	Role  *string  `json:"role"`
	Phone []string `json:"phone"`
}

func (r EmployeeRequest) Validate() error {
	var v resource.Validator
	v.Require("name", r.Name != nil)
	v.Require("role", r.Role != nil)
	v.Require("phone", r.Phone != nil)
	return v.Err()
}

// Employees maps employees onto the employee table.
var Employees = resource.Entity[EmployeeRequest, Employee]{
	Name:    "Employee",
	Path:    "employees",
	Table:   "employee",
	Key:     "e_id",
	Columns: []string{"name", "role", "phone"},
	Values: func(r EmployeeRequest) []any {
		return []any{str(r.Name), str(r.Role), JoinPhones(r.Phone)}
	},
	ToWire: func(r resource.Row) Employee {
		return Employee{
			ID:    idString(r, "e_id"),
			Name:  r.String("name"),
			Role:  r.String("role"),
			Phone: SplitPhones(r.String("phone")),
		}
	},
}
