package domain

type Role string

const (
	RoleSupplier Role = "supplier"
	RoleProvider Role = "provider"
)

type User struct {
	ID   string `json:"id" validate:"required"`
	Name string `json:"name" validate:"required"`
	Role Role   `json:"role" validate:"oneof=supplier provider"`
}
