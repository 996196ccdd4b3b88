package role

// Role роль сотрудника агентства
type Role string

const (
	Admin            Role = "ADMIN"
	Manager          Role = "MANAGER"
	Accountant       Role = "ACCOUNTANT"
	Developer        Role = "DEVELOPER"
	SupportDeveloper Role = "SUPPORT_DEVELOPER"
)

// Valid проверяет что роль входит в закрытый набор
func (r Role) Valid() bool {
	switch r {
	case Admin, Manager, Accountant, Developer, SupportDeveloper:
		return true
	}
	return false
}

// IsDeveloper разработчики не видят финансовые поля
func (r Role) IsDeveloper() bool {
	return r == Developer || r == SupportDeveloper
}
