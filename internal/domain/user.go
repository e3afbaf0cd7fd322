package domain

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleStaff    Role = "staff"
	RoleCustomer Role = "customer"
)

type User struct {
	ID        int64  `db:"id"`
	Email     string `db:"email"`
	FirstName string `db:"first_name"`
	LastName  string `db:"last_name"`
	Hash      string `db:"password_hash"`
	Role      Role   `db:"role"`
}

func (u User) Name() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Actor identifies who performs a core operation. It is always passed explicitly.
type Actor struct {
	ID    int64
	Email string
	Role  Role
	IP    string
}

// ActorFromUser builds an Actor for a request coming from ip.
func ActorFromUser(u User, ip string) Actor {
	return Actor{ID: u.ID, Email: u.Email, Role: u.Role, IP: ip}
}
