package model

// User represents the buyer account fields the payment flow reads.  The
// cart lives on the user row as a JSON list of book ids.
//
// Fields:
//  ID        – primary key identifier of the user.
//  Email     – unique email address.
//  Name      – display name used in notifications.
//  Role      – CUSTOMER or ADMIN.
//  IsBlocked – blocked buyers cannot start a checkout.
type User struct {
    ID        uint64 // users.id
    Email     string // users.email
    Name      string // users.name
    Role      string // users.role
    IsBlocked bool   // users.is_blocked
}

const (
    RoleCustomer = "CUSTOMER"
    RoleAdmin    = "ADMIN"
)
