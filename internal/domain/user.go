package domain

import (
	"encoding/json"
	"time"

	"raceline/internal/types"
)

type RoleAttrs struct {
	ID          int64          `json:"id" mapstructure:"id"`
	Name        types.RoleName `json:"name" mapstructure:"name"`
	Description string         `json:"description,omitempty" mapstructure:"description"`
}

type Role struct{ a RoleAttrs }

func NewRole(a RoleAttrs) (Role, error) {
	c := newChecker("role")
	c.id("id", a.ID)
	c.enum("name", a.Name.Valid(), a.Name)
	if err := c.err(); err != nil {
		return Role{}, err
	}
	return Role{a: a}, nil
}

func (r Role) ID() int64                    { return r.a.ID }
func (r Role) Name() types.RoleName         { return r.a.Name }
func (r Role) Description() string          { return r.a.Description }
func (r Role) Attrs() RoleAttrs             { return r.a }
func (r Role) MarshalJSON() ([]byte, error) { return json.Marshal(r.a) }

func (r Role) Summary() RoleSummary {
	return RoleSummary{a: RoleSummaryAttrs{ID: r.a.ID, Name: r.a.Name}}
}

type RoleSummaryAttrs struct {
	ID   int64          `json:"id" mapstructure:"id"`
	Name types.RoleName `json:"name" mapstructure:"name"`
}

type RoleSummary struct{ a RoleSummaryAttrs }

func NewRoleSummary(a RoleSummaryAttrs) (RoleSummary, error) {
	if _, err := NewRole(RoleAttrs{ID: a.ID, Name: a.Name}); err != nil {
		return RoleSummary{}, err
	}
	return RoleSummary{a: a}, nil
}

func (r RoleSummary) ID() int64                    { return r.a.ID }
func (r RoleSummary) Name() types.RoleName         { return r.a.Name }
func (r RoleSummary) Attrs() RoleSummaryAttrs      { return r.a }
func (r RoleSummary) MarshalJSON() ([]byte, error) { return json.Marshal(r.a) }

// UserAttrs carries a user row. RoleName comes from the roles join every user
// read applies.
type UserAttrs struct {
	ID             int64          `json:"id" mapstructure:"id"`
	UUID           types.UUID     `json:"uuid" mapstructure:"uuid"`
	Name           string         `json:"name" mapstructure:"name"`
	Email          types.Email    `json:"email" mapstructure:"email"`
	RoleID         int64          `json:"role_id" mapstructure:"role_id"`
	RoleName       types.RoleName `json:"role_name" mapstructure:"role_name"`
	PasswordDigest string         `json:"-" mapstructure:"password_digest"`
	CreatedAt      time.Time      `json:"created_at" mapstructure:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" mapstructure:"updated_at"`
}

type User struct{ a UserAttrs }

func NewUser(a UserAttrs) (User, error) {
	c := newChecker("user")
	c.id("id", a.ID)
	checkUUID(c, "uuid", a.UUID)
	c.text("name", a.Name, MaxName)
	checkEmail(c, "email", a.Email)
	c.id("role_id", a.RoleID)
	c.enum("role_name", a.RoleName.Valid(), a.RoleName)
	c.text("password_digest", a.PasswordDigest, 0)
	c.timestamp("created_at", a.CreatedAt)
	c.timestamp("updated_at", a.UpdatedAt)
	if err := c.err(); err != nil {
		return User{}, err
	}
	return User{a: a}, nil
}

func (u User) ID() int64                    { return u.a.ID }
func (u User) UUID() types.UUID             { return u.a.UUID }
func (u User) Name() string                 { return u.a.Name }
func (u User) Email() types.Email           { return u.a.Email }
func (u User) RoleID() int64                { return u.a.RoleID }
func (u User) RoleName() types.RoleName     { return u.a.RoleName }
func (u User) PasswordDigest() string       { return u.a.PasswordDigest }
func (u User) CreatedAt() time.Time         { return u.a.CreatedAt }
func (u User) UpdatedAt() time.Time         { return u.a.UpdatedAt }
func (u User) Attrs() UserAttrs             { return u.a }
func (u User) MarshalJSON() ([]byte, error) { return json.Marshal(u.a) }

// IsReferee reports whether the user officiates races.
func (u User) IsReferee() bool {
	switch u.a.RoleName {
	case types.RoleNationalReferee, types.RoleInternationalReferee,
		types.RoleJuryPresident, types.RoleRefereeManager:
		return true
	}
	return false
}

// HasRole reports whether the user holds any of roles.
func (u User) HasRole(roles ...types.RoleName) bool {
	for _, r := range roles {
		if u.a.RoleName == r {
			return true
		}
	}
	return false
}

func (u User) Summary() UserSummary {
	return UserSummary{a: UserSummaryAttrs{
		ID:       u.a.ID,
		Name:     u.a.Name,
		Email:    u.a.Email,
		RoleName: u.a.RoleName,
	}}
}

type UserSummaryAttrs struct {
	ID       int64          `json:"id" mapstructure:"id"`
	Name     string         `json:"name" mapstructure:"name"`
	Email    types.Email    `json:"email" mapstructure:"email"`
	RoleName types.RoleName `json:"role_name" mapstructure:"role_name"`
}

type UserSummary struct{ a UserSummaryAttrs }

func NewUserSummary(a UserSummaryAttrs) (UserSummary, error) {
	c := newChecker("user summary")
	c.id("id", a.ID)
	c.text("name", a.Name, MaxName)
	checkEmail(c, "email", a.Email)
	c.enum("role_name", a.RoleName.Valid(), a.RoleName)
	if err := c.err(); err != nil {
		return UserSummary{}, err
	}
	return UserSummary{a: a}, nil
}

func (u UserSummary) ID() int64                    { return u.a.ID }
func (u UserSummary) Name() string                 { return u.a.Name }
func (u UserSummary) Email() types.Email           { return u.a.Email }
func (u UserSummary) RoleName() types.RoleName     { return u.a.RoleName }
func (u UserSummary) Attrs() UserSummaryAttrs      { return u.a }
func (u UserSummary) MarshalJSON() ([]byte, error) { return json.Marshal(u.a) }

func checkEmail(c *checker, field string, e types.Email) {
	parsed, err := types.ParseEmail(string(e))
	if err != nil {
		c.fail(field, err.Error())
		return
	}
	if parsed != e {
		c.fail(field, "must be normalised")
	}
}

func checkUUID(c *checker, field string, u types.UUID) {
	parsed, err := types.ParseUUID(string(u))
	if err != nil {
		c.fail(field, err.Error())
		return
	}
	if parsed != u {
		c.fail(field, "must be canonical")
	}
}
