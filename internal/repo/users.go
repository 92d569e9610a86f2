package repo

import (
	"context"
	"database/sql"

	"raceline/internal/db"
	"raceline/internal/domain"
	"raceline/internal/types"
)

type Roles struct {
	Table[domain.Role, domain.RoleSummary]
}

var roleSpec = &tableSpec[domain.Role, domain.RoleSummary]{
	entity: "role",
	table:  "roles",
	from:   "roles ro",
	id:     "ro.id",
	columns: map[string]string{
		"id":   "ro.id",
		"name": "ro.name",
	},
	full:    []string{"ro.id", "ro.name", "ro.description"},
	summary: []string{"ro.id", "ro.name"},
	order:   "ro.id",
	scanFull: func(s scanner) (domain.Role, error) {
		var a domain.RoleAttrs
		var desc sql.NullString
		if err := s.Scan(&a.ID, &a.Name, &desc); err != nil {
			return domain.Role{}, err
		}
		a.Description = desc.String
		return domain.NewRole(a)
	},
	scanSummary: func(s scanner) (domain.RoleSummary, error) {
		var a domain.RoleSummaryAttrs
		if err := s.Scan(&a.ID, &a.Name); err != nil {
			return domain.RoleSummary{}, err
		}
		return domain.NewRoleSummary(a)
	},
}

func (r Roles) With(q db.Querier) Roles { return Roles{r.with(q)} }

func (r Roles) FindByName(ctx context.Context, name types.RoleName) (domain.Role, bool, error) {
	return r.FindBy(ctx, Criteria{"name": name})
}

func (r Roles) Methods() Methods {
	return tableMethods(Methods{"FindByName": One})
}

type Users struct {
	Table[domain.User, domain.UserSummary]
}

var userSpec = &tableSpec[domain.User, domain.UserSummary]{
	entity: "user",
	table:  "users",
	from:   "users u JOIN roles ro ON ro.id = u.role_id",
	id:     "u.id",
	columns: map[string]string{
		"id":        "u.id",
		"uuid":      "u.uuid",
		"name":      "u.name",
		"email":     "u.email",
		"role_id":   "u.role_id",
		"role_name": "ro.name",
	},
	full: []string{
		"u.id", "u.uuid", "u.name", "u.email", "u.role_id", "ro.name",
		"u.password_digest", "u.created_at", "u.updated_at",
	},
	summary: []string{"u.id", "u.name", "u.email", "ro.name"},
	order:   "u.id",
	scanFull: func(s scanner) (domain.User, error) {
		var a domain.UserAttrs
		created, updated := timeInto(&a.CreatedAt), timeInto(&a.UpdatedAt)
		if err := s.Scan(&a.ID, &a.UUID, &a.Name, &a.Email, &a.RoleID, &a.RoleName,
			&a.PasswordDigest, &created.src, &updated.src); err != nil {
			return domain.User{}, err
		}
		if err := decodeTimes(created, updated); err != nil {
			return domain.User{}, err
		}
		return domain.NewUser(a)
	},
	scanSummary: func(s scanner) (domain.UserSummary, error) {
		var a domain.UserSummaryAttrs
		if err := s.Scan(&a.ID, &a.Name, &a.Email, &a.RoleName); err != nil {
			return domain.UserSummary{}, err
		}
		return domain.NewUserSummary(a)
	},
}

// UserInput is a new user. The password is already digested.
type UserInput struct {
	UUID           types.UUID  `mapstructure:"uuid"`
	Name           string      `mapstructure:"name"`
	Email          types.Email `mapstructure:"email"`
	RoleID         int64       `mapstructure:"role_id"`
	PasswordDigest string      `mapstructure:"password_digest"`
}

type UserUpdate struct {
	Name           *string      `mapstructure:"name"`
	Email          *types.Email `mapstructure:"email"`
	RoleID         *int64       `mapstructure:"role_id"`
	PasswordDigest *string      `mapstructure:"password_digest"`
}

func (r Users) With(q db.Querier) Users { return Users{r.with(q)} }

func (r Users) Create(ctx context.Context, in UserInput) (domain.User, error) {
	if in.UUID == "" {
		in.UUID = types.NewUUID()
	}
	now := types.FormatTime(r.stamp())
	id, err := r.insert(ctx,
		[]string{"uuid", "name", "email", "role_id", "password_digest", "created_at", "updated_at"},
		[]any{string(in.UUID), in.Name, string(in.Email), in.RoleID, in.PasswordDigest, now, now})
	if err != nil {
		return domain.User{}, err
	}
	return r.MustFind(ctx, id)
}

func (r Users) Update(ctx context.Context, id int64, in UserUpdate) (domain.User, error) {
	var a assignments
	if in.Name != nil {
		a.set("name", *in.Name)
	}
	if in.Email != nil {
		a.set("email", string(*in.Email))
	}
	if in.RoleID != nil {
		a.set("role_id", *in.RoleID)
	}
	if in.PasswordDigest != nil {
		a.set("password_digest", *in.PasswordDigest)
	}
	if !a.empty() {
		a.set("updated_at", types.FormatTime(r.stamp()))
	}
	if err := r.update(ctx, id, a); err != nil {
		return domain.User{}, err
	}
	return r.MustFind(ctx, id)
}

func (r Users) FindByEmail(ctx context.Context, email types.Email) (domain.User, bool, error) {
	return r.FindBy(ctx, Criteria{"email": email})
}

func (r Users) FindByUUID(ctx context.Context, uuid types.UUID) (domain.User, bool, error) {
	return r.FindBy(ctx, Criteria{"uuid": uuid})
}

func (r Users) ByRole(ctx context.Context, roles ...types.RoleName) ([]domain.UserSummary, error) {
	return r.Where(ctx, Criteria{"role_name": roles})
}

func (r Users) Methods() Methods {
	return tableMethods(Methods{
		"FindByEmail": One,
		"FindByUUID":  One,
		"ByRole":      Many,
	})
}
