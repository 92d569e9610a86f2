package engine

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"raceline/internal/contract"
	"raceline/internal/domain"
	"raceline/internal/events"
	"raceline/internal/repo"
	"raceline/internal/types"
)

type newUser struct {
	Name     string      `mapstructure:"name"`
	Email    types.Email `mapstructure:"email"`
	RoleID   int64       `mapstructure:"role_id"`
	Password string      `mapstructure:"password"`
}

// CreateUser stores a user with a bcrypt digest of the password. The first
// user of an empty database may be created without an actor; every later one
// needs a referee manager.
func (e Engine) CreateUser(ctx context.Context, attrs contract.Attributes, actorID int64) (domain.User, error) {
	var in newUser
	if _, err := e.validate(ctx, contract.CreateUser(e.Repos.Lookup), attrs, &in); err != nil {
		return domain.User{}, err
	}
	cost := e.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(in.Password), cost)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	var out domain.User
	err = e.write(ctx, "user.create", func(s *scope) error {
		if actorID == 0 {
			n, err := s.repos.Users.Count(ctx, repo.Criteria{})
			if err != nil {
				return err
			}
			if n > 0 {
				return fmt.Errorf("%w: an acting user is required", domain.ErrNotAllowed)
			}
		} else {
			actor, err := s.actor(actorID)
			if err != nil {
				return err
			}
			if err := domain.CanManageUsers(actor).Err(); err != nil {
				return err
			}
		}
		u, err := s.repos.Users.Create(ctx, repo.UserInput{
			Name: in.Name, Email: in.Email, RoleID: in.RoleID, PasswordDigest: string(digest),
		})
		if err != nil {
			if errors.Is(err, repo.ErrConstraint) {
				return invalid("create_user", "email", contract.CrossFieldRule, "%s is already registered", in.Email)
			}
			return err
		}
		out = u
		return s.record(events.UserCreated, "user", u.ID(), actorID, u, events.EventPayload{
			"role": u.RoleName(),
		})
	})
	return out, err
}

// Authenticate returns the user owning email when password matches.
func (e Engine) Authenticate(ctx context.Context, email, password string) (domain.User, error) {
	values, err := e.validate(ctx, contract.AuthenticateUser(), contract.Attributes{"email": email, "password": password}, nil)
	if err != nil {
		return domain.User{}, err
	}
	u, ok, err := e.Repos.Users.FindByEmail(ctx, values["email"].(types.Email))
	if err != nil {
		return domain.User{}, err
	}
	if !ok {
		return domain.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordDigest()), []byte(values["password"].(string))); err != nil {
		return domain.User{}, ErrInvalidCredentials
	}
	return u, nil
}
