package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"raceline/internal/broadcast"
	"raceline/internal/config"
	"raceline/internal/contract"
	"raceline/internal/db"
	"raceline/internal/domain"
	"raceline/internal/events"
	"raceline/internal/repo"
)

// ErrInvalidCredentials is returned by Authenticate for an unknown email and
// for a wrong password alike.
var ErrInvalidCredentials = errors.New("invalid email or password")

type Engine struct {
	H         db.Handle
	Repos     repo.Repos
	Events    events.Writer
	Broadcast broadcast.Broadcaster
	Config    *config.Config
	Log       *zap.SugaredLogger
	Now       func() time.Time
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

type Options struct {
	Log       *zap.SugaredLogger
	Broadcast broadcast.Broadcaster
	Now       func() time.Time
}

func New(h db.Handle, cfg *config.Config, opts Options) (Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop().Sugar()
	}
	if opts.Broadcast == nil {
		opts.Broadcast = broadcast.Nop{}
	}
	e := Engine{
		H:          h,
		Broadcast:  opts.Broadcast,
		Config:     cfg,
		Log:        opts.Log,
		Now:        opts.Now,
		BcryptCost: bcrypt.DefaultCost,
	}
	if e.Now == nil {
		e.Now = time.Now
	}
	// Repositories and the event writer share the engine clock.
	clock := e.Now
	repos, err := repo.New(h, repo.Options{CacheSize: cfg.Cache.LookupSize, Now: clock, Log: opts.Log})
	if err != nil {
		return Engine{}, err
	}
	e.Repos = repos
	e.Events = events.Writer{Dialect: h.Dialect, Now: clock}
	return e, nil
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// scope is one write transaction: repositories bound to tx, and the changes
// to broadcast once it commits.
type scope struct {
	ctx     context.Context
	tx      *sql.Tx
	repos   repo.Repos
	events  events.Writer
	at      time.Time
	changes []broadcast.Change
}

// record appends the audit event and queues the matching broadcast.
func (s *scope) record(evtType, kind string, id, actorID int64, record any, payload events.EventPayload) error {
	if err := s.events.Append(s.ctx, s.tx, evtType, kind, id, actorID, payload); err != nil {
		return err
	}
	s.changes = append(s.changes, broadcast.Change{
		Type:       evtType,
		EntityKind: kind,
		EntityID:   id,
		ActorID:    actorID,
		Record:     record,
		At:         s.at,
	})
	return nil
}

// write runs fn in one transaction and broadcasts its changes after commit.
// Nothing is broadcast when fn or the commit fails.
func (e Engine) write(ctx context.Context, op string, fn func(s *scope) error) error {
	var s *scope
	err := e.H.InTx(ctx, func(tx *sql.Tx) error {
		s = &scope{ctx: ctx, tx: tx, repos: e.Repos.With(tx), events: e.Events, at: e.now().UTC().Truncate(time.Second)}
		return fn(s)
	})
	if err != nil {
		if errors.Is(err, repo.ErrStorage) {
			e.Log.Errorw("write failed", "op", op, "error", err)
		}
		return err
	}
	for _, c := range s.changes {
		e.Broadcast.Broadcast(ctx, c)
	}
	return nil
}

// validate runs c over attrs and decodes the normalised values into out.
// Invalid input comes back as a *contract.ValidationError.
func (e Engine) validate(ctx context.Context, c contract.Contract, attrs contract.Attributes, out any) (contract.Values, error) {
	res := c.Call(ctx, attrs)
	if !res.Valid() {
		return nil, res.Err()
	}
	if out != nil {
		if err := res.Decode(out); err != nil {
			return nil, err
		}
	}
	return res.Values, nil
}

// invalid builds a one-field validation error for checks that need state the
// contract cannot see.
func invalid(name, field string, kind contract.ViolationKind, format string, args ...any) error {
	return &contract.ValidationError{Contract: name, Violations: []contract.Violation{{
		Field: field, Kind: kind, Message: fmt.Sprintf(format, args...),
	}}}
}

// currentID reads the id a partial update targets.
func currentID(name string, attrs contract.Attributes) (int64, error) {
	v, err := contract.ID(attrs["id"])
	if err != nil {
		return 0, invalid(name, "id", contract.FieldValidation, "%s", err.Error())
	}
	return v.(int64), nil
}

// actor loads the user acting on a guarded operation.
func (s *scope) actor(actorID int64) (domain.User, error) {
	if actorID <= 0 {
		return domain.User{}, fmt.Errorf("%w: an acting user is required", domain.ErrNotAllowed)
	}
	u, ok, err := s.repos.Users.Find(s.ctx, actorID)
	if err != nil {
		return domain.User{}, err
	}
	if !ok {
		return domain.User{}, fmt.Errorf("%w: unknown user %d", domain.ErrNotAllowed, actorID)
	}
	return u, nil
}
