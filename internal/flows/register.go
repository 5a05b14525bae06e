package flows

import (
	"context"
	"errors"
	"net/mail"
	"time"

	"github.com/sentinelgrid/authcore/permission"
)

// RegisterRequest is the flow-local registration input.
type RegisterRequest struct {
	Email    string
	Password string
}

// RegisterMetrics carries metric IDs needed by the register flow.
type RegisterMetrics struct {
	RegisterSuccess   int
	RegisterDuplicate int
}

// RegisterEvents carries audit event names used by the register flow.
type RegisterEvents struct {
	Register string
}

// RegisterErrors carries host-level sentinel errors used by the register flow.
type RegisterErrors struct {
	EngineNotReady error
	InvalidEmail   error
	WeakPassword   error
	DuplicateEmail error
}

// RegisterDeps captures registration dependencies.
type RegisterDeps struct {
	DefaultRole permission.Role

	Now                 func() time.Time
	NewUserID           func() string
	CheckPasswordPolicy func(string) error
	HashPassword        func(string) (string, error)
	Users               UserStore

	MetricInc func(int)
	EmitAudit AuditFunc

	Metrics RegisterMetrics
	Events  RegisterEvents
	Errors  RegisterErrors
}

func normalizeRegisterDeps(deps *RegisterDeps) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricInc == nil {
		deps.MetricInc = noMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noAudit
	}
	if !deps.DefaultRole.Valid() {
		deps.DefaultRole = permission.DefaultRole
	}
}

// ValidEmail reports whether a normalized email is a bare address.
func ValidEmail(email string) bool {
	if email == "" || len(email) > 254 {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	return addr.Address == email && addr.Name == ""
}

// RunRegister creates an account with the default role. Self-registration never
// chooses its own role.
func RunRegister(ctx context.Context, req RegisterRequest, deps RegisterDeps) (UserRecord, error) {
	normalizeRegisterDeps(&deps)
	if deps.Users == nil || deps.HashPassword == nil || deps.NewUserID == nil || deps.CheckPasswordPolicy == nil {
		return UserRecord{}, deps.Errors.EngineNotReady
	}

	email := NormalizeEmail(req.Email)
	if !ValidEmail(email) {
		return UserRecord{}, deps.Errors.InvalidEmail
	}
	if err := deps.CheckPasswordPolicy(req.Password); err != nil {
		return UserRecord{}, errors.Join(deps.Errors.WeakPassword, err)
	}

	hash, err := deps.HashPassword(req.Password)
	if err != nil {
		return UserRecord{}, err
	}

	created, err := deps.Users.CreateUser(ctx, UserRecord{
		ID:           deps.NewUserID(),
		Email:        email,
		PasswordHash: hash,
		Role:         deps.DefaultRole,
		Active:       true,
		CreatedAt:    deps.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, deps.Errors.DuplicateEmail) {
			deps.MetricInc(deps.Metrics.RegisterDuplicate)
			deps.EmitAudit(ctx, deps.Events.Register, false, "", deps.Errors.DuplicateEmail, func() map[string]string {
				return map[string]string{"reason": "duplicate_email"}
			})
			return UserRecord{}, deps.Errors.DuplicateEmail
		}
		return UserRecord{}, err
	}

	deps.MetricInc(deps.Metrics.RegisterSuccess)
	deps.EmitAudit(ctx, deps.Events.Register, true, created.ID, nil, func() map[string]string {
		return map[string]string{"role": created.Role.String()}
	})
	return created, nil
}
