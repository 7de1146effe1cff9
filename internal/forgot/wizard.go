// Package forgot is the password-recovery wizard: identify the account,
// verify a contact with a one-time code, then set the new password.
package forgot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dhawalhost/signgate/internal/backend"
	"github.com/dhawalhost/signgate/pkg/nav"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Step is the wizard position. Transitions are strictly forward; Back
// only reaches a strictly earlier step.
type Step int

const (
	StepIdentify Step = iota
	StepVerify
	StepReset
)

func (s Step) String() string {
	switch s {
	case StepIdentify:
		return "identify"
	case StepVerify:
		return "verify"
	case StepReset:
		return "reset"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// ValidationError is a local form invariant violation. It never reaches
// the network.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// CooldownError reports a send-code attempt inside the courtesy
// cool-down window. The authoritative limit is server-side.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("please wait %d seconds before requesting another code", int(e.Remaining.Seconds()+0.5))
}

// ErrStepOrder is returned when an operation is attempted out of order.
var ErrStepOrder = fmt.Errorf("operation not available at this step")

const sendCodeCooldown = 60 * time.Second

var validate = validator.New()

type resetForm struct {
	Password string `validate:"required,min=6"`
	Confirm  string `validate:"required,eqfield=Password"`
}

// Wizard is one user's pass through password recovery. It lives in
// memory only; a reload starts over, including the cool-down. The mutex
// serializes concurrent submissions for the same wizard, so a
// double-submit observes the step guard instead of racing past it.
type Wizard struct {
	client *backend.Client
	app    *backend.Application
	logger *zap.Logger

	mu       sync.Mutex
	step     Step
	username string
	contact  backend.ContactInfo
	userID   string
	limiter  *rate.Limiter
}

// NewWizard starts a wizard at the identify step.
func NewWizard(client *backend.Client, app *backend.Application, logger *zap.Logger) *Wizard {
	return &Wizard{
		client:  client,
		app:     app,
		logger:  logger,
		step:    StepIdentify,
		limiter: rate.NewLimiter(rate.Every(sendCodeCooldown), 1),
	}
}

// Step returns the current step.
func (w *Wizard) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

// Contact returns the masked contact data resolved at the identify step.
func (w *Wizard) Contact() backend.ContactInfo {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.contact
}

// Identify resolves the masked contact destinations for a username. An
// unknown username keeps the wizard on this step.
func (w *Wizard) Identify(ctx context.Context, username string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step != StepIdentify {
		return ErrStepOrder
	}
	if username == "" {
		return &ValidationError{Message: "username is required"}
	}
	info, err := w.client.GetEmailAndPhoneByUsername(ctx, w.app.Organization, username)
	if err != nil {
		return err
	}
	w.username = username
	w.contact = *info
	w.step = StepVerify
	return nil
}

// SendCode requests a one-time code for the chosen destination, enforcing
// the local cool-down first.
func (w *Wizard) SendCode(ctx context.Context, dest string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step != StepVerify {
		return ErrStepOrder
	}
	if dest != backend.DestEmail && dest != backend.DestPhone {
		return &ValidationError{Message: "destination must be email or phone"}
	}
	if !w.limiter.Allow() {
		return &CooldownError{Remaining: w.cooldownRemaining()}
	}
	return w.client.SendCode(ctx, w.app.Name, w.username, dest)
}

// CooldownRemaining reports how long until the next code may be sent.
func (w *Wizard) CooldownRemaining() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cooldownRemaining()
}

func (w *Wizard) cooldownRemaining() time.Duration {
	tokens := w.limiter.TokensAt(time.Now())
	if tokens >= 1 {
		return 0
	}
	return time.Duration((1 - tokens) * float64(sendCodeCooldown))
}

// Verify checks the one-time code. Success yields the short-lived user
// identifier and advances; failure stays on this step.
func (w *Wizard) Verify(ctx context.Context, dest, code string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step != StepVerify {
		return ErrStepOrder
	}
	userID, err := w.client.VerifyCode(ctx, w.app.Name, w.username, dest, code)
	if err != nil {
		return err
	}
	w.userID = userID
	w.step = StepReset
	return nil
}

// Reset sets the new password. The confirmation check is synchronous and
// local: mismatched entries never issue a network call. Success leaves
// the wizard by redirecting to the application's sign-in surface.
func (w *Wizard) Reset(ctx context.Context, navc nav.Context, password, confirm string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step != StepReset {
		return ErrStepOrder
	}
	if err := validate.Struct(resetForm{Password: password, Confirm: confirm}); err != nil {
		return &ValidationError{Message: "the two password entries do not match or are too short"}
	}
	if err := w.client.SetPassword(ctx, w.userID, password); err != nil {
		return err
	}
	navc.Navigate("/login/" + w.app.Name)
	return nil
}

// Back returns to a strictly earlier step, discarding progress made
// after it.
func (w *Wizard) Back(to Step) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if to >= w.step {
		return ErrStepOrder
	}
	w.step = to
	if to == StepIdentify {
		w.username = ""
		w.contact = backend.ContactInfo{}
	}
	w.userID = ""
	return nil
}
