package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/otpkeeper/internal/common"
	"github.com/dmitrijs2005/otpkeeper/internal/cryptox"
	"github.com/dmitrijs2005/otpkeeper/internal/logging"
	"github.com/dmitrijs2005/otpkeeper/internal/models"
	"github.com/dmitrijs2005/otpkeeper/internal/otp"
	"github.com/dmitrijs2005/otpkeeper/internal/services"
	"github.com/dmitrijs2005/otpkeeper/internal/timex"
)

// Option configures a Controller.
type Option func(*Controller)

// WithListener sets the receiver of display events.
func WithListener(l Listener) Option {
	return func(c *Controller) { c.listener = l }
}

// WithClock sets the local clock used for session expiry.
func WithClock(clock timex.Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

// WithCodeClock sets the clock codes are generated for, usually the
// reconciled network time.
func WithCodeClock(clock timex.Clock) Option {
	return func(c *Controller) { c.codeClock = clock }
}

// WithPollInterval overrides the one-second watchdog and countdown period.
func WithPollInterval(d time.Duration) Option {
	return func(c *Controller) { c.poll = d }
}

type Controller struct {
	auth      services.AuthService
	vault     services.VaultService
	log       logging.Logger
	listener  Listener
	clock     timex.Clock
	codeClock timex.Clock
	poll      time.Duration

	root       context.Context
	rootCancel context.CancelFunc

	mu        sync.Mutex
	state     State
	session   *Session
	visible   bool
	watchdog  *worker
	generator *worker
}

func NewController(auth services.AuthService, vault services.VaultService, log logging.Logger, opts ...Option) *Controller {
	c := &Controller{
		auth:     auth,
		vault:    vault,
		log:      log.With("component", "session"),
		listener: NopListener{},
		clock:    timex.System,
		poll:     time.Second,
		state:    StateLoggedOut,
		visible:  true,
	}
	for _, o := range opts {
		o(c)
	}
	if c.codeClock == nil {
		c.codeClock = c.clock
	}
	c.root, c.rootCancel = context.WithCancel(context.Background())
	return c
}

// Init picks the starting state from storage: SettingPin when no usable PIN
// record exists, LoggedOut otherwise.
func (c *Controller) Init(ctx context.Context) (State, error) {
	has, err := c.auth.HasPIN(ctx)
	if err != nil {
		return c.State(), err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateLoggedIn {
		if has {
			c.state = StateLoggedOut
		} else {
			c.state = StateSettingPin
		}
	}
	return c.state, nil
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) SetPin(ctx context.Context, pin string) error {
	if c.State() != StateSettingPin {
		return common.ErrPINAlreadySet
	}
	if err := c.auth.SetPIN(ctx, pin); err != nil {
		return err
	}

	c.mu.Lock()
	c.state = StateLoggedOut
	c.mu.Unlock()
	return nil
}

// Login verifies pin, derives the session key and starts the workers. A
// missing encryption salt ends the attempt as a forced logout: the error is
// returned and also reported to the listener.
func (c *Controller) Login(ctx context.Context, pin string) error {
	switch c.State() {
	case StateSettingPin:
		return common.ErrPINNotSet
	case StateLoggedIn:
		return ErrAlreadyLoggedIn
	}

	key, err := c.auth.Authenticate(ctx, pin)
	if errors.Is(err, common.ErrEncryptionSaltMissing) {
		c.log.Error(ctx, "cannot open session without encryption salt")
		c.listener.LoggedOut(ReasonError, err)
		return err
	}
	if err != nil {
		return err
	}

	now := c.clock.Now().Round(0)
	if err := c.auth.RecordLogin(ctx, now); err != nil {
		c.log.Warn(ctx, "failed to record login time", "error", err)
	}

	c.mu.Lock()
	if c.state == StateLoggedIn {
		c.mu.Unlock()
		return ErrAlreadyLoggedIn
	}
	sess := newSession(key, now)
	c.session = sess
	c.state = StateLoggedIn
	c.watchdog = c.startWatchdog(sess)
	if c.visible {
		c.generator = c.startGenerator(sess)
	}
	c.mu.Unlock()

	c.log.Info(ctx, "session started", "expires_in", MaxDuration)
	return nil
}

func (c *Controller) Logout(ctx context.Context) {
	c.endSession(ctx, ReasonLogout, nil, nil)
}

// ResetVault ends any session and deletes all stored vault state. The
// controller is left in SettingPin.
func (c *Controller) ResetVault(ctx context.Context) error {
	c.endSession(ctx, ReasonReset, nil, nil)

	if err := c.auth.Reset(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	c.state = StateSettingPin
	c.mu.Unlock()
	return nil
}

// Close ends any session and stops everything the controller started.
func (c *Controller) Close(ctx context.Context) {
	c.endSession(ctx, ReasonClosed, nil, nil)
	c.rootCancel()
}

// endSession tears down the current session. self is the watchdog calling
// in from its own goroutine, nil otherwise; a stale watchdog is ignored.
// Workers are stopped after the lock is released.
func (c *Controller) endSession(ctx context.Context, reason Reason, cause error, self *worker) bool {
	c.mu.Lock()
	if c.session == nil || (self != nil && self != c.watchdog) {
		c.mu.Unlock()
		return false
	}
	sess, wd, gen := c.session, c.watchdog, c.generator
	c.session, c.watchdog, c.generator = nil, nil, nil
	c.state = StateLoggedOut
	c.mu.Unlock()

	c.stopWorker(ctx, "generator", gen)
	switch {
	case wd == nil:
	case wd == self:
		wd.cancel()
	default:
		c.stopWorker(ctx, "watchdog", wd)
	}
	sess.clear()

	if cause != nil {
		c.log.Info(ctx, "session ended", "reason", reason, "error", cause)
	} else {
		c.log.Info(ctx, "session ended", "reason", reason)
	}
	c.listener.LoggedOut(reason, cause)
	return true
}

// SetVisible suspends code generation while the front end is hidden and
// resumes it, recomputing at once, when it is shown again. Session expiry
// keeps being enforced either way.
func (c *Controller) SetVisible(visible bool) {
	c.mu.Lock()
	if c.visible == visible {
		c.mu.Unlock()
		return
	}
	c.visible = visible

	if c.session == nil {
		c.mu.Unlock()
		return
	}
	if visible {
		c.generator = c.startGenerator(c.session)
		c.mu.Unlock()
		return
	}
	gen := c.generator
	c.generator = nil
	c.mu.Unlock()

	c.stopWorker(context.Background(), "generator", gen)
}

// stopWorker stops w and logs an unexpected result. A watchdog that already
// expired its session reports ErrSessionExpired, which is expected.
func (c *Controller) stopWorker(ctx context.Context, name string, w *worker) {
	err := w.stop()
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, common.ErrSessionExpired) {
		return
	}
	c.log.Warn(ctx, "session worker stopped with error", "worker", name, "error", err)
}

func (c *Controller) Visible() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.visible
}

// SessionRemaining is the time left before forced logout, zero when logged out.
func (c *Controller) SessionRemaining() time.Duration {
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()
	if sess == nil {
		return 0
	}
	return sess.Remaining(c.clock.Now())
}

func (c *Controller) key() (*cryptox.Key, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil || c.session.key == nil {
		return nil, common.ErrNotLoggedIn
	}
	return c.session.key, nil
}

// keyFor returns the key only while sess is still the current session.
func (c *Controller) keyFor(sess *Session) (*cryptox.Key, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != sess || sess.key == nil {
		return nil, false
	}
	return sess.key, true
}

func (c *Controller) isCurrent(sess *Session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session == sess
}

func (c *Controller) AddAccount(ctx context.Context, name, secret string, allowWeak bool) (models.Account, error) {
	key, err := c.key()
	if err != nil {
		return models.Account{}, err
	}
	acc, err := c.vault.Add(ctx, key, name, secret, allowWeak)
	if err != nil {
		return models.Account{}, err
	}
	_ = c.Refresh(ctx)
	return acc, nil
}

func (c *Controller) DeleteAccount(ctx context.Context, id models.AccountID) error {
	if _, err := c.key(); err != nil {
		return err
	}
	if err := c.vault.Delete(ctx, id); err != nil {
		return err
	}
	_ = c.Refresh(ctx)
	return nil
}

func (c *Controller) ListAccounts(ctx context.Context) ([]models.Account, error) {
	if _, err := c.key(); err != nil {
		return nil, err
	}
	return c.vault.List(ctx)
}

// Codes computes every account's current code without touching the stored
// window timestamps.
func (c *Controller) Codes(ctx context.Context) ([]models.CodeView, error) {
	key, err := c.key()
	if err != nil {
		return nil, err
	}
	return c.vault.Codes(ctx, key, c.codeClock.Now())
}

func (c *Controller) GetCode(ctx context.Context, id models.AccountID) (string, error) {
	key, err := c.key()
	if err != nil {
		return "", err
	}
	return c.vault.Code(ctx, key, id, c.codeClock.Now())
}

// Secret returns the decrypted Base32 secret of one account.
func (c *Controller) Secret(ctx context.Context, id models.AccountID) (string, error) {
	key, err := c.key()
	if err != nil {
		return "", err
	}
	return c.vault.Secret(ctx, key, id)
}

func (c *Controller) GetRemainingSeconds(ctx context.Context, id models.AccountID) (int, error) {
	return c.vault.RemainingSeconds(ctx, id, c.codeClock.Now())
}

// Refresh recomputes all codes now and publishes them, as the generator
// does at a window boundary.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()
	if sess == nil {
		return common.ErrNotLoggedIn
	}
	return c.refresh(ctx, sess)
}

func (c *Controller) refresh(ctx context.Context, sess *Session) error {
	key, ok := c.keyFor(sess)
	if !ok {
		return common.ErrNotLoggedIn
	}

	now := c.codeClock.Now()
	list, err := c.vault.List(ctx)
	if err != nil {
		c.log.Warn(ctx, "cannot list accounts", "error", err)
		return err
	}
	ids := make([]models.AccountID, 0, len(list))
	for _, a := range list {
		ids = append(ids, a.ID)
	}
	if err := c.vault.MarkWindow(ctx, ids, otp.WindowStart(now)); err != nil {
		c.log.Warn(ctx, "cannot record generation window", "error", err)
	}

	views, err := c.vault.Codes(ctx, key, now)
	if err != nil {
		c.log.Warn(ctx, "cannot compute codes", "error", err)
		return err
	}
	if !c.isCurrent(sess) {
		return common.ErrNotLoggedIn
	}

	c.log.Debug(ctx, "codes refreshed", "accounts", len(views))
	c.listener.CodesRefreshed(views)
	return nil
}

func (c *Controller) countdown(ctx context.Context, sess *Session) {
	if !c.isCurrent(sess) {
		return
	}

	list, err := c.vault.List(ctx)
	if err != nil {
		return
	}
	now := c.codeClock.Now()
	remaining := make(map[models.AccountID]int, len(list))
	for _, a := range list {
		r, err := c.vault.RemainingSeconds(ctx, a.ID, now)
		if err != nil {
			continue
		}
		remaining[a.ID] = r
	}

	c.listener.Countdown(sess.Remaining(c.clock.Now()), remaining)
}

// startWatchdog must be called with c.mu held.
func (c *Controller) startWatchdog(sess *Session) *worker {
	w, ctx := newWorker(c.root)
	w.run(ctx, func(ctx context.Context) error {
		return c.watch(ctx, sess, w)
	})
	return w
}

func (c *Controller) watch(ctx context.Context, sess *Session, self *worker) error {
	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if !sess.Expired(c.clock.Now()) {
				continue
			}
			c.endSession(ctx, ReasonExpired, common.ErrSessionExpired, self)
			return common.ErrSessionExpired
		}
	}
}

// startGenerator must be called with c.mu held.
func (c *Controller) startGenerator(sess *Session) *worker {
	w, ctx := newWorker(c.root)
	w.run(ctx, func(ctx context.Context) error {
		return runGenerator(ctx,
			func(ctx context.Context) error { return c.refreshLoop(ctx, sess) },
			func(ctx context.Context) error { return c.timerLoop(ctx, sess) },
		)
	})
	return w
}

// refreshLoop recomputes at once and then at every window boundary of the
// code clock.
func (c *Controller) refreshLoop(ctx context.Context, sess *Session) error {
	for {
		if err := c.refresh(ctx, sess); err != nil && errors.Is(err, common.ErrNotLoggedIn) {
			return nil
		}
		if err := sleep(ctx, otp.UntilNextWindow(c.codeClock.Now())); err != nil {
			return nil
		}
	}
}

func (c *Controller) timerLoop(ctx context.Context, sess *Session) error {
	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.countdown(ctx, sess)
		}
	}
}
