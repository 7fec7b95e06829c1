package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/otpkeeper/internal/common"
	"github.com/dmitrijs2005/otpkeeper/internal/logging"
	"github.com/dmitrijs2005/otpkeeper/internal/models"
	"github.com/dmitrijs2005/otpkeeper/internal/repositories/accounts"
	"github.com/dmitrijs2005/otpkeeper/internal/repositories/kv"
	"github.com/dmitrijs2005/otpkeeper/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testPoll = 5 * time.Millisecond
	wait     = 2 * time.Second
)

// windowAligned is the first instant of a 30-second window.
var windowAligned = time.Unix(1_700_000_010, 0).UTC()

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{t: t} }

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Set(t time.Time) {
	f.mu.Lock()
	f.t = t
	f.mu.Unlock()
}

type logoutEvent struct {
	reason Reason
	err    error
}

type recorder struct {
	mu         sync.Mutex
	refreshes  [][]models.CodeView
	countdowns []time.Duration
	logouts    []logoutEvent
}

func (r *recorder) CodesRefreshed(views []models.CodeView) {
	r.mu.Lock()
	r.refreshes = append(r.refreshes, views)
	r.mu.Unlock()
}

func (r *recorder) Countdown(left time.Duration, _ map[models.AccountID]int) {
	r.mu.Lock()
	r.countdowns = append(r.countdowns, left)
	r.mu.Unlock()
}

func (r *recorder) LoggedOut(reason Reason, err error) {
	r.mu.Lock()
	r.logouts = append(r.logouts, logoutEvent{reason, err})
	r.mu.Unlock()
}

func (r *recorder) refreshCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.refreshes)
}

func (r *recorder) lastRefresh() []models.CodeView {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.refreshes) == 0 {
		return nil
	}
	return r.refreshes[len(r.refreshes)-1]
}

func (r *recorder) countdownCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.countdowns)
}

func (r *recorder) logoutEvents() []logoutEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]logoutEvent(nil), r.logouts...)
}

type fixture struct {
	ctrl      *Controller
	store     *kv.MemoryStore
	clock     *fakeClock
	codeClock *fakeClock
	rec       *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := kv.NewMemoryStore()
	log := logging.Nop()
	auth := services.NewAuthService(store, log)
	vault := services.NewVaultService(accounts.NewKVRepository(store, log), store, log)

	f := &fixture{
		store:     store,
		clock:     newFakeClock(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)),
		codeClock: newFakeClock(windowAligned),
		rec:       &recorder{},
	}
	f.ctrl = NewController(auth, vault, log,
		WithListener(f.rec),
		WithClock(f.clock),
		WithCodeClock(f.codeClock),
		WithPollInterval(testPoll),
	)
	t.Cleanup(func() { f.ctrl.Close(context.Background()) })
	return f
}

// loggedIn returns a fixture with PIN 1234 set and an active session.
func loggedIn(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.ctrl.Init(ctx)
	require.NoError(t, err)
	require.NoError(t, f.ctrl.SetPin(ctx, "1234"))
	require.NoError(t, f.ctrl.Login(ctx, "1234"))
	return f
}

func TestController_InitAndSetPin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	st, err := f.ctrl.Init(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateSettingPin, st)

	require.ErrorIs(t, f.ctrl.Login(ctx, "1234"), common.ErrPINNotSet)
	require.ErrorIs(t, f.ctrl.SetPin(ctx, "12"), common.ErrInvalidPIN)
	assert.Equal(t, StateSettingPin, f.ctrl.State())

	require.NoError(t, f.ctrl.SetPin(ctx, "1234"))
	assert.Equal(t, StateLoggedOut, f.ctrl.State())
	require.ErrorIs(t, f.ctrl.SetPin(ctx, "5678"), common.ErrPINAlreadySet)

	log := logging.Nop()
	other := NewController(services.NewAuthService(f.store, log),
		services.NewVaultService(accounts.NewKVRepository(f.store, log), f.store, log), log)
	t.Cleanup(func() { other.Close(ctx) })
	st, err = other.Init(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateLoggedOut, st)
}

func TestController_LoginLogout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.ctrl.Init(ctx)
	require.NoError(t, err)
	require.NoError(t, f.ctrl.SetPin(ctx, "1234"))

	require.ErrorIs(t, f.ctrl.Login(ctx, "0000"), common.ErrUnauthorized)
	assert.Equal(t, StateLoggedOut, f.ctrl.State())
	_, err = f.ctrl.AddAccount(ctx, "Work", "JBSWY3DPEHPK3PXP", false)
	require.ErrorIs(t, err, common.ErrNotLoggedIn)

	require.NoError(t, f.ctrl.Login(ctx, "1234"))
	assert.Equal(t, StateLoggedIn, f.ctrl.State())
	require.ErrorIs(t, f.ctrl.Login(ctx, "1234"), ErrAlreadyLoggedIn)
	assert.Equal(t, MaxDuration, f.ctrl.SessionRemaining())

	loginTime, err := f.store.Get(ctx, models.KeyLoginTime)
	require.NoError(t, err)
	assert.Equal(t, "10:00:00", string(loginTime))

	acc, err := f.ctrl.AddAccount(ctx, "Work", "JBSWY3DPEHPK3PXP", false)
	require.NoError(t, err)

	list, err := f.ctrl.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	code, err := f.ctrl.GetCode(ctx, acc.ID)
	require.NoError(t, err)
	assert.Len(t, code, 6)

	secret, err := f.ctrl.Secret(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", secret)

	f.ctrl.Logout(ctx)
	assert.Equal(t, StateLoggedOut, f.ctrl.State())
	assert.Equal(t, time.Duration(0), f.ctrl.SessionRemaining())

	_, err = f.ctrl.ListAccounts(ctx)
	require.ErrorIs(t, err, common.ErrNotLoggedIn)
	_, err = f.ctrl.Codes(ctx)
	require.ErrorIs(t, err, common.ErrNotLoggedIn)

	events := f.rec.logoutEvents()
	require.Len(t, events, 1)
	assert.Equal(t, ReasonLogout, events[0].reason)
	assert.NoError(t, events[0].err)

	f.ctrl.Logout(ctx)
	assert.Len(t, f.rec.logoutEvents(), 1, "second logout is a no-op")

	require.NoError(t, f.ctrl.Login(ctx, "1234"))
	got, err := f.ctrl.Secret(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", got)
}

func TestController_ExpiresAtExactlyMaxDuration(t *testing.T) {
	f := loggedIn(t)
	login := f.clock.Now()

	f.clock.Set(login.Add(119 * time.Second))
	time.Sleep(20 * testPoll)
	assert.Equal(t, StateLoggedIn, f.ctrl.State(), "must not expire before the cap")
	assert.Equal(t, time.Second, f.ctrl.SessionRemaining())

	f.clock.Set(login.Add(MaxDuration))
	require.Eventually(t, func() bool { return f.ctrl.State() == StateLoggedOut }, wait, testPoll)

	require.Eventually(t, func() bool { return len(f.rec.logoutEvents()) == 1 }, wait, testPoll)
	ev := f.rec.logoutEvents()[0]
	assert.Equal(t, ReasonExpired, ev.reason)
	assert.ErrorIs(t, ev.err, common.ErrSessionExpired)

	_, err := f.ctrl.Codes(context.Background())
	require.ErrorIs(t, err, common.ErrNotLoggedIn)
}

func TestController_ExpiresWhileHidden(t *testing.T) {
	f := loggedIn(t)
	f.ctrl.SetVisible(false)

	f.clock.Set(f.clock.Now().Add(3 * time.Minute))
	require.Eventually(t, func() bool { return f.ctrl.State() == StateLoggedOut }, wait, testPoll)
}

func TestController_RefreshOnLoginMarksWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.ctrl.Init(ctx)
	require.NoError(t, err)
	require.NoError(t, f.ctrl.SetPin(ctx, "1234"))
	require.NoError(t, f.ctrl.Login(ctx, "1234"))
	acc, err := f.ctrl.AddAccount(ctx, "RFC", "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ", false)
	require.NoError(t, err)
	f.ctrl.Logout(ctx)

	f.codeClock.Set(windowAligned.Add(10 * time.Second))
	before := f.rec.refreshCount()
	require.NoError(t, f.ctrl.Login(ctx, "1234"))

	require.Eventually(t, func() bool { return f.rec.refreshCount() > before }, wait, testPoll)
	views := f.rec.lastRefresh()
	require.Len(t, views, 1)
	assert.Equal(t, models.CodeOK, views[0].Status)

	raw, err := f.store.Get(ctx, models.LastGenerationKey(acc.ID))
	require.NoError(t, err)
	assert.NotEmpty(t, raw)

	r, err := f.ctrl.GetRemainingSeconds(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, r)

	assert.Equal(t, 20, views[0].Remaining)
}

func TestController_RefreshRepeatsAtBoundary(t *testing.T) {
	f := loggedIn(t)
	// 30 ms before a boundary: each wait ends on it, and the static clock
	// keeps the next boundary 30 ms away.
	f.codeClock.Set(windowAligned.Add(-30 * time.Millisecond))
	f.ctrl.SetVisible(false)
	f.ctrl.SetVisible(true)

	start := f.rec.refreshCount()
	require.Eventually(t, func() bool { return f.rec.refreshCount() >= start+3 }, wait, testPoll)
}

func TestController_VisibilitySuspendsGenerator(t *testing.T) {
	f := loggedIn(t)

	require.Eventually(t, func() bool { return f.rec.refreshCount() >= 1 }, wait, testPoll)
	require.Eventually(t, func() bool { return f.rec.countdownCount() >= 2 }, wait, testPoll)

	f.ctrl.SetVisible(false)
	assert.False(t, f.ctrl.Visible())
	refreshes, ticks := f.rec.refreshCount(), f.rec.countdownCount()

	time.Sleep(20 * testPoll)
	assert.Equal(t, refreshes, f.rec.refreshCount())
	assert.Equal(t, ticks, f.rec.countdownCount())
	assert.Equal(t, StateLoggedIn, f.ctrl.State())

	f.ctrl.SetVisible(true)
	require.Eventually(t, func() bool { return f.rec.refreshCount() > refreshes }, wait, testPoll)
	require.Eventually(t, func() bool { return f.rec.countdownCount() > ticks }, wait, testPoll)
}

func TestController_NoEventsAfterLogout(t *testing.T) {
	f := loggedIn(t)
	require.Eventually(t, func() bool { return f.rec.countdownCount() >= 1 }, wait, testPoll)

	f.ctrl.Logout(context.Background())
	refreshes, ticks := f.rec.refreshCount(), f.rec.countdownCount()

	time.Sleep(20 * testPoll)
	assert.Equal(t, refreshes, f.rec.refreshCount())
	assert.Equal(t, ticks, f.rec.countdownCount())
}

func TestController_MissingEncryptionSaltForcesLogout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.ctrl.Init(ctx)
	require.NoError(t, err)
	require.NoError(t, f.ctrl.SetPin(ctx, "1234"))
	require.NoError(t, f.store.Set(ctx, models.KeyAccounts, []byte(`[{"id":"a","name":"Kept","encryptedSecret":"00","iv":"00"}]`)))
	require.NoError(t, f.store.Delete(ctx, models.KeyEncryptionSalt))

	err = f.ctrl.Login(ctx, "1234")
	require.ErrorIs(t, err, common.ErrEncryptionSaltMissing)
	assert.Equal(t, StateLoggedOut, f.ctrl.State())

	events := f.rec.logoutEvents()
	require.Len(t, events, 1)
	assert.Equal(t, ReasonError, events[0].reason)
	assert.ErrorIs(t, events[0].err, common.ErrEncryptionSaltMissing)

	raw, err := f.store.Get(ctx, models.KeyAccounts)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Kept", "vault stays intact on disk")
}

func TestController_ResetVault(t *testing.T) {
	f := loggedIn(t)
	ctx := context.Background()
	_, err := f.ctrl.AddAccount(ctx, "Work", "JBSWY3DPEHPK3PXP", false)
	require.NoError(t, err)

	require.NoError(t, f.ctrl.ResetVault(ctx))
	assert.Equal(t, StateSettingPin, f.ctrl.State())

	m, err := f.store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, m)

	events := f.rec.logoutEvents()
	require.Len(t, events, 1)
	assert.Equal(t, ReasonReset, events[0].reason)

	require.NoError(t, f.ctrl.SetPin(ctx, "4321"))
	require.NoError(t, f.ctrl.Login(ctx, "4321"))
	list, err := f.ctrl.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestController_DeleteAccount(t *testing.T) {
	f := loggedIn(t)
	ctx := context.Background()
	a, err := f.ctrl.AddAccount(ctx, "A", "JBSWY3DPEHPK3PXP", false)
	require.NoError(t, err)
	b, err := f.ctrl.AddAccount(ctx, "B", "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ", false)
	require.NoError(t, err)

	require.NoError(t, f.ctrl.DeleteAccount(ctx, a.ID))
	require.ErrorIs(t, f.ctrl.DeleteAccount(ctx, a.ID), common.ErrNotFound)

	list, err := f.ctrl.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, b.ID, list[0].ID)

	f.ctrl.Logout(ctx)
	require.ErrorIs(t, f.ctrl.DeleteAccount(ctx, b.ID), common.ErrNotLoggedIn)
}

func TestController_CloseEndsSession(t *testing.T) {
	f := loggedIn(t)
	f.ctrl.Close(context.Background())

	assert.Equal(t, StateLoggedOut, f.ctrl.State())
	events := f.rec.logoutEvents()
	require.Len(t, events, 1)
	assert.Equal(t, ReasonClosed, events[0].reason)
}
