package usecase

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gardawira/twofa/internal/pkg/config"
	"github.com/gardawira/twofa/internal/pkg/goerror"
	"github.com/gardawira/twofa/internal/pkg/goroutine"
	"github.com/gardawira/twofa/internal/pkg/hash"
	"github.com/gardawira/twofa/internal/pkg/idempotency"
	"github.com/gardawira/twofa/internal/pkg/instrument"
	"github.com/gardawira/twofa/internal/pkg/jwt"
	"github.com/gardawira/twofa/internal/pkg/mfa"
	"github.com/gardawira/twofa/internal/pkg/totp"
	"github.com/gardawira/twofa/internal/pkg/validator"
	"github.com/gardawira/twofa/internal/twofactor/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-memory record store with the same conditional-update
// semantics as the SQL implementation.
type fakeStore struct {
	mu       sync.Mutex
	recs     map[int64]*entity.TwoFactorRecord
	attempts []entity.Attempt
	down     bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{recs: make(map[int64]*entity.TwoFactorRecord)}
}

var errStoreDown = errors.New("connection refused")

func (f *fakeStore) unavailable() error {
	if f.down {
		return errors.Join(goerror.ErrUnavailable, errStoreDown)
	}
	return nil
}

func (f *fakeStore) GetRecord(_ context.Context, userID int64) (*entity.TwoFactorRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.unavailable(); err != nil {
		return nil, err
	}

	rec, ok := f.recs[userID]
	if !ok {
		return nil, goerror.ErrNotFound
	}

	cp := *rec
	cp.BackupCodeHashes = append([]string(nil), rec.BackupCodeHashes...)
	return &cp, nil
}

func (f *fakeStore) UpsertPendingRecord(_ context.Context, rec entity.TwoFactorRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.unavailable(); err != nil {
		return err
	}

	if existing, ok := f.recs[rec.UserID]; ok && existing.Enabled {
		return goerror.ErrConflict
	}

	f.recs[rec.UserID] = &rec
	return nil
}

func (f *fakeStore) EnableRecord(_ context.Context, userID int64, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.unavailable(); err != nil {
		return false, err
	}

	rec, ok := f.recs[userID]
	if !ok || rec.Enabled {
		return false, nil
	}

	rec.Enabled = true
	rec.Verified = true
	rec.EnabledAt = &at
	rec.LastUsedAt = &at
	rec.UpdatedAt = at
	return true, nil
}

func (f *fakeStore) ConsumeBackupCode(_ context.Context, userID int64, codeHash string, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.unavailable(); err != nil {
		return false, err
	}

	rec, ok := f.recs[userID]
	if !ok {
		return false, nil
	}

	for i, h := range rec.BackupCodeHashes {
		if h == codeHash {
			rec.BackupCodeHashes = append(rec.BackupCodeHashes[:i], rec.BackupCodeHashes[i+1:]...)
			rec.LastUsedAt = &at
			rec.UpdatedAt = at
			return true, nil
		}
	}

	return false, nil
}

func (f *fakeStore) TouchLastUsed(_ context.Context, userID int64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.unavailable(); err != nil {
		return err
	}

	if rec, ok := f.recs[userID]; ok {
		rec.LastUsedAt = &at
		rec.UpdatedAt = at
	}
	return nil
}

func (f *fakeStore) DeleteRecord(_ context.Context, userID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.unavailable(); err != nil {
		return false, err
	}

	_, ok := f.recs[userID]
	delete(f.recs, userID)
	return ok, nil
}

func (f *fakeStore) AppendAttempt(_ context.Context, att entity.Attempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.unavailable(); err != nil {
		return err
	}

	f.attempts = append(f.attempts, att)
	return nil
}

func (f *fakeStore) ListAttempts(_ context.Context, userID int64, limit int32) ([]entity.Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.unavailable(); err != nil {
		return nil, err
	}

	out := make([]entity.Attempt, 0)
	for _, att := range f.attempts {
		if att.UserID == userID {
			out = append(out, att)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if int32(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) attemptsFor(userID int64) []entity.Attempt {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]entity.Attempt, 0)
	for _, att := range f.attempts {
		if att.UserID == userID {
			out = append(out, att)
		}
	}
	return out
}

type fakeMessaging struct {
	mu       sync.Mutex
	enabled  []TwoFactorEnabledEvent
	disabled []TwoFactorDisabledEvent
}

func (f *fakeMessaging) PublishTwoFactorEnabled(_ context.Context, msg TwoFactorEnabledEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enabled = append(f.enabled, msg)
	return nil
}

func (f *fakeMessaging) PublishTwoFactorDisabled(_ context.Context, msg TwoFactorDisabledEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disabled = append(f.disabled, msg)
	return nil
}

// fakeIdempotency runs the function directly; throttling is covered by the
// idempotency package itself.
type fakeIdempotency struct{}

func (fakeIdempotency) Acquire(context.Context, string, time.Duration) (idempotency.State, error) {
	return idempotency.StateNone, nil
}

func (fakeIdempotency) MarkCompleted(context.Context, string, time.Duration) error { return nil }

func (fakeIdempotency) MarkFailed(context.Context, string, time.Duration) error { return nil }

func (fakeIdempotency) Exec(ctx context.Context, _ string, fn func(context.Context) error, _ ...idempotency.Option) error {
	return fn(ctx)
}

type fakeConfig struct{ config.Config }

func (fakeConfig) GetInt(string) int              { return 10 }
func (fakeConfig) GetSecond(string) time.Duration { return time.Minute }

type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }

type seqID struct{ n atomic.Int64 }

func (s *seqID) Generate() int64 { return s.n.Add(1) }

type fixture struct {
	uc    *Usecase
	store *fakeStore
	msg   *fakeMessaging
	clock *fixedClock
	totp  *totp.Engine
	wait  func()
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	v10, err := validator.NewV10Validator()
	require.NoError(t, err)

	store := newFakeStore()
	msg := &fakeMessaging{}
	clk := &fixedClock{now: time.Unix(1700000000, 0)}
	engine := totp.NewEngine("Acme", 30, 1, 6)
	routine := goroutine.NewManager(4)

	uc := New(Dependency{
		RepoDB:        store,
		RepoMessaging: msg,
		Idempotency:   fakeIdempotency{},
		Validator:     v10,
		Config:        fakeConfig{},
		SHA256:        hash.NewSHA256(),
		MFAEncryptor:  mfa.NewAESGCMEncryptor(mfa.StaticKeyProvider{KeyBytes: bytes.Repeat([]byte{0x24}, 32)}),
		MFABackupCode: mfa.NewBackupCode(),
		UID:           &seqID{},
		Totp:          engine,
		Clock:         clk,
		Instrument:    instrument.NewNoop(),
		Goroutine:     routine,
	})

	return &fixture{
		uc:    uc,
		store: store,
		msg:   msg,
		clock: clk,
		totp:  engine,
		wait:  func() { _ = routine.Wait() },
	}
}

func authCtx(userID int64) context.Context {
	return jwt.SetAuth(context.Background(), jwt.Claims{
		UserID:    userID,
		UserEmail: "u1@example.com",
	})
}

func TestSetup(t *testing.T) {
	f := newFixture(t)
	ctx := authCtx(1)

	out, err := f.uc.Setup(ctx)
	require.NoError(t, err)

	assert.Len(t, out.Secret, 32)
	assert.Contains(t, out.URI, "otpauth://totp/Acme:u1@example.com?secret="+out.Secret)
	assert.Len(t, out.BackupCodes, 10)

	rec, err := f.store.GetRecord(ctx, 1)
	require.NoError(t, err)
	assert.False(t, rec.Enabled)
	assert.False(t, rec.Verified)
	assert.Equal(t, entity.MethodTOTP, rec.Method)
	assert.Len(t, rec.BackupCodeHashes, 10)

	// Only ciphertext and digests are persisted.
	assert.NotContains(t, string(rec.SecretCiphertext), out.Secret)
	for _, code := range out.BackupCodes {
		assert.NotContains(t, rec.BackupCodeHashes, code)
	}
}

func TestSetup_ReplacesPending(t *testing.T) {
	f := newFixture(t)
	ctx := authCtx(1)

	first, err := f.uc.Setup(ctx)
	require.NoError(t, err)

	second, err := f.uc.Setup(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first.Secret, second.Secret)
}

func TestSetup_AlreadyEnabled(t *testing.T) {
	f := newFixture(t)
	ctx := authCtx(1)

	_, err := f.uc.Setup(ctx)
	require.NoError(t, err)

	enableUser(t, f, 1)

	_, err = f.uc.Setup(ctx)
	assert.ErrorIs(t, err, entity.ErrAlreadyEnabled)
}

func TestSetup_Unauthenticated(t *testing.T) {
	f := newFixture(t)

	_, err := f.uc.Setup(context.Background())

	var ge *goerror.Error
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, goerror.CodeUnauthorized, ge.Code())
}

func TestVerify_NotSetUp(t *testing.T) {
	f := newFixture(t)

	_, err := f.uc.Verify(authCtx(1), VerifyInput{Code: "123456"})
	assert.ErrorIs(t, err, entity.ErrNotSetUp)
	assert.Empty(t, f.store.attemptsFor(1))
}

func TestVerify_PendingCannotGateLogin(t *testing.T) {
	f := newFixture(t)
	ctx := authCtx(1)

	out, err := f.uc.Setup(ctx)
	require.NoError(t, err)

	code, err := f.totp.DeriveCode(out.Secret, f.clock.Now())
	require.NoError(t, err)

	// Correct code, but the record is pending and enabling was not asked.
	_, err = f.uc.Verify(ctx, VerifyInput{Code: code})
	assert.ErrorIs(t, err, entity.ErrNotSetUp)

	attempts := f.store.attemptsFor(1)
	require.Len(t, attempts, 1)
	assert.False(t, attempts[0].Success)
	assert.Equal(t, entity.MethodUnknown, attempts[0].Method)
}

func TestVerify_Scenario(t *testing.T) {
	f := newFixture(t)
	ctx := authCtx(1)

	setup, err := f.uc.Setup(ctx)
	require.NoError(t, err)

	// Wrong 6-digit code leaves the record untouched.
	valid, err := f.totp.DeriveCode(setup.Secret, f.clock.Now())
	require.NoError(t, err)
	wrong := "000000"
	if wrong == valid {
		wrong = "000001"
	}

	_, err = f.uc.Verify(ctx, VerifyInput{Code: wrong, Enable: true})
	assert.ErrorIs(t, err, entity.ErrInvalidCode)

	rec, err := f.store.GetRecord(ctx, 1)
	require.NoError(t, err)
	assert.False(t, rec.Enabled)
	assert.Len(t, rec.BackupCodeHashes, 10)

	// Correct code with enable promotes the record exactly once.
	out, err := f.uc.Verify(ctx, VerifyInput{Code: valid, Enable: true, IPAddress: "203.0.113.9", UserAgent: "cli/1.0"})
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.True(t, out.Enabled)
	assert.False(t, out.UsedBackupCode)

	rec, err = f.store.GetRecord(ctx, 1)
	require.NoError(t, err)
	assert.True(t, rec.Enabled)
	assert.True(t, rec.Verified)
	require.NotNil(t, rec.EnabledAt)

	// A later successful verify reports verified, not enabled.
	out, err = f.uc.Verify(ctx, VerifyInput{Code: valid, Enable: true})
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.False(t, out.Enabled)

	// A backup code works exactly once and shrinks the stored set.
	c0 := setup.BackupCodes[0]
	out, err = f.uc.Verify(ctx, VerifyInput{Code: c0})
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.True(t, out.UsedBackupCode)

	rec, err = f.store.GetRecord(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, rec.BackupCodeHashes, 9)

	_, err = f.uc.Verify(ctx, VerifyInput{Code: c0})
	assert.ErrorIs(t, err, entity.ErrInvalidCode)

	// Attempt log: wrong TOTP, enable, re-verify, backup, backup again.
	attempts := f.store.attemptsFor(1)
	require.Len(t, attempts, 5)
	assert.False(t, attempts[0].Success)
	assert.Equal(t, entity.MethodTOTP, attempts[0].Method)
	assert.Equal(t, "203.0.113.9", attempts[1].IPAddress)
	assert.Equal(t, "cli/1.0", attempts[1].UserAgent)
	assert.True(t, attempts[3].Success)
	assert.Equal(t, entity.MethodBackupCode, attempts[3].Method)
	assert.False(t, attempts[4].Success)

	f.wait()
	require.Len(t, f.msg.enabled, 1)
	assert.Equal(t, int64(1), f.msg.enabled[0].UserID)
}

func TestVerify_BackupCodeIsCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	ctx := authCtx(1)

	setup, err := f.uc.Setup(ctx)
	require.NoError(t, err)
	enableUser(t, f, 1)

	out, err := f.uc.Verify(ctx, VerifyInput{Code: strings.ToLower(setup.BackupCodes[0])})
	require.NoError(t, err)
	assert.True(t, out.UsedBackupCode)
}

func TestVerify_WindowSkew(t *testing.T) {
	f := newFixture(t)
	ctx := authCtx(1)

	setup, err := f.uc.Setup(ctx)
	require.NoError(t, err)
	enableUser(t, f, 1)

	// Code from one step ago is still accepted.
	stale, err := f.totp.DeriveCode(setup.Secret, f.clock.now.Add(-30*time.Second))
	require.NoError(t, err)
	_, err = f.uc.Verify(ctx, VerifyInput{Code: stale})
	require.NoError(t, err)

	// Three steps ago is not.
	old, err := f.totp.DeriveCode(setup.Secret, f.clock.now.Add(-90*time.Second))
	require.NoError(t, err)
	if old != stale {
		cur, derr := f.totp.DeriveCode(setup.Secret, f.clock.now)
		require.NoError(t, derr)
		if old != cur {
			_, err = f.uc.Verify(ctx, VerifyInput{Code: old})
			assert.ErrorIs(t, err, entity.ErrInvalidCode)
		}
	}
}

func TestVerify_MalformedShape(t *testing.T) {
	f := newFixture(t)
	ctx := authCtx(1)

	_, err := f.uc.Setup(ctx)
	require.NoError(t, err)
	enableUser(t, f, 1)

	_, err = f.uc.Verify(ctx, VerifyInput{Code: "abc-123"})
	assert.ErrorIs(t, err, entity.ErrInvalidCode)

	attempts := f.store.attemptsFor(1)
	require.Len(t, attempts, 1)
	assert.Equal(t, entity.MethodUnknown, attempts[0].Method)
}

func TestVerify_OutOfRangeLengthIsAudited(t *testing.T) {
	f := newFixture(t)
	ctx := authCtx(1)

	_, err := f.uc.Setup(ctx)
	require.NoError(t, err)
	enableUser(t, f, 1)

	// Too short and too long codes are still real attempts. They must land
	// in the attempt log, not bounce off input validation.
	for _, code := range []string{"12345", "123456789"} {
		_, err = f.uc.Verify(ctx, VerifyInput{Code: code})
		assert.ErrorIs(t, err, entity.ErrInvalidCode)
	}

	attempts := f.store.attemptsFor(1)
	require.Len(t, attempts, 2)
	for _, att := range attempts {
		assert.False(t, att.Success)
		assert.Equal(t, entity.MethodUnknown, att.Method)
	}
}

func TestVerify_ConcurrentBackupCodeUse(t *testing.T) {
	f := newFixture(t)
	ctx := authCtx(1)

	setup, err := f.uc.Setup(ctx)
	require.NoError(t, err)
	enableUser(t, f, 1)

	code := setup.BackupCodes[0]

	var wg sync.WaitGroup
	outs := make([]*VerifyOutput, 2)
	errs := make([]error, 2)
	for i := range outs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outs[i], errs[i] = f.uc.Verify(ctx, VerifyInput{Code: code})
		}()
	}
	wg.Wait()

	// The consume is one conditional write, so exactly one caller wins.
	wins := 0
	for i := range outs {
		if errs[i] == nil {
			require.NotNil(t, outs[i])
			assert.True(t, outs[i].UsedBackupCode)
			wins++
		} else {
			assert.ErrorIs(t, errs[i], entity.ErrInvalidCode)
		}
	}
	assert.Equal(t, 1, wins)

	rec, err := f.store.GetRecord(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, rec.BackupCodeHashes, 9)

	attempts := f.store.attemptsFor(1)
	require.Len(t, attempts, 2)
	succeeded := 0
	for _, att := range attempts {
		if att.Success {
			succeeded++
		}
	}
	assert.Equal(t, 1, succeeded)
}

func TestVerify_ConcurrentEnable(t *testing.T) {
	f := newFixture(t)
	ctx := authCtx(1)

	setup, err := f.uc.Setup(ctx)
	require.NoError(t, err)

	code, err := f.totp.DeriveCode(setup.Secret, f.clock.Now())
	require.NoError(t, err)

	var wg sync.WaitGroup
	outs := make([]*VerifyOutput, 2)
	errs := make([]error, 2)
	for i := range outs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outs[i], errs[i] = f.uc.Verify(ctx, VerifyInput{Code: code, Enable: true})
		}()
	}
	wg.Wait()

	// Both codes were valid, but only one call flips the record.
	flips := 0
	for i := range outs {
		require.NoError(t, errs[i])
		assert.True(t, outs[i].Success)
		if outs[i].Enabled {
			flips++
		}
	}
	assert.Equal(t, 1, flips)

	rec, err := f.store.GetRecord(ctx, 1)
	require.NoError(t, err)
	assert.True(t, rec.Enabled)

	f.wait()
	require.Len(t, f.msg.enabled, 1)
	assert.Equal(t, int64(1), f.msg.enabled[0].UserID)
}

func TestVerify_StoreUnavailable(t *testing.T) {
	f := newFixture(t)
	ctx := authCtx(1)

	f.store.down = true

	_, err := f.uc.Verify(ctx, VerifyInput{Code: "123456"})
	assert.ErrorIs(t, err, goerror.ErrUnavailable)
}

func TestDisable_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := authCtx(1)

	_, err := f.uc.Setup(ctx)
	require.NoError(t, err)
	enableUser(t, f, 1)

	out, err := f.uc.Disable(ctx)
	require.NoError(t, err)
	assert.True(t, out.Deleted)

	out, err = f.uc.Disable(ctx)
	require.NoError(t, err)
	assert.False(t, out.Deleted)

	f.wait()
	assert.Len(t, f.msg.disabled, 1)
}

func TestDisable_KeepsAttempts(t *testing.T) {
	f := newFixture(t)
	ctx := authCtx(1)

	_, err := f.uc.Setup(ctx)
	require.NoError(t, err)
	enableUser(t, f, 1)

	_, err = f.uc.Verify(ctx, VerifyInput{Code: "000000"})
	assert.ErrorIs(t, err, entity.ErrInvalidCode)

	_, err = f.uc.Disable(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, f.store.attemptsFor(1))
}

func TestStatus(t *testing.T) {
	f := newFixture(t)
	ctx := authCtx(1)

	st, err := f.uc.Status(ctx)
	require.NoError(t, err)
	assert.False(t, st.Configured)

	setup, err := f.uc.Setup(ctx)
	require.NoError(t, err)

	st, err = f.uc.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.Configured)
	assert.False(t, st.Enabled)
	assert.Equal(t, 10, st.BackupCodesRemaining)

	code, err := f.totp.DeriveCode(setup.Secret, f.clock.Now())
	require.NoError(t, err)
	_, err = f.uc.Verify(ctx, VerifyInput{Code: code, Enable: true})
	require.NoError(t, err)

	st, err = f.uc.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.Enabled)
	assert.True(t, st.Verified)
	assert.NotNil(t, st.EnabledAt)
}

func TestAttempts(t *testing.T) {
	f := newFixture(t)
	ctx := authCtx(1)

	_, err := f.uc.Setup(ctx)
	require.NoError(t, err)
	enableUser(t, f, 1)

	for range 3 {
		_, err = f.uc.Verify(ctx, VerifyInput{Code: "000000"})
		assert.ErrorIs(t, err, entity.ErrInvalidCode)
	}

	out, err := f.uc.Attempts(ctx, AttemptsInput{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, out.Attempts, 2)

	out, err = f.uc.Attempts(ctx, AttemptsInput{})
	require.NoError(t, err)
	assert.Len(t, out.Attempts, 3)
}

// enableUser flips the stored record directly, bypassing verification.
func enableUser(t *testing.T, f *fixture, userID int64) {
	t.Helper()

	flipped, err := f.store.EnableRecord(context.Background(), userID, f.clock.Now())
	require.NoError(t, err)
	require.True(t, flipped)
}
