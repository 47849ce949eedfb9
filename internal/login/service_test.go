package login

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"sync"
	"testing"
	"time"

	"github.com/pquerna/otp"
	gototp "github.com/pquerna/otp/totp"

	devicedomain "zt-totp/backend/internal/device/domain"
	devicekeydomain "zt-totp/backend/internal/devicekey/domain"
	"zt-totp/backend/internal/login/domain"
	rpdomain "zt-totp/backend/internal/relyingparty/domain"
	"zt-totp/backend/internal/security"
	"zt-totp/backend/internal/totp"
	totpdomain "zt-totp/backend/internal/totp/domain"
	userdomain "zt-totp/backend/internal/user/domain"
	"zt-totp/backend/internal/verification"
)

type memLoginRepo struct {
	mu sync.Mutex
	m  map[string]*domain.LoginChallenge
	// beforeMark, when set, runs before a mark transition takes the lock so a
	// test can interleave a competing resolution.
	beforeMark func()
}

func newMemLoginRepo() *memLoginRepo {
	return &memLoginRepo{m: map[string]*domain.LoginChallenge{}}
}

func (r *memLoginRepo) Insert(ctx context.Context, c *domain.LoginChallenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.m[c.ID] = &cp
	return nil
}

func (r *memLoginRepo) GetByID(ctx context.Context, id string) (*domain.LoginChallenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.m[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (r *memLoginRepo) GetPendingForUser(ctx context.Context, userID string) (*domain.LoginChallenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *domain.LoginChallenge
	for _, c := range r.m {
		if c.UserID != userID || c.Status != domain.StatusPending || time.Now().After(c.ExpiresAt) {
			continue
		}
		if latest == nil || c.CreatedAt.After(latest.CreatedAt) {
			latest = c
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (r *memLoginRepo) MarkApproved(ctx context.Context, id string) (bool, error) {
	if r.beforeMark != nil {
		r.beforeMark()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.m[id]; ok && c.Status == domain.StatusPending {
		now := time.Now().UTC()
		c.Status = domain.StatusApproved
		c.ApprovedAt = &now
		return true, nil
	}
	return false, nil
}

func (r *memLoginRepo) MarkDenied(ctx context.Context, id, reason string) (bool, error) {
	if r.beforeMark != nil {
		r.beforeMark()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.m[id]; ok && c.Status == domain.StatusPending {
		c.Status = domain.StatusDenied
		c.DeniedReason = reason
		return true, nil
	}
	return false, nil
}

func (r *memLoginRepo) PruneExpired(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.m {
		if c.Status == domain.StatusPending && time.Now().After(c.ExpiresAt) {
			c.Status = domain.StatusDenied
			c.DeniedReason = verification.ReasonExpired
		}
	}
	return nil
}

func (r *memLoginRepo) ClearPendingForUser(ctx context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, c := range r.m {
		if c.UserID == userID && c.Status == domain.StatusPending {
			c.Status = domain.StatusDenied
			c.DeniedReason = verification.ReasonUserCleared
			n++
		}
	}
	return n, nil
}

type memUserRepo struct {
	byID    map[string]*userdomain.User
	byEmail map[string]*userdomain.User
}

func (r *memUserRepo) GetByID(ctx context.Context, id string) (*userdomain.User, error) {
	return r.byID[id], nil
}

func (r *memUserRepo) GetByEmail(ctx context.Context, email string) (*userdomain.User, error) {
	return r.byEmail[email], nil
}

type memDeviceRepo struct {
	latest map[string]*devicedomain.Device
}

func (r *memDeviceRepo) GetLatestForUser(ctx context.Context, userID string) (*devicedomain.Device, error) {
	return r.latest[userID], nil
}

type memRPRepo struct {
	byExternal map[string]*rpdomain.RelyingParty
}

func (r *memRPRepo) GetByExternalID(ctx context.Context, rpID string) (*rpdomain.RelyingParty, error) {
	return r.byExternal[rpID], nil
}

type memKeyRepo struct {
	keys map[string]*devicekeydomain.DeviceKey
}

func (r *memKeyRepo) GetByDeviceAndRP(ctx context.Context, deviceID, rpID string) (*devicekeydomain.DeviceKey, error) {
	return r.keys[deviceID+"/"+rpID], nil
}

type memSecretRepo struct {
	byPair   map[string]*totpdomain.Secret
	byLatest map[string]*totpdomain.Secret
}

func (r *memSecretRepo) GetSecret(ctx context.Context, userID, rpID string) (*totpdomain.Secret, error) {
	return r.byPair[userID+"/"+rpID], nil
}

func (r *memSecretRepo) GetLatestSecretForUser(ctx context.Context, userID string) (*totpdomain.Secret, error) {
	return r.byLatest[userID], nil
}

// memRecovery consumes each code once, like the real repository does.
type memRecovery struct {
	unused map[string]bool // userID + "/" + code
}

func (r *memRecovery) VerifyRecovery(ctx context.Context, userID, code string) (bool, error) {
	k := userID + "/" + code
	if r.unused[k] {
		delete(r.unused, k)
		return true, nil
	}
	return false, nil
}

const (
	testEmail    = "user@example.com"
	testUserID   = "user-1"
	testDeviceID = "device-1"
	testRPID     = "acme"
	testRPUUID   = "rp-internal-1"
	otpPepper    = "test-otp-pepper"
)

type world struct {
	svc      *Service
	repo     *memLoginRepo
	users    *memUserRepo
	devices  *memDeviceRepo
	rps      *memRPRepo
	keys     *memKeyRepo
	secrets  *memSecretRepo
	recovery *memRecovery
	vault    *security.Vault
	priv     ed25519.PrivateKey
	secret   string
}

func newWorld(t *testing.T) *world {
	t.Helper()

	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	vault, err := security.NewVault(key)
	if err != nil {
		t.Fatalf("NewVault: %v", err)
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	totpKey, err := totp.GenerateKey("zt-totp-test", testEmail)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	encrypted, err := vault.Encrypt(totpKey.Secret())
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	user := &userdomain.User{ID: testUserID, Email: testEmail}
	secretRow := &totpdomain.Secret{ID: "secret-1", UserID: testUserID, RPID: testRPID, SecretEncrypted: encrypted}

	w := &world{
		repo:    newMemLoginRepo(),
		users:   &memUserRepo{byID: map[string]*userdomain.User{testUserID: user}, byEmail: map[string]*userdomain.User{testEmail: user}},
		devices: &memDeviceRepo{latest: map[string]*devicedomain.Device{testUserID: {ID: testDeviceID, UserID: testUserID}}},
		rps: &memRPRepo{byExternal: map[string]*rpdomain.RelyingParty{
			testRPID: {ID: testRPUUID, RPID: testRPID, DisplayName: "Acme"},
		}},
		keys: &memKeyRepo{keys: map[string]*devicekeydomain.DeviceKey{
			testDeviceID + "/" + testRPUUID: {
				ID:        "key-1",
				DeviceID:  testDeviceID,
				RPID:      testRPUUID,
				KeyType:   security.KeyTypeEd25519,
				PublicKey: base64.StdEncoding.EncodeToString(pub),
			},
		}},
		secrets: &memSecretRepo{
			byPair:   map[string]*totpdomain.Secret{testUserID + "/" + testRPID: secretRow},
			byLatest: map[string]*totpdomain.Secret{testUserID: secretRow},
		},
		recovery: &memRecovery{unused: map[string]bool{}},
		vault:    vault,
		priv:     priv,
		secret:   totpKey.Secret(),
	}
	w.svc = NewService(w.repo, w.users, w.devices, w.rps, w.keys, w.secrets,
		w.recovery, vault, otpPepper, 0)
	return w
}

func (w *world) currentOTP(t *testing.T) string {
	t.Helper()
	code, err := totp.Current(w.secret)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	return code
}

// otpAtOffset generates a code for a neighboring time step; still valid under
// the drift window but different from the current code.
func (w *world) otpAtOffset(t *testing.T, offset time.Duration) string {
	t.Helper()
	code, err := gototp.GenerateCodeCustom(w.secret, time.Now().UTC().Add(offset), gototp.ValidateOpts{
		Period:    totp.Period,
		Skew:      totp.Skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		t.Fatalf("GenerateCodeCustom: %v", err)
	}
	return code
}

func (w *world) startLogin(t *testing.T) StartResult {
	t.Helper()
	res, err := w.svc.Start(context.Background(), testEmail, w.currentOTP(t))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if res.Status != verification.StatusPending {
		t.Fatalf("Start = %+v, want pending", res)
	}
	return res
}

func (w *world) approveInput(t *testing.T, loginID, otpCode string) ApproveInput {
	t.Helper()
	c, err := w.repo.GetByID(context.Background(), loginID)
	if err != nil || c == nil {
		t.Fatalf("GetByID(%s): %v, %v", loginID, c, err)
	}
	msg := security.BuildProofMessage(c.Nonce, c.DeviceID, c.RPID, otpCode)
	return ApproveInput{
		LoginID:   loginID,
		DeviceID:  c.DeviceID,
		RPID:      c.RPID,
		OTP:       otpCode,
		Nonce:     c.Nonce,
		Signature: base64.StdEncoding.EncodeToString(ed25519.Sign(w.priv, msg)),
	}
}

func TestStart_ResolutionDenials(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*world)
		email  string
		reason string
	}{
		{"unknown user", func(w *world) {}, "nobody@example.com", verification.ReasonUserNotFound},
		{"no device", func(w *world) { delete(w.devices.latest, testUserID) }, testEmail, verification.ReasonDeviceNotFound},
		{"no secret", func(w *world) { delete(w.secrets.byLatest, testUserID) }, testEmail, verification.ReasonTotpNotRegistered},
		{"rp missing", func(w *world) { delete(w.rps.byExternal, testRPID) }, testEmail, verification.ReasonRPNotFound},
		{"not enrolled", func(w *world) { delete(w.keys.keys, testDeviceID+"/"+testRPUUID) }, testEmail, verification.ReasonDeviceNotEnrolled},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := newWorld(t)
			tc.mutate(w)
			res, err := w.svc.Start(context.Background(), tc.email, w.currentOTP(t))
			if err != nil {
				t.Fatalf("Start: %v", err)
			}
			if res.Status != verification.StatusDenied || res.Reason != tc.reason {
				t.Fatalf("Start = %+v, want denied/%s", res, tc.reason)
			}
			if len(w.repo.m) != 0 {
				t.Fatal("denied start persisted a challenge")
			}
		})
	}
}

func TestStart_WrongOTP(t *testing.T) {
	w := newWorld(t)
	res, err := w.svc.Start(context.Background(), testEmail, "000000")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if res.Reason != verification.ReasonInvalidOTP {
		t.Fatalf("Start = %+v, want %s", res, verification.ReasonInvalidOTP)
	}
}

func TestStart_Success(t *testing.T) {
	w := newWorld(t)
	res := w.startLogin(t)
	if res.LoginID == "" {
		t.Fatal("empty login id")
	}
	if res.ExpiresIn != int(DefaultTTL.Seconds()) {
		t.Fatalf("ExpiresIn = %d, want %d", res.ExpiresIn, int(DefaultTTL.Seconds()))
	}
	c, _ := w.repo.GetByID(context.Background(), res.LoginID)
	if c == nil || c.Status != domain.StatusPending {
		t.Fatalf("persisted challenge = %+v", c)
	}
	if c.OTPHash == "" || c.Nonce == "" {
		t.Fatal("challenge missing otp hash or nonce")
	}
	if c.DeviceID != testDeviceID || c.RPID != testRPID {
		t.Fatalf("challenge bound to %s/%s", c.DeviceID, c.RPID)
	}
}

func TestStart_SecondLoginLeavesFirstPending(t *testing.T) {
	w := newWorld(t)
	first := w.startLogin(t)
	second := w.startLogin(t)
	if first.LoginID == second.LoginID {
		t.Fatal("second start reused the first challenge")
	}
	c, _ := w.repo.GetByID(context.Background(), first.LoginID)
	if c.Status != domain.StatusPending {
		t.Fatalf("first challenge status = %s after second start, want pending", c.Status)
	}
}

func TestApprove_Success(t *testing.T) {
	w := newWorld(t)
	otpCode := w.currentOTP(t)
	start, err := w.svc.Start(context.Background(), testEmail, otpCode)
	if err != nil || start.Status != verification.StatusPending {
		t.Fatalf("Start = %+v, %v", start, err)
	}

	res, err := w.svc.Approve(context.Background(), w.approveInput(t, start.LoginID, otpCode))
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if res.Status != domain.StatusApproved {
		t.Fatalf("Approve = %+v, want approved", res)
	}

	status, err := w.svc.Status(context.Background(), start.LoginID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Status != domain.StatusApproved || status.UserID != testUserID || status.RPID != testRPID {
		t.Fatalf("Status = %+v", status)
	}
}

func TestApprove_DifferentValidOTPIsMismatch(t *testing.T) {
	w := newWorld(t)
	startOTP := w.currentOTP(t)
	start, err := w.svc.Start(context.Background(), testEmail, startOTP)
	if err != nil || start.Status != verification.StatusPending {
		t.Fatalf("Start = %+v, %v", start, err)
	}

	otherOTP := w.otpAtOffset(t, 30*time.Second)
	if otherOTP == startOTP {
		otherOTP = w.otpAtOffset(t, -30*time.Second)
	}
	res, err := w.svc.Approve(context.Background(), w.approveInput(t, start.LoginID, otherOTP))
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if res.Status != domain.StatusDenied || res.Reason != verification.ReasonOTPMismatch {
		t.Fatalf("Approve = %+v, want denied/%s", res, verification.ReasonOTPMismatch)
	}
	c, _ := w.repo.GetByID(context.Background(), start.LoginID)
	if c.Status != domain.StatusDenied || c.DeniedReason != verification.ReasonOTPMismatch {
		t.Fatalf("stored challenge = %s/%s", c.Status, c.DeniedReason)
	}
}

func TestApprove_ExpiredChallenge(t *testing.T) {
	w := newWorld(t)
	otpCode := w.currentOTP(t)
	start, err := w.svc.Start(context.Background(), testEmail, otpCode)
	if err != nil || start.Status != verification.StatusPending {
		t.Fatalf("Start = %+v, %v", start, err)
	}
	w.repo.m[start.LoginID].ExpiresAt = time.Now().UTC().Add(-time.Second)

	res, err := w.svc.Approve(context.Background(), w.approveInput(t, start.LoginID, otpCode))
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if res.Status != domain.StatusDenied || res.Reason != verification.ReasonExpired {
		t.Fatalf("Approve = %+v, want denied/%s", res, verification.ReasonExpired)
	}
}

func TestApprove_DeviceMismatchIsTerminal(t *testing.T) {
	w := newWorld(t)
	otpCode := w.currentOTP(t)
	start, err := w.svc.Start(context.Background(), testEmail, otpCode)
	if err != nil || start.Status != verification.StatusPending {
		t.Fatalf("Start = %+v, %v", start, err)
	}

	in := w.approveInput(t, start.LoginID, otpCode)
	in.DeviceID = "device-other"
	res, err := w.svc.Approve(context.Background(), in)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if res.Status != domain.StatusDenied || res.Reason != verification.ReasonMismatch {
		t.Fatalf("Approve = %+v, want denied/%s", res, verification.ReasonMismatch)
	}
	c, _ := w.repo.GetByID(context.Background(), start.LoginID)
	if c.Status != domain.StatusDenied {
		t.Fatal("mismatch did not terminally deny the challenge")
	}
}

func TestApprove_BadProof(t *testing.T) {
	w := newWorld(t)
	otpCode := w.currentOTP(t)
	start, err := w.svc.Start(context.Background(), testEmail, otpCode)
	if err != nil || start.Status != verification.StatusPending {
		t.Fatalf("Start = %+v, %v", start, err)
	}

	in := w.approveInput(t, start.LoginID, otpCode)
	_, otherPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	msg := security.BuildProofMessage(in.Nonce, in.DeviceID, in.RPID, in.OTP)
	in.Signature = base64.StdEncoding.EncodeToString(ed25519.Sign(otherPriv, msg))
	res, err := w.svc.Approve(context.Background(), in)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if res.Reason != verification.ReasonInvalidDeviceProof {
		t.Fatalf("Approve = %+v, want %s", res, verification.ReasonInvalidDeviceProof)
	}
}

func TestApprove_NonPendingReturnsExistingResolution(t *testing.T) {
	w := newWorld(t)
	otpCode := w.currentOTP(t)
	start, err := w.svc.Start(context.Background(), testEmail, otpCode)
	if err != nil || start.Status != verification.StatusPending {
		t.Fatalf("Start = %+v, %v", start, err)
	}
	if _, err := w.svc.Deny(context.Background(), start.LoginID, "user_denied"); err != nil {
		t.Fatalf("Deny: %v", err)
	}

	// Re-approving must report the stored resolution without re-running
	// verification; a garbage signature must not matter.
	in := w.approveInput(t, start.LoginID, otpCode)
	in.Signature = "garbage"
	res, err := w.svc.Approve(context.Background(), in)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if res.Status != domain.StatusDenied || res.Reason != "user_denied" {
		t.Fatalf("Approve on denied = %+v, want denied/user_denied", res)
	}
}

func TestApprove_LosingRaceToDenyReportsStoredDenial(t *testing.T) {
	w := newWorld(t)
	otpCode := w.currentOTP(t)
	start, err := w.svc.Start(context.Background(), testEmail, otpCode)
	if err != nil || start.Status != verification.StatusPending {
		t.Fatalf("Start = %+v, %v", start, err)
	}
	in := w.approveInput(t, start.LoginID, otpCode)

	// The user denies from another device after every approval gate has
	// passed on a pending snapshot but before the approval transition lands.
	w.repo.beforeMark = func() {
		w.repo.beforeMark = nil
		if _, err := w.repo.MarkDenied(context.Background(), start.LoginID, "user_denied"); err != nil {
			t.Errorf("MarkDenied: %v", err)
		}
	}
	res, err := w.svc.Approve(context.Background(), in)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if res.Status != domain.StatusDenied || res.Reason != "user_denied" {
		t.Fatalf("Approve = %+v, want denied/user_denied", res)
	}
	c, _ := w.repo.GetByID(context.Background(), start.LoginID)
	if c.Status != domain.StatusDenied || c.DeniedReason != "user_denied" {
		t.Fatalf("stored challenge = %s/%s", c.Status, c.DeniedReason)
	}
}

func TestDeny_LosingRaceToApproveReportsApproved(t *testing.T) {
	w := newWorld(t)
	start := w.startLogin(t)

	w.repo.beforeMark = func() {
		w.repo.beforeMark = nil
		if _, err := w.repo.MarkApproved(context.Background(), start.LoginID); err != nil {
			t.Errorf("MarkApproved: %v", err)
		}
	}
	res, err := w.svc.Deny(context.Background(), start.LoginID, "")
	if err != nil {
		t.Fatalf("Deny: %v", err)
	}
	if res.Status != domain.StatusApproved {
		t.Fatalf("Deny = %+v, want the stored approval reported", res)
	}
	c, _ := w.repo.GetByID(context.Background(), start.LoginID)
	if c.Status != domain.StatusApproved {
		t.Fatalf("stored challenge = %s, want approved", c.Status)
	}
}

func TestApprove_UnknownID(t *testing.T) {
	w := newWorld(t)
	res, err := w.svc.Approve(context.Background(), ApproveInput{LoginID: "missing"})
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if res.Status != domain.StatusDenied || res.Reason != verification.ReasonNotFound {
		t.Fatalf("Approve = %+v, want denied/%s", res, verification.ReasonNotFound)
	}
}

func TestDeny_Idempotent(t *testing.T) {
	w := newWorld(t)
	start := w.startLogin(t)

	first, err := w.svc.Deny(context.Background(), start.LoginID, "suspicious")
	if err != nil {
		t.Fatalf("Deny: %v", err)
	}
	if first.Status != domain.StatusDenied || first.Reason != "suspicious" {
		t.Fatalf("Deny = %+v", first)
	}
	second, err := w.svc.Deny(context.Background(), start.LoginID, "other-reason")
	if err != nil {
		t.Fatalf("Deny: %v", err)
	}
	if second.Reason != "suspicious" {
		t.Fatalf("second Deny = %+v, want original reason retained", second)
	}
}

func TestStatus_UnknownID(t *testing.T) {
	w := newWorld(t)
	res, err := w.svc.Status(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if res.Status != domain.StatusDenied || res.Reason != verification.ReasonNotFound {
		t.Fatalf("Status = %+v, want denied/%s", res, verification.ReasonNotFound)
	}
}

func TestStatus_ExpiredPendingReportsExpired(t *testing.T) {
	w := newWorld(t)
	start := w.startLogin(t)
	w.repo.m[start.LoginID].ExpiresAt = time.Now().UTC().Add(-time.Second)

	res, err := w.svc.Status(context.Background(), start.LoginID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if res.Status != domain.StatusDenied || res.Reason != verification.ReasonExpired {
		t.Fatalf("Status = %+v, want denied/%s", res, verification.ReasonExpired)
	}
}

func TestPendingForUser(t *testing.T) {
	w := newWorld(t)
	start := w.startLogin(t)

	res, err := w.svc.PendingForUser(context.Background(), testEmail)
	if err != nil {
		t.Fatalf("PendingForUser: %v", err)
	}
	if res.Status != domain.StatusPending || res.LoginID != start.LoginID {
		t.Fatalf("PendingForUser = %+v", res)
	}
	if res.Nonce == "" || res.DeviceID != testDeviceID || res.RPID != testRPID {
		t.Fatalf("PendingForUser missing signing material: %+v", res)
	}

	none, err := w.svc.PendingForUser(context.Background(), "nobody@example.com")
	if err != nil {
		t.Fatalf("PendingForUser: %v", err)
	}
	if none.Reason != verification.ReasonUserNotFound {
		t.Fatalf("PendingForUser unknown user = %+v", none)
	}
}

// lapsedPendingRepo hands back the stored pending challenge with its expiry
// just past, modeling a row that lapses between the query and the response.
type lapsedPendingRepo struct {
	*memLoginRepo
}

func (r *lapsedPendingRepo) GetPendingForUser(ctx context.Context, userID string) (*domain.LoginChallenge, error) {
	c, err := r.memLoginRepo.GetPendingForUser(ctx, userID)
	if c != nil {
		c.ExpiresAt = time.Now().UTC().Add(-time.Second)
	}
	return c, err
}

func TestPendingForUser_ClampsLapsedExpiry(t *testing.T) {
	w := newWorld(t)
	w.startLogin(t)

	svc := NewService(&lapsedPendingRepo{memLoginRepo: w.repo}, w.users, w.devices,
		w.rps, w.keys, w.secrets, w.recovery, w.vault, otpPepper, 0)
	res, err := svc.PendingForUser(context.Background(), testEmail)
	if err != nil {
		t.Fatalf("PendingForUser: %v", err)
	}
	if res.Status != domain.StatusPending {
		t.Fatalf("PendingForUser = %+v, want pending", res)
	}
	if res.ExpiresIn != 0 {
		t.Fatalf("ExpiresIn = %d, want 0", res.ExpiresIn)
	}
}

func TestRecovery_SingleUse(t *testing.T) {
	w := newWorld(t)
	w.recovery.unused[testUserID+"/a1b2c3d4"] = true

	first, err := w.svc.Recovery(context.Background(), testEmail, "a1b2c3d4")
	if err != nil {
		t.Fatalf("Recovery: %v", err)
	}
	if first.Status != verification.StatusOK {
		t.Fatalf("first Recovery = %+v, want ok", first)
	}
	second, err := w.svc.Recovery(context.Background(), testEmail, "a1b2c3d4")
	if err != nil {
		t.Fatalf("Recovery: %v", err)
	}
	if second.Reason != verification.ReasonInvalidRecoveryCode {
		t.Fatalf("second Recovery = %+v, want %s", second, verification.ReasonInvalidRecoveryCode)
	}
}

func TestRecovery_UnknownUser(t *testing.T) {
	w := newWorld(t)
	res, err := w.svc.Recovery(context.Background(), "nobody@example.com", "a1b2c3d4")
	if err != nil {
		t.Fatalf("Recovery: %v", err)
	}
	if res.Reason != verification.ReasonUserNotFound {
		t.Fatalf("Recovery = %+v, want %s", res, verification.ReasonUserNotFound)
	}
}

func TestClearPending(t *testing.T) {
	w := newWorld(t)
	first := w.startLogin(t)
	second := w.startLogin(t)

	res, err := w.svc.ClearPending(context.Background(), testEmail)
	if err != nil {
		t.Fatalf("ClearPending: %v", err)
	}
	if res.Status != verification.StatusOK || res.Cleared != 2 {
		t.Fatalf("ClearPending = %+v, want ok/2", res)
	}
	for _, id := range []string{first.LoginID, second.LoginID} {
		c, _ := w.repo.GetByID(context.Background(), id)
		if c.Status != domain.StatusDenied || c.DeniedReason != verification.ReasonUserCleared {
			t.Fatalf("challenge %s = %s/%s", id, c.Status, c.DeniedReason)
		}
	}
}
