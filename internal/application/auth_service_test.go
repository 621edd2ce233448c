package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/accsoftware/acc-backend/internal/domain/entity"
	repo "github.com/accsoftware/acc-backend/internal/domain/repository"
	"github.com/accsoftware/acc-backend/pkg/helpers"
	"github.com/accsoftware/acc-backend/pkg/mailer"
)

type fakeRepo struct {
	mu     sync.Mutex
	nextID int64
	users  map[string]*entity.User // keyed by email

	missOnce string // email whose next lookup reports not found
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{users: map[string]*entity.User{}}
}

func clone(u *entity.User) *entity.User {
	cp := *u
	if u.OTPExpiresAt != nil {
		t := *u.OTPExpiresAt
		cp.OTPExpiresAt = &t
	}
	return &cp
}

func (r *fakeRepo) Create(_ context.Context, u *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.Email]; ok {
		return repo.ErrEmailTaken
	}
	r.nextID++
	u.ID = r.nextID
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	r.users[u.Email] = clone(u)
	return nil
}

func (r *fakeRepo) GetByID(_ context.Context, id int64) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ID == id {
			return clone(u), nil
		}
	}
	return nil, repo.ErrNotFound
}

func (r *fakeRepo) GetByEmail(_ context.Context, email string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.missOnce == email {
		r.missOnce = ""
		return nil, repo.ErrNotFound
	}
	u, ok := r.users[email]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return clone(u), nil
}

func (r *fakeRepo) UpdateProfile(_ context.Context, u *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.users[u.Email]
	if !ok {
		return repo.ErrNotFound
	}
	stored.Name = u.Name
	stored.LastName = u.LastName
	stored.Contact = u.Contact
	stored.Company = u.Company
	stored.Address = u.Address
	stored.Logo = u.Logo
	stored.Image = u.Image
	return nil
}

func (r *fakeRepo) UpdatePassword(_ context.Context, id int64, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ID == id {
			u.PasswordHash = hash
			return nil
		}
	}
	return repo.ErrNotFound
}

func (r *fakeRepo) SetOTP(_ context.Context, id int64, otpHash string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ID == id {
			u.OTPHash = otpHash
			t := expiresAt
			u.OTPExpiresAt = &t
			return nil
		}
	}
	return repo.ErrNotFound
}

func (r *fakeRepo) ClearOTP(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ID == id {
			u.OTPHash = ""
			u.OTPExpiresAt = nil
			return nil
		}
	}
	return repo.ErrNotFound
}

// expireOTP backdates a pending code for expiry tests.
func (r *fakeRepo) expireOTP(email string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	past := time.Now().Add(-time.Second)
	r.users[email].OTPExpiresAt = &past
}

type recordingPub struct {
	mu   sync.Mutex
	jobs []mailer.EmailJob
}

func (p *recordingPub) PublishJSON(_ context.Context, body any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.jobs = append(p.jobs, body.(mailer.EmailJob))
	return nil
}

func (p *recordingPub) last(t *testing.T) mailer.EmailJob {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	require.NotEmpty(t, p.jobs)
	return p.jobs[len(p.jobs)-1]
}

func newTestService() (*Service, *fakeRepo, *recordingPub) {
	r := newFakeRepo()
	pub := &recordingPub{}
	svc := &Service{
		Repo:        r,
		JWT:         helpers.NewJWTManager("test-secret", time.Hour, 168*time.Hour),
		Pub:         pub,
		OTPTTL:      120 * time.Second,
		MailEnabled: true,
		CompanyName: "ACC Software",
	}
	return svc, r, pub
}

func signUpInput(email string) SignUpInput {
	return SignUpInput{
		Name:     "A",
		LastName: "B",
		Email:    email,
		Contact:  "555-0100",
		Company:  "ACME",
		Address:  "1 Main St",
		Role:     "admin",
		Password: "secret1secret",
	}
}

func TestSignUpThenAuthenticate(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	u, err := svc.SignUp(ctx, signUpInput("a@x.com"))
	require.NoError(t, err)
	require.NotZero(t, u.ID)
	require.NotEqual(t, "secret1secret", u.PasswordHash)

	got, err := svc.Authenticate(ctx, "a@x.com", "secret1secret")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)
	require.Equal(t, "A", got.Name)
	require.Equal(t, "B", got.LastName)
	require.Equal(t, "ACME", got.Company)
	require.Equal(t, "admin", got.Role)
}

func TestAuthenticateUniformFailure(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.SignUp(ctx, signUpInput("a@x.com"))
	require.NoError(t, err)

	_, errWrongPwd := svc.Authenticate(ctx, "a@x.com", "wrong")
	_, errNoUser := svc.Authenticate(ctx, "nobody@x.com", "secret1secret")
	_, errEmpty := svc.Authenticate(ctx, "", "")

	require.ErrorIs(t, errWrongPwd, ErrInvalidCredentials)
	require.ErrorIs(t, errNoUser, ErrInvalidCredentials)
	require.ErrorIs(t, errEmpty, ErrInvalidCredentials)
	// indistinguishable messages
	require.Equal(t, errWrongPwd.Error(), errNoUser.Error())
}

func TestAuthenticateOAuthOnlyAccount(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.LinkOAuthUser(ctx, "oauth@x.com", "O", "")
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, "oauth@x.com", "anything")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestSignUpDuplicateEmail(t *testing.T) {
	svc, r, _ := newTestService()
	ctx := context.Background()

	first, err := svc.SignUp(ctx, signUpInput("a@x.com"))
	require.NoError(t, err)

	in := signUpInput("a@x.com")
	in.Name = "Other"
	_, err = svc.SignUp(ctx, in)
	require.ErrorIs(t, err, ErrEmailTaken)

	// existing row untouched
	stored, err := r.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	require.Equal(t, first.ID, stored.ID)
	require.Equal(t, "A", stored.Name)
}

func TestIssueTokensRoundTrip(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	u, err := svc.SignUp(ctx, signUpInput("a@x.com"))
	require.NoError(t, err)

	pair, err := svc.IssueTokens(u)
	require.NoError(t, err)
	require.True(t, pair.SessionExpiry.After(pair.BearerExpiry))

	claims, err := svc.JWT.ParseToken(pair.Bearer)
	require.NoError(t, err)
	require.Equal(t, u.ID, claims.UserID)
	require.Equal(t, u.Email, claims.Email)

	sclaims, err := svc.JWT.ParseToken(pair.Session)
	require.NoError(t, err)
	require.Equal(t, u.ID, sclaims.UserID)
}

type failingPub struct{ err error }

func (p *failingPub) PublishJSON(context.Context, any) error { return p.err }

func TestForgotPasswordFailsWhenEnqueueFails(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.SignUp(ctx, signUpInput("a@x.com"))
	require.NoError(t, err)

	pubErr := errors.New("broker unavailable")
	svc.Pub = &failingPub{err: pubErr}
	require.ErrorIs(t, svc.ForgotPassword(ctx, "a@x.com"), pubErr)
}

func TestSignUpSurvivesEnqueueFailure(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	svc.Pub = &failingPub{err: errors.New("broker unavailable")}

	u, err := svc.SignUp(ctx, signUpInput("a@x.com"))
	require.NoError(t, err)
	require.NotZero(t, u.ID)
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	svc, _, _ := newTestService()
	err := svc.ForgotPassword(context.Background(), "nobody@x.com")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestOTPRoundTrip(t *testing.T) {
	svc, r, pub := newTestService()
	ctx := context.Background()

	_, err := svc.SignUp(ctx, signUpInput("a@x.com"))
	require.NoError(t, err)

	require.NoError(t, svc.ForgotPassword(ctx, "a@x.com"))

	job := pub.last(t)
	require.Equal(t, "a@x.com", job.To)
	require.Equal(t, "reset_code", job.Template)
	code, _ := job.Data["Code"].(string)
	require.Len(t, code, 6)

	// only the digest is stored
	stored, err := r.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	require.NotEmpty(t, stored.OTPHash)
	require.NotEqual(t, code, stored.OTPHash)
	require.NotNil(t, stored.OTPExpiresAt)

	// first verification succeeds and clears both fields
	require.NoError(t, svc.VerifyOTP(ctx, "a@x.com", code))
	stored, err = r.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	require.Empty(t, stored.OTPHash)
	require.Nil(t, stored.OTPExpiresAt)

	// replay fails
	require.ErrorIs(t, svc.VerifyOTP(ctx, "a@x.com", code), ErrOTPExpired)
}

func TestVerifyOTPWrongCodeLeavesPending(t *testing.T) {
	svc, _, pub := newTestService()
	ctx := context.Background()

	_, err := svc.SignUp(ctx, signUpInput("a@x.com"))
	require.NoError(t, err)
	require.NoError(t, svc.ForgotPassword(ctx, "a@x.com"))
	code, _ := pub.last(t).Data["Code"].(string)

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	require.ErrorIs(t, svc.VerifyOTP(ctx, "a@x.com", wrong), ErrOTPInvalid)

	// the pending code survives the mismatch and still verifies
	require.NoError(t, svc.VerifyOTP(ctx, "a@x.com", code))
}

func TestVerifyOTPExpired(t *testing.T) {
	svc, r, pub := newTestService()
	ctx := context.Background()

	_, err := svc.SignUp(ctx, signUpInput("a@x.com"))
	require.NoError(t, err)
	require.NoError(t, svc.ForgotPassword(ctx, "a@x.com"))
	code, _ := pub.last(t).Data["Code"].(string)

	r.expireOTP("a@x.com")
	require.ErrorIs(t, svc.VerifyOTP(ctx, "a@x.com", code), ErrOTPExpired)
}

func TestReissueOverwritesPendingOTP(t *testing.T) {
	svc, _, pub := newTestService()
	ctx := context.Background()

	_, err := svc.SignUp(ctx, signUpInput("a@x.com"))
	require.NoError(t, err)

	require.NoError(t, svc.ForgotPassword(ctx, "a@x.com"))
	first, _ := pub.last(t).Data["Code"].(string)
	require.NoError(t, svc.ForgotPassword(ctx, "a@x.com"))
	second, _ := pub.last(t).Data["Code"].(string)

	if first != second {
		require.ErrorIs(t, svc.VerifyOTP(ctx, "a@x.com", first), ErrOTPInvalid)
	}
	require.NoError(t, svc.VerifyOTP(ctx, "a@x.com", second))
}

func TestResetPassword(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	_, err := svc.SignUp(ctx, signUpInput("a@x.com"))
	require.NoError(t, err)

	require.NoError(t, svc.ResetPassword(ctx, "a@x.com", "brandnewsecret"))

	_, err = svc.Authenticate(ctx, "a@x.com", "secret1secret")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Authenticate(ctx, "a@x.com", "brandnewsecret")
	require.NoError(t, err)

	require.ErrorIs(t, svc.ResetPassword(ctx, "nobody@x.com", "whatever12345"), ErrUserNotFound)
}

func TestLinkOAuthUserCreatesAdmin(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	u, err := svc.LinkOAuthUser(ctx, "new@x.com", "New User", "https://img/pic.png")
	require.NoError(t, err)
	require.NotZero(t, u.ID)
	require.Equal(t, "admin", u.Role)
	require.Equal(t, "New User", u.Name)
	require.False(t, u.HasPassword())
}

func TestLinkOAuthUserExisting(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	created, err := svc.SignUp(ctx, signUpInput("a@x.com"))
	require.NoError(t, err)

	linked, err := svc.LinkOAuthUser(ctx, "a@x.com", "Provider Name", "")
	require.NoError(t, err)
	require.Equal(t, created.ID, linked.ID)
	require.Equal(t, created.Role, linked.Role)
	// existing profile is not overwritten by provider data
	require.Equal(t, "A", linked.Name)
}

func TestLinkOAuthUserInsertRace(t *testing.T) {
	svc, r, _ := newTestService()
	ctx := context.Background()

	// the lookup misses, the insert loses the race, the retry lookup wins
	winner := &entity.User{Email: "race@x.com", Name: "Winner", Role: "admin"}
	require.NoError(t, r.Create(ctx, winner))
	r.missOnce = "race@x.com"

	u, err := svc.LinkOAuthUser(ctx, "race@x.com", "Loser", "")
	require.NoError(t, err)
	require.Equal(t, winner.ID, u.ID)
	require.Equal(t, "Winner", u.Name)
}

func TestUpdateProfilePartial(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	u, err := svc.SignUp(ctx, signUpInput("a@x.com"))
	require.NoError(t, err)

	got, err := svc.UpdateProfile(ctx, u.ID, UpdateProfileInput{Company: "New Co"})
	require.NoError(t, err)
	require.Equal(t, "New Co", got.Company)
	require.Equal(t, "A", got.Name)
	require.Equal(t, "1 Main St", got.Address)
}
