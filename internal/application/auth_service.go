package application

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/accsoftware/acc-backend/internal/domain/entity"
	repo "github.com/accsoftware/acc-backend/internal/domain/repository"
	"github.com/accsoftware/acc-backend/pkg/helpers"
	"github.com/accsoftware/acc-backend/pkg/mailer"
	tpl "github.com/accsoftware/acc-backend/pkg/mailer/templates"
)

var (
	// ErrInvalidCredentials covers unknown email, wrong password, and
	// malformed input alike; callers cannot distinguish them.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	// ErrOTPExpired is returned when no code is pending or its window closed.
	ErrOTPExpired = errors.New("code expired or missing")
	// ErrOTPInvalid is returned on a digest mismatch; the stored code stays
	// intact so the user may retry until expiry.
	ErrOTPInvalid = errors.New("invalid code")
)

// Publisher enqueues an email job; delivery happens out of band.
type Publisher interface {
	PublishJSON(ctx context.Context, body any) error
}

// Service orchestrates the authentication lifecycle: credential auth, OTP
// password reset, OAuth linking, and the profile surface the session claims
// are built from.
type Service struct {
	Repo         repo.UserRepository
	JWT          *helpers.JWTManager
	Logger       *logrus.Logger
	Pub          Publisher
	GCS          *storage.Client
	GCSBucket    string
	ES           *elasticsearch.Client
	ESUsersIndex string

	OTPTTL      time.Duration
	MailEnabled bool
	CompanyName string
	LogoURL     string
	SupportURL  string
}

// TokenPair is the result of a successful authentication: a short-lived
// bearer token for the response body and a session token for the cookie.
// The two lifetimes are independent.
type TokenPair struct {
	Bearer        string
	BearerExpiry  time.Time
	Session       string
	SessionExpiry time.Time
}

func claimsFromUser(u *entity.User) helpers.ProfileClaims {
	return helpers.ProfileClaims{
		UserID:   u.ID,
		Name:     u.Name,
		LastName: u.LastName,
		Email:    u.Email,
		Contact:  u.Contact,
		Company:  u.Company,
		Logo:     u.Logo,
		Address:  u.Address,
		Role:     u.Role,
		Image:    u.Image,
	}
}

// SignUpInput carries the sign-up form fields.
type SignUpInput struct {
	Name     string
	LastName string
	Email    string
	Contact  string
	Company  string
	Address  string
	Role     string
	Password string
}

// SignUp creates a credential account. The unique email index is the final
// arbiter; a duplicate insert surfaces as ErrEmailTaken without mutating the
// existing row.
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (*entity.User, error) {
	hash, err := helpers.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	u := &entity.User{
		Email:        in.Email,
		PasswordHash: hash,
		Name:         in.Name,
		LastName:     in.LastName,
		Contact:      in.Contact,
		Company:      in.Company,
		Address:      in.Address,
		Role:         in.Role,
	}
	if err := s.Repo.Create(ctx, u); err != nil {
		if errors.Is(err, repo.ErrEmailTaken) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	// welcome mail is best effort; the account exists either way
	if err := s.enqueueEmail(ctx, u.Email, tpl.Welcome, tpl.EmailData{
		Name:        u.Name,
		Email:       u.Email,
		CompanyName: s.CompanyName,
		LogoURL:     s.LogoURL,
		SupportURL:  s.SupportURL,
	}); err != nil && s.Logger != nil {
		s.Logger.WithError(err).WithField("template", tpl.Welcome).Warn("failed to enqueue email")
	}
	_ = s.indexUser(ctx, u)
	return u, nil
}

// Authenticate verifies identity by email and password. Every failure mode
// maps to the same error so accounts cannot be enumerated. The plaintext
// password is never logged.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*entity.User, error) {
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	u, err := s.Repo.GetByEmail(ctx, email)
	if err != nil || u == nil {
		return nil, ErrInvalidCredentials
	}
	if !u.HasPassword() || !helpers.CompareHashAndPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// IssueTokens mints the bearer and session tokens from a user snapshot.
func (s *Service) IssueTokens(u *entity.User) (TokenPair, error) {
	claims := claimsFromUser(u)
	bearer, bexp, err := s.JWT.GenerateBearerToken(claims)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", u.ID).Error("generate bearer token failed")
		}
		return TokenPair{}, err
	}
	session, sexp, err := s.JWT.GenerateSessionToken(claims)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", u.ID).Error("generate session token failed")
		}
		return TokenPair{}, err
	}
	return TokenPair{Bearer: bearer, BearerExpiry: bexp, Session: session, SessionExpiry: sexp}, nil
}

// Login combines credential authentication with token issuance.
func (s *Service) Login(ctx context.Context, email, password string) (*entity.User, TokenPair, error) {
	u, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return nil, TokenPair{}, err
	}
	pair, err := s.IssueTokens(u)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return u, pair, nil
}

// ForgotPassword issues a fresh one-time code, overwriting any pending one,
// and emails the plaintext code out of band. Only the digest is persisted.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	u, err := s.Repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	code, err := helpers.GenOTPCode()
	if err != nil {
		return err
	}
	expiresAt := time.Now().Add(s.OTPTTL)
	if err := s.Repo.SetOTP(ctx, u.ID, helpers.HashOTPCode(code), expiresAt); err != nil {
		return err
	}
	// the code is useless if it never reaches the user, so a failed
	// enqueue fails the whole request
	if err := s.enqueueEmail(ctx, u.Email, tpl.ResetCode, tpl.EmailData{
		Name:        u.Name,
		Email:       u.Email,
		Code:        code,
		ExpiresIn:   s.OTPTTL.String(),
		SentAt:      time.Now().UTC().Format("02 January 2006, 15:04 MST"),
		CompanyName: s.CompanyName,
		LogoURL:     s.LogoURL,
		SupportURL:  s.SupportURL,
	}); err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", u.ID).Error("failed to enqueue reset code")
		}
		return err
	}
	return nil
}

// VerifyOTP validates a submitted code. A match clears both OTP fields in a
// single statement so the code cannot be replayed; a mismatch leaves them
// intact for retries inside the window.
func (s *Service) VerifyOTP(ctx context.Context, email, code string) error {
	u, err := s.Repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrOTPExpired
		}
		return err
	}
	if u.OTPHash == "" || u.OTPExpiresAt == nil || !time.Now().Before(*u.OTPExpiresAt) {
		return ErrOTPExpired
	}
	if !helpers.VerifyOTPCode(code, u.OTPHash) {
		return ErrOTPInvalid
	}
	return s.Repo.ClearOTP(ctx, u.ID)
}

// ResetPassword rewrites the stored password hash. The caller is expected to
// have completed OTP verification first.
func (s *Service) ResetPassword(ctx context.Context, email, newPassword string) error {
	u, err := s.Repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	hash, err := helpers.HashPassword(newPassword)
	if err != nil {
		return err
	}
	return s.Repo.UpdatePassword(ctx, u.ID, hash)
}

// LinkOAuthUser resolves a verified third-party identity to a local account,
// creating one on first sign-in. A concurrent first-time callback loses the
// insert race against the unique index and is retried as a lookup. Any store
// failure aborts the sign-in.
func (s *Service) LinkOAuthUser(ctx context.Context, email, name, image string) (*entity.User, error) {
	u, err := s.Repo.GetByEmail(ctx, email)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, err
	}

	u = &entity.User{
		Email: email,
		Name:  name,
		Image: image,
		Role:  "admin", // default for OAuth-created accounts
	}
	if err := s.Repo.Create(ctx, u); err != nil {
		if errors.Is(err, repo.ErrEmailTaken) {
			// lost the insert race; the row exists now
			return s.Repo.GetByEmail(ctx, email)
		}
		return nil, err
	}
	_ = s.indexUser(ctx, u)
	return u, nil
}

// GetProfile fetches the current profile for the given user id.
func (s *Service) GetProfile(ctx context.Context, id int64) (*entity.User, error) {
	u, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

// UpdateProfileInput holds optional profile field updates; empty fields are
// left unchanged.
type UpdateProfileInput struct {
	Name     string
	LastName string
	Contact  string
	Company  string
	Address  string
	Logo     string
	Image    string
}

func (s *Service) UpdateProfile(ctx context.Context, id int64, in UpdateProfileInput) (*entity.User, error) {
	u, err := s.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != "" {
		u.Name = in.Name
	}
	if in.LastName != "" {
		u.LastName = in.LastName
	}
	if in.Contact != "" {
		u.Contact = in.Contact
	}
	if in.Company != "" {
		u.Company = in.Company
	}
	if in.Address != "" {
		u.Address = in.Address
	}
	if in.Logo != "" {
		u.Logo = in.Logo
	}
	if in.Image != "" {
		u.Image = in.Image
	}
	if err := s.Repo.UpdateProfile(ctx, u); err != nil {
		return nil, err
	}
	_ = s.indexUser(ctx, u)
	return u, nil
}

// UploadLogo stores a company logo in GCS and records its public URL on the
// profile.
func (s *Service) UploadLogo(ctx context.Context, id int64, r io.Reader, filename, contentType string) (string, error) {
	u, err := s.GetProfile(ctx, id)
	if err != nil {
		return "", err
	}
	if s.GCS == nil || s.GCSBucket == "" {
		return "", errors.New("gcs not configured")
	}
	ext := strings.ToLower(filepath.Ext(filename))
	objectPath := filepath.ToSlash(filepath.Join("logos", uuid.NewString()+ext))
	url, err := helpers.UploadObject(ctx, s.GCS, s.GCSBucket, objectPath, contentType, r)
	if err != nil {
		return "", err
	}
	u.Logo = url
	if err := s.Repo.UpdateProfile(ctx, u); err != nil {
		return "", err
	}
	_ = s.indexUser(ctx, u)
	return url, nil
}

func (s *Service) enqueueEmail(ctx context.Context, to, template string, data tpl.EmailData) error {
	if s.Pub == nil || !s.MailEnabled {
		return nil
	}
	job := mailer.EmailJob{To: to, Template: template, Data: tpl.ToMap(data)}
	return s.Pub.PublishJSON(ctx, job)
}

func (s *Service) indexUser(ctx context.Context, u *entity.User) error {
	if s.ES == nil || s.ESUsersIndex == "" {
		return nil
	}
	doc := map[string]any{
		"id":        u.ID,
		"email":     u.Email,
		"name":      u.Name,
		"last_name": u.LastName,
		"company":   u.Company,
		"role":      u.Role,
	}
	b, _ := json.Marshal(doc)
	req := esapi.IndexRequest{
		Index:      s.ESUsersIndex,
		DocumentID: strconv.FormatInt(u.ID, 10),
		Body:       strings.NewReader(string(b)),
		Refresh:    "false",
	}
	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := req.Do(c, s.ES)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", u.ID).Warn("es index failed")
		}
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() && s.Logger != nil {
		s.Logger.WithField("status", res.Status()).WithField("user_id", u.ID).Warn("es index response error")
	}
	return nil
}

// SearchUsers performs a multi_match search on email, name, and company.
func (s *Service) SearchUsers(ctx context.Context, q string, size int) ([]map[string]any, error) {
	if s.ES == nil || s.ESUsersIndex == "" {
		return []map[string]any{}, nil
	}
	if size <= 0 || size > 50 {
		size = 10
	}
	query := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  q,
				"fields": []string{"email^2", "name", "last_name", "company"},
			},
		},
		"size": size,
	}
	b, _ := json.Marshal(query)

	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := s.ES.Search(
		s.ES.Search.WithContext(c),
		s.ES.Search.WithIndex(s.ESUsersIndex),
		s.ES.Search.WithBody(strings.NewReader(string(b))),
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID     string         `json:"_id"`
				Source map[string]any `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}
