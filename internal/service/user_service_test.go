package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"timeoff-manager/internal/domain"
)

type mockUserRepo struct {
	nextID       int64
	usersByID    map[int64]domain.User
	usersByEmail map[string]int64
	lookupErr    error
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		nextID:       1,
		usersByID:    make(map[int64]domain.User),
		usersByEmail: make(map[string]int64),
	}
}

func (m *mockUserRepo) add(user domain.User) domain.User {
	if user.ID == 0 {
		user.ID = m.nextID
		m.nextID++
	}
	m.usersByID[user.ID] = user
	m.usersByEmail[user.Email] = user.ID
	return user
}

func (m *mockUserRepo) Create(_ context.Context, user domain.User) (domain.User, error) {
	return m.add(user), nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id int64) (domain.User, error) {
	if m.lookupErr != nil {
		return domain.User{}, m.lookupErr
	}
	user, ok := m.usersByID[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return user, nil
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	if m.lookupErr != nil {
		return domain.User{}, m.lookupErr
	}
	id, ok := m.usersByEmail[email]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return m.GetByID(ctx, id)
}

func (m *mockUserRepo) GetByIDAndEmail(ctx context.Context, id int64, email string) (domain.User, error) {
	user, err := m.GetByID(ctx, id)
	if err != nil {
		return domain.User{}, err
	}
	if user.Email != email {
		return domain.User{}, pgx.ErrNoRows
	}
	return user, nil
}

func (m *mockUserRepo) MarkValidated(_ context.Context, id int64, at time.Time) error {
	user, ok := m.usersByID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.Validated = true
	user.UpdatedAt = at
	m.usersByID[id] = user
	return nil
}

func (m *mockUserRepo) LinkProvider(_ context.Context, id int64, provider domain.AuthProvider, at time.Time) error {
	user, ok := m.usersByID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.AuthProvider = provider
	user.Validated = true
	user.UpdatedAt = at
	m.usersByID[id] = user
	return nil
}

type mockEmailSender struct {
	lastTo   string
	lastName string
	lastURL  string
	calls    int
	err      error
}

func (m *mockEmailSender) SendRegistrationConfirmation(_ context.Context, toEmail, name, confirmURL string) error {
	m.calls++
	m.lastTo = toEmail
	m.lastName = name
	m.lastURL = confirmURL
	return m.err
}

func newTestUserService(repo *mockUserRepo, sender *mockEmailSender) *UserService {
	return NewUserService(
		zap.NewNop(),
		repo,
		NewJWTService("secret"),
		NewMemoryConfirmationTokenStore(),
		sender,
		nil,
		UserServiceOptions{AccessTTL: 30 * time.Minute, PublicBaseURL: "http://api.local/"},
	)
}

func tokenFromURL(t *testing.T, raw string) string {
	t.Helper()
	parsed, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse confirmation url: %v", err)
	}
	return parsed.Query().Get("token")
}

func TestUserServiceRegister_CreatesUnvalidatedUserAndSendsLink(t *testing.T) {
	repo := newMockUserRepo()
	sender := &mockEmailSender{}
	svc := newTestUserService(repo, sender)

	user, err := svc.Register(context.Background(), RegisterInput{Name: "Ana", Email: " Ana@Example.com ", Password: "pw123456"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if user.Email != "ana@example.com" || user.Validated {
		t.Fatalf("unexpected user: %+v", user)
	}
	if user.Role != domain.RoleMember || user.AuthProvider != domain.AuthProviderLocal {
		t.Fatalf("expected local member, got %+v", user)
	}
	if user.PasswordHash == "" || user.PasswordHash == "pw123456" {
		t.Fatalf("expected hashed password")
	}
	if sender.lastTo != "ana@example.com" || sender.lastName != "Ana" {
		t.Fatalf("unexpected email recipient: %+v", sender)
	}
	if !strings.HasPrefix(sender.lastURL, "http://api.local/register_confirm?token=") {
		t.Fatalf("unexpected confirmation url %q", sender.lastURL)
	}

	token := tokenFromURL(t, sender.lastURL)
	userID, ok, err := svc.confirmations.Lookup(token)
	if err != nil || !ok || userID != user.ID {
		t.Fatalf("expected stored confirmation token for user %d, got %d,%v,%v", user.ID, userID, ok, err)
	}
}

func TestUserServiceRegister_DuplicateEmail(t *testing.T) {
	repo := newMockUserRepo()
	repo.add(domain.User{Name: "Ana", Email: "ana@example.com"})
	sender := &mockEmailSender{}
	svc := newTestUserService(repo, sender)

	_, err := svc.Register(context.Background(), RegisterInput{Name: "Ana", Email: "ana@example.com", Password: "pw"})
	if !errors.Is(err, ErrEmailAlreadyRegistered) {
		t.Fatalf("expected ErrEmailAlreadyRegistered, got %v", err)
	}
	if sender.calls != 0 {
		t.Fatalf("expected no email sent")
	}
}

func TestUserServiceRegister_InvalidInput(t *testing.T) {
	svc := newTestUserService(newMockUserRepo(), &mockEmailSender{})

	if _, err := svc.Register(context.Background(), RegisterInput{Name: "A", Email: "nope", Password: "pw"}); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
	if _, err := svc.Register(context.Background(), RegisterInput{Name: " ", Email: "a@b.com", Password: "pw"}); !errors.Is(err, ErrInvalidRegistration) {
		t.Fatalf("expected ErrInvalidRegistration, got %v", err)
	}
}

func TestUserServiceRegister_EmailFailureRevokesToken(t *testing.T) {
	repo := newMockUserRepo()
	sender := &mockEmailSender{err: errors.New("smtp down")}
	svc := newTestUserService(repo, sender)

	_, err := svc.Register(context.Background(), RegisterInput{Name: "Ana", Email: "ana@example.com", Password: "pw"})
	if !errors.Is(err, ErrEmailSendFailure) {
		t.Fatalf("expected ErrEmailSendFailure, got %v", err)
	}
	token := tokenFromURL(t, sender.lastURL)
	if _, ok, _ := svc.confirmations.Lookup(token); ok {
		t.Fatalf("expected token revoked after send failure")
	}
}

func TestUserServiceConfirmRegistration(t *testing.T) {
	repo := newMockUserRepo()
	sender := &mockEmailSender{}
	svc := newTestUserService(repo, sender)

	user, err := svc.Register(context.Background(), RegisterInput{Name: "Ana", Email: "ana@example.com", Password: "pw"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	token := tokenFromURL(t, sender.lastURL)

	confirmed, err := svc.ConfirmRegistration(context.Background(), token)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if !confirmed.Validated || confirmed.ID != user.ID {
		t.Fatalf("expected validated user, got %+v", confirmed)
	}
	if stored, _ := repo.GetByID(context.Background(), user.ID); !stored.Validated {
		t.Fatalf("expected stored user validated")
	}

	if _, err := svc.ConfirmRegistration(context.Background(), token); !errors.Is(err, ErrConfirmationInvalid) {
		t.Fatalf("expected consumed token to be invalid, got %v", err)
	}
}

func TestUserServiceConfirmRegistration_Errors(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestUserService(repo, &mockEmailSender{})

	if _, err := svc.ConfirmRegistration(context.Background(), "unknown"); !errors.Is(err, ErrConfirmationInvalid) {
		t.Fatalf("expected ErrConfirmationInvalid, got %v", err)
	}

	_ = svc.confirmations.Store("orphan", 99, time.Minute)
	if _, err := svc.ConfirmRegistration(context.Background(), "orphan"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	validated := repo.add(domain.User{Name: "Bo", Email: "bo@example.com", Validated: true})
	_ = svc.confirmations.Store("done", validated.ID, time.Minute)
	if _, err := svc.ConfirmRegistration(context.Background(), "done"); !errors.Is(err, ErrAlreadyValidated) {
		t.Fatalf("expected ErrAlreadyValidated, got %v", err)
	}
}

func TestUserServiceLogin(t *testing.T) {
	repo := newMockUserRepo()
	hash, err := HashPassword("pw123456")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	user := repo.add(domain.User{Name: "Ana", Email: "ana@example.com", PasswordHash: hash, Validated: true})
	pending := repo.add(domain.User{Name: "Bo", Email: "bo@example.com", PasswordHash: hash})
	svc := newTestUserService(repo, &mockEmailSender{})

	session, err := svc.Login(context.Background(), "ANA@example.com", "pw123456")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if session.User.ID != user.ID || session.Token == "" {
		t.Fatalf("unexpected session: %+v", session)
	}
	subject, err := svc.tokens.VerifyToken(session.Token)
	if err != nil || subject.UserID != user.ID || subject.Email != user.Email {
		t.Fatalf("unexpected token subject %+v, err %v", subject, err)
	}

	if _, err := svc.Login(context.Background(), "ana@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for bad password, got %v", err)
	}
	if _, err := svc.Login(context.Background(), "ghost@example.com", "pw123456"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
	if _, err := svc.Login(context.Background(), pending.Email, "pw123456"); !errors.Is(err, ErrAccountNotValidated) {
		t.Fatalf("expected ErrAccountNotValidated, got %v", err)
	}
}

func TestUserServiceLogin_RateLimited(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestUserService(repo, &mockEmailSender{})

	for i := 0; i < loginAttemptsMax; i++ {
		if _, err := svc.Login(context.Background(), "ana@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i, err)
		}
	}
	if _, err := svc.Login(context.Background(), "ana@example.com", "wrong"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestUserServiceUpsertGoogleUser_CreatesValidatedUser(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestUserService(repo, &mockEmailSender{})

	session, err := svc.UpsertGoogleUser(context.Background(), OAuthInput{Email: "g@example.com", Name: "Gee"})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if !session.User.Validated || session.User.AuthProvider != domain.AuthProviderGoogle || session.User.PasswordHash != "" {
		t.Fatalf("unexpected google user: %+v", session.User)
	}
	if session.Token == "" {
		t.Fatalf("expected token")
	}
}

func TestUserServiceUpsertGoogleUser_LinksExistingByEmail(t *testing.T) {
	repo := newMockUserRepo()
	existing := repo.add(domain.User{Name: "Ana", Email: "ana@example.com", AuthProvider: domain.AuthProviderLocal})
	svc := newTestUserService(repo, &mockEmailSender{})

	session, err := svc.UpsertGoogleUser(context.Background(), OAuthInput{Email: "ana@example.com", Name: "Other"})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if session.User.ID != existing.ID || session.User.Name != "Ana" {
		t.Fatalf("expected existing user kept, got %+v", session.User)
	}
	stored, _ := repo.GetByID(context.Background(), existing.ID)
	if stored.AuthProvider != domain.AuthProviderGoogle || !stored.Validated {
		t.Fatalf("expected stored user linked and validated, got %+v", stored)
	}
}

func TestUserServiceUpsertGoogleUser_RequiresEmail(t *testing.T) {
	svc := newTestUserService(newMockUserRepo(), &mockEmailSender{})
	if _, err := svc.UpsertGoogleUser(context.Background(), OAuthInput{Name: "x"}); !errors.Is(err, ErrOAuthInvalid) {
		t.Fatalf("expected ErrOAuthInvalid, got %v", err)
	}
}
