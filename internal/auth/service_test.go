package auth

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/localbite/internal/model"
	"github.com/hitoshi/localbite/internal/repository"
	"github.com/hitoshi/localbite/internal/security"
)

// --- モック定義 ---

type mockUserRepo struct {
	findByIDFn       func(ctx context.Context, id string) (*model.User, error)
	findByEmailFn    func(ctx context.Context, email string) (*model.User, error)
	findByUsernameFn func(ctx context.Context, username string) (*model.User, error)
	createFn         func(ctx context.Context, user *model.User) error
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	if m.findByUsernameFn != nil {
		return m.findByUsernameFn(ctx, username)
	}
	return nil, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return nil
}

func (m *mockUserRepo) Update(_ context.Context, _ string, _ model.UserUpdate) error {
	return nil
}

func (m *mockUserRepo) DeleteWithFavs(_ context.Context, _ string) error {
	return nil
}

var _ repository.UserRepository = (*mockUserRepo)(nil)

// --- ヘルパー ---

func newTestService(t *testing.T, repo *mockUserRepo, buf *bytes.Buffer) *Service {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return NewService(repo, newTestTokenManager(t), security.NewTextSanitizer(), logger, bcrypt.MinCost)
}

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("GenerateFromPassword() error = %v", err)
	}
	return string(h)
}

func validSignup() SignupInput {
	return SignupInput{
		Fullname: "Hana Sato",
		Username: "hana",
		Email:    "  Hana@Example.COM ",
		Password: "correct horse",
	}
}

func assertAPIError(t *testing.T, err error, code string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *model.APIError(%s)", err, code)
	}
	if apiErr.Code != code {
		t.Errorf("Code = %s, want %s", apiErr.Code, code)
	}
}

// --- Signup ---

func TestSignup_CreatesUserAndIssuesToken(t *testing.T) {
	var created *model.User
	repo := &mockUserRepo{createFn: func(ctx context.Context, user *model.User) error {
		created = user
		return nil
	}}
	var buf bytes.Buffer
	svc := newTestService(t, repo, &buf)

	sess, err := svc.Signup(context.Background(), validSignup())
	if err != nil {
		t.Fatalf("Signup() error = %v", err)
	}

	if created == nil {
		t.Fatal("ユーザーが作成されていない")
	}
	if created.Email != "hana@example.com" {
		t.Errorf("Email = %q, want lowercased", created.Email)
	}
	if created.PasswordHash == "" || created.PasswordHash == "correct horse" {
		t.Error("パスワードはハッシュ化して保存するべき")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(created.PasswordHash), []byte("correct horse")); err != nil {
		t.Errorf("ハッシュが元のパスワードと一致しない: %v", err)
	}

	userID, err := svc.Authenticate(sess.Token)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if userID != created.ID {
		t.Errorf("token subject = %s, want %s", userID, created.ID)
	}
}

func TestSignup_Validation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(in *SignupInput)
	}{
		{"short password", func(in *SignupInput) { in.Password = "short" }},
		{"invalid email", func(in *SignupInput) { in.Email = "not-an-email" }},
		{"blank fullname", func(in *SignupInput) { in.Fullname = " <b></b> " }},
		{"username with space", func(in *SignupInput) { in.Username = "ha na" }},
		{"short username", func(in *SignupInput) { in.Username = "ha" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			created := false
			repo := &mockUserRepo{createFn: func(ctx context.Context, user *model.User) error {
				created = true
				return nil
			}}
			var buf bytes.Buffer
			svc := newTestService(t, repo, &buf)

			in := validSignup()
			tt.modify(&in)
			_, err := svc.Signup(context.Background(), in)
			assertAPIError(t, err, model.ErrCodeValidation)
			if created {
				t.Error("検証エラー時にユーザーを作成してはならない")
			}
		})
	}
}

func TestSignup_Duplicate(t *testing.T) {
	tests := []struct {
		constraint string
		wantMsg    string
	}{
		{repository.ConstraintUserEmail, "このメールアドレスは既に使用されています。"},
		{repository.ConstraintUserUsername, "このユーザー名は既に使用されています。"},
	}

	for _, tt := range tests {
		t.Run(tt.constraint, func(t *testing.T) {
			repo := &mockUserRepo{createFn: func(ctx context.Context, user *model.User) error {
				return &repository.DuplicateKeyError{Constraint: tt.constraint}
			}}
			var buf bytes.Buffer
			svc := newTestService(t, repo, &buf)

			_, err := svc.Signup(context.Background(), validSignup())
			assertAPIError(t, err, model.ErrCodeConflict)

			var apiErr *model.APIError
			errors.As(err, &apiErr)
			if apiErr.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", apiErr.Message, tt.wantMsg)
			}
		})
	}
}

func TestSignup_RepositoryError(t *testing.T) {
	repo := &mockUserRepo{createFn: func(ctx context.Context, user *model.User) error {
		return errors.New("connection refused")
	}}
	var buf bytes.Buffer
	svc := newTestService(t, repo, &buf)

	_, err := svc.Signup(context.Background(), validSignup())
	if err == nil {
		t.Fatal("エラーを返すべき")
	}
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		t.Errorf("内部エラーはAPIErrorにしない: %v", err)
	}
}

// --- Signin ---

func TestSignin_ByEmailAndUsername(t *testing.T) {
	stored := &model.User{ID: "user-1", Email: "hana@example.com", Username: "hana", PasswordHash: hashPassword(t, "correct horse")}

	var emailLookup, usernameLookup string
	repo := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			emailLookup = email
			return stored, nil
		},
		findByUsernameFn: func(ctx context.Context, username string) (*model.User, error) {
			usernameLookup = username
			return stored, nil
		},
	}
	var buf bytes.Buffer
	svc := newTestService(t, repo, &buf)

	sess, err := svc.Signin(context.Background(), SigninInput{Identifier: "Hana@Example.com", Password: "correct horse"})
	if err != nil {
		t.Fatalf("Signin(email) error = %v", err)
	}
	if emailLookup != "hana@example.com" {
		t.Errorf("email lookup = %q, want lowercased", emailLookup)
	}
	if sess.User.ID != "user-1" || sess.Token == "" {
		t.Errorf("session = %+v", sess)
	}

	if _, err := svc.Signin(context.Background(), SigninInput{Identifier: " hana ", Password: "correct horse"}); err != nil {
		t.Fatalf("Signin(username) error = %v", err)
	}
	if usernameLookup != "hana" {
		t.Errorf("username lookup = %q, want hana", usernameLookup)
	}
}

// 存在しないユーザーとパスワード不一致は同じエラーを返す
func TestSignin_InvalidCredentials(t *testing.T) {
	stored := &model.User{ID: "user-1", Username: "hana", PasswordHash: hashPassword(t, "correct horse")}
	repo := &mockUserRepo{findByUsernameFn: func(ctx context.Context, username string) (*model.User, error) {
		if username == "hana" {
			return stored, nil
		}
		return nil, nil
	}}
	var buf bytes.Buffer
	svc := newTestService(t, repo, &buf)

	_, err := svc.Signin(context.Background(), SigninInput{Identifier: "hana", Password: "wrong password"})
	assertAPIError(t, err, model.ErrCodeInvalidCredentials)

	_, err = svc.Signin(context.Background(), SigninInput{Identifier: "nobody", Password: "correct horse"})
	assertAPIError(t, err, model.ErrCodeInvalidCredentials)
}

func TestSignin_Validation(t *testing.T) {
	var buf bytes.Buffer
	svc := newTestService(t, &mockUserRepo{}, &buf)

	_, err := svc.Signin(context.Background(), SigninInput{Identifier: "  ", Password: "x"})
	assertAPIError(t, err, model.ErrCodeValidation)
}

func TestConflictFromDuplicate_NonDuplicate(t *testing.T) {
	if got := ConflictFromDuplicate(errors.New("boom")); got != nil {
		t.Errorf("ConflictFromDuplicate() = %v, want nil", got)
	}
}
