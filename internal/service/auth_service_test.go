package service

import (
	"errors"
	"testing"

	"hearthsync/internal/models"

	"golang.org/x/crypto/bcrypt"
)

type fakeUserRepo struct {
	users  map[string]*models.User
	nextID int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]*models.User{}, nextID: 1}
}

func (r *fakeUserRepo) Create(username, hash string) (int, error) {
	if _, ok := r.users[username]; ok {
		return 0, errors.New("username taken")
	}
	id := r.nextID
	r.nextID++
	r.users[username] = &models.User{ID: id, Username: username, PasswordHash: hash}
	return id, nil
}

func (r *fakeUserRepo) GetByUsername(username string) (*models.User, error) {
	return r.users[username], nil
}

func TestSignUpHashesPassword(t *testing.T) {
	repo := newFakeUserRepo()
	svc := NewAuthService(repo)

	id, err := svc.SignUp("alice", "s3cret")
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if id != 1 {
		t.Fatalf("expected id 1, got %d", id)
	}
	u := repo.users["alice"]
	if u.PasswordHash == "s3cret" {
		t.Fatal("password stored in plaintext")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("s3cret")); err != nil {
		t.Fatalf("stored hash does not verify: %v", err)
	}
}

func TestSignUpRejectsEmptyPassword(t *testing.T) {
	svc := NewAuthService(newFakeUserRepo())
	if _, err := svc.SignUp("alice", "   "); err == nil {
		t.Fatal("expected error for blank password")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	repo := newFakeUserRepo()
	svc := NewAuthService(repo)
	if _, err := svc.SignUp("alice", "s3cret"); err != nil {
		t.Fatalf("sign up: %v", err)
	}

	token, err := svc.GenerateToken("alice", "s3cret")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	userID, err := svc.ParseToken(token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if userID != 1 {
		t.Fatalf("expected user id 1, got %d", userID)
	}
}

func TestGenerateTokenWrongPassword(t *testing.T) {
	repo := newFakeUserRepo()
	svc := NewAuthService(repo)
	if _, err := svc.SignUp("alice", "s3cret"); err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if _, err := svc.GenerateToken("alice", "wrong"); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}
}

func TestGenerateTokenUnknownUser(t *testing.T) {
	svc := NewAuthService(newFakeUserRepo())
	if _, err := svc.GenerateToken("ghost", "x"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestParseTokenGarbage(t *testing.T) {
	svc := NewAuthService(newFakeUserRepo())
	if _, err := svc.ParseToken("not.a.token"); err == nil {
		t.Fatal("expected error for malformed token")
	}
}
