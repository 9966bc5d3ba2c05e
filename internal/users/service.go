package users

import (
	"context"
	"errors"
	"strings"

	"github.com/fedtaxi/hojaruta/internal/models"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrPendingApproval    = errors.New("account pending approval")
	ErrWrongPassword      = errors.New("current password incorrect")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
)

const minPasswordLen = 8

// Service encapsulates user-related business logic
type Service struct {
	repo UserRepository
	cost int
}

func NewService(r UserRepository) *Service {
	return &Service{repo: r, cost: bcrypt.DefaultCost}
}

// NewServiceWithCost lets tests trade hash strength for speed.
func NewServiceWithCost(r UserRepository, cost int) *Service {
	return &Service{repo: r, cost: cost}
}

func normalize(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

func (s *Service) hash(pw string) (string, error) {
	if len(pw) < minPasswordLen {
		return "", ErrWeakPassword
	}
	b, err := bcrypt.GenerateFromPassword([]byte(pw), s.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Register creates an unapproved driver account.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	h, err := s.hash(req.Password)
	if err != nil {
		return nil, err
	}
	u := &models.User{
		Identifier:   normalize(req.Identifier),
		Name:         strings.TrimSpace(req.Name),
		Role:         models.RoleDriver,
		PasswordHash: h,
	}
	return s.repo.Create(ctx, u)
}

// EnsureAdmin seeds an approved admin account when the identifier is unknown.
// The seeded admin must change the password at first login.
func (s *Service) EnsureAdmin(ctx context.Context, identifier, password string) (*models.User, error) {
	existing, err := s.repo.GetByIdentifier(ctx, normalize(identifier))
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	h, err := s.hash(password)
	if err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, &models.User{
		Identifier:         normalize(identifier),
		Name:               "Administrador",
		Role:               models.RoleAdmin,
		Approved:           true,
		MustChangePassword: true,
		PasswordHash:       h,
	})
}

// Authenticate checks the password and the approval state.
func (s *Service) Authenticate(ctx context.Context, identifier, password string) (*models.User, error) {
	u, err := s.repo.GetByIdentifier(ctx, normalize(identifier))
	if err != nil {
		return nil, err
	}
	if u == nil {
		// burn comparable time so unknown identifiers are not distinguishable by latency
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$7EqJtq98hPqEX7fNZaFWoOhi5BWX4Z1ZQ2Z8ZpvYJ5M0QYgkJfY7W"), []byte(password))
		return nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	if !u.Approved {
		return nil, ErrPendingApproval
	}
	return u, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*models.User, error) {
	return s.repo.GetByID(ctx, id)
}

// Approve marks a pending account as approved.
func (s *Service) Approve(ctx context.Context, id string) (*models.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrNotFound
	}
	u.Approved = true
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// ChangePassword verifies current and stores next, clearing the forced-change flag.
func (s *Service) ChangePassword(ctx context.Context, id, current, next string) error {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if u == nil {
		return ErrNotFound
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)) != nil {
		return ErrWrongPassword
	}
	h, err := s.hash(next)
	if err != nil {
		return err
	}
	u.PasswordHash = h
	u.MustChangePassword = false
	return s.repo.Update(ctx, u)
}
