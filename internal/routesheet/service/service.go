package service

import (
	"context"
	"errors"
	"strings"

	"github.com/fedtaxi/hojaruta/internal/models"
	"github.com/fedtaxi/hojaruta/internal/routesheet/repository"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrNotFound = errors.New("not found")
)

// Service defines the route-sheet operations used by the handler layer.
// Every call is scoped to the requesting user; another user's sheet is reported as not found.
type Service interface {
	Create(ctx context.Context, ownerID string, req models.CreateRouteSheetRequest) (*models.RouteSheet, error)
	Get(ctx context.Context, ownerID, id string) (*models.RouteSheet, error)
	List(ctx context.Context, ownerID string) ([]*models.RouteSheet, error)
	PDF(ctx context.Context, ownerID, id string) ([]byte, error)
}

// NewMemoryService returns a Service backed by the in-memory repository.
func NewMemoryService() Service {
	return New(repository.NewMemoryRepo())
}

// NewMongoService returns a Service backed by a MongoDB collection.
func NewMongoService(ctx context.Context, col *mongo.Collection) Service {
	return New(repository.NewMongoRepo(ctx, col))
}

func New(repo repository.Repository) Service {
	return &service{repo: repo}
}

type service struct {
	repo repository.Repository
}

func (s *service) Create(ctx context.Context, ownerID string, req models.CreateRouteSheetRequest) (*models.RouteSheet, error) {
	rs := &models.RouteSheet{
		OwnerID:      ownerID,
		ServiceDate:  req.ServiceDate,
		VehiclePlate: strings.ToUpper(strings.ReplaceAll(req.VehiclePlate, " ", "")),
		Origin:       req.Origin,
		Destination:  req.Destination,
		Passengers:   req.Passengers,
		Notes:        req.Notes,
		PDF:          req.PDF,
	}
	if _, err := s.repo.Create(ctx, rs); err != nil {
		return nil, err
	}
	rs.PDF = nil
	return rs, nil
}

func (s *service) Get(ctx context.Context, ownerID, id string) (*models.RouteSheet, error) {
	rs, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if rs.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	return rs, nil
}

func (s *service) List(ctx context.Context, ownerID string) ([]*models.RouteSheet, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

func (s *service) PDF(ctx context.Context, ownerID, id string) ([]byte, error) {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return nil, err
	}
	b, err := s.repo.PDF(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	return b, err
}
