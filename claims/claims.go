// Package claims stores the claim text a user is being coached on and keeps
// the questionnaire's copy of it current.
package claims

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var (
	ErrUnauthenticated = errors.New("claims: unauthenticated")
	ErrNotFound        = errors.New("claims: claim not found")
	ErrInvalidClaim    = errors.New("claims: invalid claim")
)

// Placeholder business fields reported with every claim.
const (
	StatusInProgress = "IN_PROGRESS"
	createdProgress  = 0
	listedProgress   = 30
)

var validate = validator.New()

// Claim is one user's saved claim text.
type Claim struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Text      string    `json:"claim"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Enriched is a claim as returned to clients.
type Enriched struct {
	Claim
	Status   string `json:"status"`
	Progress int    `json:"progress"`
}

// CreateRequest is the body of a create call.
type CreateRequest struct {
	Claim string `json:"claim" validate:"required,max=2000"`
}

// UpdateRequest is the body of an update call. An empty Claim only touches
// the record.
type UpdateRequest struct {
	ID    string `json:"id" validate:"required"`
	Claim string `json:"claim" validate:"max=2000"`
}

func (r CreateRequest) Validate() error { return check(r) }
func (r UpdateRequest) Validate() error { return check(r) }

func check(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidClaim, err)
	}
	return nil
}

// Store persists claims. GetClaim returns nil, nil when the id is unknown.
type Store interface {
	CreateClaim(ctx context.Context, c Claim) error
	GetClaim(ctx context.Context, id string) (*Claim, error)
	// ListClaims returns a user's claims, most recently updated first.
	ListClaims(ctx context.Context, userID string) ([]Claim, error)
	UpdateClaim(ctx context.Context, c Claim) error
}

// Service applies authentication and ownership rules on top of a Store.
type Service struct {
	store Store
	now   func() time.Time
	newID func() string
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

func WithClock(now func() time.Time) ServiceOption { return func(s *Service) { s.now = now } }
func WithIDs(newID func() string) ServiceOption    { return func(s *Service) { s.newID = newID } }

func NewService(store Store, opts ...ServiceOption) *Service {
	s := &Service{store: store, now: time.Now, newID: uuid.NewString}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create saves a new claim for userID.
func (s *Service) Create(ctx context.Context, userID string, req CreateRequest) (Enriched, error) {
	if userID == "" {
		return Enriched{}, ErrUnauthenticated
	}
	req.Claim = strings.TrimSpace(req.Claim)
	if err := req.Validate(); err != nil {
		return Enriched{}, err
	}
	now := s.now().UTC()
	c := Claim{ID: s.newID(), UserID: userID, Text: req.Claim, CreatedAt: now, UpdatedAt: now}
	if err := s.store.CreateClaim(ctx, c); err != nil {
		return Enriched{}, fmt.Errorf("claims: create: %w", err)
	}
	return Enriched{Claim: c, Status: StatusInProgress, Progress: createdProgress}, nil
}

// List returns userID's claims, most recently updated first.
func (s *Service) List(ctx context.Context, userID string) ([]Enriched, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	list, err := s.store.ListClaims(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("claims: list: %w", err)
	}
	slices.SortStableFunc(list, func(a, b Claim) int { return b.UpdatedAt.Compare(a.UpdatedAt) })

	out := make([]Enriched, len(list))
	for i, c := range list {
		out[i] = Enriched{Claim: c, Status: StatusInProgress, Progress: listedProgress}
	}
	return out, nil
}

// Update changes a claim owned by userID. Claims of other users are reported
// as not found.
func (s *Service) Update(ctx context.Context, userID string, req UpdateRequest) (Enriched, error) {
	if userID == "" {
		return Enriched{}, ErrUnauthenticated
	}
	req.Claim = strings.TrimSpace(req.Claim)
	if err := req.Validate(); err != nil {
		return Enriched{}, err
	}
	c, err := s.store.GetClaim(ctx, req.ID)
	if err != nil {
		return Enriched{}, fmt.Errorf("claims: get: %w", err)
	}
	if c == nil || c.UserID != userID {
		return Enriched{}, fmt.Errorf("%w: %s", ErrNotFound, req.ID)
	}
	if req.Claim != "" {
		c.Text = req.Claim
	}
	c.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateClaim(ctx, *c); err != nil {
		return Enriched{}, fmt.Errorf("claims: update: %w", err)
	}
	return Enriched{Claim: *c, Status: StatusInProgress, Progress: listedProgress}, nil
}

// Latest returns the text of userID's most recently updated claim, or "".
func (s *Service) Latest(ctx context.Context, userID string) (string, error) {
	list, err := s.List(ctx, userID)
	if err != nil || len(list) == 0 {
		return "", err
	}
	return list[0].Text, nil
}
