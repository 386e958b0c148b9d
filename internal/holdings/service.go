package holdings

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/trogers1052/holdings-service/internal/models"
)

// RemoteFetcher retrieves the authoritative holdings list
type RemoteFetcher interface {
	FetchHoldings(ctx context.Context) ([]models.Holding, error)
}

// Repository defines the durable store operations the service needs
type Repository interface {
	GetAllHoldings(ctx context.Context) ([]models.Holding, error)
	ReplaceAllHoldings(ctx context.Context, holdings []models.Holding) error
	AppendHoldings(ctx context.Context, holdings []models.Holding) error
	DeleteAllHoldings(ctx context.Context) error
}

// Service is the single data source for holdings. It fronts the remote
// source, the durable local store, and the last-known-good snapshot.
type Service struct {
	remote   RemoteFetcher
	repo     Repository
	snapshot SnapshotStore
	logger   logrus.FieldLogger
}

// NewService wires a Service. A nil snapshot uses a MemorySnapshot.
func NewService(remote RemoteFetcher, repo Repository, snapshot SnapshotStore, logger logrus.FieldLogger) *Service {
	if snapshot == nil {
		snapshot = NewMemorySnapshot()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{
		remote:   remote,
		repo:     repo,
		snapshot: snapshot,
		logger:   logger.WithField("component", "holdings"),
	}
}

// FetchLocal returns every holding in the durable store.
func (s *Service) FetchLocal(ctx context.Context) ([]models.Holding, error) {
	holdings, err := s.repo.GetAllHoldings(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLocalRead, err)
	}
	return holdings, nil
}

// FetchRemote fetches the holdings and, on success, replaces the snapshot.
// An empty result is a success.
func (s *Service) FetchRemote(ctx context.Context) ([]models.Holding, error) {
	holdings, err := s.remote.FetchHoldings(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRemoteFetch, err)
	}
	if holdings == nil {
		holdings = []models.Holding{}
	}

	if err := s.snapshot.Store(ctx, holdings); err != nil {
		s.logger.WithError(err).Warn("Failed to store holdings snapshot")
	}
	return holdings, nil
}

// CachedSnapshot returns the last successful remote result, or an empty
// list when there is none.
func (s *Service) CachedSnapshot(ctx context.Context) []models.Holding {
	holdings, err := s.snapshot.Load(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to load holdings snapshot")
		return []models.Holding{}
	}
	if holdings == nil {
		return []models.Holding{}
	}
	return holdings
}

// Persist replaces the durable store contents with holdings.
func (s *Service) Persist(ctx context.Context, holdings []models.Holding) error {
	if err := s.repo.ReplaceAllHoldings(ctx, holdings); err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}

// Append adds holdings to the durable store without removing existing rows.
func (s *Service) Append(ctx context.Context, holdings []models.Holding) error {
	if err := s.repo.AppendHoldings(ctx, holdings); err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}

// Delete removes every holding from the durable store.
func (s *Service) Delete(ctx context.Context) error {
	if err := s.repo.DeleteAllHoldings(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}
