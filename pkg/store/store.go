package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/targc/servio/pkg/models"
	"gorm.io/gorm"
)

var (
	// ErrBusy is returned when an insert collides with the partial unique
	// index that allows only one in-progress generation per (client, name).
	ErrBusy = errors.New("another generation is already in progress")

	// ErrInvalidJSON is returned when a write carries a malformed options or
	// result blob. Malformed JSON is rejected, never persisted.
	ErrInvalidJSON = errors.New("field is not a valid JSON object")
)

// SearchFilters narrows a lineage lookup. Zero values mean "any".
type SearchFilters struct {
	Name         string
	DatacenterID string
}

// Store is the version store: an append-mostly table of service generations
// queried by owner and logical service name.
type Store struct {
	DB *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{DB: db}
}

// Latest returns the current generation for (client, name): the row with the
// greatest generation number, ties broken by insertion order. Returns nil when
// the lineage is empty.
func (s *Store) Latest(ctx context.Context, clientID, name string) (*models.Generation, error) {
	var gen models.Generation

	err := s.DB.
		WithContext(ctx).
		Where("client_id = ? AND service_name = ?", clientID, name).
		Order("generation_number DESC, id ASC").
		First(&gen).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest generation: %w", err)
	}

	return &gen, nil
}

// LatestByID is a point lookup scoped to the owning client.
func (s *Store) LatestByID(ctx context.Context, clientID, generationID string) (*models.Generation, error) {
	var gen models.Generation

	err := s.DB.
		WithContext(ctx).
		Where("client_id = ? AND generation_id = ?", clientID, generationID).
		First(&gen).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get generation: %w", err)
	}

	return &gen, nil
}

// ListCatalog returns one row per distinct service name owned by the client,
// each being that name's latest generation, ordered by name ascending. Rows
// come back pre-sorted name-asc/version-desc and the first row per name wins.
func (s *Store) ListCatalog(ctx context.Context, clientID string) ([]models.Generation, error) {
	var rows []models.Generation

	err := s.DB.
		WithContext(ctx).
		Where("client_id = ?", clientID).
		Order("service_name ASC, generation_number DESC, id ASC").
		Find(&rows).
		Error

	if err != nil {
		return nil, fmt.Errorf("failed to list generations: %w", err)
	}

	catalog := make([]models.Generation, 0, len(rows))
	name := ""

	for _, row := range rows {
		if row.ServiceName != name {
			name = row.ServiceName
			catalog = append(catalog, row)
		}
	}

	return catalog, nil
}

// ListBuilds returns the full history for one service name, newest first.
func (s *Store) ListBuilds(ctx context.Context, clientID, name string) ([]models.Generation, error) {
	var rows []models.Generation

	err := s.DB.
		WithContext(ctx).
		Where("client_id = ? AND service_name = ?", clientID, name).
		Order("generation_number DESC, id ASC").
		Find(&rows).
		Error

	if err != nil {
		return nil, fmt.Errorf("failed to list builds: %w", err)
	}

	return rows, nil
}

// GetBuild is a point lookup within one name's history.
func (s *Store) GetBuild(ctx context.Context, clientID, name, generationID string) (*models.Generation, error) {
	var gen models.Generation

	err := s.DB.
		WithContext(ctx).
		Where("client_id = ? AND service_name = ? AND generation_id = ?", clientID, name, generationID).
		First(&gen).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get build: %w", err)
	}

	return &gen, nil
}

// Search returns the highest-version generation matching the filters, or nil.
func (s *Store) Search(ctx context.Context, clientID string, filters SearchFilters) (*models.Generation, error) {
	query := s.DB.
		WithContext(ctx).
		Where("client_id = ?", clientID)

	if filters.Name != "" {
		query = query.Where("service_name = ?", filters.Name)
	}

	if filters.DatacenterID != "" {
		query = query.Where("datacenter_id = ?", filters.DatacenterID)
	}

	var gen models.Generation

	err := query.
		Order("generation_number DESC, id ASC").
		First(&gen).
		Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to search generations: %w", err)
	}

	return &gen, nil
}

// Insert stores a new generation after validating required fields and JSON
// blobs. A duplicate-key failure on the busy guard index surfaces as ErrBusy.
func (s *Store) Insert(ctx context.Context, gen *models.Generation) error {
	err := validateGeneration(gen)

	if err != nil {
		return err
	}

	err = s.DB.WithContext(ctx).Create(gen).Error

	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrBusy
		}
		return fmt.Errorf("failed to insert generation: %w", err)
	}

	return nil
}

// Update applies a column patch to one generation.
func (s *Store) Update(ctx context.Context, generationID string, patch map[string]interface{}) error {
	err := validatePatch(patch)

	if err != nil {
		return err
	}

	err = s.DB.
		WithContext(ctx).
		Model(&models.Generation{}).
		Where("generation_id = ?", generationID).
		Updates(patch).
		Error

	if err != nil {
		return fmt.Errorf("failed to update generation: %w", err)
	}

	return nil
}

// TransitionStatus conditionally moves a generation from one status to
// another, applying extra columns in the same statement. It reports whether
// the row was claimed, so racing writers settle on exactly one winner.
func (s *Store) TransitionStatus(ctx context.Context, generationID, from, to string, patch map[string]interface{}) (bool, error) {
	err := validatePatch(patch)

	if err != nil {
		return false, err
	}

	updates := map[string]interface{}{"status": to}

	for k, v := range patch {
		updates[k] = v
	}

	res := s.DB.
		WithContext(ctx).
		Model(&models.Generation{}).
		Where("generation_id = ? AND status = ?", generationID, from).
		Updates(updates)

	if res.Error != nil {
		return false, fmt.Errorf("failed to transition generation: %w", res.Error)
	}

	return res.RowsAffected > 0, nil
}
