package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/targc/servio/pkg/database"
	"github.com/targc/servio/pkg/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type StoreTestSuite struct {
	suite.Suite

	db    *gorm.DB
	store *Store
	ctx   context.Context
}

func (s *StoreTestSuite) SetupTest() {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
	})
	s.Require().NoError(err)

	sqlDB, err := db.DB()
	s.Require().NoError(err)
	sqlDB.SetMaxOpenConns(1)

	s.Require().NoError(db.AutoMigrate(&models.Generation{}))
	s.Require().NoError(database.RunMigrations(db))

	s.db = db
	s.store = NewStore(db)
	s.ctx = context.Background()
}

func (s *StoreTestSuite) insert(name, generationID, status string, number int64) *models.Generation {
	endpoint := ""

	gen := &models.Generation{
		GenerationID:     generationID,
		ClientID:         "client-1",
		DatacenterID:     "dc-1",
		ServiceName:      name,
		ServiceKind:      "vcloud",
		GenerationNumber: number,
		Status:           status,
		Options:          []byte("{}"),
		Definition:       "name: " + name,
		Endpoint:         &endpoint,
	}

	s.Require().NoError(s.store.Insert(s.ctx, gen))

	return gen
}

func (s *StoreTestSuite) TestLatestPicksHighestNumber() {
	s.insert("svc-a", "gen-1", models.StatusDone, 100)
	s.insert("svc-a", "gen-2", models.StatusDone, 300)
	s.insert("svc-a", "gen-3", models.StatusDone, 200)

	latest, err := s.store.Latest(s.ctx, "client-1", "svc-a")
	s.Require().NoError(err)
	s.Require().NotNil(latest)
	s.Equal("gen-2", latest.GenerationID)
}

func (s *StoreTestSuite) TestLatestTiesBreakByInsertionOrder() {
	s.insert("svc-a", "gen-1", models.StatusDone, 100)
	s.insert("svc-a", "gen-2", models.StatusDone, 100)

	latest, err := s.store.Latest(s.ctx, "client-1", "svc-a")
	s.Require().NoError(err)
	s.Require().NotNil(latest)
	s.Equal("gen-1", latest.GenerationID)
}

func (s *StoreTestSuite) TestLatestEmptyLineage() {
	latest, err := s.store.Latest(s.ctx, "client-1", "svc-a")
	s.Require().NoError(err)
	s.Nil(latest)
}

func (s *StoreTestSuite) TestLatestScopedToClient() {
	s.insert("svc-a", "gen-1", models.StatusDone, 100)

	latest, err := s.store.Latest(s.ctx, "client-2", "svc-a")
	s.Require().NoError(err)
	s.Nil(latest)
}

func (s *StoreTestSuite) TestCatalogCollapsesHistory() {
	number := int64(100)

	for _, name := range []string{"svc-a", "svc-b", "svc-c"} {
		for i := 0; i < 3; i++ {
			number++
			s.insert(name, fmt.Sprintf("%s-%d", name, i), models.StatusDone, number)
		}
	}

	catalog, err := s.store.ListCatalog(s.ctx, "client-1")
	s.Require().NoError(err)
	s.Require().Len(catalog, 3)

	s.Equal("svc-a", catalog[0].ServiceName)
	s.Equal("svc-b", catalog[1].ServiceName)
	s.Equal("svc-c", catalog[2].ServiceName)

	s.Equal(int64(103), catalog[0].GenerationNumber)
	s.Equal(int64(106), catalog[1].GenerationNumber)
	s.Equal(int64(109), catalog[2].GenerationNumber)
}

func (s *StoreTestSuite) TestListBuildsNewestFirst() {
	s.insert("svc-a", "gen-1", models.StatusDone, 100)
	s.insert("svc-a", "gen-2", models.StatusErrored, 200)
	s.insert("svc-b", "gen-3", models.StatusDone, 300)

	builds, err := s.store.ListBuilds(s.ctx, "client-1", "svc-a")
	s.Require().NoError(err)
	s.Require().Len(builds, 2)
	s.Equal("gen-2", builds[0].GenerationID)
	s.Equal("gen-1", builds[1].GenerationID)
}

func (s *StoreTestSuite) TestGetBuildScopedToName() {
	s.insert("svc-a", "gen-1", models.StatusDone, 100)

	gen, err := s.store.GetBuild(s.ctx, "client-1", "svc-b", "gen-1")
	s.Require().NoError(err)
	s.Nil(gen)

	gen, err = s.store.GetBuild(s.ctx, "client-1", "svc-a", "gen-1")
	s.Require().NoError(err)
	s.Require().NotNil(gen)
	s.Equal("gen-1", gen.GenerationID)
}

func (s *StoreTestSuite) TestSearchFilters() {
	s.insert("svc-a", "gen-1", models.StatusDone, 100)

	gen := s.insert("svc-b", "gen-2", models.StatusDone, 200)
	gen.DatacenterID = "dc-2"
	s.Require().NoError(s.db.Save(gen).Error)

	match, err := s.store.Search(s.ctx, "client-1", SearchFilters{DatacenterID: "dc-2"})
	s.Require().NoError(err)
	s.Require().NotNil(match)
	s.Equal("gen-2", match.GenerationID)

	match, err = s.store.Search(s.ctx, "client-1", SearchFilters{Name: "svc-a"})
	s.Require().NoError(err)
	s.Require().NotNil(match)
	s.Equal("gen-1", match.GenerationID)

	match, err = s.store.Search(s.ctx, "client-1", SearchFilters{Name: "svc-z"})
	s.Require().NoError(err)
	s.Nil(match)
}

func (s *StoreTestSuite) TestInsertRejectsMissingFields() {
	endpoint := ""

	gen := &models.Generation{
		GenerationID: "gen-1",
		ClientID:     "client-1",
		ServiceName:  "svc-a",
		ServiceKind:  "vcloud",
		Status:       models.StatusPending,
		Options:      []byte("{}"),
		Endpoint:     &endpoint,
	}

	err := s.store.Insert(s.ctx, gen)
	s.Require().Error(err)
	s.Contains(err.Error(), "datacenter_id")
}

func (s *StoreTestSuite) TestInsertRejectsNilEndpoint() {
	gen := &models.Generation{
		GenerationID: "gen-1",
		ClientID:     "client-1",
		DatacenterID: "dc-1",
		ServiceName:  "svc-a",
		ServiceKind:  "vcloud",
		Status:       models.StatusPending,
		Options:      []byte("{}"),
	}

	err := s.store.Insert(s.ctx, gen)
	s.Require().Error(err)
	s.Contains(err.Error(), "endpoint")
}

func (s *StoreTestSuite) TestInsertRejectsMalformedJSON() {
	endpoint := ""

	gen := &models.Generation{
		GenerationID: "gen-1",
		ClientID:     "client-1",
		DatacenterID: "dc-1",
		ServiceName:  "svc-a",
		ServiceKind:  "vcloud",
		Status:       models.StatusPending,
		Options:      []byte("{not json"),
		Endpoint:     &endpoint,
	}

	err := s.store.Insert(s.ctx, gen)
	s.Require().ErrorIs(err, ErrInvalidJSON)

	gen.Options = []byte("{}")
	gen.Result = []byte(`["not", "an", "object"]`)

	err = s.store.Insert(s.ctx, gen)
	s.Require().ErrorIs(err, ErrInvalidJSON)

	// a literal null decodes cleanly but is not an object
	gen.Options = []byte("null")
	gen.Result = nil

	err = s.store.Insert(s.ctx, gen)
	s.Require().ErrorIs(err, ErrInvalidJSON)
}

func (s *StoreTestSuite) TestBusyGuardRejectsSecondInProgress() {
	s.insert("svc-a", "gen-1", models.StatusInProgress, 100)

	endpoint := ""

	gen := &models.Generation{
		GenerationID:     "gen-2",
		ClientID:         "client-1",
		DatacenterID:     "dc-1",
		ServiceName:      "svc-a",
		ServiceKind:      "vcloud",
		GenerationNumber: 200,
		Status:           models.StatusInProgress,
		Options:          []byte("{}"),
		Endpoint:         &endpoint,
	}

	err := s.store.Insert(s.ctx, gen)
	s.Require().ErrorIs(err, ErrBusy)

	// a finished generation does not hold the guard
	gen.ServiceName = "svc-b"
	s.Require().NoError(s.store.Insert(s.ctx, gen))
}

func (s *StoreTestSuite) TestBusyGuardUnderConcurrentInserts() {
	results := make(chan error, 2)

	for i := 0; i < 2; i++ {
		endpoint := ""

		gen := &models.Generation{
			GenerationID:     fmt.Sprintf("gen-%d", i),
			ClientID:         "client-1",
			DatacenterID:     "dc-1",
			ServiceName:      "svc-a",
			ServiceKind:      "vcloud",
			GenerationNumber: int64(100 + i),
			Status:           models.StatusInProgress,
			Options:          []byte("{}"),
			Endpoint:         &endpoint,
		}

		go func(gen *models.Generation) {
			results <- s.store.Insert(s.ctx, gen)
		}(gen)
	}

	var inserted, busy int

	for i := 0; i < 2; i++ {
		err := <-results

		switch {
		case err == nil:
			inserted++
		case errors.Is(err, ErrBusy):
			busy++
		default:
			s.FailNow("unexpected insert error", err)
		}
	}

	s.Equal(1, inserted)
	s.Equal(1, busy)

	var count int64
	s.Require().NoError(s.db.Model(&models.Generation{}).Count(&count).Error)
	s.Equal(int64(1), count)
}

func (s *StoreTestSuite) TestUpdateValidatesJSONFields() {
	s.insert("svc-a", "gen-1", models.StatusDone, 100)

	err := s.store.Update(s.ctx, "gen-1", map[string]interface{}{
		"options": "{broken",
	})
	s.Require().ErrorIs(err, ErrInvalidJSON)

	err = s.store.Update(s.ctx, "gen-1", map[string]interface{}{
		"result": "null",
	})
	s.Require().ErrorIs(err, ErrInvalidJSON)

	err = s.store.Update(s.ctx, "gen-1", map[string]interface{}{
		"status": nil,
	})
	s.Require().Error(err)
}

func (s *StoreTestSuite) TestTransitionStatusClaimsOnce() {
	s.insert("svc-a", "gen-1", models.StatusInProgress, 100)

	claimed, err := s.store.TransitionStatus(s.ctx, "gen-1", models.StatusInProgress, models.StatusErrored, map[string]interface{}{
		"error": "builder said no",
	})
	s.Require().NoError(err)
	s.True(claimed)

	claimed, err = s.store.TransitionStatus(s.ctx, "gen-1", models.StatusInProgress, models.StatusErrored, nil)
	s.Require().NoError(err)
	s.False(claimed)

	gen, err := s.store.Latest(s.ctx, "client-1", "svc-a")
	s.Require().NoError(err)
	s.Require().NotNil(gen)
	s.Equal(models.StatusErrored, gen.Status)
	s.Require().NotNil(gen.Error)
	s.Equal("builder said no", *gen.Error)
}

func (s *StoreTestSuite) TestOptionsRoundTrip() {
	endpoint := ""
	options := map[string]interface{}{"sync": true, "interval": "5m"}

	raw, err := json.Marshal(options)
	s.Require().NoError(err)

	gen := &models.Generation{
		GenerationID:     "gen-1",
		ClientID:         "client-1",
		DatacenterID:     "dc-1",
		ServiceName:      "svc-a",
		ServiceKind:      "vcloud",
		GenerationNumber: 100,
		Status:           models.StatusDone,
		Options:          raw,
		Result:           []byte(`{"vms":[{"name":"web-1"}]}`),
		Endpoint:         &endpoint,
	}

	s.Require().NoError(s.store.Insert(s.ctx, gen))

	stored, err := s.store.Latest(s.ctx, "client-1", "svc-a")
	s.Require().NoError(err)
	s.Require().NotNil(stored)

	var decoded map[string]interface{}
	s.Require().NoError(json.Unmarshal(stored.Options, &decoded))
	s.Equal(true, decoded["sync"])
	s.Equal("5m", decoded["interval"])

	var result map[string]interface{}
	s.Require().NoError(json.Unmarshal(stored.Result, &result))
	s.Len(result["vms"], 1)
}

func TestStoreTestSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}
