package engine

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/targc/servio/pkg/gateway"
	"github.com/targc/servio/pkg/models"
	"github.com/targc/servio/pkg/store"
)

const defaultServiceKind = "vcloud"

// fakeProvider marks synthetic requests that must not hit the directory.
const fakeProvider = "fake"

// fakeDatacenter is the stub used for synthetic providers.
var fakeDatacenter = map[string]interface{}{
	"datacenter_id":       "fake",
	"datacenter_name":     "fake",
	"datacenter_username": "fake",
	"datacenter_password": "fake",
	"datacenter_region":   "fake",
	"datacenter_type":     "fake",
	"external_network":    "fake",
	"vse_url":             "http://vse.url/",
	"vcloud_url":          "fake",
}

// VersionStore is the persistence contract the engine drives.
type VersionStore interface {
	Latest(ctx context.Context, clientID, name string) (*models.Generation, error)
	LatestByID(ctx context.Context, clientID, generationID string) (*models.Generation, error)
	ListCatalog(ctx context.Context, clientID string) ([]models.Generation, error)
	ListBuilds(ctx context.Context, clientID, name string) ([]models.Generation, error)
	GetBuild(ctx context.Context, clientID, name, generationID string) (*models.Generation, error)
	Search(ctx context.Context, clientID string, filters store.SearchFilters) (*models.Generation, error)
	Insert(ctx context.Context, gen *models.Generation) error
	Update(ctx context.Context, generationID string, patch map[string]interface{}) error
	TransitionStatus(ctx context.Context, generationID, from, to string, patch map[string]interface{}) (bool, error)
}

// Gateway issues provisioning calls to the external builder.
type Gateway interface {
	Create(ctx context.Context, req gateway.CreateRequest) error
	Patch(ctx context.Context, generationID string) error
	Teardown(ctx context.Context, generationID string) error
	Status(ctx context.Context, generationID string) ([]byte, error)
}

// Directory resolves datacenters and clients.
type Directory interface {
	Datacenter(ctx context.Context, token, name string) (map[string]interface{}, error)
	Client(ctx context.Context, token, clientID string) (map[string]interface{}, error)
}

// Observer counts lifecycle operations and upstream calls.
type Observer interface {
	ObserveOperation(operation, outcome string)
	ObserveUpstream(target, outcome string)
}

type nopObserver struct{}

func (nopObserver) ObserveOperation(string, string) {}
func (nopObserver) ObserveUpstream(string, string)  {}

// Engine applies the lifecycle rules: create-vs-patch decisions, the busy
// guard, status transitions, and the version history queries.
type Engine struct {
	store     VersionStore
	gateway   Gateway
	directory Directory
	logger    zerolog.Logger
	observer  Observer
}

func NewEngine(s VersionStore, gw Gateway, dir Directory, logger zerolog.Logger, obs Observer) *Engine {
	if obs == nil {
		obs = nopObserver{}
	}

	return &Engine{
		store:     s,
		gateway:   gw,
		directory: dir,
		logger:    logger,
		observer:  obs,
	}
}

// CreateInput carries one inbound create request.
type CreateInput struct {
	ClientID    string
	Token       string
	Body        []byte
	ContentType string
}

// Create decides whether the request starts a new generation, resumes an
// errored one, or is rejected because the lineage is busy. Returns the
// generation id the builder is now working on.
func (e *Engine) Create(ctx context.Context, in CreateInput) (string, error) {
	id, err := e.create(ctx, in)

	e.observe("create", err)

	return id, err
}

func (e *Engine) create(ctx context.Context, in CreateInput) (string, error) {
	payload, err := DecodePayload(in.Body, in.ContentType)

	if err != nil {
		return "", err
	}

	name := payloadString(payload, "name")

	if name == "" {
		return "", newError(KindInvalidRequest, "service name can't be null")
	}

	datacenterName := payloadString(payload, "datacenter")
	datacenter := fakeDatacenter

	if payloadString(payload, "provider") != fakeProvider {
		datacenter, err = e.directory.Datacenter(ctx, in.Token, datacenterName)
		e.observeUpstream("directory", err)

		if err != nil {
			return "", wrapError(KindBadUpstreamRequest, "failed to resolve datacenter", err)
		}

		if datacenter == nil {
			return "", newError(KindNotFound, "specified datacenter does not exist")
		}
	}

	client, err := e.directory.Client(ctx, in.Token, in.ClientID)
	e.observeUpstream("directory", err)

	if err != nil {
		return "", wrapError(KindBadUpstreamRequest, "failed to resolve client", err)
	}

	previous, err := e.store.Latest(ctx, in.ClientID, name)

	if err != nil {
		return "", wrapError(KindInternal, "failed to read latest generation", err)
	}

	if previous != nil && previous.Status == models.StatusInProgress {
		return "", newError(KindConflict, "service is already applying some changes, please wait until they are done")
	}

	if previous != nil && previous.Status == models.StatusErrored {
		// Resume the failed generation in place: same id, no new row. The row
		// is claimed back to in_progress first so the busy guard holds while
		// the builder works and the completion callback can land.
		claimed, err := e.store.TransitionStatus(ctx, previous.GenerationID, models.StatusErrored, models.StatusInProgress, map[string]interface{}{
			"error": nil,
		})

		if err != nil {
			return "", wrapError(KindInternal, "failed to resume generation", err)
		}

		if !claimed {
			return "", newError(KindConflict, "service is already applying some changes, please wait until they are done")
		}

		err = e.gateway.Patch(ctx, previous.GenerationID)
		e.observeUpstream("gateway", err)

		if err != nil {
			// hand the lineage back so a later create can retry
			_, _ = e.store.TransitionStatus(ctx, previous.GenerationID, models.StatusInProgress, models.StatusErrored, map[string]interface{}{
				"error": previous.Error,
			})
			return "", classifyGatewayError(err)
		}

		return previous.GenerationID, nil
	}

	// The md5 suffix is stable for a given name and datacenter; the builder
	// uses it to correlate generations of the same service.
	generationID := uuid.NewString() + "-" + md5hex(name+"-"+datacenterName)

	req := gateway.CreateRequest{
		ID:         generationID,
		Client:     client,
		Datacenter: datacenter,
		Service:    payload,
	}

	if previous != nil {
		req.PreviousID = previous.GenerationID

		if len(previous.Result) > 0 {
			var prior map[string]interface{}

			if err := json.Unmarshal(previous.Result, &prior); err == nil {
				req.Previous = prior
			}
		}
	}

	err = e.gateway.Create(ctx, req)
	e.observeUpstream("gateway", err)

	if err != nil {
		return "", classifyGatewayError(err)
	}

	kind := payloadString(payload, "type")

	if kind == "" {
		kind = defaultServiceKind
	}

	endpoint := ""

	gen := &models.Generation{
		GenerationID:     generationID,
		ClientID:         in.ClientID,
		DatacenterID:     entityID(datacenter, "datacenter_id"),
		ServiceName:      name,
		ServiceKind:      kind,
		GenerationNumber: nextGenerationNumber(previous),
		Status:           models.StatusInProgress,
		Options:          []byte("{}"),
		Definition:       string(in.Body),
		Endpoint:         &endpoint,
	}

	err = e.store.Insert(ctx, gen)

	if err != nil {
		if errors.Is(err, store.ErrBusy) {
			return "", wrapError(KindConflict, "service is already applying some changes, please wait until they are done", err)
		}
		return "", wrapError(KindInternal, "failed to store generation", err)
	}

	return generationID, nil
}

// Catalog lists the latest generation of every service the client owns.
func (e *Engine) Catalog(ctx context.Context, clientID string) ([]models.Generation, error) {
	catalog, err := e.store.ListCatalog(ctx, clientID)

	if err != nil {
		return nil, wrapError(KindInternal, "failed to list services", err)
	}

	return catalog, nil
}

// GetByName returns the current generation for one service name.
func (e *Engine) GetByName(ctx context.Context, clientID, name string) (*models.Generation, error) {
	gen, err := e.store.Latest(ctx, clientID, name)

	if err != nil {
		return nil, wrapError(KindInternal, "failed to get service", err)
	}

	if gen == nil {
		return nil, newError(KindNotFound, fmt.Sprintf("service %q not found", name))
	}

	return gen, nil
}

// Search returns the highest-version generation matching the filters.
func (e *Engine) Search(ctx context.Context, clientID string, filters store.SearchFilters) (*models.Generation, error) {
	gen, err := e.store.Search(ctx, clientID, filters)

	if err != nil {
		return nil, wrapError(KindInternal, "failed to search services", err)
	}

	if gen == nil {
		return nil, newError(KindNotFound, "no services matched the search")
	}

	return gen, nil
}

// Builds returns the full generation history for one service name.
func (e *Engine) Builds(ctx context.Context, clientID, name string) ([]models.Generation, error) {
	builds, err := e.store.ListBuilds(ctx, clientID, name)

	if err != nil {
		return nil, wrapError(KindInternal, "failed to list builds", err)
	}

	return builds, nil
}

// Build returns a single generation from one service's history.
func (e *Engine) Build(ctx context.Context, clientID, name, generationID string) (*models.Generation, error) {
	gen, err := e.store.GetBuild(ctx, clientID, name, generationID)

	if err != nil {
		return nil, wrapError(KindInternal, "failed to get build", err)
	}

	if gen == nil {
		return nil, newError(KindNotFound, fmt.Sprintf("build %q not found", generationID))
	}

	return gen, nil
}

// Update refreshes a generation row. The caller-supplied definition and
// endpoint are deliberately discarded: the row is rewritten with its own
// stored values. Changing this needs product sign-off.
func (e *Engine) Update(ctx context.Context, clientID, generationID string, body []byte) error {
	err := e.update(ctx, clientID, generationID, body)

	e.observe("update", err)

	return err
}

func (e *Engine) update(ctx context.Context, clientID, generationID string, body []byte) error {
	var submitted map[string]interface{}

	if err := json.Unmarshal(body, &submitted); err != nil {
		return wrapError(KindMalformedPayload, "provided json is not valid", err)
	}

	gen, err := e.store.LatestByID(ctx, clientID, generationID)

	if err != nil {
		return wrapError(KindInternal, "failed to get service", err)
	}

	if gen == nil {
		return newError(KindNotFound, fmt.Sprintf("service %q not found", generationID))
	}

	err = e.store.Update(ctx, gen.GenerationID, map[string]interface{}{
		"definition": gen.Definition,
		"endpoint":   gen.Endpoint,
	})

	if err != nil {
		return wrapError(KindInternal, "failed to update service", err)
	}

	return nil
}

// Reset force-aborts an in-progress generation. The builder is probed for its
// last word on the build and that body is recorded as the error payload.
func (e *Engine) Reset(ctx context.Context, clientID, name string) error {
	err := e.reset(ctx, clientID, name)

	e.observe("reset", err)

	return err
}

func (e *Engine) reset(ctx context.Context, clientID, name string) error {
	gen, err := e.store.Latest(ctx, clientID, name)

	if err != nil {
		return wrapError(KindInternal, "failed to get service", err)
	}

	if gen == nil {
		return newError(KindNotFound, fmt.Sprintf("no services found for %q", name))
	}

	if gen.Status != models.StatusInProgress {
		return newError(KindInvalidState,
			fmt.Sprintf("reset only applies to in-progress services, service %q is on status %q", name, gen.Status))
	}

	body, err := e.gateway.Status(ctx, gen.GenerationID)
	e.observeUpstream("gateway", err)

	if err != nil {
		return classifyGatewayError(err)
	}

	claimed, err := e.store.TransitionStatus(ctx, gen.GenerationID, models.StatusInProgress, models.StatusErrored, map[string]interface{}{
		"error": string(body),
	})

	if err != nil {
		return wrapError(KindInternal, "failed to reset service", err)
	}

	if !claimed {
		return newError(KindInvalidState, fmt.Sprintf("service %q is no longer in progress", name))
	}

	return nil
}

// Delete issues a teardown to the builder. The stored row is left untouched
// for audit history; completion is observed out of band. Returns the
// generation id and the stream token used to tail teardown logs.
func (e *Engine) Delete(ctx context.Context, clientID, name string) (string, string, error) {
	id, stream, err := e.delete(ctx, clientID, name)

	e.observe("delete", err)

	return id, stream, err
}

func (e *Engine) delete(ctx context.Context, clientID, name string) (string, string, error) {
	gen, err := e.store.Latest(ctx, clientID, name)

	if err != nil {
		return "", "", wrapError(KindInternal, "failed to get service", err)
	}

	if gen == nil {
		return "", "", newError(KindNotFound, fmt.Sprintf("service %q not found", name))
	}

	if gen.Status == models.StatusInProgress {
		return "", "", newError(KindConflict, "service is already applying some changes, please wait until they are done")
	}

	err = e.gateway.Teardown(ctx, gen.GenerationID)
	e.observeUpstream("gateway", err)

	if err != nil {
		return "", "", classifyGatewayError(err)
	}

	return gen.GenerationID, gen.StreamID(), nil
}

// Complete records a successful build reported by the builder. Only an
// in-progress generation can be completed.
func (e *Engine) Complete(ctx context.Context, clientID, generationID string, result []byte, endpoint string) error {
	gen, err := e.store.LatestByID(ctx, clientID, generationID)

	if err != nil {
		return wrapError(KindInternal, "failed to get generation", err)
	}

	if gen == nil {
		return newError(KindNotFound, fmt.Sprintf("generation %q not found", generationID))
	}

	patch := map[string]interface{}{
		"endpoint": endpoint,
		"error":    nil,
	}

	if len(result) > 0 {
		patch["result"] = string(result)
	}

	claimed, err := e.store.TransitionStatus(ctx, generationID, models.StatusInProgress, models.StatusDone, patch)

	if err != nil {
		if errors.Is(err, store.ErrInvalidJSON) {
			return wrapError(KindMalformedPayload, "result is not a valid JSON object", err)
		}
		return wrapError(KindInternal, "failed to complete generation", err)
	}

	if !claimed {
		return newError(KindInvalidState, fmt.Sprintf("generation %q is not in progress", generationID))
	}

	return nil
}

// Fail records a failed build reported by the builder.
func (e *Engine) Fail(ctx context.Context, clientID, generationID, errPayload string) error {
	gen, err := e.store.LatestByID(ctx, clientID, generationID)

	if err != nil {
		return wrapError(KindInternal, "failed to get generation", err)
	}

	if gen == nil {
		return newError(KindNotFound, fmt.Sprintf("generation %q not found", generationID))
	}

	claimed, err := e.store.TransitionStatus(ctx, generationID, models.StatusInProgress, models.StatusErrored, map[string]interface{}{
		"error": errPayload,
	})

	if err != nil {
		return wrapError(KindInternal, "failed to record generation failure", err)
	}

	if !claimed {
		return newError(KindInvalidState, fmt.Sprintf("generation %q is not in progress", generationID))
	}

	return nil
}

// Digest derives the builder-side correlation hash for an identifier.
func Digest(id string) string {
	return md5hex(id)
}

func (e *Engine) observeUpstream(target string, err error) {
	outcome := "ok"

	if err != nil {
		outcome = "error"
	}

	e.observer.ObserveUpstream(target, outcome)
}

func (e *Engine) observe(operation string, err error) {
	if err == nil {
		e.observer.ObserveOperation(operation, "ok")
		return
	}

	kind := KindOf(err)

	e.observer.ObserveOperation(operation, string(kind))

	if kind == KindInternal {
		e.logger.Error().Err(err).Str("operation", operation).Msg("lifecycle operation failed")
	}
}

func classifyGatewayError(err error) error {
	var rejected *gateway.RejectedError

	if errors.As(err, &rejected) {
		return wrapError(KindUpstreamRejected, rejected.Body, err)
	}

	return wrapError(KindBadUpstreamRequest, "provisioning gateway request failed", err)
}

// nextGenerationNumber seeds from wall-clock seconds but always lands past
// the previous generation, so numbering within a lineage is strictly
// monotonic even when two requests arrive in the same second.
func nextGenerationNumber(previous *models.Generation) int64 {
	number := time.Now().Unix()

	if previous != nil && previous.GenerationNumber >= number {
		number = previous.GenerationNumber + 1
	}

	return number
}

func md5hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// entityID reads an identifier field from a directory entity, whatever JSON
// type the directory encoded it as.
func entityID(entity map[string]interface{}, key string) string {
	switch v := entity[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}
