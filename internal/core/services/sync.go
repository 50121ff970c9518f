package services

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/dirsync/internal/core/domain"
	"github.com/custodia-labs/dirsync/internal/core/ports/driven"
	"github.com/custodia-labs/dirsync/internal/core/ports/driving"
	"github.com/custodia-labs/dirsync/internal/logger"
)

// Ensure SyncOrchestrator implements the interface.
var _ driving.SyncService = (*SyncOrchestrator)(nil)

// SyncOrchestrator drives directory sync cycles: read the directory,
// detect changes by hash, build and submit import requests, and persist
// delta state only after every request was accepted.
type SyncOrchestrator struct {
	state    driving.StateService
	factory  driven.DirectoryFactory
	importer driven.ImportClient

	// Optional collaborators.
	lock     driven.SyncLock
	observer driven.SyncObserver

	now func() time.Time

	// Status tracking
	mu         sync.RWMutex
	running    bool
	lastResult *domain.SyncResult
	lastErr    error
}

// NewSyncOrchestrator creates a new sync orchestrator.
func NewSyncOrchestrator(
	state driving.StateService,
	factory driven.DirectoryFactory,
	importer driven.ImportClient,
) *SyncOrchestrator {
	return &SyncOrchestrator{
		state:    state,
		factory:  factory,
		importer: importer,
		now:      time.Now,
	}
}

// SetSyncLock sets the cross-process lock taken around real syncs.
func (o *SyncOrchestrator) SetSyncLock(lock driven.SyncLock) {
	o.lock = lock
}

// SetObserver sets the sync observer used for metrics.
func (o *SyncOrchestrator) SetObserver(observer driven.SyncObserver) {
	o.observer = observer
}

// Sync runs one cycle and submits changes.
func (o *SyncOrchestrator) Sync(ctx context.Context, force bool) (*domain.SyncResult, error) {
	return o.run(ctx, force, false)
}

// Test runs the directory read and post-processing only.
func (o *SyncOrchestrator) Test(ctx context.Context, force bool) (*domain.SyncResult, error) {
	return o.run(ctx, force, true)
}

// Status returns the current sync status.
func (o *SyncOrchestrator) Status() driving.SyncStatus {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return driving.SyncStatus{
		Running:    o.running,
		LastResult: o.lastResult,
		LastError:  o.lastErr,
	}
}

func (o *SyncOrchestrator) begin() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return false
	}
	o.running = true
	return true
}

func (o *SyncOrchestrator) end(result *domain.SyncResult, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.running = false
	o.lastResult = result
	o.lastErr = err
}

func (o *SyncOrchestrator) run(ctx context.Context, force, test bool) (result *domain.SyncResult, err error) {
	if !o.begin() {
		return nil, domain.ErrSyncInProgress
	}

	start := o.now()
	result = &domain.SyncResult{RunID: uuid.NewString(), StartedAt: start}

	l := logger.Ctx(ctx).With().Str("run_id", result.RunID).Bool("test", test).Logger()
	ctx = logger.WithLogger(ctx, &l)

	defer func() {
		o.end(result, err)
		if o.observer != nil && !test {
			o.observer.SyncFinished(result, o.now().Sub(start), err)
		}
		if err != nil {
			l.Error().Err(err).Msg("sync failed")
		}
	}()

	if !test && o.lock != nil {
		release, lockErr := o.lock.Acquire(ctx)
		if lockErr != nil {
			return result, fmt.Errorf("acquire sync lock: %w", lockErr)
		}
		defer func() {
			if relErr := release(context.WithoutCancel(ctx)); relErr != nil {
				l.Warn().Err(relErr).Msg("release sync lock")
			}
		}()
	}

	err = o.cycle(ctx, result, force, test)
	return result, err
}

//nolint:gocyclo // Orchestration function with necessary sequential steps
func (o *SyncOrchestrator) cycle(ctx context.Context, result *domain.SyncResult, force, test bool) error {
	l := logger.Ctx(ctx)

	// 1. Resolve the configured directory
	source, err := o.state.Source(ctx)
	if errors.Is(err, domain.ErrNoDirectory) {
		result.SkipReason = domain.SkipNoDirectory
		l.Info().Msg("no directory configured, nothing to sync")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load directory: %w", err)
	}
	result.Directory = source.Type
	cfg := source.Sync

	// 2. Read the directory
	if o.factory == nil {
		return fmt.Errorf("create directory: directory factory not configured")
	}
	dir, err := o.factory.Create(ctx, *source)
	if err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	defer dir.Close()

	l.Info().Str("directory", source.Type.String()).Bool("force", force).Msg("starting sync")

	entries, err := dir.GetEntries(ctx, force || cfg.OverwriteExisting, test)
	if err != nil {
		return fmt.Errorf("get entries: %w", err)
	}

	// 3. Normalise the entity set
	groups := entries.Groups
	users := filterUnsupportedUsers(entries.Users)
	if len(groups) > 0 {
		flattenUsersToGroups(groups)
	}
	users, err = removeDuplicateUsers(users)
	if err != nil {
		return err
	}
	sortEntries(groups, users)
	result.Groups = groups
	result.Users = users

	l.Debug().Int("groups", len(groups)).Int("users", len(users)).Msg("entries read")

	if test {
		result.SkipReason = domain.SkipTest
		return nil
	}

	next := nextSyncState(source.State, entries, cfg, result.StartedAt)

	if !cfg.OverwriteExisting && len(groups) == 0 && len(users) == 0 {
		result.SkipReason = domain.SkipEmpty
		return o.commit(ctx, next)
	}

	// 4. Build requests
	requests, err := SelectRequestBuilder(cfg.LargeImport).BuildRequests(groups, users, domain.BuildOptions{
		RemoveDisabled:    cfg.RemoveDisabled,
		OverwriteExisting: cfg.OverwriteExisting,
		BatchSize:         cfg.BatchSize,
	})
	if err != nil {
		return err
	}
	result.Requests = len(requests)

	orgID, err := o.state.OrganizationID(ctx)
	if err != nil {
		return fmt.Errorf("load organization: %w", err)
	}
	if orgID == "" {
		return domain.ErrOrganizationNotSet
	}

	// 5. Hash suppression
	hash, legacy, err := o.hashRequests(orgID, requests)
	if err != nil {
		return err
	}
	last := source.State.LastSyncHash
	if !force && last != "" && (last == hash || last == legacy) {
		result.SkipReason = domain.SkipUnchanged
		l.Info().Msg("no changes since last sync")
		return o.commit(ctx, next)
	}

	// 6. Submit in order; any failure aborts without persisting state
	for i, req := range requests {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := o.importer.Submit(ctx, orgID, req); err != nil {
			return fmt.Errorf("%w: request %d of %d: %w", domain.ErrSubmission, i+1, len(requests), err)
		}
		if o.observer != nil {
			o.observer.RequestSubmitted(source.Type)
		}
		l.Debug().Int("request", i+1).Int("of", len(requests)).Msg("import request accepted")
	}
	result.Submitted = true

	// 7. Persist
	next.LastSyncHash = hash
	if err := o.commit(ctx, next); err != nil {
		return err
	}

	l.Info().Int("groups", len(groups)).Int("users", len(users)).Int("requests", len(requests)).Msg("sync complete")
	return nil
}

// commit persists the delta record unless the cycle was cancelled.
func (o *SyncOrchestrator) commit(ctx context.Context, next domain.SyncState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := o.state.CommitSync(ctx, next); err != nil {
		return fmt.Errorf("save sync state: %w", err)
	}
	return nil
}

// hashRequests returns the sync hash and the legacy hash that omitted the
// organization id.
func (o *SyncOrchestrator) hashRequests(orgID string, requests []domain.ImportRequest) (string, string, error) {
	body, err := json.Marshal(requests)
	if err != nil {
		return "", "", fmt.Errorf("serialise requests: %w", err)
	}
	apiURL := o.importer.APIURL()

	sum := sha256.Sum256([]byte(apiURL + orgID + string(body)))
	legacy := sha256.Sum256([]byte(apiURL + string(body)))
	return base64.StdEncoding.EncodeToString(sum[:]), base64.StdEncoding.EncodeToString(legacy[:]), nil
}

// nextSyncState advances the delta record for a successful cycle.
func nextSyncState(prev domain.SyncState, entries *domain.Entries, cfg domain.SyncConfig, now time.Time) domain.SyncState {
	next := prev
	if entries.UserDelta != "" {
		next.UserDelta = entries.UserDelta
	}
	if entries.GroupDelta != "" {
		next.GroupDelta = entries.GroupDelta
	}
	if cfg.Groups {
		t := now
		next.LastGroupSync = &t
	}
	if cfg.Users {
		t := now
		next.LastUserSync = &t
	}
	return next
}
