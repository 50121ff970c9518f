package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	stdsync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/dirsync/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/dirsync/internal/core/domain"
	"github.com/custodia-labs/dirsync/internal/core/ports/driven"
)

// --- Mock implementations for sync testing ---

type getEntriesCall struct {
	force, test bool
}

// syncFakeDirectory implements driven.Directory for testing.
type syncFakeDirectory struct {
	mu      stdsync.Mutex
	entries func() *domain.Entries
	err     error
	calls   []getEntriesCall
	closed  int

	started chan struct{}
	block   chan struct{}
}

func (d *syncFakeDirectory) Type() domain.DirectoryType { return domain.DirectoryOkta }

func (d *syncFakeDirectory) GetEntries(ctx context.Context, force, test bool) (*domain.Entries, error) {
	d.mu.Lock()
	d.calls = append(d.calls, getEntriesCall{force, test})
	d.mu.Unlock()

	if d.started != nil {
		close(d.started)
	}
	if d.block != nil {
		select {
		case <-d.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if d.err != nil {
		return nil, d.err
	}
	return d.entries(), nil
}

func (d *syncFakeDirectory) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed++
	return nil
}

// syncFakeFactory implements driven.DirectoryFactory for testing.
type syncFakeFactory struct {
	dir *syncFakeDirectory
	err error
}

func (f *syncFakeFactory) Create(_ context.Context, _ domain.DirectorySource) (driven.Directory, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.dir, nil
}

func (f *syncFakeFactory) Register(domain.DirectoryType, driven.DirectoryBuilder) {}

func (f *syncFakeFactory) SupportedTypes() []domain.DirectoryType {
	return []domain.DirectoryType{domain.DirectoryOkta}
}

// syncFakeImporter implements driven.ImportClient for testing.
type syncFakeImporter struct {
	mu       stdsync.Mutex
	url      string
	orgIDs   []string
	requests []domain.ImportRequest
	failAt   int // 1-based request number to fail, 0 for never
	onSubmit func()
}

func (i *syncFakeImporter) Submit(_ context.Context, orgID string, req domain.ImportRequest) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.onSubmit != nil {
		i.onSubmit()
	}
	if i.failAt > 0 && len(i.requests)+1 == i.failAt {
		return errors.New("HTTP 400: bad request")
	}
	i.orgIDs = append(i.orgIDs, orgID)
	i.requests = append(i.requests, req)
	return nil
}

func (i *syncFakeImporter) APIURL() string { return i.url }

func (i *syncFakeImporter) count() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.requests)
}

// syncFakeLock implements driven.SyncLock for testing.
type syncFakeLock struct {
	acquired, released int
	err                error
}

func (l *syncFakeLock) Acquire(context.Context) (func(context.Context) error, error) {
	if l.err != nil {
		return nil, l.err
	}
	l.acquired++
	return func(context.Context) error {
		l.released++
		return nil
	}, nil
}

// syncFakeObserver implements driven.SyncObserver for testing.
type syncFakeObserver struct {
	finished  []error
	submitted int
}

func (o *syncFakeObserver) SyncFinished(_ *domain.SyncResult, _ time.Duration, err error) {
	o.finished = append(o.finished, err)
}

func (o *syncFakeObserver) RequestSubmitted(domain.DirectoryType) { o.submitted++ }

// --- Fixtures ---

var syncNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func sampleEntries() *domain.Entries {
	g := domain.NewGroupEntry("g1", "g1", "Engineering")
	g.UserMemberExternalIDs.Add("u1")
	return &domain.Entries{
		Groups: []domain.GroupEntry{g},
		Users: []domain.UserEntry{
			{ReferenceID: "u2", ExternalID: "u2", Email: "b@example.com"},
			{ReferenceID: "u1", ExternalID: "u1", Email: "a@example.com"},
		},
		UserDelta:  "user-delta-1",
		GroupDelta: "group-delta-1",
	}
}

type syncFixture struct {
	orch     *SyncOrchestrator
	state    *StateService
	dir      *syncFakeDirectory
	importer *syncFakeImporter
}

func newSyncFixture(t *testing.T, entries func() *domain.Entries, cfg domain.SyncConfig) *syncFixture {
	t.Helper()
	ctx := context.Background()

	state := NewStateService(memory.NewStateStore(), memory.NewSecureStore())
	require.NoError(t, state.SetDirectoryType(ctx, domain.DirectoryOkta))
	require.NoError(t, state.SetOrganizationID(ctx, "org-1"))
	require.NoError(t, state.SetSyncConfig(ctx, cfg))

	dir := &syncFakeDirectory{entries: entries}
	importer := &syncFakeImporter{url: "https://api.example.com"}
	orch := NewSyncOrchestrator(state, &syncFakeFactory{dir: dir}, importer)
	orch.now = func() time.Time { return syncNow }

	return &syncFixture{orch: orch, state: state, dir: dir, importer: importer}
}

func defaultSyncConfig() domain.SyncConfig {
	return domain.SyncConfig{Users: true, Groups: true, BatchSize: 2000}
}

// --- Tests ---

func TestSyncOrchestrator_NoDirectory(t *testing.T) {
	state := NewStateService(memory.NewStateStore(), memory.NewSecureStore())
	importer := &syncFakeImporter{}
	orch := NewSyncOrchestrator(state, &syncFakeFactory{err: errors.New("must not be called")}, importer)

	result, err := orch.Sync(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, domain.SkipNoDirectory, result.SkipReason)
	assert.False(t, result.Submitted)
	assert.Zero(t, importer.count())
}

func TestSyncOrchestrator_Sync_SubmitsAndPersists(t *testing.T) {
	f := newSyncFixture(t, sampleEntries, defaultSyncConfig())
	ctx := context.Background()

	result, err := f.orch.Sync(ctx, false)
	require.NoError(t, err)
	assert.True(t, result.Submitted)
	assert.Equal(t, 1, result.Requests)
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, domain.DirectoryOkta, result.Directory)

	require.Equal(t, 1, f.importer.count())
	assert.Equal(t, []string{"org-1"}, f.importer.orgIDs)
	req := f.importer.requests[0]
	assert.False(t, req.LargeImport)
	require.Len(t, req.Users, 2)
	assert.Equal(t, "a@example.com", req.Users[0].Email, "users are sorted by external id")

	st, err := f.state.SyncState(ctx)
	require.NoError(t, err)
	assert.Equal(t, "user-delta-1", st.UserDelta)
	assert.Equal(t, "group-delta-1", st.GroupDelta)
	assert.NotEmpty(t, st.LastSyncHash)
	require.NotNil(t, st.LastUserSync)
	require.NotNil(t, st.LastGroupSync)
	assert.True(t, syncNow.Equal(*st.LastUserSync))

	assert.Equal(t, []getEntriesCall{{force: false, test: false}}, f.dir.calls)
	assert.Equal(t, 1, f.dir.closed)
}

func TestSyncOrchestrator_Sync_Idempotent(t *testing.T) {
	f := newSyncFixture(t, sampleEntries, defaultSyncConfig())
	ctx := context.Background()

	_, err := f.orch.Sync(ctx, false)
	require.NoError(t, err)

	result, err := f.orch.Sync(ctx, false)
	require.NoError(t, err)
	assert.False(t, result.Submitted)
	assert.Equal(t, domain.SkipUnchanged, result.SkipReason)
	assert.Equal(t, 1, f.importer.count())
}

func TestSyncOrchestrator_Sync_ForceBypassesHash(t *testing.T) {
	f := newSyncFixture(t, sampleEntries, defaultSyncConfig())
	ctx := context.Background()

	_, err := f.orch.Sync(ctx, false)
	require.NoError(t, err)
	result, err := f.orch.Sync(ctx, true)
	require.NoError(t, err)

	assert.True(t, result.Submitted)
	assert.Equal(t, 2, f.importer.count())
	assert.True(t, f.dir.calls[1].force)
}

func TestSyncOrchestrator_Sync_LegacyHashAccepted(t *testing.T) {
	f := newSyncFixture(t, sampleEntries, defaultSyncConfig())
	ctx := context.Background()

	_, err := f.orch.Sync(ctx, false)
	require.NoError(t, err)

	_, legacy, err := f.orch.hashRequests("org-1", f.importer.requests)
	require.NoError(t, err)
	st, err := f.state.SyncState(ctx)
	require.NoError(t, err)
	st.LastSyncHash = legacy
	require.NoError(t, f.state.CommitSync(ctx, st))

	result, err := f.orch.Sync(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, domain.SkipUnchanged, result.SkipReason)
	assert.Equal(t, 1, f.importer.count())
}

func TestSyncOrchestrator_Sync_HashCoversOrganization(t *testing.T) {
	f := newSyncFixture(t, sampleEntries, defaultSyncConfig())
	requests := []domain.ImportRequest{{Users: []domain.UserPayload{{Email: "a@example.com", ExternalID: "u1"}}}}

	h1, legacy1, err := f.orch.hashRequests("org-1", requests)
	require.NoError(t, err)
	h2, legacy2, err := f.orch.hashRequests("org-2", requests)
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
	assert.Equal(t, legacy1, legacy2)
	assert.NotEqual(t, h1, legacy1)
}

func TestSyncOrchestrator_Test_NoSubmissionNoPersistence(t *testing.T) {
	f := newSyncFixture(t, sampleEntries, defaultSyncConfig())
	ctx := context.Background()

	result, err := f.orch.Test(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, domain.SkipTest, result.SkipReason)
	assert.Len(t, result.Users, 2)
	assert.Len(t, result.Groups, 1)
	assert.Zero(t, f.importer.count())

	st, err := f.state.SyncState(ctx)
	require.NoError(t, err)
	assert.True(t, st.IsZero())
	assert.Equal(t, []getEntriesCall{{force: false, test: true}}, f.dir.calls)
}

func TestSyncOrchestrator_Sync_SubmissionFailurePersistsNothing(t *testing.T) {
	cfg := defaultSyncConfig()
	cfg.LargeImport = true
	cfg.BatchSize = 1
	f := newSyncFixture(t, sampleEntries, cfg)
	f.importer.failAt = 2
	ctx := context.Background()

	result, err := f.orch.Sync(ctx, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSubmission)
	assert.Contains(t, err.Error(), "request 2 of 3")
	assert.False(t, result.Submitted)
	assert.Equal(t, 1, f.importer.count(), "later requests are not sent")

	st, err := f.state.SyncState(ctx)
	require.NoError(t, err)
	assert.True(t, st.IsZero())

	status := f.orch.Status()
	assert.False(t, status.Running)
	assert.ErrorIs(t, status.LastError, domain.ErrSubmission)
}

func TestSyncOrchestrator_Sync_LargeImportBatches(t *testing.T) {
	entries := func() *domain.Entries {
		e := &domain.Entries{}
		for i := 0; i < 5; i++ {
			id := fmt.Sprintf("u%d", i)
			e.Users = append(e.Users, domain.UserEntry{ReferenceID: id, ExternalID: id, Email: id + "@example.com"})
		}
		return e
	}
	cfg := defaultSyncConfig()
	cfg.LargeImport = true
	cfg.BatchSize = 2
	f := newSyncFixture(t, entries, cfg)

	result, err := f.orch.Sync(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Requests)
	require.Equal(t, 3, f.importer.count())
	for _, req := range f.importer.requests {
		assert.True(t, req.LargeImport)
		assert.NotNil(t, req.Groups)
		assert.Empty(t, req.Groups)
	}
	assert.Len(t, f.importer.requests[2].Users, 1)
}

func TestSyncOrchestrator_Sync_OverwriteWithLargeImportRejected(t *testing.T) {
	cfg := defaultSyncConfig()
	cfg.LargeImport = true
	cfg.OverwriteExisting = true
	f := newSyncFixture(t, sampleEntries, cfg)

	_, err := f.orch.Sync(context.Background(), false)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Zero(t, f.importer.count())
	require.Len(t, f.dir.calls, 1)
	assert.True(t, f.dir.calls[0].force, "overwrite forces a full read")
}

func TestSyncOrchestrator_Sync_OrganizationNotSet(t *testing.T) {
	f := newSyncFixture(t, sampleEntries, defaultSyncConfig())
	ctx := context.Background()
	require.NoError(t, f.state.SetOrganizationID(ctx, ""))

	_, err := f.orch.Sync(ctx, false)
	assert.ErrorIs(t, err, domain.ErrOrganizationNotSet)
	assert.Zero(t, f.importer.count())
}

func TestSyncOrchestrator_Sync_EmptyDirectory(t *testing.T) {
	entries := func() *domain.Entries { return &domain.Entries{UserDelta: "delta-2"} }
	f := newSyncFixture(t, entries, defaultSyncConfig())
	ctx := context.Background()

	result, err := f.orch.Sync(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, domain.SkipEmpty, result.SkipReason)
	assert.Zero(t, f.importer.count())

	st, err := f.state.SyncState(ctx)
	require.NoError(t, err)
	assert.Equal(t, "delta-2", st.UserDelta)
	assert.NotNil(t, st.LastUserSync)
	assert.Empty(t, st.LastSyncHash)
}

func TestSyncOrchestrator_Sync_EmptyDirectoryWithOverwrite(t *testing.T) {
	entries := func() *domain.Entries { return &domain.Entries{} }
	cfg := defaultSyncConfig()
	cfg.OverwriteExisting = true
	f := newSyncFixture(t, entries, cfg)

	result, err := f.orch.Sync(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, result.Submitted)
	require.Equal(t, 1, f.importer.count())
	assert.True(t, f.importer.requests[0].OverwriteExisting)
}

func TestSyncOrchestrator_Sync_DuplicateUsers(t *testing.T) {
	entries := func() *domain.Entries {
		return &domain.Entries{Users: []domain.UserEntry{
			{ReferenceID: "u1", ExternalID: "u1", Email: "dup@example.com"},
			{ReferenceID: "u2", ExternalID: "u2", Email: "dup@example.com"},
		}}
	}
	f := newSyncFixture(t, entries, defaultSyncConfig())

	_, err := f.orch.Sync(context.Background(), false)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, err.Error(), "dup@example.com")
	assert.Zero(t, f.importer.count())
}

func TestSyncOrchestrator_Sync_DirectoryError(t *testing.T) {
	f := newSyncFixture(t, sampleEntries, defaultSyncConfig())
	f.dir.err = fmt.Errorf("%w: invalid credentials", domain.ErrAuthenticationFailed)

	_, err := f.orch.Sync(context.Background(), false)
	assert.ErrorIs(t, err, domain.ErrAuthenticationFailed)
	assert.Equal(t, 1, f.dir.closed)
}

func TestSyncOrchestrator_Sync_CancelledBeforeCommit(t *testing.T) {
	f := newSyncFixture(t, sampleEntries, defaultSyncConfig())
	ctx, cancel := context.WithCancel(context.Background())
	f.importer.onSubmit = cancel

	_, err := f.orch.Sync(ctx, false)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, f.importer.count())

	st, err := f.state.SyncState(context.Background())
	require.NoError(t, err)
	assert.True(t, st.IsZero())
}

func TestSyncOrchestrator_Sync_InProgress(t *testing.T) {
	f := newSyncFixture(t, sampleEntries, defaultSyncConfig())
	f.dir.started = make(chan struct{})
	f.dir.block = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := f.orch.Sync(context.Background(), false)
		done <- err
	}()

	<-f.dir.started
	assert.True(t, f.orch.Status().Running)

	_, err := f.orch.Sync(context.Background(), false)
	assert.ErrorIs(t, err, domain.ErrSyncInProgress)
	_, err = f.orch.Test(context.Background(), false)
	assert.ErrorIs(t, err, domain.ErrSyncInProgress)

	close(f.dir.block)
	require.NoError(t, <-done)
	assert.False(t, f.orch.Status().Running)
}

func TestSyncOrchestrator_LockAndObserver(t *testing.T) {
	f := newSyncFixture(t, sampleEntries, defaultSyncConfig())
	lock := &syncFakeLock{}
	obs := &syncFakeObserver{}
	f.orch.SetSyncLock(lock)
	f.orch.SetObserver(obs)
	ctx := context.Background()

	_, err := f.orch.Test(ctx, false)
	require.NoError(t, err)
	assert.Zero(t, lock.acquired, "test runs do not take the lock")
	assert.Empty(t, obs.finished, "test runs are not observed")

	_, err = f.orch.Sync(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, lock.acquired)
	assert.Equal(t, 1, lock.released)
	assert.Equal(t, 1, obs.submitted)
	require.Len(t, obs.finished, 1)
	assert.NoError(t, obs.finished[0])
}

func TestSyncOrchestrator_LockFailure(t *testing.T) {
	f := newSyncFixture(t, sampleEntries, defaultSyncConfig())
	f.orch.SetSyncLock(&syncFakeLock{err: domain.ErrSyncInProgress})

	_, err := f.orch.Sync(context.Background(), false)
	assert.ErrorIs(t, err, domain.ErrSyncInProgress)
	assert.Empty(t, f.dir.calls)
}

// --- Entry post-processing ---

func TestFlattenUsersToGroups_Nested(t *testing.T) {
	parent := domain.NewGroupEntry("p", "p", "Parent")
	parent.UserMemberExternalIDs.Add("u1")
	parent.GroupMemberReferenceIDs.Add("c")
	child := domain.NewGroupEntry("c", "c", "Child")
	child.UserMemberExternalIDs.Add("u2")
	child.GroupMemberReferenceIDs.Add("gc")
	grandchild := domain.NewGroupEntry("gc", "gc", "Grandchild")
	grandchild.UserMemberExternalIDs.Add("u3")

	groups := []domain.GroupEntry{parent, child, grandchild}
	flattenUsersToGroups(groups)

	assert.Equal(t, []string{"u1", "u2", "u3"}, groups[0].UserMemberExternalIDs.Sorted())
	assert.Equal(t, []string{"u2", "u3"}, groups[1].UserMemberExternalIDs.Sorted())
	assert.Equal(t, []string{"u3"}, groups[2].UserMemberExternalIDs.Sorted())
}

func TestFlattenUsersToGroups_Cycle(t *testing.T) {
	a := domain.NewGroupEntry("a", "a", "A")
	a.UserMemberExternalIDs.Add("u1")
	a.GroupMemberReferenceIDs.Add("b")
	b := domain.NewGroupEntry("b", "b", "B")
	b.UserMemberExternalIDs.Add("u2")
	b.GroupMemberReferenceIDs.Add("a")
	b.GroupMemberReferenceIDs.Add("missing")

	groups := []domain.GroupEntry{a, b}
	flattenUsersToGroups(groups)

	assert.Equal(t, []string{"u1", "u2"}, groups[0].UserMemberExternalIDs.Sorted())
	assert.Equal(t, []string{"u1", "u2"}, groups[1].UserMemberExternalIDs.Sorted())
}

func TestFilterUnsupportedUsers(t *testing.T) {
	long := strings.Repeat("x", 250) + "@example.com"
	users := []domain.UserEntry{
		{ExternalID: "ok", Email: "ok@example.com"},
		{ExternalID: "long", Email: long},
		{ExternalID: "none", Email: "", Disabled: true},
		{ExternalID: "gone", Email: "", Deleted: true},
	}

	out := filterUnsupportedUsers(users)
	require.Len(t, out, 1)
	assert.Equal(t, "ok", out[0].ExternalID)
	assert.Nil(t, filterUnsupportedUsers(nil))
}

func TestSyncOrchestrator_Sync_DropsUsersWithoutEmail(t *testing.T) {
	entries := func() *domain.Entries {
		e := sampleEntries()
		e.Users = append(e.Users, domain.UserEntry{ReferenceID: "u9", ExternalID: "u9", Disabled: true})
		return e
	}
	f := newSyncFixture(t, entries, defaultSyncConfig())

	_, err := f.orch.Sync(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, 1, f.importer.count())
	req := f.importer.requests[0]
	require.Len(t, req.Users, 2)
	for _, u := range req.Users {
		assert.NotEmpty(t, u.Email, u.ExternalID)
	}
}

func TestRemoveDuplicateUsers(t *testing.T) {
	tests := []struct {
		name    string
		users   []domain.UserEntry
		want    int
		wantErr string
	}{
		{
			name: "identical duplicates collapse",
			users: []domain.UserEntry{
				{ExternalID: "u1", Email: "a@example.com"},
				{ExternalID: "u1", Email: "a@example.com"},
			},
			want: 1,
		},
		{
			name: "deleted duplicates allowed",
			users: []domain.UserEntry{
				{ExternalID: "u1", Email: "a@example.com", Deleted: true},
				{ExternalID: "u2", Email: "a@example.com", Deleted: true},
			},
			want: 2,
		},
		{
			name: "conflicting duplicates rejected",
			users: []domain.UserEntry{
				{ExternalID: "u1", Email: "a@example.com"},
				{ExternalID: "u2", Email: "a@example.com"},
			},
			wantErr: "a@example.com",
		},
		{
			name: "long conflict lists are truncated",
			users: []domain.UserEntry{
				{ExternalID: "1", Email: "a@example.com"}, {ExternalID: "2", Email: "a@example.com"},
				{ExternalID: "3", Email: "b@example.com"}, {ExternalID: "4", Email: "b@example.com"},
				{ExternalID: "5", Email: "c@example.com"}, {ExternalID: "6", Email: "c@example.com"},
				{ExternalID: "7", Email: "d@example.com"}, {ExternalID: "8", Email: "d@example.com"},
				{ExternalID: "9", Email: "e@example.com"}, {ExternalID: "10", Email: "e@example.com"},
			},
			wantErr: "a@example.com, b@example.com, c@example.com and 2 more",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := removeDuplicateUsers(tt.users)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.ErrorIs(t, err, domain.ErrValidation)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, out, tt.want)
		})
	}
}

func TestSortEntries(t *testing.T) {
	groups := []domain.GroupEntry{
		domain.NewGroupEntry("2", "b", "B"),
		domain.NewGroupEntry("1", "a", "A"),
	}
	users := []domain.UserEntry{
		{ExternalID: "z", Email: "z@example.com"},
		{ExternalID: "m", Email: "m@example.com"},
	}

	sortEntries(groups, users)
	assert.Equal(t, "a", groups[0].ExternalID)
	assert.Equal(t, "m", users[0].ExternalID)
}
