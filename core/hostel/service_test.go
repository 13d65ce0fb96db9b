package hostel_test

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/hostel/core"
	"github.com/trezcool/hostel/core/feed"
	"github.com/trezcool/hostel/core/hostel"
	inmemdb "github.com/trezcool/hostel/storage/database/inmem"
	"github.com/trezcool/hostel/testutil"
)

type publishRecorder struct {
	mu        sync.Mutex
	published []string
}

func (p *publishRecorder) Publish(collection string, items interface{}) {
	p.mu.Lock()
	p.published = append(p.published, collection)
	p.mu.Unlock()
}

func (p *publishRecorder) collections() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.published...)
}

type classifierFunc func(ctx context.Context, description, category string) (hostel.Triage, error)

func (f classifierFunc) Classify(ctx context.Context, description, category string) (hostel.Triage, error) {
	return f(ctx, description, category)
}

type testEnv struct {
	repo   hostel.Repository
	svc    *hostel.Service
	pub    *publishRecorder
	logger *testutil.Logger
}

func setup(t *testing.T, classifier hostel.Classifier) *testEnv {
	t.Helper()
	conf := testutil.Config()
	conf.Triage.Timeout = 50 * time.Millisecond

	repo := inmemdb.NewHostelRepository(inmemdb.Open())
	pub := new(publishRecorder)
	logger := new(testutil.Logger)
	return &testEnv{
		repo:   repo,
		svc:    hostel.NewService(conf, repo, classifier, pub, logger),
		pub:    pub,
		logger: logger,
	}
}

func (env *testEnv) assertConsistent(t *testing.T) {
	t.Helper()
	found, err := env.svc.Audit(context.Background())
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestService_Allocate(t *testing.T) {
	env := setup(t, nil)
	ctx := context.Background()

	room := testutil.CreateRoom(t, env.repo, "103", 3)
	for _, id := range []string{"s1", "s2", "s3", "s4"} {
		testutil.CreateStudent(t, env.repo, id, "2002-01-01", 5000, 0)
	}
	other := testutil.CreateRoom(t, env.repo, "104", 1)

	tests := []struct {
		name      string
		roomID    string
		studentID string
		wantErr   error
	}{
		{name: "unknown room", roomID: "nope", studentID: "s1", wantErr: hostel.ErrRoomNotFound},
		{name: "unknown student", roomID: room.ID, studentID: "nope", wantErr: hostel.ErrStudentNotFound},
		{name: "s1", roomID: room.ID, studentID: "s1"},
		{name: "s1 again", roomID: room.ID, studentID: "s1", wantErr: hostel.ErrAlreadyAllocated},
		{name: "s1 elsewhere", roomID: other.ID, studentID: "s1", wantErr: hostel.ErrAlreadyAllocated},
		{name: "s2", roomID: room.ID, studentID: "s2"},
		{name: "s3", roomID: room.ID, studentID: "s3"},
		{name: "room full", roomID: room.ID, studentID: "s4", wantErr: hostel.ErrCapacityExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.Allocate(ctx, tt.roomID, tt.studentID)
			assert.Equal(t, tt.wantErr, errors.Cause(err))
		})
	}

	// the failed allocation left both records untouched
	full, err := env.repo.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2", "s3"}, full.Occupants)
	s4, err := env.repo.GetStudent(ctx, "s4")
	require.NoError(t, err)
	assert.Nil(t, s4.RoomID)
	assert.Empty(t, s4.RoomNumber)

	s1, err := env.repo.GetStudent(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, s1.RoomID)
	assert.Equal(t, room.ID, *s1.RoomID)
	assert.Equal(t, "103", s1.RoomNumber)

	assert.Contains(t, env.pub.collections(), hostel.CollectionRooms)
	assert.Contains(t, env.pub.collections(), hostel.CollectionStudents)
	env.assertConsistent(t)
}

func TestService_Allocate_concurrent(t *testing.T) {
	env := setup(t, nil)
	ctx := context.Background()
	room := testutil.CreateRoom(t, env.repo, "201", 2)

	const n = 20
	for i := 0; i < n; i++ {
		testutil.CreateStudent(t, env.repo, fmt.Sprintf("s%d", i), "2002-01-01", 5000, 0)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var allocated, rejected int
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := env.svc.Allocate(ctx, room.ID, id)
			mu.Lock()
			defer mu.Unlock()
			switch errors.Cause(err) {
			case nil:
				allocated++
			case hostel.ErrCapacityExceeded:
				rejected++
			default:
				t.Errorf("Allocate(%s) unexpected error: %v", id, err)
			}
		}(fmt.Sprintf("s%d", i))
	}
	wg.Wait()

	assert.Equal(t, 2, allocated)
	assert.Equal(t, n-2, rejected)
	env.assertConsistent(t)
}

func TestService_allocationSequences(t *testing.T) {
	env := setup(t, nil)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	rooms := []hostel.Room{
		testutil.CreateRoom(t, env.repo, "101", 1),
		testutil.CreateRoom(t, env.repo, "102", 2),
		testutil.CreateRoom(t, env.repo, "103", 3),
	}
	students := make([]string, 8)
	for i := range students {
		students[i] = testutil.CreateStudent(t, env.repo, fmt.Sprintf("s%d", i), "2002-01-01", 5000, 0).ID
	}

	for step := 0; step < 300; step++ {
		room := rooms[rng.Intn(len(rooms))]
		std := students[rng.Intn(len(students))]
		var err error
		if rng.Intn(2) == 0 {
			_, err = env.svc.Allocate(ctx, room.ID, std)
		} else {
			_, err = env.svc.Deallocate(ctx, room.ID, std)
		}
		switch errors.Cause(err) {
		case nil, hostel.ErrCapacityExceeded, hostel.ErrAlreadyAllocated:
		default:
			t.Fatalf("step %d: unexpected error: %v", step, err)
		}
	}

	got, err := env.repo.QueryRooms(ctx)
	require.NoError(t, err)
	for _, r := range got {
		assert.LessOrEqual(t, len(r.Occupants), r.Capacity, "room %s", r.Number)
	}
	env.assertConsistent(t)
}

func TestService_Deallocate(t *testing.T) {
	env := setup(t, nil)
	ctx := context.Background()

	room := testutil.CreateRoom(t, env.repo, "102", 2)
	s1 := testutil.CreateStudent(t, env.repo, "s1", "2002-01-01", 5000, 0)
	s2 := testutil.CreateStudent(t, env.repo, "s2", "2002-01-01", 5000, 0)
	_, err := env.svc.Allocate(ctx, room.ID, s1.ID)
	require.NoError(t, err)

	t.Run("not an occupant", func(t *testing.T) {
		got, err := env.svc.Deallocate(ctx, room.ID, s2.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{s1.ID}, got.Occupants)
	})

	t.Run("occupant", func(t *testing.T) {
		got, err := env.svc.Deallocate(ctx, room.ID, s1.ID)
		require.NoError(t, err)
		assert.Empty(t, got.Occupants)

		std, err := env.repo.GetStudent(ctx, s1.ID)
		require.NoError(t, err)
		assert.Nil(t, std.RoomID)
		assert.Empty(t, std.RoomNumber)
	})

	t.Run("unknown room", func(t *testing.T) {
		_, err := env.svc.Deallocate(ctx, "nope", s1.ID)
		assert.Equal(t, hostel.ErrRoomNotFound, errors.Cause(err))
	})
	env.assertConsistent(t)
}

func TestService_DeleteStudent(t *testing.T) {
	env := setup(t, nil)
	ctx := context.Background()

	room := testutil.CreateRoom(t, env.repo, "103", 3)
	for _, id := range []string{"s2", "s3", "s4"} {
		testutil.CreateStudent(t, env.repo, id, "2002-01-01", 5000, 0)
		_, err := env.svc.Allocate(ctx, room.ID, id)
		require.NoError(t, err)
	}

	require.NoError(t, env.svc.DeleteStudent(ctx, "s3"))

	got, err := env.repo.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"s2", "s4"}, got.Occupants)

	_, err = env.repo.GetStudent(ctx, "s3")
	assert.Equal(t, hostel.ErrStudentNotFound, errors.Cause(err))

	err = env.svc.DeleteStudent(ctx, "s3")
	assert.Equal(t, hostel.ErrStudentNotFound, errors.Cause(err))
	env.assertConsistent(t)
}

func TestResolvePaidTotal(t *testing.T) {
	tests := []struct {
		name    string
		mode    string
		current int64
		amount  int64
		want    int64
		wantErr bool
	}{
		{name: "add", mode: hostel.FeeModeAdd, current: 1000, amount: 500, want: 1500},
		{name: "set", mode: hostel.FeeModeSet, current: 1000, amount: 4800, want: 4800},
		{name: "set below current", mode: hostel.FeeModeSet, current: 5000, amount: 0, want: 0},
		{name: "unknown mode", mode: "refund", current: 1000, amount: 10, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := hostel.ResolvePaidTotal(tt.mode, tt.current, tt.amount)
			if tt.wantErr {
				var vErr *core.ValidationError
				assert.True(t, errors.As(err, &vErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestService_ApplyPayment(t *testing.T) {
	env := setup(t, nil)
	ctx := context.Background()
	testutil.CreateStudent(t, env.repo, "s4", "2002-01-01", 5000, 1000)

	std, err := env.svc.ApplyPayment(ctx, "s4", hostel.UpdateFees{Mode: hostel.FeeModeAdd, Amount: 500})
	require.NoError(t, err)
	assert.Equal(t, int64(1500), std.PaidFees)

	std, err = env.svc.ApplyPayment(ctx, "s4", hostel.UpdateFees{Mode: hostel.FeeModeSet, Amount: 6000})
	require.NoError(t, err)
	assert.Equal(t, int64(6000), std.PaidFees, "overpayment is accepted")

	_, err = env.svc.UpdateFees(ctx, "s4", -1)
	var vErr *core.ValidationError
	assert.True(t, errors.As(err, &vErr))

	_, err = env.svc.ApplyPayment(ctx, "nope", hostel.UpdateFees{Mode: hostel.FeeModeAdd, Amount: 1})
	assert.Equal(t, hostel.ErrStudentNotFound, errors.Cause(err))
}

func TestService_SubmitGrievance(t *testing.T) {
	ctx := context.Background()
	ng := hostel.NewGrievance{Category: "Plumbing", Description: "The tap is leaking."}

	tests := []struct {
		name         string
		classifier   hostel.Classifier
		wantPriority string
		wantAnalysis string
		wantWarning  bool
	}{
		{
			name:         "no classifier",
			wantPriority: hostel.PriorityMedium,
			wantAnalysis: "AI Analysis unavailable (Missing API Key).",
		},
		{
			name: "classifier disabled",
			classifier: classifierFunc(func(context.Context, string, string) (hostel.Triage, error) {
				return hostel.Triage{}, hostel.ErrClassifierDisabled
			}),
			wantPriority: hostel.PriorityMedium,
			wantAnalysis: "AI Analysis unavailable (Missing API Key).",
		},
		{
			name: "classifier fails",
			classifier: classifierFunc(func(context.Context, string, string) (hostel.Triage, error) {
				return hostel.Triage{}, errors.New("boom")
			}),
			wantPriority: hostel.PriorityMedium,
			wantAnalysis: "Could not analyze grievance automatically.",
			wantWarning:  true,
		},
		{
			name: "classifier times out",
			classifier: classifierFunc(func(ctx context.Context, _, _ string) (hostel.Triage, error) {
				<-ctx.Done()
				return hostel.Triage{}, ctx.Err()
			}),
			wantPriority: hostel.PriorityMedium,
			wantAnalysis: "Could not analyze grievance automatically.",
			wantWarning:  true,
		},
		{
			name: "malformed result",
			classifier: classifierFunc(func(context.Context, string, string) (hostel.Triage, error) {
				return hostel.Triage{Priority: "Urgent!!", Summary: "x"}, nil
			}),
			wantPriority: hostel.PriorityMedium,
			wantAnalysis: "Could not analyze grievance automatically.",
			wantWarning:  true,
		},
		{
			name: "classified",
			classifier: classifierFunc(func(_ context.Context, description, category string) (hostel.Triage, error) {
				return hostel.Triage{Priority: hostel.PriorityHigh, Summary: category + ": water leak."}, nil
			}),
			wantPriority: hostel.PriorityHigh,
			wantAnalysis: "Plumbing: water leak.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setup(t, tt.classifier)
			testutil.CreateStudent(t, env.repo, "s1", "2002-01-01", 5000, 0)

			g, err := env.svc.SubmitGrievance(ctx, "s1", ng)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPriority, g.Priority)
			assert.Equal(t, tt.wantAnalysis, g.AIAnalysis)
			assert.Equal(t, hostel.GrievancePending, g.Status)

			stored, err := env.svc.QueryGrievances(ctx, hostel.GrievanceFilter{StudentID: "s1"})
			require.NoError(t, err)
			assert.Len(t, stored, 1)
			assert.Equal(t, tt.wantWarning, len(env.logger.Entries("warn")) > 0)
		})
	}

	t.Run("unknown student", func(t *testing.T) {
		env := setup(t, nil)
		_, err := env.svc.SubmitGrievance(ctx, "nope", ng)
		assert.Equal(t, hostel.ErrStudentNotFound, errors.Cause(err))
	})
}

func TestService_QueryRooms(t *testing.T) {
	env := setup(t, nil)
	ctx := context.Background()

	r10 := testutil.CreateRoom(t, env.repo, "10", 2)
	r9 := testutil.CreateRoom(t, env.repo, "9", 2)
	r101 := testutil.CreateRoom(t, env.repo, "101", 2)
	testutil.CreateStudent(t, env.repo, "s1", "2002-01-01", 5000, 0)
	_, err := env.svc.Allocate(ctx, r101.ID, "s1")
	require.NoError(t, err)

	rooms, err := env.svc.QueryRooms(ctx, "")
	require.NoError(t, err)
	require.Len(t, rooms, 3)
	assert.Equal(t, []string{r9.ID, r10.ID, r101.ID}, []string{rooms[0].ID, rooms[1].ID, rooms[2].ID})

	tests := []struct {
		search string
		want   []string
	}{
		{search: "10", want: []string{r10.ID, r101.ID}},
		{search: " student S1 ", want: []string{r101.ID}},
		{search: "s1", want: []string{r101.ID}},
		{search: "zzz", want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.search, func(t *testing.T) {
			rooms, err := env.svc.QueryRooms(ctx, tt.search)
			require.NoError(t, err)
			ids := make([]string, 0, len(rooms))
			for _, r := range rooms {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestService_Publish(t *testing.T) {
	env := setup(t, nil)
	env.svc.Publish(context.Background())
	assert.ElementsMatch(t, hostel.Collections, env.pub.collections())

	// no publisher configured
	svc := hostel.NewService(testutil.Config(), env.repo, nil, nil, nil)
	assert.NotPanics(t, func() { svc.Publish(context.Background()) })
}

// slowRoomsRepo holds the first rooms read until release is closed, after signalling read.
type slowRoomsRepo struct {
	hostel.Repository
	reads   int32
	read    chan struct{}
	release chan struct{}
}

func (r *slowRoomsRepo) QueryRooms(ctx context.Context) ([]hostel.Room, error) {
	rooms, err := r.Repository.QueryRooms(ctx)
	if atomic.AddInt32(&r.reads, 1) == 1 {
		close(r.read)
		<-r.release
	}
	return rooms, err
}

func TestService_Publish_readOrder(t *testing.T) {
	ctx := context.Background()
	repo := &slowRoomsRepo{
		Repository: inmemdb.NewHostelRepository(inmemdb.Open()),
		read:       make(chan struct{}),
		release:    make(chan struct{}),
	}
	broker := feed.NewBroker()
	svc := hostel.NewService(testutil.Config(), repo, nil, broker, new(testutil.Logger))

	room := testutil.CreateRoom(t, repo, "101", 2)
	testutil.CreateStudent(t, repo, "s1", "2002-01-01", 5000, 0)
	testutil.CreateStudent(t, repo, "s2", "2002-01-01", 5000, 0)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := svc.Allocate(ctx, room.ID, "s1")
		assert.NoError(t, err)
	}()
	<-repo.read // the first allocation is publishing a read without s2

	go func() {
		defer wg.Done()
		_, err := svc.Allocate(ctx, room.ID, "s2")
		assert.NoError(t, err)
	}()
	time.Sleep(50 * time.Millisecond)
	close(repo.release)
	wg.Wait()

	want, err := svc.QueryRooms(ctx, "")
	require.NoError(t, err)
	require.Equal(t, []string{"s1", "s2"}, want[0].Occupants)

	last, ok := broker.Last(hostel.CollectionRooms)
	require.True(t, ok)
	assert.Equal(t, want, last.Items, "the feed ends on the store's final state")
}

func TestService_Publish_concurrentAllocations(t *testing.T) {
	ctx := context.Background()
	repo := inmemdb.NewHostelRepository(inmemdb.Open())
	broker := feed.NewBroker()
	svc := hostel.NewService(testutil.Config(), repo, nil, broker, new(testutil.Logger))

	rooms := []hostel.Room{testutil.CreateRoom(t, repo, "101", 5), testutil.CreateRoom(t, repo, "102", 5)}
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		id := fmt.Sprintf("s%d", i)
		testutil.CreateStudent(t, repo, id, "2002-01-01", 5000, 0)
		wg.Add(1)
		go func(roomID, studentID string) {
			defer wg.Done()
			_, err := svc.Allocate(ctx, roomID, studentID)
			assert.NoError(t, err)
		}(rooms[i%2].ID, id)
	}
	wg.Wait()

	want, err := svc.QueryRooms(ctx, "")
	require.NoError(t, err)
	last, ok := broker.Last(hostel.CollectionRooms)
	require.True(t, ok)
	assert.Equal(t, want, last.Items)
}

func TestAudit(t *testing.T) {
	room := func(id string, capacity int, occupants ...string) hostel.Room {
		return hostel.Room{ID: id, Number: id, Capacity: capacity, Occupants: occupants}
	}
	student := func(id, roomID string) hostel.Student {
		s := hostel.Student{ID: id, Name: id}
		if roomID != "" {
			s.RoomID = &roomID
			s.RoomNumber = roomID
		}
		return s
	}

	tests := []struct {
		name     string
		rooms    []hostel.Room
		students []hostel.Student
		want     []string
	}{
		{
			name:     "consistent",
			rooms:    []hostel.Room{room("101", 2, "s1")},
			students: []hostel.Student{student("s1", "101"), student("s2", "")},
			want:     []string{},
		},
		{
			name:     "over capacity",
			rooms:    []hostel.Room{room("101", 1, "s1", "s2")},
			students: []hostel.Student{student("s1", "101"), student("s2", "101")},
			want:     []string{hostel.OverCapacity},
		},
		{
			name:  "dangling occupant",
			rooms: []hostel.Room{room("101", 2, "ghost")},
			want:  []string{hostel.DanglingOccupant},
		},
		{
			name:     "missing pointer",
			rooms:    []hostel.Room{room("101", 2, "s1")},
			students: []hostel.Student{student("s1", "")},
			want:     []string{hostel.MissingPointer},
		},
		{
			name:     "stale pointer",
			rooms:    []hostel.Room{room("101", 2)},
			students: []hostel.Student{student("s1", "101")},
			want:     []string{hostel.StaleRoomPointer},
		},
		{
			name:     "multiple rooms",
			rooms:    []hostel.Room{room("101", 2, "s1"), room("102", 2, "s1")},
			students: []hostel.Student{student("s1", "101")},
			want:     []string{hostel.MultipleRooms},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kinds := make([]string, 0)
			for _, inc := range hostel.Audit(tt.rooms, tt.students) {
				kinds = append(kinds, inc.Kind)
			}
			assert.Equal(t, tt.want, kinds)
		})
	}
}

// overfillingRepo is a store whose allocation ignores the room capacity.
type overfillingRepo struct {
	hostel.Repository
}

func (r overfillingRepo) Allocate(ctx context.Context, roomID, studentID string) (hostel.Room, error) {
	return hostel.Room{ID: roomID, Capacity: 1, Occupants: []string{"s0", studentID}}, nil
}

func TestService_Allocate_brokenStore(t *testing.T) {
	repo := overfillingRepo{Repository: inmemdb.NewHostelRepository(inmemdb.Open())}
	svc := hostel.NewService(testutil.Config(), repo, nil, nil, new(testutil.Logger))

	_, err := svc.Allocate(context.Background(), "r101", "s1")
	require.Error(t, err)
	assert.True(t, core.IsShutdown(err))
}
