package persistence

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/petrijr/fluxotrace/pkg/api"
)

// EventStoreSuite checks the EventStore contract. Backends embed it and
// set newStore.
type EventStoreSuite struct {
	suite.Suite
	newStore func() EventStore
	store    EventStore
	ctx      context.Context
}

func (s *EventStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.newStore()
}

// runID returns a run id unique to this test so backends shared between
// tests need no cleanup.
func (s *EventStoreSuite) runID() string {
	return "run-" + uuid.NewString()
}

func sampleHistory() []api.RawEvent {
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 123456789, time.UTC)
	matched := "evt-approval"
	user := "user-7"
	return []api.RawEvent{
		{ID: "e1", GroupID: "g1", StepName: "fetch", Kind: api.EventStepScheduled, CreatedAt: t0},
		{ID: "e2", GroupID: "g1", StepName: "fetch", Kind: api.EventStepStarted, CreatedAt: t0.Add(time.Second), URL: "http://svc/api/inngest"},
		{ID: "e3", GroupID: "g2", StepName: "nap", Kind: api.EventStepSleeping, CreatedAt: t0.Add(2 * time.Second),
			Sleep: &api.SleepPayload{Until: t0.Add(time.Hour)}},
		{ID: "e4", GroupID: "g3", Kind: api.EventStepWaitResult, CreatedAt: t0.Add(3 * time.Second),
			WaitResult: &api.WaitResultPayload{EventID: &matched}},
		{ID: "e5", Kind: api.EventFunctionCancelled, CreatedAt: t0.Add(4 * time.Second),
			Cancel: &api.CancelPayload{UserID: &user}},
	}
}

func (s *EventStoreSuite) TestAppendAndListPreservesOrderAndPayloads() {
	run := s.runID()
	events := sampleHistory()

	// Append out of createdAt order; stores must keep append order.
	s.Require().NoError(s.store.AppendEvents(s.ctx, run, events[3], events[0]))
	s.Require().NoError(s.store.AppendEvents(s.ctx, run, events[1], events[2], events[4]))

	got, err := s.store.ListEvents(s.ctx, run)
	s.Require().NoError(err)

	want := []api.RawEvent{events[3], events[0], events[1], events[2], events[4]}
	if diff := cmp.Diff(want, got); diff != "" {
		s.Failf("events differ", "(-want +got):\n%s", diff)
	}
}

func (s *EventStoreSuite) TestDuplicateIDsAreIgnored() {
	run := s.runID()
	events := sampleHistory()

	s.Require().NoError(s.store.AppendEvents(s.ctx, run, events[0], events[1], events[0]))
	s.Require().NoError(s.store.AppendEvents(s.ctx, run, events...))

	got, err := s.store.ListEvents(s.ctx, run)
	s.Require().NoError(err)
	s.Require().Len(got, len(events))
	s.Equal("e1", got[0].ID)
	s.Equal("e2", got[1].ID)
}

func (s *EventStoreSuite) TestSameIDInDifferentRuns() {
	runA, runB := s.runID(), s.runID()
	ev := sampleHistory()[0]

	s.Require().NoError(s.store.AppendEvents(s.ctx, runA, ev))
	s.Require().NoError(s.store.AppendEvents(s.ctx, runB, ev))

	for _, run := range []string{runA, runB} {
		got, err := s.store.ListEvents(s.ctx, run)
		s.Require().NoError(err)
		s.Len(got, 1)
	}
}

func (s *EventStoreSuite) TestEventsWithoutIDAreKept() {
	run := s.runID()
	ev := sampleHistory()[0]
	ev.ID = ""

	s.Require().NoError(s.store.AppendEvents(s.ctx, run, ev, ev))

	got, err := s.store.ListEvents(s.ctx, run)
	s.Require().NoError(err)
	s.Len(got, 2)
	s.Empty(got[0].ID)
}

func (s *EventStoreSuite) TestUnknownRun() {
	_, err := s.store.ListEvents(s.ctx, s.runID())
	s.Require().Error(err)
	s.True(errors.Is(err, ErrRunNotFound), "got %v", err)
}

func (s *EventStoreSuite) TestListRuns() {
	runA, runB := s.runID(), s.runID()
	s.Require().NoError(s.store.AppendEvents(s.ctx, runB, sampleHistory()[0]))
	s.Require().NoError(s.store.AppendEvents(s.ctx, runA, sampleHistory()[1]))

	ids, err := s.store.ListRuns(s.ctx)
	s.Require().NoError(err)
	s.Contains(ids, runA)
	s.Contains(ids, runB)
	s.True(slices.IsSorted(ids), "runs not sorted: %v", ids)
}
