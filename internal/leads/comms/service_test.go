package comms

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"institute_backend/internal/leads/repository"
	"institute_backend/internal/leads/transport"
	"institute_backend/platform/apperr"
	"institute_backend/platform/events"
	"institute_backend/platform/logger"
)

type fakeStore struct {
	mu      sync.Mutex
	leads   map[uuid.UUID]repository.Lead
	entries []repository.Communication
	touched map[uuid.UUID]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		leads:   make(map[uuid.UUID]repository.Lead),
		touched: make(map[uuid.UUID]int),
	}
}

func (f *fakeStore) GetByID(_ context.Context, id uuid.UUID) (repository.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lead, ok := f.leads[id]
	if !ok {
		return repository.Lead{}, repository.ErrNotFound
	}
	return lead, nil
}

func (f *fakeStore) CreateCommunication(_ context.Context, params repository.CreateCommunicationParams) (repository.Communication, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	comm := repository.Communication{
		ID:           uuid.New(),
		LeadID:       params.LeadID,
		Type:         params.Type,
		Subject:      params.Subject,
		Content:      params.Content,
		ActorAgentID: params.ActorAgentID,
		ScheduledFor: params.ScheduledFor,
		CreatedAt:    time.Now(),
	}
	f.entries = append(f.entries, comm)
	return comm, nil
}

func (f *fakeStore) ListCommunications(_ context.Context, leadID uuid.UUID, offset, limit int) ([]repository.Communication, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	matched := make([]repository.Communication, 0)
	for i := len(f.entries) - 1; i >= 0; i-- {
		if f.entries[i].LeadID == leadID {
			matched = append(matched, f.entries[i])
		}
	}
	total := len(matched)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (f *fakeStore) TouchLastContact(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched[id]++
	return nil
}

type fakeScheduler struct {
	mu       sync.Mutex
	enqueued []time.Time
}

func (f *fakeScheduler) EnqueueFollowUpReminder(_ context.Context, _, _ uuid.UUID, due time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enqueued = append(f.enqueued, due)
	return nil
}

func newTestService(store *fakeStore, scheduler *fakeScheduler) *Service {
	log := logger.New("development")
	return New(store, scheduler, events.NewInMemoryBus(log), log)
}

func seedLead(store *fakeStore) uuid.UUID {
	id := uuid.New()
	store.leads[id] = repository.Lead{ID: id, Status: "contacted"}
	return id
}

func TestLogContactStampsLastContact(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeScheduler{})
	leadID := seedLead(store)

	comm, err := svc.Log(context.Background(), leadID, transport.LogCommunicationRequest{
		Type:    repository.CommTypeCall,
		Content: "Discussed course schedule",
	}, nil)
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	if comm.Type != repository.CommTypeCall {
		t.Errorf("type = %q, want call", comm.Type)
	}
	if store.touched[leadID] != 1 {
		t.Error("contact entry should stamp last contact")
	}
}

func TestLogNoteDoesNotStampLastContact(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeScheduler{})
	leadID := seedLead(store)

	_, err := svc.Log(context.Background(), leadID, transport.LogCommunicationRequest{
		Type:    repository.CommTypeNote,
		Content: "Prefers evening classes",
	}, nil)
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	if store.touched[leadID] != 0 {
		t.Error("note entry must not stamp last contact")
	}
}

func TestLogSystemTypeRejected(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeScheduler{})
	leadID := seedLead(store)

	_, err := svc.Log(context.Background(), leadID, transport.LogCommunicationRequest{
		Type:    repository.CommTypeSystem,
		Content: "forged",
	}, nil)
	if !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("got %v, want validation error", err)
	}
}

func TestLogUnknownLead(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakeScheduler{})

	_, err := svc.Log(context.Background(), uuid.New(), transport.LogCommunicationRequest{
		Type:    repository.CommTypeCall,
		Content: "hello",
	}, nil)
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("got %v, want not found", err)
	}
}

func TestLogScheduledEntryEnqueuesReminder(t *testing.T) {
	store := newFakeStore()
	scheduler := &fakeScheduler{}
	svc := newTestService(store, scheduler)
	leadID := seedLead(store)

	due := time.Now().Add(48 * time.Hour)
	_, err := svc.Log(context.Background(), leadID, transport.LogCommunicationRequest{
		Type:         repository.CommTypeMeeting,
		Content:      "Placement test appointment",
		ScheduledFor: &due,
	}, nil)
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	if len(scheduler.enqueued) != 1 {
		t.Fatalf("enqueued = %d reminders, want 1", len(scheduler.enqueued))
	}
	if !scheduler.enqueued[0].Equal(due) {
		t.Errorf("reminder due %v, want %v", scheduler.enqueued[0], due)
	}
}

func TestLogPastScheduledForSkipsReminder(t *testing.T) {
	store := newFakeStore()
	scheduler := &fakeScheduler{}
	svc := newTestService(store, scheduler)
	leadID := seedLead(store)

	past := time.Now().Add(-time.Hour)
	if _, err := svc.Log(context.Background(), leadID, transport.LogCommunicationRequest{
		Type:         repository.CommTypeCall,
		Content:      "Backfilled call record",
		ScheduledFor: &past,
	}, nil); err != nil {
		t.Fatalf("Log: %v", err)
	}
	if len(scheduler.enqueued) != 0 {
		t.Error("past scheduled-for must not enqueue a reminder")
	}
}

func TestHistoryNewestFirst(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(store, &fakeScheduler{})
	leadID := seedLead(store)
	ctx := context.Background()

	for _, content := range []string{"first", "second", "third"} {
		if _, err := svc.Log(ctx, leadID, transport.LogCommunicationRequest{
			Type:    repository.CommTypeNote,
			Content: content,
		}, nil); err != nil {
			t.Fatal(err)
		}
	}

	entries, total, err := svc.History(ctx, leadID, 1, 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if total != 3 || len(entries) != 3 {
		t.Fatalf("total=%d len=%d, want 3/3", total, len(entries))
	}
	if entries[0].Content != "third" || entries[2].Content != "first" {
		t.Errorf("entries not newest first: %q ... %q", entries[0].Content, entries[2].Content)
	}
}
