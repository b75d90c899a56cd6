package conversion

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"

	"institute_backend/internal/accounts"
	"institute_backend/internal/leads/domain"
	"institute_backend/internal/leads/repository"
	"institute_backend/internal/otp"
	"institute_backend/platform/apperr"
	"institute_backend/platform/events"
	"institute_backend/platform/logger"
)

// fakeWorld backs all coordinator collaborators with one in-memory state so
// the cross-component invariants are observable.
type fakeWorld struct {
	mu           sync.Mutex
	leads        map[uuid.UUID]repository.Lead
	users        map[uuid.UUID]accounts.User // by lead ID
	comms        []repository.Communication
	verifyErr    error
	verifiedOnce bool
	converts     int

	// loseAfterVerify, when set, stamps that status on every lead right
	// after a successful verification, simulating a write that slips in
	// between the gate and the conversion commit.
	loseAfterVerify string
}

func newFakeWorld() *fakeWorld {
	return &fakeWorld{
		leads: make(map[uuid.UUID]repository.Lead),
		users: make(map[uuid.UUID]accounts.User),
	}
}

func (w *fakeWorld) Issue(_ context.Context, _ uuid.UUID, phone string) (otp.IssueResult, error) {
	return otp.IssueResult{Phone: phone}, nil
}

func (w *fakeWorld) Verify(_ context.Context, _ uuid.UUID, phone, _ string) (otp.VerifyOutcome, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.verifyErr != nil {
		return otp.VerifyOutcome{}, w.verifyErr
	}
	if w.verifiedOnce {
		// single use
		return otp.VerifyOutcome{}, apperr.NotFound("no pending verification for this phone")
	}
	w.verifiedOnce = true
	if w.loseAfterVerify != "" {
		for id, lead := range w.leads {
			lead.Status = w.loseAfterVerify
			w.leads[id] = lead
		}
	}
	return otp.VerifyOutcome{Phone: phone}, nil
}

func (w *fakeWorld) GetByID(_ context.Context, id uuid.UUID) (repository.Lead, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	lead, ok := w.leads[id]
	if !ok {
		return repository.Lead{}, repository.ErrNotFound
	}
	return lead, nil
}

func (w *fakeWorld) CreateCommunication(_ context.Context, params repository.CreateCommunicationParams) (repository.Communication, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	comm := repository.Communication{ID: uuid.New(), LeadID: params.LeadID, Type: params.Type, Content: params.Content}
	w.comms = append(w.comms, comm)
	return comm, nil
}

func (w *fakeWorld) GetByLeadID(_ context.Context, leadID uuid.UUID) (accounts.User, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	user, ok := w.users[leadID]
	if !ok {
		return accounts.User{}, accounts.ErrNotFound
	}
	return user, nil
}

func (w *fakeWorld) Convert(_ context.Context, leadID uuid.UUID, phase string, params accounts.CreateUserParams) (accounts.User, repository.Lead, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	lead, ok := w.leads[leadID]
	if !ok {
		return accounts.User{}, repository.Lead{}, repository.ErrNotFound
	}
	if lead.Status == domain.StatusConverted || lead.Status == domain.StatusLost {
		return accounts.User{}, repository.Lead{}, repository.ErrStatusChanged
	}
	w.converts++
	user := accounts.User{
		ID:        uuid.New(),
		Phone:     params.Phone,
		FirstName: params.FirstName,
		LastName:  params.LastName,
		LeadID:    params.LeadID,
	}
	lead.Status = domain.StatusConverted
	lead.WorkflowPhase = phase
	lead.UserID = &user.ID
	w.leads[leadID] = lead
	w.users[leadID] = user
	return user, lead, nil
}

func newCoordinator(world *fakeWorld) *Service {
	log := logger.New("development")
	return NewService(world, world, world, world, events.NewInMemoryBus(log), log)
}

func seedLead(world *fakeWorld, status string) uuid.UUID {
	id := uuid.New()
	world.leads[id] = repository.Lead{
		ID:            id,
		FirstName:     "Sara",
		LastName:      "Ahmadi",
		Phone:         "+989123456789",
		Status:        status,
		WorkflowPhase: domain.PhaseFollowUp,
	}
	return id
}

func TestVerifyAndConvertHappyPath(t *testing.T) {
	world := newFakeWorld()
	svc := newCoordinator(world)
	leadID := seedLead(world, domain.StatusQualified)

	result, err := svc.VerifyAndConvert(context.Background(), leadID, "+989123456789", "123456")
	if err != nil {
		t.Fatalf("VerifyAndConvert: %v", err)
	}
	if result.AlreadyConverted {
		t.Error("first conversion flagged AlreadyConverted")
	}
	if result.Lead.Status != domain.StatusConverted {
		t.Errorf("lead status = %q, want converted", result.Lead.Status)
	}
	if result.User.Phone != "+989123456789" {
		t.Errorf("account phone = %q, want the verified phone", result.User.Phone)
	}
	if result.Lead.UserID == nil || *result.Lead.UserID != result.User.ID {
		t.Error("lead not linked to the created account")
	}

	// A system note lands in the communication log.
	if len(world.comms) != 1 || world.comms[0].Type != repository.CommTypeSystem {
		t.Errorf("comms = %+v, want one system entry", world.comms)
	}
}

func TestRepeatConversionStillPassesOTPGate(t *testing.T) {
	world := newFakeWorld()
	svc := newCoordinator(world)
	leadID := seedLead(world, domain.StatusQualified)
	ctx := context.Background()

	first, err := svc.VerifyAndConvert(ctx, leadID, "+989123456789", "123456")
	if err != nil {
		t.Fatalf("first conversion: %v", err)
	}

	// A retry with the consumed code hits the OTP gate, not the lead's state.
	_, err = svc.VerifyAndConvert(ctx, leadID, "+989123456789", "123456")
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("retry after consume: got %v, want not found", err)
	}

	// A verified retry resolves idempotently to the existing account.
	world.mu.Lock()
	world.verifiedOnce = false
	world.mu.Unlock()

	second, err := svc.VerifyAndConvert(ctx, leadID, "+989123456789", "654321")
	if err != nil {
		t.Fatalf("verified retry: %v", err)
	}
	if !second.AlreadyConverted {
		t.Error("verified retry not flagged AlreadyConverted")
	}
	if second.User.ID != first.User.ID {
		t.Error("verified retry returned a different account")
	}
	if world.converts != 1 {
		t.Errorf("converts = %d, want exactly 1", world.converts)
	}
}

func TestConvertedLeadUnreachableWithoutVerification(t *testing.T) {
	world := newFakeWorld()
	svc := newCoordinator(world)
	leadID := seedLead(world, domain.StatusConverted)
	world.users[leadID] = accounts.User{ID: uuid.New(), Phone: "+989123456789"}
	world.verifyErr = apperr.Validation("the code is incorrect")

	// A wrong code against a converted lead must surface the OTP error, not
	// the linked account.
	result, err := svc.VerifyAndConvert(context.Background(), leadID, "+989999999999", "000000")
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("got %v, want the OTP error", err)
	}
	if result.AlreadyConverted || result.User.ID != uuid.Nil {
		t.Errorf("account data returned without verification: %+v", result)
	}
}

func TestLostLeadCannotConvert(t *testing.T) {
	world := newFakeWorld()
	svc := newCoordinator(world)
	leadID := seedLead(world, domain.StatusLost)
	ctx := context.Background()

	if _, err := svc.RequestCode(ctx, leadID, "+989123456789"); !apperr.Is(err, apperr.KindConflict) {
		t.Errorf("RequestCode: got %v, want conflict", err)
	}

	_, err := svc.VerifyAndConvert(ctx, leadID, "+989123456789", "123456")
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("VerifyAndConvert: got %v, want conflict", err)
	}
	if world.converts != 0 {
		t.Errorf("converts = %d, want 0", world.converts)
	}

	lead := world.leads[leadID]
	if lead.Status != domain.StatusLost {
		t.Errorf("lead status = %q, want lost", lead.Status)
	}
}

func TestConversionRacedByWithdrawalRejected(t *testing.T) {
	world := newFakeWorld()
	svc := newCoordinator(world)
	leadID := seedLead(world, domain.StatusQualified)
	world.loseAfterVerify = domain.StatusLost

	_, err := svc.VerifyAndConvert(context.Background(), leadID, "+989123456789", "123456")
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("got %v, want conflict", err)
	}
	if world.converts != 0 {
		t.Errorf("converts = %d, want 0", world.converts)
	}
}

func TestOTPFailurePropagatesUnchanged(t *testing.T) {
	world := newFakeWorld()
	world.verifyErr = apperr.Gone("the code has expired, request a new one")
	svc := newCoordinator(world)
	leadID := seedLead(world, domain.StatusQualified)

	_, err := svc.VerifyAndConvert(context.Background(), leadID, "+989123456789", "123456")
	if !apperr.Is(err, apperr.KindGone) {
		t.Fatalf("got %v, want the OTP error unchanged", err)
	}
	if world.converts != 0 {
		t.Error("conversion ran despite failed verification")
	}

	lead := world.leads[leadID]
	if lead.Status != domain.StatusQualified {
		t.Errorf("lead status = %q, want unchanged", lead.Status)
	}
}

func TestConvertUnknownLead(t *testing.T) {
	svc := newCoordinator(newFakeWorld())

	_, err := svc.VerifyAndConvert(context.Background(), uuid.New(), "+989123456789", "123456")
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("got %v, want not found", err)
	}
}

func TestRequestCodeForConvertedLeadRejected(t *testing.T) {
	world := newFakeWorld()
	svc := newCoordinator(world)
	leadID := seedLead(world, domain.StatusConverted)
	world.users[leadID] = accounts.User{ID: uuid.New(), Phone: "+989123456789"}

	_, err := svc.RequestCode(context.Background(), leadID, "+989123456789")
	if !apperr.Is(err, apperr.KindConflict) {
		t.Errorf("got %v, want conflict", err)
	}
}

func TestRacedConversionSecondCallerGetsExistingAccount(t *testing.T) {
	world := newFakeWorld()
	svc := newCoordinator(world)
	leadID := seedLead(world, domain.StatusQualified)
	ctx := context.Background()

	const workers = 4
	var wg sync.WaitGroup
	results := make([]Result, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.VerifyAndConvert(ctx, leadID, "+989123456789", "123456")
		}(i)
	}
	wg.Wait()

	// Exactly one account, every successful caller sees the same one.
	if world.converts != 1 {
		t.Fatalf("converts = %d, want exactly 1", world.converts)
	}
	winner := world.users[leadID]
	for i := range results {
		if errs[i] != nil {
			// Losers that hit the consumed challenge before the status froze
			// surface the OTP not-found; that is the documented restart path.
			if !apperr.Is(errs[i], apperr.KindNotFound) {
				t.Errorf("worker %d: unexpected error %v", i, errs[i])
			}
			continue
		}
		if results[i].User.ID != winner.ID {
			t.Errorf("worker %d: returned account %s, want %s", i, results[i].User.ID, winner.ID)
		}
	}
}
