package challan

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/slipdesk/slipdesk/internal/platform/httpx"
	"github.com/slipdesk/slipdesk/internal/shared"
)

type memoryRepo struct {
	items       map[uuid.UUID]*Challan
	counter     int64
	incremented int
	deleted     []uuid.UUID
	saveErr     error
	comments    []CommentOption
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: make(map[uuid.UUID]*Challan), counter: 100}
}

func (r *memoryRepo) Insert(ctx context.Context, ch *Challan) error {
	clone := *ch
	r.items[ch.ID] = &clone
	return nil
}

func (r *memoryRepo) Get(ctx context.Context, id uuid.UUID) (*Challan, error) {
	ch, ok := r.items[id]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	clone := *ch
	return &clone, nil
}

func (r *memoryRepo) Save(ctx context.Context, ch *Challan) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	if _, ok := r.items[ch.ID]; !ok {
		return httpx.ErrNotFound
	}
	clone := *ch
	r.items[ch.ID] = &clone
	return nil
}

func (r *memoryRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(r.items, id)
	r.deleted = append(r.deleted, id)
	return nil
}

func (r *memoryRepo) List(ctx context.Context, q ListQuery) ([]Challan, int, error) {
	var out []Challan
	for _, ch := range r.items {
		if q.Search != "" && !strings.Contains(ch.ShipTo.Name, q.Search) && !strings.Contains(ch.Number, q.Search) {
			continue
		}
		if q.Status != "" {
			status, ok := ch.CurrentStatus()
			if !ok || status != q.Status {
				continue
			}
		}
		out = append(out, *ch)
	}
	return out, len(out), nil
}

func (r *memoryRepo) ListUnverified(ctx context.Context, q UnverifiedQuery) ([]Challan, error) {
	var out []Challan
	for _, ch := range r.items {
		if !ch.Verify.Status {
			out = append(out, *ch)
		}
	}
	return out, nil
}

func (r *memoryRepo) SearchClients(ctx context.Context, term string) ([]ClientMatch, error) {
	var out []ClientMatch
	for _, ch := range r.items {
		if strings.Contains(ch.ShipTo.Name, term) {
			out = append(out, ClientMatch{ID: ch.ID, ShipTo: ch.ShipTo, GST: ch.GST})
		}
	}
	return out, nil
}

func (r *memoryRepo) ListComments(ctx context.Context) ([]CommentOption, error) {
	return r.comments, nil
}

func (r *memoryRepo) CurrentNumber(ctx context.Context) (int64, error) { return r.counter, nil }

func (r *memoryRepo) IncrementNumber(ctx context.Context) error {
	r.counter++
	r.incremented++
	return nil
}

type fakeRenderer struct {
	err   error
	calls int
}

func (f *fakeRenderer) RenderSlip(ctx context.Context, ch *Challan, link string) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []byte("%PDF-1.4 " + ch.Number), nil
}

type fakeUploader struct {
	err     error
	calls   int
	removed []string
}

func (f *fakeUploader) Upload(ctx context.Context, data []byte, folder, name string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "https://storage.example.com/" + folder + "/" + name, nil
}

func (f *fakeUploader) Remove(ctx context.Context, folder, name string) error {
	f.removed = append(f.removed, folder+"/"+name)
	return nil
}

type fakeNotifier struct {
	err  error
	sent []InvoiceEmail
}

func (f *fakeNotifier) NotifyBilling(ctx context.Context, email InvoiceEmail) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, email)
	return nil
}

type fakeBumper struct{ bumps int }

func (f *fakeBumper) Bump(ctx context.Context) error {
	f.bumps++
	return nil
}

var testIdent = shared.Identity{UserID: "u-1", Name: "Priya", Role: shared.RoleAdmin}

func newTestService(repo *memoryRepo, renderer *fakeRenderer, uploader *fakeUploader, notifier *fakeNotifier, bumper *fakeBumper) *Service {
	logger := slog.New(slog.NewTextHandler(testWriter{}, nil))
	svc := NewService(logger, repo, renderer, uploader, notifier, nil, bumper, ServiceConfig{
		SlipPrefix:    "SSS",
		PublicBaseURL: "https://slips.example.com",
	})
	svc.now = func() time.Time { return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC) }
	return svc
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

func validCreateInput() CreateInput {
	return CreateInput{
		PaymentType: PaymentCashToCollect,
		Total:       1500,
		ShipTo:      ShipToDetails{Name: "Apex Clinic", City: "Pune"},
		Services:    []ServiceLine{{Name: "AC Repair"}},
		ServiceDate: time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC),
	}
}

func TestCreateAssignsNumberAndOpenEntry(t *testing.T) {
	repo := newMemoryRepo()
	bumper := &fakeBumper{}
	svc := newTestService(repo, &fakeRenderer{}, &fakeUploader{}, &fakeNotifier{}, bumper)

	ch, err := svc.Create(context.Background(), testIdent, validCreateInput())
	require.NoError(t, err)
	require.Equal(t, "SSS - #100#", ch.Number)
	require.Len(t, ch.Updates, 1)
	require.Equal(t, StatusOpen, ch.Updates[0].Status)
	require.Equal(t, "Priya", ch.Updates[0].User)
	require.False(t, ch.Verify.Status)
	require.Contains(t, ch.FileURL, "SSS - #100#.pdf")
	require.Equal(t, 1, repo.incremented)
	require.Equal(t, 1, bumper.bumps)
}

func TestCreateAutoVerifiesGuaranteeJobs(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, &fakeRenderer{}, &fakeUploader{}, &fakeNotifier{}, &fakeBumper{})

	in := validCreateInput()
	in.PaymentType = PaymentInGuarantee
	ch, err := svc.Create(context.Background(), testIdent, in)
	require.NoError(t, err)
	require.Equal(t, Verify{Status: true, Invoice: true}, ch.Verify)
}

func TestCreateRollsBackOnRenderFailure(t *testing.T) {
	repo := newMemoryRepo()
	renderer := &fakeRenderer{err: errors.New("gotenberg down")}
	svc := newTestService(repo, renderer, &fakeUploader{}, &fakeNotifier{}, &fakeBumper{})

	_, err := svc.Create(context.Background(), testIdent, validCreateInput())
	require.Error(t, err)
	require.Empty(t, repo.items)
	require.Len(t, repo.deleted, 1)
	require.Equal(t, 0, repo.incremented, "counter must not advance on failure")
}

func TestCreateRollsBackOnUploadFailure(t *testing.T) {
	repo := newMemoryRepo()
	uploader := &fakeUploader{err: errors.New("bucket unavailable")}
	svc := newTestService(repo, &fakeRenderer{}, uploader, &fakeNotifier{}, &fakeBumper{})

	_, err := svc.Create(context.Background(), testIdent, validCreateInput())
	require.Error(t, err)
	require.Empty(t, repo.items)
	require.Equal(t, 0, repo.incremented)
}

func TestCreateCleansUpArtifactWhenAttachFails(t *testing.T) {
	repo := newMemoryRepo()
	repo.saveErr = errors.New("connection reset")
	uploader := &fakeUploader{}
	svc := newTestService(repo, &fakeRenderer{}, uploader, &fakeNotifier{}, &fakeBumper{})

	_, err := svc.Create(context.Background(), testIdent, validCreateInput())
	require.Error(t, err)
	require.Len(t, repo.deleted, 1)
	require.Equal(t, []string{"challan/SSS - #100#.pdf"}, uploader.removed)
	require.Equal(t, 0, repo.incremented)
}

func TestCreateRejectsUnknownPaymentType(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, &fakeRenderer{}, &fakeUploader{}, &fakeNotifier{}, &fakeBumper{})

	in := validCreateInput()
	in.PaymentType = "Barter"
	_, err := svc.Create(context.Background(), testIdent, in)
	require.ErrorIs(t, err, httpx.ErrValidation)
	require.Empty(t, repo.items)
}

func TestUpdateAppendsEntryAndPartialPayment(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, &fakeRenderer{}, &fakeUploader{}, &fakeNotifier{}, &fakeBumper{})
	created, err := svc.Create(context.Background(), testIdent, validCreateInput())
	require.NoError(t, err)

	amount := 400.0
	updated, err := svc.Update(context.Background(), testIdent, created.ID, UpdateInput{
		Status:  StatusPartiallyCompleted,
		Comment: "compressor pending",
		Amount:  &amount,
	})
	require.NoError(t, err)
	require.Len(t, updated.Updates, 2)
	require.Equal(t, 400.0, updated.Amount.Received)

	stored, err := repo.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, 400.0, stored.Amount.Received)
}

func TestUpdateAcceptsOperatorDefinedStatus(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, &fakeRenderer{}, &fakeUploader{}, &fakeNotifier{}, &fakeBumper{})
	created, err := svc.Create(context.Background(), testIdent, validCreateInput())
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), testIdent, created.ID, UpdateInput{
		Status:  Status("Awaiting Parts"),
		Comment: "compressor on order",
	})
	require.NoError(t, err)
	require.Len(t, updated.Updates, 2)
	require.Equal(t, Status("Awaiting Parts"), updated.Updates[1].Status)

	status, ok := updated.CurrentStatus()
	require.True(t, ok)
	require.Equal(t, Status("Awaiting Parts"), status)
}

func TestUpdateRequiresStatus(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, &fakeRenderer{}, &fakeUploader{}, &fakeNotifier{}, &fakeBumper{})
	created, err := svc.Create(context.Background(), testIdent, validCreateInput())
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), testIdent, created.ID, UpdateInput{Status: "  "})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestUpdateRejectsCancelledStatusValue(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, &fakeRenderer{}, &fakeUploader{}, &fakeNotifier{}, &fakeBumper{})
	created, err := svc.Create(context.Background(), testIdent, validCreateInput())
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), testIdent, created.ID, UpdateInput{Status: StatusCancelled})
	require.ErrorIs(t, err, httpx.ErrValidation)

	stored, err := repo.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.False(t, stored.IsCancelled())
}

func TestUpdateRejectsCancelledSlip(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, &fakeRenderer{}, &fakeUploader{}, &fakeNotifier{}, &fakeBumper{})
	created, err := svc.Create(context.Background(), testIdent, validCreateInput())
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), testIdent, created.ID, "duplicate booking")
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), testIdent, created.ID, UpdateInput{Status: StatusCompleted})
	require.ErrorIs(t, err, httpx.ErrConflict)
}

func TestVerifyThenInvoiceFlow(t *testing.T) {
	repo := newMemoryRepo()
	notifier := &fakeNotifier{}
	svc := newTestService(repo, &fakeRenderer{}, &fakeUploader{}, notifier, &fakeBumper{})

	in := validCreateInput()
	in.PaymentType = PaymentBillAfterJob
	in.Total = 0
	created, err := svc.Create(context.Background(), testIdent, in)
	require.NoError(t, err)

	verified, err := svc.VerifyAmount(context.Background(), testIdent, created.ID, VerifyRequest{
		BillAmount:  2000,
		BillCompany: "Acme Ltd",
		Note:        "B-17",
	})
	require.NoError(t, err)
	require.Equal(t, 2000.0, verified.Amount.Total)
	require.True(t, verified.Verify.Status)
	require.False(t, verified.Verify.Invoice)
	require.Len(t, verified.Notes, 1)

	invoiced, err := svc.MakeInvoice(context.Background(), testIdent, created.ID, InvoiceRequest{BillAmount: 1800, GST: "27X"})
	require.NoError(t, err)
	require.Equal(t, PaymentInvoiced, invoiced.PaymentType)
	require.Equal(t, 1800.0, invoiced.Amount.Received)
	require.Equal(t, 200.0, invoiced.Amount.Forfeited)
	require.Len(t, notifier.sent, 1)
	require.Equal(t, "SSS - #100#", notifier.sent[0].Number)
	require.Equal(t, 1800.0, notifier.sent[0].Amount)
}

func TestInvoiceNotBilledWhenNotifierFails(t *testing.T) {
	repo := newMemoryRepo()
	notifier := &fakeNotifier{err: errors.New("smtp timeout")}
	svc := newTestService(repo, &fakeRenderer{}, &fakeUploader{}, notifier, &fakeBumper{})
	created, err := svc.Create(context.Background(), testIdent, validCreateInput())
	require.NoError(t, err)

	_, err = svc.MakeInvoice(context.Background(), testIdent, created.ID, InvoiceRequest{BillAmount: 900})
	require.Error(t, err)

	stored, getErr := repo.Get(context.Background(), created.ID)
	require.NoError(t, getErr)
	require.False(t, stored.Verify.Invoice, "failed handoff must not persist the invoice")
	require.Equal(t, 0.0, stored.Amount.Received)
}

func TestCancelZeroesLedgerAndTerminates(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, &fakeRenderer{}, &fakeUploader{}, &fakeNotifier{}, &fakeBumper{})
	created, err := svc.Create(context.Background(), testIdent, validCreateInput())
	require.NoError(t, err)

	cancelled, err := svc.Cancel(context.Background(), testIdent, created.ID, "client moved")
	require.NoError(t, err)
	require.Equal(t, Amount{Cancelled: 1500}, cancelled.Amount)
	require.Equal(t, Verify{Status: true, Invoice: true}, cancelled.Verify)

	_, err = svc.Cancel(context.Background(), testIdent, created.ID, "again")
	require.ErrorIs(t, err, httpx.ErrConflict)
}

func TestSearchClientsTrimsAndSkipsEmpty(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, &fakeRenderer{}, &fakeUploader{}, &fakeNotifier{}, &fakeBumper{})
	_, err := svc.Create(context.Background(), testIdent, validCreateInput())
	require.NoError(t, err)

	matches, err := svc.SearchClients(context.Background(), "   ")
	require.NoError(t, err)
	require.Empty(t, matches)

	matches, err = svc.SearchClients(context.Background(), "Apex")
	require.NoError(t, err)
	require.Len(t, matches, 1)
}

func TestListCommentsReturnsCannedOptions(t *testing.T) {
	repo := newMemoryRepo()
	repo.comments = []CommentOption{
		{ID: uuid.New(), Label: "Client unavailable", Value: "Client was not present at the work location."},
		{ID: uuid.New(), Label: "Parts on order", Value: "Replacement parts have been ordered; revisit scheduled."},
	}
	svc := newTestService(repo, &fakeRenderer{}, &fakeUploader{}, &fakeNotifier{}, &fakeBumper{})

	options, err := svc.ListComments(context.Background())
	require.NoError(t, err)
	require.Equal(t, repo.comments, options)
}
