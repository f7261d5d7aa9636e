package challan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/slipdesk/slipdesk/internal/platform/httpx"
	"github.com/slipdesk/slipdesk/internal/shared"
)

// RepositoryPort defines data access methods for challans.
type RepositoryPort interface {
	Insert(ctx context.Context, ch *Challan) error
	Get(ctx context.Context, id uuid.UUID) (*Challan, error)
	Save(ctx context.Context, ch *Challan) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, q ListQuery) ([]Challan, int, error)
	ListUnverified(ctx context.Context, q UnverifiedQuery) ([]Challan, error)
	SearchClients(ctx context.Context, term string) ([]ClientMatch, error)
	ListComments(ctx context.Context) ([]CommentOption, error)
	CurrentNumber(ctx context.Context) (int64, error)
	IncrementNumber(ctx context.Context) error
}

// ArtifactRenderer produces the printable slip document.
type ArtifactRenderer interface {
	RenderSlip(ctx context.Context, ch *Challan, link string) ([]byte, error)
}

// Uploader pushes a generated artifact to object storage.
type Uploader interface {
	Upload(ctx context.Context, data []byte, folder, name string) (string, error)
}

// ArtifactRemover is an optional uploader capability. When the uploader
// implements it, a creation that fails after the upload also removes the
// orphaned artifact.
type ArtifactRemover interface {
	Remove(ctx context.Context, folder, name string) error
}

// InvoiceNotifier hands the invoice details to the billing team.
type InvoiceNotifier interface {
	NotifyBilling(ctx context.Context, email InvoiceEmail) error
}

// Unlocker releases a held lock.
type Unlocker interface {
	Release(ctx context.Context) error
}

// Locker serialises mutations per challan id.
type Locker interface {
	Lock(ctx context.Context, key string) (Unlocker, error)
}

// CacheBumper invalidates derived report caches after a mutation.
type CacheBumper interface {
	Bump(ctx context.Context) error
}

// InvoiceEmail is the payload delivered to billing when a slip is invoiced.
type InvoiceEmail struct {
	Number        string   `json:"number"`
	ClientName    string   `json:"client_name"`
	Address       string   `json:"address"`
	Contact       string   `json:"contact"`
	Services      string   `json:"services"`
	ServiceStatus string   `json:"service_status"`
	Area          string   `json:"area"`
	WorkLocation  string   `json:"work_location"`
	Amount        float64  `json:"amount"`
	GST           string   `json:"gst"`
	Attachments   []string `json:"attachments,omitempty"`
	User          string   `json:"user"`
}

// ClientMatch is a client lookup hit for slip pre-filling.
type ClientMatch struct {
	ID     uuid.UUID     `json:"id"`
	ShipTo ShipToDetails `json:"ship_to"`
	GST    string        `json:"gst,omitempty"`
}

// CommentOption is a canned remark operators attach to field updates.
// Admins maintain the list; it is served sorted by label.
type CommentOption struct {
	ID    uuid.UUID `json:"id"`
	Label string    `json:"label"`
	Value string    `json:"value"`
}

// ListQuery filters the paginated slip listing.
type ListQuery struct {
	Search  string
	Status  Status
	Page    int
	PerPage int
}

// UnverifiedQuery filters the payment verification worklist.
type UnverifiedQuery struct {
	Search string
	Status Status
}

// ServiceConfig carries the tunables for Service.
type ServiceConfig struct {
	SlipPrefix    string
	PublicBaseURL string
}

// Service orchestrates the challan state machine.
type Service struct {
	logger   *slog.Logger
	repo     RepositoryPort
	renderer ArtifactRenderer
	uploader Uploader
	notifier InvoiceNotifier
	locker   Locker
	bumper   CacheBumper
	validate *validator.Validate
	cfg      ServiceConfig
	now      func() time.Time
}

// NewService builds a Service instance. Renderer and uploader may be nil in
// environments without document generation; the creation saga then skips the
// artifact steps.
func NewService(logger *slog.Logger, repo RepositoryPort, renderer ArtifactRenderer, uploader Uploader, notifier InvoiceNotifier, locker Locker, bumper CacheBumper, cfg ServiceConfig) *Service {
	if cfg.SlipPrefix == "" {
		cfg.SlipPrefix = "SSS"
	}
	return &Service{
		logger:   logger,
		repo:     repo,
		renderer: renderer,
		uploader: uploader,
		notifier: notifier,
		locker:   locker,
		bumper:   bumper,
		validate: validator.New(),
		cfg:      cfg,
		now:      time.Now,
	}
}

// CreateInput is the slip creation request.
type CreateInput struct {
	PaymentType  PaymentType   `json:"payment_type" validate:"required"`
	Total        float64       `json:"total" validate:"gte=0"`
	ShipTo       ShipToDetails `json:"ship_to"`
	Services     []ServiceLine `json:"services" validate:"omitempty,dive"`
	GST          string        `json:"gst,omitempty"`
	Area         string        `json:"area,omitempty"`
	WorkLocation string        `json:"work_location,omitempty"`
	ServiceDate  time.Time     `json:"service_date" validate:"required"`
}

// Create runs the slip creation saga: read the counter, insert the document,
// render and upload the printable slip, then advance the counter. Any
// failure after the insert rolls the document back so no orphaned slip
// survives without its artifact.
func (s *Service) Create(ctx context.Context, ident shared.Identity, in CreateInput) (*Challan, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	if !in.PaymentType.Valid() {
		return nil, fmt.Errorf("%w: unknown payment type %q", httpx.ErrValidation, in.PaymentType)
	}
	if in.ShipTo.Name == "" {
		return nil, fmt.Errorf("%w: client name required", httpx.ErrValidation)
	}

	counter, err := s.repo.CurrentNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("challan: read counter: %w", err)
	}

	now := s.now()
	ch := &Challan{
		ID:           uuid.New(),
		Number:       fmt.Sprintf("%s - #%d#", s.cfg.SlipPrefix, counter),
		PaymentType:  in.PaymentType,
		Amount:       Amount{Total: coerceAmount(in.Total)},
		ShipTo:       in.ShipTo,
		Services:     in.Services,
		GST:          in.GST,
		Area:         in.Area,
		WorkLocation: in.WorkLocation,
		ServiceDate:  in.ServiceDate,
		CreatedBy:    ident.Name,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	ch.AppendUpdate(Update{Status: StatusOpen, User: ident.Name, Date: now})
	if in.PaymentType.AutoVerified() {
		ch.Verify = Verify{Status: true, Invoice: true}
	}

	if err := s.repo.Insert(ctx, ch); err != nil {
		return nil, fmt.Errorf("challan: insert: %w", err)
	}

	if s.renderer != nil && s.uploader != nil {
		link := fmt.Sprintf("%s/slips/%s", strings.TrimRight(s.cfg.PublicBaseURL, "/"), ch.ID)
		artifact, err := s.renderer.RenderSlip(ctx, ch, link)
		if err != nil {
			s.rollbackCreate(ctx, ch.ID)
			return nil, fmt.Errorf("challan: render slip: %w", errors.Join(httpx.ErrUpstream, err))
		}
		fileURL, err := s.uploader.Upload(ctx, artifact, "challan", ch.Number+".pdf")
		if err != nil {
			s.rollbackCreate(ctx, ch.ID)
			return nil, fmt.Errorf("challan: upload slip: %w", errors.Join(httpx.ErrUpstream, err))
		}
		ch.FileURL = fileURL
		if err := s.repo.Save(ctx, ch); err != nil {
			s.rollbackCreate(ctx, ch.ID)
			s.removeArtifact(ctx, "challan", ch.Number+".pdf")
			return nil, fmt.Errorf("challan: attach file: %w", err)
		}
	}

	// The counter only advances on full success so failures leave no gaps.
	if err := s.repo.IncrementNumber(ctx); err != nil {
		s.logger.Error("increment slip counter", slog.Any("error", err), slog.String("number", ch.Number))
	}
	s.bump(ctx)
	return ch, nil
}

func (s *Service) removeArtifact(ctx context.Context, folder, name string) {
	remover, ok := s.uploader.(ArtifactRemover)
	if !ok {
		return
	}
	if err := remover.Remove(ctx, folder, name); err != nil {
		s.logger.Error("remove orphaned slip artifact", slog.Any("error", err), slog.String("name", name))
	}
}

func (s *Service) rollbackCreate(ctx context.Context, id uuid.UUID) {
	if err := s.repo.Delete(ctx, id); err != nil {
		// The original failure is what the caller sees; the orphan is only logged.
		s.logger.Error("rollback slip creation", slog.Any("error", err), slog.String("id", id.String()))
		return
	}
	s.logger.Info("rolled back slip creation", slog.String("id", id.String()))
}

// Get returns one slip by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Challan, error) {
	return s.repo.Get(ctx, id)
}

// List returns a slip page filtered by search term and current status.
func (s *Service) List(ctx context.Context, q ListQuery) ([]Challan, shared.Pagination, error) {
	if q.PerPage <= 0 {
		q.PerPage = 10
	}
	if q.Page <= 0 {
		q.Page = 1
	}
	items, total, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("challan: list: %w", err)
	}
	return items, shared.NewPagination(q.Page, q.PerPage, total), nil
}

// ListUnverified returns slips awaiting payment verification.
func (s *Service) ListUnverified(ctx context.Context, q UnverifiedQuery) ([]Challan, error) {
	return s.repo.ListUnverified(ctx, q)
}

// SearchClients looks up previous clients for slip pre-filling.
func (s *Service) SearchClients(ctx context.Context, term string) ([]ClientMatch, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return []ClientMatch{}, nil
	}
	return s.repo.SearchClients(ctx, term)
}

// ListComments returns the canned operator comments sorted by label.
func (s *Service) ListComments(ctx context.Context) ([]CommentOption, error) {
	return s.repo.ListComments(ctx)
}

// UpdateInput is a field status update.
type UpdateInput struct {
	Status  Status     `json:"status" validate:"required"`
	Comment string     `json:"comment,omitempty"`
	JobDate *time.Time `json:"job_date,omitempty"`
	Amount  *float64   `json:"amount,omitempty"`
	Images  []string   `json:"images,omitempty"`
}

// Update appends a timeline entry and optionally records a partial payment.
func (s *Service) Update(ctx context.Context, ident shared.Identity, id uuid.UUID, in UpdateInput) (*Challan, error) {
	// The status vocabulary is open ended. Operators may record statuses
	// beyond the dashboard buckets; only cancellation is reserved because it
	// snapshots the ledger through its own operation.
	if strings.TrimSpace(string(in.Status)) == "" {
		return nil, fmt.Errorf("%w: status required", httpx.ErrValidation)
	}
	if in.Status == StatusCancelled {
		return nil, fmt.Errorf("%w: cancellation has its own operation", httpx.ErrValidation)
	}
	return s.mutate(ctx, id, func(ch *Challan) error {
		if ch.IsCancelled() {
			return fmt.Errorf("%w: %v", httpx.ErrConflict, ErrSlipCancelled)
		}
		ch.AppendUpdate(Update{
			Status:  in.Status,
			Comment: in.Comment,
			JobDate: in.JobDate,
			Images:  in.Images,
			User:    ident.Name,
			Date:    s.now(),
		})
		if in.Amount != nil {
			if err := ch.ApplyPartialPayment(*in.Amount); err != nil {
				return fmt.Errorf("%w: %v", httpx.ErrConflict, err)
			}
		}
		return nil
	})
}

// VerifyRequest is the payment verification request.
type VerifyRequest struct {
	BillAmount  float64 `json:"bill_amount"`
	BillCompany string  `json:"bill_company,omitempty"`
	Note        string  `json:"note,omitempty"`
}

// VerifyAmount reconciles the ledger for a payment verification.
func (s *Service) VerifyAmount(ctx context.Context, ident shared.Identity, id uuid.UUID, in VerifyRequest) (*Challan, error) {
	return s.mutate(ctx, id, func(ch *Challan) error {
		err := ch.ApplyVerification(VerifyInput{
			BillAmount:  in.BillAmount,
			BillCompany: in.BillCompany,
			Note:        in.Note,
			User:        ident.Name,
			At:          s.now(),
		})
		if err != nil {
			return fmt.Errorf("%w: %v", httpx.ErrConflict, err)
		}
		return nil
	})
}

// InvoiceRequest is the billing finalisation request.
type InvoiceRequest struct {
	BillAmount float64 `json:"bill_amount"`
	GST        string  `json:"gst,omitempty"`
}

// MakeInvoice finalises billing and hands the invoice to the billing team.
// The slip is only persisted when the handoff succeeds.
func (s *Service) MakeInvoice(ctx context.Context, ident shared.Identity, id uuid.UUID, in InvoiceRequest) (*Challan, error) {
	return s.mutate(ctx, id, func(ch *Challan) error {
		err := ch.ApplyInvoice(InvoiceInput{
			BillAmount: in.BillAmount,
			GST:        in.GST,
			User:       ident.Name,
			At:         s.now(),
		})
		if err != nil {
			return fmt.Errorf("%w: %v", httpx.ErrConflict, err)
		}
		if s.notifier != nil {
			if err := s.notifier.NotifyBilling(ctx, s.invoiceEmail(ch, ident, in.BillAmount)); err != nil {
				return fmt.Errorf("challan: notify billing: %w", errors.Join(httpx.ErrUpstream, err))
			}
		}
		return nil
	})
}

// Cancel terminates the slip and zeroes its ledger.
func (s *Service) Cancel(ctx context.Context, ident shared.Identity, id uuid.UUID, note string) (*Challan, error) {
	return s.mutate(ctx, id, func(ch *Challan) error {
		if err := ch.ApplyCancellation(note, ident.Name, s.now()); err != nil {
			return fmt.Errorf("%w: %v", httpx.ErrConflict, err)
		}
		return nil
	})
}

// mutate runs a read-modify-write cycle on one slip under its lock.
func (s *Service) mutate(ctx context.Context, id uuid.UUID, fn func(*Challan) error) (*Challan, error) {
	if s.locker != nil {
		lock, err := s.locker.Lock(ctx, shared.ChallanLockKey(id.String()))
		if err != nil {
			return nil, fmt.Errorf("challan: lock: %w", err)
		}
		defer func() {
			if err := lock.Release(ctx); err != nil {
				s.logger.Warn("release slip lock", slog.Any("error", err), slog.String("id", id.String()))
			}
		}()
	}

	ch, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(ch); err != nil {
		return nil, err
	}
	ch.UpdatedAt = s.now()
	if err := s.repo.Save(ctx, ch); err != nil {
		return nil, fmt.Errorf("challan: save: %w", err)
	}
	s.bump(ctx)
	return ch, nil
}

func (s *Service) bump(ctx context.Context) {
	if s.bumper == nil {
		return
	}
	if err := s.bumper.Bump(ctx); err != nil {
		s.logger.Warn("bump report cache", slog.Any("error", err))
	}
}

func (s *Service) invoiceEmail(ch *Challan, ident shared.Identity, billAmount float64) InvoiceEmail {
	names := make([]string, 0, len(ch.Services))
	for _, line := range ch.Services {
		if line.Name != "" {
			names = append(names, line.Name)
		}
	}
	status := "N/A"
	var attachments []string
	if last := len(ch.Updates); last > 0 {
		status = string(ch.Updates[last-1].Status)
		attachments = ch.Updates[last-1].Images
	}
	ship := ch.ShipTo
	return InvoiceEmail{
		Number:        ch.Number,
		ClientName:    strings.TrimSpace(ship.Prefix + " " + ship.Name),
		Address:       fmt.Sprintf("%s, %s, %s, %s, %s - %s", ship.Address, ship.Road, ship.Location, ship.Landmark, ship.City, ship.Pincode),
		Contact:       fmt.Sprintf("%s / %s / %s", ship.ContactName, ship.ContactNo, ship.ContactEmail),
		Services:      strings.Join(names, ", "),
		ServiceStatus: status,
		Area:          ch.Area,
		WorkLocation:  ch.WorkLocation,
		Amount:        coerceAmount(billAmount),
		GST:           ch.GST,
		Attachments:   attachments,
		User:          ident.Name,
	}
}
