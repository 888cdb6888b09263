package services

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/casevault/internal/common"
	"github.com/dmitrijs2005/casevault/internal/dbx"
	"github.com/dmitrijs2005/casevault/internal/server/models"
	"github.com/dmitrijs2005/casevault/internal/server/repositories/documents"
	"github.com/dmitrijs2005/casevault/internal/server/repositories/paymentevents"
	"github.com/dmitrijs2005/casevault/internal/server/repositories/payments"
	"github.com/dmitrijs2005/casevault/internal/server/repositories/users"
	_ "modernc.org/sqlite"
)

// --- helpers ---

// newTxDB returns a real database used only for BEGIN/COMMIT; the fake
// repositories below ignore the handle they are bound to.
func newTxDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

// --- payments ---

type fakePayments struct {
	mu   sync.Mutex
	rows map[string]*models.Payment

	createErr error
	getErr    error
	casErr    error
	casCalls  int

	// casErrOnce fails the next compare-and-set only.
	casErrOnce error

	// staleReads serves these snapshots before the live row, to model a
	// concurrent writer advancing the payment between read and CAS.
	staleReads []*models.Payment
}

func newFakePayments(ps ...*models.Payment) *fakePayments {
	f := &fakePayments{rows: map[string]*models.Payment{}}
	for _, p := range ps {
		cp := *p
		f.rows[p.ID] = &cp
	}
	return f
}

func (f *fakePayments) Create(ctx context.Context, p *models.Payment) (*models.Payment, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, false, f.createErr
	}
	for _, r := range f.rows {
		samePayment := p.ProviderPaymentID != "" && r.ProviderPaymentID == p.ProviderPaymentID
		sameInvoice := p.ProviderInvoiceID != "" && r.ProviderInvoiceID == p.ProviderInvoiceID
		if samePayment || sameInvoice {
			cp := *r
			return &cp, false, nil
		}
	}
	cp := *p
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	f.rows[p.ID] = &cp
	out := cp
	return &out, true, nil
}

func (f *fakePayments) find(match func(*models.Payment) bool) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	if len(f.staleReads) > 0 {
		p := f.staleReads[0]
		f.staleReads = f.staleReads[1:]
		cp := *p
		return &cp, nil
	}
	for _, r := range f.rows {
		if match(r) {
			cp := *r
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakePayments) GetByID(ctx context.Context, id string) (*models.Payment, error) {
	return f.find(func(p *models.Payment) bool { return p.ID == id })
}

func (f *fakePayments) GetByProviderPaymentID(ctx context.Context, pid string) (*models.Payment, error) {
	return f.find(func(p *models.Payment) bool { return p.ProviderPaymentID == pid })
}

func (f *fakePayments) GetByProviderInvoiceID(ctx context.Context, iid string) (*models.Payment, error) {
	return f.find(func(p *models.Payment) bool { return p.ProviderInvoiceID != "" && p.ProviderInvoiceID == iid })
}

func (f *fakePayments) ListByOwner(ctx context.Context, userID string) ([]*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Payment
	for _, r := range f.rows {
		if r.UserID == userID {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakePayments) CompareAndSetStatus(ctx context.Context, id string, expected models.PaymentStatus, expectedRefund int64, upd models.PaymentUpdate) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.casCalls++
	if f.casErr != nil {
		return false, f.casErr
	}
	if err := f.casErrOnce; err != nil {
		f.casErrOnce = nil
		return false, err
	}
	r, ok := f.rows[id]
	if !ok || r.Status != expected || r.RefundAmount != expectedRefund {
		return false, nil
	}
	r.Status = upd.Status
	if upd.PaymentMethod != "" {
		r.PaymentMethod = upd.PaymentMethod
	}
	if upd.ReceiptURL != "" {
		r.ReceiptURL = upd.ReceiptURL
	}
	if upd.RefundAmount != 0 {
		r.RefundAmount = upd.RefundAmount
	}
	r.UpdatedAt = time.Now()
	return true, nil
}

func (f *fakePayments) get(id string) models.Payment {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.rows[id]
}

func (f *fakePayments) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

// --- payment events ---

type fakeEvents struct {
	mu        sync.Mutex
	events    []*models.PaymentEvent
	appendErr error
}

func (f *fakeEvents) Append(ctx context.Context, e *models.PaymentEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	cp := *e
	f.events = append(f.events, &cp)
	return nil
}

func (f *fakeEvents) QueueForReview(ctx context.Context, e *models.PaymentEvent) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return false, f.appendErr
	}
	if e.ProviderEventID != "" {
		for _, q := range f.events {
			if q.Outcome == models.OutcomeRejected && q.ProviderEventID == e.ProviderEventID {
				return false, nil
			}
		}
	}
	cp := *e
	cp.Outcome = models.OutcomeRejected
	f.events = append(f.events, &cp)
	return true, nil
}

func (f *fakeEvents) ListByPayment(ctx context.Context, paymentID string) ([]*models.PaymentEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.PaymentEvent
	for _, e := range f.events {
		if e.PaymentID == paymentID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEvents) withOutcome(o models.Outcome) []*models.PaymentEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.PaymentEvent
	for _, e := range f.events {
		if e.Outcome == o {
			out = append(out, e)
		}
	}
	return out
}

// --- documents ---

type fakeDocuments struct {
	mu        sync.Mutex
	rows      map[string]*models.Document
	createErr error
}

func newFakeDocuments() *fakeDocuments {
	return &fakeDocuments{rows: map[string]*models.Document{}}
}

func (f *fakeDocuments) Create(ctx context.Context, d *models.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	d.UploadedAt = time.Now()
	cp := *d
	f.rows[d.ID] = &cp
	return nil
}

func (f *fakeDocuments) GetByID(ctx context.Context, id string) (*models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *d
	return &cp, nil
}

func (f *fakeDocuments) ListByOwner(ctx context.Context, userID string) ([]*models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Document
	for _, d := range f.rows {
		if d.UserID == userID {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeDocuments) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[id]; !ok {
		return common.ErrorNotFound
	}
	delete(f.rows, id)
	return nil
}

// --- users ---

type fakeUsers struct {
	mu        sync.Mutex
	byEmail   map[string]*models.User
	createErr error
	getErr    error
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byEmail: map[string]*models.User{}}
}

func (f *fakeUsers) Create(ctx context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	if _, ok := f.byEmail[u.Email]; ok {
		return nil, common.ErrAlreadyExists
	}
	u.CreatedAt = time.Now()
	cp := *u
	f.byEmail[u.Email] = &cp
	return u, nil
}

func (f *fakeUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byEmail[email]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, u := range f.byEmail {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsers) add(u *models.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *u
	f.byEmail[u.Email] = &cp
}

// --- manager ---

type fakeRepoManager struct {
	payments  *fakePayments
	events    *fakeEvents
	documents *fakeDocuments
	users     *fakeUsers
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error       { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) users.Repository                 { return m.users }
func (m *fakeRepoManager) Payments(db dbx.DBTX) payments.Repository           { return m.payments }
func (m *fakeRepoManager) PaymentEvents(db dbx.DBTX) paymentevents.Repository { return m.events }
func (m *fakeRepoManager) Documents(db dbx.DBTX) documents.Repository         { return m.documents }
