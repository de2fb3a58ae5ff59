// Package sale runs sale sessions: the ticket being rung up at the counter,
// kept in Redis between requests and finalized into Postgres.
package sale

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-pos/internal/catalog"
	"github.com/noah-isme/backend-pos/internal/directory"
	"github.com/noah-isme/backend-pos/internal/events"
	"github.com/noah-isme/backend-pos/internal/lock"
	"github.com/noah-isme/backend-pos/internal/obs"
	"github.com/noah-isme/backend-pos/internal/reservation"
	"github.com/noah-isme/backend-pos/internal/ticket"
)

// Catalog resolves items being added.
type Catalog interface {
	Get(ctx context.Context, id string) (catalog.Item, error)
}

// Directory verifies selected sellers and customers.
type Directory interface {
	Get(ctx context.Context, kind directory.Kind, id string) (directory.Party, error)
}

// Reservations leases serialized units to open sales.
type Reservations interface {
	Reserve(ctx context.Context, saleID, unitID string) error
	Release(ctx context.Context, saleID, unitID string) error
	ReleaseAll(ctx context.Context, saleID string, unitIDs []string) error
	Extend(ctx context.Context, saleID string, unitIDs []string) ([]string, error)
}

// Repository persists finalized sales.
type Repository interface {
	SaveSale(ctx context.Context, operatorID string, r ticket.Receipt) error
}

// Emitter publishes domain events.
type Emitter interface {
	Emit(ctx context.Context, topic, aggregateID string, payload any) (events.Event, error)
}

// FeeSource supplies the fee schedule in force.
type FeeSource interface {
	Schedule(ctx context.Context) ticket.FeeSchedule
}

// Config groups Service dependencies.
type Config struct {
	Store                      Store
	Catalog                    Catalog
	Directory                  Directory
	Reservations               Reservations
	Repository                 Repository
	Events                     Emitter
	Fees                       FeeSource
	Notifier                   Notifier
	Metrics                    *obs.SaleMetrics
	Locker                     lock.Locker
	LockTTL                    time.Duration
	StoreCreditMaxInstallments int
	WalkInCustomerID           string
	Logger                     zerolog.Logger
	Now                        func() time.Time
}

// Service implements the sale session operations.
type Service struct {
	cfg Config
}

// NewService constructs a Service.
func NewService(cfg Config) *Service {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Second
	}
	if cfg.Notifier == nil {
		cfg.Notifier = LogNotifier{Logger: cfg.Logger}
	}
	return &Service{cfg: cfg}
}

// View is the state returned to the front-end after every operation.
type View struct {
	ID         string           `json:"id"`
	OperatorID string           `json:"operatorId"`
	Lines      []ticket.Line    `json:"lines"`
	Discount   *ticket.Discount `json:"discount,omitempty"`
	Payments   []ticket.Entry   `json:"payments"`
	SellerID   string           `json:"sellerId,omitempty"`
	CustomerID string           `json:"customerId"`
	Summary    ticket.Summary   `json:"summary"`
	UpdatedAt  time.Time        `json:"updatedAt"`
}

func viewOf(sess *Session) View {
	s := sess.Sale
	lines := s.Cart.Lines
	if lines == nil {
		lines = []ticket.Line{}
	}
	payments := s.Payments.Entries
	if payments == nil {
		payments = []ticket.Entry{}
	}
	return View{
		ID:         s.ID,
		OperatorID: sess.OperatorID,
		Lines:      lines,
		Discount:   s.Discount,
		Payments:   payments,
		SellerID:   s.SellerID,
		CustomerID: s.Customer(),
		Summary:    s.Summary(),
		UpdatedAt:  sess.UpdatedAt,
	}
}

func (s *Service) policy(ctx context.Context) ticket.Policy {
	fees := ticket.DefaultFeeSchedule()
	if s.cfg.Fees != nil {
		fees = s.cfg.Fees.Schedule(ctx)
	}
	return ticket.Policy{
		Fees:                       fees,
		StoreCreditMaxInstallments: s.cfg.StoreCreditMaxInstallments,
		WalkInCustomerID:           s.cfg.WalkInCustomerID,
	}
}

// Open starts an empty sale for operatorID.
func (s *Service) Open(ctx context.Context, operatorID string) (View, error) {
	now := s.cfg.Now().UTC()
	sess := &Session{
		Sale:       ticket.NewSale(uuid.NewString(), s.policy(ctx)),
		OperatorID: operatorID,
		OpenedAt:   now,
		UpdatedAt:  now,
	}
	if err := s.cfg.Store.Save(ctx, sess); err != nil {
		return View{}, err
	}
	s.cfg.Logger.Debug().Str("sale_id", sess.ID()).Str("operator_id", operatorID).Msg("sale opened")
	return viewOf(sess), nil
}

// Get returns the current state of a sale.
func (s *Service) Get(ctx context.Context, operatorID, saleID string) (View, error) {
	sess, err := s.load(ctx, operatorID, saleID)
	if err != nil {
		return View{}, s.reject(ctx, "load", err)
	}
	return viewOf(sess), nil
}

func (s *Service) load(ctx context.Context, operatorID, saleID string) (*Session, error) {
	sess, err := s.cfg.Store.Load(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if sess.OperatorID != operatorID {
		return nil, ErrForbidden
	}
	sess.Sale.Bind(s.policy(ctx))
	return sess, nil
}

// mutate runs fn on the session under the per-sale lock and saves the result.
// A rejected fn leaves the stored session untouched.
func (s *Service) mutate(ctx context.Context, op, operatorID, saleID string, fn func(context.Context, *Session) error) (View, error) {
	ctx = withSaleID(ctx, saleID)
	var view View
	err := s.withLock(ctx, saleID, func(ctx context.Context) error {
		sess, err := s.load(ctx, operatorID, saleID)
		if err != nil {
			return err
		}
		if err := fn(ctx, sess); err != nil {
			return err
		}
		sess.UpdatedAt = s.cfg.Now().UTC()
		if err := s.cfg.Store.Save(ctx, sess); err != nil {
			return err
		}
		s.refreshLeases(ctx, sess)
		view = viewOf(sess)
		return nil
	})
	if err != nil {
		return View{}, s.reject(ctx, op, err)
	}
	return view, nil
}

func (s *Service) withLock(ctx context.Context, saleID string, fn func(context.Context) error) error {
	if s.cfg.Locker.R == nil {
		return fn(ctx)
	}
	locker := s.cfg.Locker
	if locker.AcquireWait <= 0 {
		locker.AcquireWait = 2 * s.cfg.LockTTL
	}
	err := locker.WithLock(ctx, "sale:lock:"+saleID, s.cfg.LockTTL, fn)
	if errors.Is(err, lock.ErrNotAcquired) {
		return ErrBusy
	}
	return err
}

// refreshLeases slides unit reservations along with the session.
func (s *Service) refreshLeases(ctx context.Context, sess *Session) {
	if s.cfg.Reservations == nil || len(sess.Reserved) == 0 {
		return
	}
	lost, err := s.cfg.Reservations.Extend(ctx, sess.ID(), sess.Reserved)
	if err != nil {
		s.cfg.Logger.Warn().Err(err).Str("sale_id", sess.ID()).Msg("extend reservations")
		return
	}
	for _, unit := range lost {
		if err := s.cfg.Reservations.Reserve(ctx, sess.ID(), unit); err != nil {
			s.cfg.Notifier.ShowWarning(ctx, "Item reserved", fmt.Sprintf("unit %s is now held by another sale", unit))
		}
	}
}

// reject reports a failed operation to the notifier and metrics and returns err.
func (s *Service) reject(ctx context.Context, op string, err error) error {
	rej, known := Classify(err)
	if !known {
		s.cfg.Logger.Error().Err(err).Str("op", op).Msg("sale operation failed")
		s.cfg.Notifier.ShowError(ctx, "Unexpected error", "the operation could not be completed")
		s.cfg.Metrics.ObserveRejection("internal")
		return err
	}
	s.cfg.Metrics.ObserveRejection(rej.Code)
	if rej.Status >= 500 {
		s.cfg.Notifier.ShowError(ctx, rej.Title, err.Error())
	} else {
		s.cfg.Notifier.ShowWarning(ctx, rej.Title, err.Error())
	}
	return err
}

// AddItem puts qty of itemID on the ticket. Serialized units are reserved
// for this sale first and released again if the cart rejects them.
func (s *Service) AddItem(ctx context.Context, operatorID, saleID, itemID string, qty int) (View, error) {
	return s.mutate(ctx, "add_item", operatorID, saleID, func(ctx context.Context, sess *Session) error {
		item, err := s.cfg.Catalog.Get(ctx, strings.TrimSpace(itemID))
		if err != nil {
			return err
		}
		if !item.Available() {
			return fmt.Errorf("%s: %w", item.Description, ErrItemUnavailable)
		}
		if item.Serialized && qty == 0 {
			qty = 1
		}
		reserve := item.Serialized && s.cfg.Reservations != nil && !sess.holds(item.ID)
		if reserve {
			if err := s.cfg.Reservations.Reserve(ctx, sess.ID(), item.ID); err != nil {
				return err
			}
		}
		if err := sess.Sale.AddLine(item.TicketItem(), qty); err != nil {
			if reserve {
				if relErr := s.cfg.Reservations.Release(ctx, sess.ID(), item.ID); relErr != nil {
					s.cfg.Logger.Warn().Err(relErr).Str("unit_id", item.ID).Msg("release after rejected add")
				}
			}
			return err
		}
		if reserve {
			sess.Reserved = append(sess.Reserved, item.ID)
		}
		return nil
	})
}

// RemoveLine drops the line for itemID, releasing its unit. Removing an absent line is a no-op.
func (s *Service) RemoveLine(ctx context.Context, operatorID, saleID, itemID string) (View, error) {
	itemID = strings.TrimSpace(itemID)
	return s.mutate(ctx, "remove_line", operatorID, saleID, func(ctx context.Context, sess *Session) error {
		if !sess.Sale.RemoveLine(itemID) || !sess.holds(itemID) {
			return nil
		}
		sess.drop(itemID)
		if s.cfg.Reservations != nil {
			if err := s.cfg.Reservations.Release(ctx, sess.ID(), itemID); err != nil {
				s.cfg.Logger.Warn().Err(err).Str("unit_id", itemID).Msg("release removed unit")
			}
		}
		return nil
	})
}

// SetDiscount replaces the sale discount.
func (s *Service) SetDiscount(ctx context.Context, operatorID, saleID string, d ticket.Discount) (View, error) {
	return s.mutate(ctx, "set_discount", operatorID, saleID, func(_ context.Context, sess *Session) error {
		return sess.Sale.SetDiscount(d)
	})
}

// ClearDiscount removes the sale discount.
func (s *Service) ClearDiscount(ctx context.Context, operatorID, saleID string) (View, error) {
	return s.mutate(ctx, "clear_discount", operatorID, saleID, func(_ context.Context, sess *Session) error {
		sess.Sale.ClearDiscount()
		return nil
	})
}

// AddPayment appends an entry of method m and returns its index. Trade-in
// entries request a valuation from the back-office.
func (s *Service) AddPayment(ctx context.Context, operatorID, saleID string, m ticket.Method) (View, int, error) {
	var (
		index          int
		needsValuation bool
	)
	view, err := s.mutate(ctx, "add_payment", operatorID, saleID, func(_ context.Context, sess *Session) error {
		var err error
		index, needsValuation, err = sess.Sale.AddPayment(m)
		return err
	})
	if err != nil {
		return View{}, 0, err
	}
	if needsValuation {
		ctx = withSaleID(ctx, saleID)
		s.emit(ctx, events.TopicTradeInRequested, saleID, events.TradeInRequested{
			SaleID:       saleID,
			OperatorID:   operatorID,
			PaymentIndex: index,
		})
		s.cfg.Notifier.ShowWarning(ctx, "Trade-in", "valuation requested for the trade-in item")
	}
	return view, index, nil
}

// SetPaymentAmount updates the amount of payment i.
func (s *Service) SetPaymentAmount(ctx context.Context, operatorID, saleID string, i int, amount decimal.Decimal) (View, error) {
	return s.mutate(ctx, "set_payment_amount", operatorID, saleID, func(_ context.Context, sess *Session) error {
		return sess.Sale.SetPaymentAmount(i, amount)
	})
}

// SetPaymentInstallments updates the installment count of payment i.
func (s *Service) SetPaymentInstallments(ctx context.Context, operatorID, saleID string, i, n int) (View, error) {
	return s.mutate(ctx, "set_payment_installments", operatorID, saleID, func(_ context.Context, sess *Session) error {
		return sess.Sale.SetPaymentInstallments(i, n)
	})
}

// SetPaymentInterest updates the interest election of payment i.
func (s *Service) SetPaymentInterest(ctx context.Context, operatorID, saleID string, i int, elected bool) (View, error) {
	return s.mutate(ctx, "set_payment_interest", operatorID, saleID, func(_ context.Context, sess *Session) error {
		return sess.Sale.SetPaymentInterest(i, elected)
	})
}

// RemovePayment drops payment i.
func (s *Service) RemovePayment(ctx context.Context, operatorID, saleID string, i int) (View, error) {
	return s.mutate(ctx, "remove_payment", operatorID, saleID, func(_ context.Context, sess *Session) error {
		return sess.Sale.RemovePayment(i)
	})
}

// SetSeller selects the seller after checking the directory.
func (s *Service) SetSeller(ctx context.Context, operatorID, saleID, sellerID string) (View, error) {
	return s.mutate(ctx, "set_seller", operatorID, saleID, func(ctx context.Context, sess *Session) error {
		sellerID = strings.TrimSpace(sellerID)
		if sellerID == "" {
			return fmt.Errorf("seller id required: %w", ticket.ErrInvalidInput)
		}
		if err := s.verify(ctx, directory.Seller, sellerID); err != nil {
			return err
		}
		sess.Sale.SetSeller(sellerID)
		return nil
	})
}

// SetCustomer selects the customer. An empty id restores the walk-in customer.
func (s *Service) SetCustomer(ctx context.Context, operatorID, saleID, customerID string) (View, error) {
	return s.mutate(ctx, "set_customer", operatorID, saleID, func(ctx context.Context, sess *Session) error {
		customerID = strings.TrimSpace(customerID)
		if customerID != "" {
			if err := s.verify(ctx, directory.Customer, customerID); err != nil {
				return err
			}
		}
		sess.Sale.SetCustomer(customerID)
		return nil
	})
}

func (s *Service) verify(ctx context.Context, kind directory.Kind, id string) error {
	if s.cfg.Directory == nil {
		return nil
	}
	if _, err := s.cfg.Directory.Get(ctx, kind, id); err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return fmt.Errorf("%s %s not found: %w", kind, id, err)
		}
		return err
	}
	return nil
}

// SettleAmount returns the amount a new payment of method m must carry to settle the sale.
func (s *Service) SettleAmount(ctx context.Context, operatorID, saleID string, m ticket.Method) (decimal.Decimal, error) {
	if !m.Valid() {
		return decimal.Zero, s.reject(ctx, "settle_amount", fmt.Errorf("payment method %q: %w", m, ticket.ErrInvalidInput))
	}
	sess, err := s.load(ctx, operatorID, saleID)
	if err != nil {
		return decimal.Zero, s.reject(ctx, "settle_amount", err)
	}
	return sess.Sale.SettleAmount(m), nil
}

// Finalize closes a balanced sale: it is persisted, its units leave the
// reservation pool, and the session is removed. A rejected sale stays open and unchanged.
func (s *Service) Finalize(ctx context.Context, operatorID, saleID string) (ticket.Receipt, error) {
	ctx = withSaleID(ctx, saleID)
	var (
		receipt  ticket.Receipt
		released []string
	)
	err := s.withLock(ctx, saleID, func(ctx context.Context) error {
		sess, err := s.load(ctx, operatorID, saleID)
		if err != nil {
			return err
		}
		if _, err := sess.Sale.Check(); err != nil {
			return err
		}
		if err := s.confirmLeases(ctx, sess); err != nil {
			return err
		}
		receipt, err = sess.Sale.Finalize(s.cfg.Now())
		if err != nil {
			return err
		}
		if err := s.cfg.Repository.SaveSale(ctx, operatorID, receipt); err != nil {
			return err
		}
		released = sess.Reserved
		if err := s.cfg.Store.Delete(ctx, saleID); err != nil {
			s.cfg.Logger.Warn().Err(err).Str("sale_id", saleID).Msg("delete finalized session")
		}
		return nil
	})
	if err != nil {
		s.cfg.Metrics.ObserveFinalized("rejected", 0)
		return ticket.Receipt{}, s.reject(ctx, "finalize", err)
	}

	if s.cfg.Reservations != nil && len(released) > 0 {
		if err := s.cfg.Reservations.ReleaseAll(ctx, saleID, released); err != nil {
			s.cfg.Logger.Warn().Err(err).Str("sale_id", saleID).Msg("release sold units")
		}
	}
	methods := make([]string, 0, len(receipt.Payments))
	for _, p := range receipt.Payments {
		methods = append(methods, string(p.Method))
	}
	s.emit(ctx, events.TopicSaleFinalized, saleID, events.SaleFinalized{
		SaleID:     saleID,
		OperatorID: operatorID,
		SellerID:   receipt.SellerID,
		CustomerID: receipt.CustomerID,
		TotalDue:   receipt.Summary.TotalDue,
		TotalPaid:  receipt.Summary.TotalPaid,
		Lines:      len(receipt.Lines),
		Methods:    methods,
	})
	amount, _ := receipt.Summary.TotalDue.Float64()
	s.cfg.Metrics.ObserveFinalized("ok", amount)
	s.cfg.Notifier.ShowSuccess(ctx, "Sale completed", fmt.Sprintf("sale %s recorded, total %s", saleID, receipt.Summary.TotalDue.StringFixed(2)))
	return receipt, nil
}

// confirmLeases makes sure every reserved unit is still held by this sale.
func (s *Service) confirmLeases(ctx context.Context, sess *Session) error {
	if s.cfg.Reservations == nil || len(sess.Reserved) == 0 {
		return nil
	}
	lost, err := s.cfg.Reservations.Extend(ctx, sess.ID(), sess.Reserved)
	if err != nil {
		return err
	}
	for _, unit := range lost {
		if err := s.cfg.Reservations.Reserve(ctx, sess.ID(), unit); err != nil {
			return err
		}
	}
	return nil
}

// Abort discards the sale and releases its units. Nothing is persisted.
func (s *Service) Abort(ctx context.Context, operatorID, saleID string) error {
	ctx = withSaleID(ctx, saleID)
	var released []string
	err := s.withLock(ctx, saleID, func(ctx context.Context) error {
		sess, err := s.load(ctx, operatorID, saleID)
		if err != nil {
			return err
		}
		released = sess.Reserved
		if s.cfg.Reservations != nil && len(released) > 0 {
			if err := s.cfg.Reservations.ReleaseAll(ctx, saleID, released); err != nil {
				s.cfg.Logger.Warn().Err(err).Str("sale_id", saleID).Msg("release aborted units")
			}
		}
		return s.cfg.Store.Delete(ctx, saleID)
	})
	if err != nil {
		return s.reject(ctx, "abort", err)
	}
	if released == nil {
		released = []string{}
	}
	s.emit(ctx, events.TopicSaleAborted, saleID, events.SaleAborted{
		SaleID:        saleID,
		OperatorID:    operatorID,
		ReleasedUnits: released,
	})
	s.cfg.Notifier.ShowSuccess(ctx, "Sale cancelled", "the sale was discarded")
	return nil
}

func (s *Service) emit(ctx context.Context, topic, saleID string, payload any) {
	if s.cfg.Events == nil {
		return
	}
	if _, err := s.cfg.Events.Emit(ctx, topic, saleID, payload); err != nil {
		s.cfg.Logger.Error().Err(err).Str("topic", topic).Str("sale_id", saleID).Msg("emit event")
	}
}

var _ Reservations = (*reservation.Reserver)(nil)
