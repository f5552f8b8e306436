// Package storefront owns product-view sessions and cart breakdowns: it drives
// the variant state machine per view and prices carts against the current
// exchange-rate table.
package storefront

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Checker-Finance/storefront/internal/metrics"
	"github.com/Checker-Finance/storefront/internal/rates"
	"github.com/Checker-Finance/storefront/pkg/currency"
	"github.com/Checker-Finance/storefront/pkg/eventbus"
	"github.com/Checker-Finance/storefront/pkg/model"
	"github.com/Checker-Finance/storefront/pkg/pricing"
	"github.com/Checker-Finance/storefront/pkg/variant"
)

var (
	// ErrViewNotFound is returned for unknown or expired view ids.
	ErrViewNotFound = errors.New("storefront: view not found")
	// ErrNoCartSource is returned when a breakdown names a cart but no cart API is configured.
	ErrNoCartSource = errors.New("storefront: cart lookup not configured")
)

// ProductSource loads product payloads.
type ProductSource interface {
	GetProduct(ctx context.Context, productID string) (model.Product, error)
}

// CartSource loads cart lines.
type CartSource interface {
	GetCart(ctx context.Context, cartID string) ([]model.CartLine, error)
}

// RateBook exposes the current exchange-rate table.
type RateBook interface {
	Current() *rates.Table
}

// View is the externally visible state of one product view.
type View struct {
	ID         string                 `json:"viewId"`
	ProductID  string                 `json:"productId"`
	Groups     []model.OptionGroup    `json:"groups"`
	Selection  model.Selection        `json:"selection"`
	State      string                 `json:"state"`
	Resolved   bool                   `json:"resolved"`
	Resolution *model.VariantResolved `json:"resolution,omitempty"`
	// DisplayPrice is the resolved price formatted in the product's currency.
	DisplayPrice string `json:"displayPrice,omitempty"`
	// UnknownCurrency is set when the product's currency was not recognized
	// and prices are displayed as USD.
	UnknownCurrency bool `json:"unknownCurrency,omitempty"`
}

// BreakdownRequest names the cart lines to price. Lines are used when CartID
// is empty. A nil SelectedIDs selects every line; an empty one selects none.
type BreakdownRequest struct {
	CartID      string
	Lines       []model.CartLine
	SelectedIDs []string
}

// Breakdown is a cost breakdown plus its display strings in the base currency.
type Breakdown struct {
	model.CostBreakdown
	Formatted FormattedBreakdown `json:"formatted"`
}

// FormattedBreakdown holds display strings for each amount.
type FormattedBreakdown struct {
	Subtotal   string `json:"subtotal"`
	ServiceFee string `json:"serviceFee"`
	Deposit    string `json:"deposit"`
}

type viewState struct {
	mu        sync.Mutex
	id        string
	product   model.Product
	session   *variant.Session
	touchedAt time.Time
}

// Config tunes the service.
type Config struct {
	// ViewTTL evicts views idle for longer than this; 0 keeps them until closed.
	ViewTTL time.Duration
}

// Service is the single writer for every view's selection state.
type Service struct {
	logger    *zap.Logger
	products  ProductSource
	carts     CartSource
	book      RateBook
	calc      *pricing.Calculator
	formatter *currency.Formatter
	bus       *eventbus.EventBus
	cfg       Config
	memo      *indexMemo
	now       func() time.Time

	mu    sync.RWMutex
	views map[string]*viewState
}

// NewService wires the controller. carts and bus may be nil.
func NewService(
	logger *zap.Logger,
	products ProductSource,
	carts CartSource,
	book RateBook,
	calc *pricing.Calculator,
	formatter *currency.Formatter,
	bus *eventbus.EventBus,
	cfg Config,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if calc == nil {
		calc = pricing.NewCalculator()
	}
	if formatter == nil {
		formatter = currency.NewFormatter(currency.DefaultLocale)
	}
	return &Service{
		logger:    logger,
		products:  products,
		carts:     carts,
		book:      book,
		calc:      calc,
		formatter: formatter,
		bus:       bus,
		cfg:       cfg,
		memo:      newIndexMemo(),
		now:       time.Now,
		views:     make(map[string]*viewState),
	}
}

// OpenView loads the product, initializes the selection to the first option
// of every group and resolves it.
func (s *Service) OpenView(ctx context.Context, productID string) (View, error) {
	p, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return View{}, err
	}

	vs := &viewState{
		id:        uuid.NewString(),
		product:   p,
		session:   variant.NewSession(),
		touchedAt: s.now(),
	}

	vs.mu.Lock()
	defer vs.mu.Unlock()

	if _, known := currency.Normalize(p.Currency); !known {
		s.unknownCurrency("product", p.Currency, zap.String("product_id", p.ID))
	}
	vs.session.Initialize(s.memo.get(p))
	ev, ok := vs.session.Resolve(p.Variants, p.Attributes)
	s.afterResolve(vs, ev, ok)

	s.mu.Lock()
	s.views[vs.id] = vs
	n := len(s.views)
	s.mu.Unlock()
	metrics.ActiveViews.Set(float64(n))

	s.logger.Info("storefront.view_opened",
		zap.String("view_id", vs.id),
		zap.String("product_id", p.ID),
		zap.String("state", vs.session.State().String()))
	return s.render(vs), nil
}

// Select changes one axis of a view's selection and re-resolves.
func (s *Service) Select(_ context.Context, viewID, propertyID, valueID string) (View, error) {
	vs, err := s.lookup(viewID)
	if err != nil {
		return View{}, err
	}

	vs.mu.Lock()
	defer vs.mu.Unlock()

	vs.touchedAt = s.now()
	if err := vs.session.Select(propertyID, valueID); err != nil {
		return View{}, err
	}
	ev, ok := vs.session.Resolve(vs.product.Variants, vs.product.Attributes)
	s.afterResolve(vs, ev, ok)
	return s.render(vs), nil
}

// GetView returns the current state of a view.
func (s *Service) GetView(viewID string) (View, error) {
	vs, err := s.lookup(viewID)
	if err != nil {
		return View{}, err
	}
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return s.render(vs), nil
}

// CloseView discards a view. It reports whether the view existed.
func (s *Service) CloseView(viewID string) bool {
	s.mu.Lock()
	vs, ok := s.views[viewID]
	delete(s.views, viewID)
	n := len(s.views)
	if ok {
		s.releaseLocked(vs.product.ID)
	}
	s.mu.Unlock()
	metrics.ActiveViews.Set(float64(n))
	return ok
}

// Sweep evicts views idle longer than ViewTTL and returns how many were removed.
func (s *Service) Sweep() int {
	if s.cfg.ViewTTL <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.cfg.ViewTTL)

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, vs := range s.views {
		vs.mu.Lock()
		idle := vs.touchedAt.Before(cutoff)
		vs.mu.Unlock()
		if idle {
			delete(s.views, id)
			s.releaseLocked(vs.product.ID)
			removed++
		}
	}
	metrics.ActiveViews.Set(float64(len(s.views)))
	if removed > 0 {
		s.logger.Info("storefront.views_swept", zap.Int("removed", removed), zap.Int("remaining", len(s.views)))
	}
	return removed
}

// releaseLocked drops the memoized groups of productID once no view shows it.
// Must be called with s.mu held.
func (s *Service) releaseLocked(productID string) {
	for _, vs := range s.views {
		if vs.product.ID == productID {
			return
		}
	}
	s.memo.forget(productID)
}

// StartSweeper runs Sweep every interval until ctx is done.
func (s *Service) StartSweeper(ctx context.Context, interval time.Duration) {
	if s.cfg.ViewTTL <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-ctx.Done():
			return
		}
	}
}

// ForgetProduct drops the memoized groups of a product.
func (s *Service) ForgetProduct(productID string) {
	s.memo.forget(productID)
}

// Breakdown prices the selected cart lines against the current rate table.
func (s *Service) Breakdown(ctx context.Context, req BreakdownRequest) (Breakdown, error) {
	lines := req.Lines
	if req.CartID != "" {
		if s.carts == nil {
			return Breakdown{}, ErrNoCartSource
		}
		var err error
		lines, err = s.carts.GetCart(ctx, req.CartID)
		if err != nil {
			return Breakdown{}, err
		}
	}

	var selected pricing.IDSet
	if req.SelectedIDs == nil {
		selected = make(pricing.IDSet, len(lines))
		for _, l := range lines {
			selected[l.ID] = struct{}{}
		}
	} else {
		selected = pricing.NewIDSet(req.SelectedIDs...)
	}

	var table *rates.Table
	if s.book != nil {
		table = s.book.Current()
	}
	b := s.calc.Compute(lines, selected, table)
	metrics.IncBreakdown(b.RatesPending)
	if b.RatesPending {
		for _, code := range b.PendingCurrencies {
			metrics.IncRatesPending(code)
		}
		s.logger.Warn("storefront.breakdown_rates_pending",
			zap.Strings("currencies", b.PendingCurrencies),
			zap.Int("table_size", table.Len()))
	}
	for _, raw := range b.UnknownCurrencies {
		s.unknownCurrency("cart", raw, zap.String("cart_id", req.CartID))
	}

	if s.bus != nil {
		s.bus.Publish(model.EventBreakdownComputed, model.BreakdownComputed{
			CartID:    req.CartID,
			Breakdown: b,
			At:        s.now().UTC(),
		})
	}

	return Breakdown{
		CostBreakdown: b,
		Formatted: FormattedBreakdown{
			Subtotal:   s.formatter.Format(b.Subtotal, b.BaseCurrency),
			ServiceFee: s.formatter.Format(b.ServiceFee, b.BaseCurrency),
			Deposit:    s.formatter.Format(b.Deposit, b.BaseCurrency),
		},
	}, nil
}

// FormatPrice renders amount in the display style of currency.
func (s *Service) FormatPrice(amount decimal.Decimal, cur string) string {
	return s.formatter.Format(amount, cur)
}

// Rates returns the current table (nil before the first load).
func (s *Service) Rates() *rates.Table {
	if s.book == nil {
		return nil
	}
	return s.book.Current()
}

func (s *Service) lookup(viewID string) (*viewState, error) {
	s.mu.RLock()
	vs, ok := s.views[viewID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrViewNotFound
	}
	return vs, nil
}

// unknownCurrency records a currency input that fell back to USD.
func (s *Service) unknownCurrency(source, raw string, fields ...zap.Field) {
	metrics.IncUnknownCurrency(source)
	s.logger.Warn("currency.unresolved", append([]zap.Field{
		zap.String("source", source),
		zap.String("input", raw),
		zap.String("fallback", currency.Fallback),
	}, fields...)...)
}

// afterResolve publishes a new resolution; a miss emits nothing.
func (s *Service) afterResolve(vs *viewState, ev model.VariantResolved, ok bool) {
	metrics.IncResolution(ok)
	if !ok {
		s.logger.Debug("storefront.selection_unresolved",
			zap.String("view_id", vs.id),
			zap.Any("selection", vs.session.Selection()))
		return
	}
	if s.bus == nil {
		return
	}
	ev.ViewID = vs.id
	ev.ProductID = vs.product.ID
	s.bus.Publish(model.EventVariantResolved, ev)
}

// render must be called with vs.mu held.
func (s *Service) render(vs *viewState) View {
	v := View{
		ID:        vs.id,
		ProductID: vs.product.ID,
		Groups:    s.memo.get(vs.product).Groups(),
		Selection: vs.session.Selection(),
		State:     vs.session.State().String(),
		Resolved:  vs.session.State() == variant.StateResolved,
	}
	if _, known := currency.Normalize(vs.product.Currency); !known {
		v.UnknownCurrency = true
	}
	if last, ok := vs.session.Last(); ok {
		last.ViewID = vs.id
		last.ProductID = vs.product.ID
		v.Resolution = &last
		v.DisplayPrice = s.formatter.Format(last.Price, vs.product.Currency)
	}
	return v
}
