package storefront

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Checker-Finance/storefront/internal/metrics"
	"github.com/Checker-Finance/storefront/internal/rates"
	"github.com/Checker-Finance/storefront/pkg/eventbus"
	"github.com/Checker-Finance/storefront/pkg/model"
	"github.com/Checker-Finance/storefront/pkg/variant"
)

// ─── Fixtures ─────────────────────────────────────────────────────────────────

type stubProducts struct {
	mu       sync.Mutex
	products map[string]model.Product
	calls    int
}

func (s *stubProducts) GetProduct(_ context.Context, id string) (model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	p, ok := s.products[id]
	if !ok {
		return model.Product{}, errors.New("not found")
	}
	return p, nil
}

type stubCarts map[string][]model.CartLine

func (s stubCarts) GetCart(_ context.Context, id string) ([]model.CartLine, error) {
	lines, ok := s[id]
	if !ok {
		return nil, errors.New("no cart")
	}
	return lines, nil
}

type stubBook struct{ table *rates.Table }

func (b *stubBook) Current() *rates.Table { return b.table }

func attr(pid, name, vid, value, img string) model.Attribute {
	return model.Attribute{PropertyID: pid, PropertyName: name, ValueID: vid, Value: value, ImageURL: img, IsConfigurator: true}
}

func cfg(pid, vid string) model.Configurator {
	return model.Configurator{PropertyID: pid, ValueID: vid}
}

func shirt() model.Product {
	return model.Product{
		ID:       "p1",
		Currency: "元",
		Attributes: []model.Attribute{
			attr("1", "Color", "10", "Red", "https://img/red.jpg"),
			attr("1", "Color", "11", "Blue", "https://img/blue.jpg"),
			attr("2", "Size", "20", "S", ""),
			attr("2", "Size", "21", "M", ""),
			{PropertyID: "3", PropertyName: "Material", ValueID: "30", Value: "Linen"},
		},
		Variants: []model.ConcreteVariant{
			{ID: "v1", Configurators: []model.Configurator{cfg("1", "10"), cfg("2", "20")}, Price: decimal.NewFromInt(100), Quantity: 5},
			{ID: "v2", Configurators: []model.Configurator{cfg("1", "10"), cfg("2", "21")}, Price: decimal.NewFromInt(120), Quantity: 0},
			{ID: "v3", Configurators: []model.Configurator{cfg("1", "11"), cfg("2", "20")}, Price: decimal.NewFromInt(110), Quantity: 2},
		},
	}
}

func rateTable() *rates.Table {
	return rates.NewTable("VND", map[string]model.ExchangeRate{
		"USD": {RateToBase: decimal.NewFromInt(25000)},
		"CNY": {RateToBase: decimal.NewFromInt(3500)},
		"VND": {RateToBase: decimal.NewFromInt(1)},
	}, time.Now())
}

func newService(t *testing.T, bus *eventbus.EventBus) (*Service, *stubProducts, *stubBook) {
	t.Helper()
	products := &stubProducts{products: map[string]model.Product{"p1": shirt()}}
	book := &stubBook{table: rateTable()}
	carts := stubCarts{"c1": {
		{ID: "a", Price: decimal.NewFromInt(100), Currency: "元", Quantity: 1},
		{ID: "b", Price: decimal.NewFromInt(6), Currency: "$", Quantity: 1},
	}}
	svc := NewService(zap.NewNop(), products, carts, book, nil, nil, bus, Config{ViewTTL: time.Minute})
	return svc, products, book
}

// ─── Views ────────────────────────────────────────────────────────────────────

func TestOpenView_InitializesFirstOptionsAndResolves(t *testing.T) {
	bus := eventbus.New()
	var events []model.VariantResolved
	eventbus.SubscribeTyped(bus, model.EventVariantResolved, func(e model.VariantResolved) { events = append(events, e) })

	svc, _, _ := newService(t, bus)
	v, err := svc.OpenView(context.Background(), "p1")
	require.NoError(t, err)
	bus.Wait()

	assert.NotEmpty(t, v.ID)
	assert.Equal(t, model.Selection{"1": "10", "2": "20"}, v.Selection)
	require.Len(t, v.Groups, 2)
	assert.Equal(t, "Color", v.Groups[0].PropertyName)
	assert.True(t, v.Resolved)
	assert.Equal(t, "resolved", v.State)
	require.NotNil(t, v.Resolution)
	assert.Equal(t, "v1", v.Resolution.VariantID)
	assert.Equal(t, "元100.00", v.DisplayPrice)
	require.NotNil(t, v.Resolution.VariantImage)
	assert.Equal(t, "https://img/red.jpg", v.Resolution.VariantImage.ImageURL)

	require.Len(t, events, 1)
	assert.Equal(t, v.ID, events[0].ViewID)
	assert.Equal(t, "p1", events[0].ProductID)
}

func TestOpenView_ProductError(t *testing.T) {
	svc, _, _ := newService(t, nil)
	_, err := svc.OpenView(context.Background(), "missing")
	assert.Error(t, err)
}

func TestSelect_ResolvesOutOfStockVariant(t *testing.T) {
	svc, _, _ := newService(t, nil)
	v, err := svc.OpenView(context.Background(), "p1")
	require.NoError(t, err)

	v, err = svc.Select(context.Background(), v.ID, "2", "21")
	require.NoError(t, err)
	assert.Equal(t, model.Selection{"1": "10", "2": "21"}, v.Selection)
	require.NotNil(t, v.Resolution)
	assert.Equal(t, "v2", v.Resolution.VariantID)
	assert.Equal(t, 0, v.Resolution.Quantity)
}

func TestSelect_NoMatchKeepsPreviousResolution(t *testing.T) {
	bus := eventbus.New()
	var mu sync.Mutex
	count := 0
	bus.Subscribe(model.EventVariantResolved, func(any) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	svc, _, _ := newService(t, bus)
	v, err := svc.OpenView(context.Background(), "p1")
	require.NoError(t, err)

	// Blue/M does not exist.
	_, err = svc.Select(context.Background(), v.ID, "2", "21")
	require.NoError(t, err)
	v, err = svc.Select(context.Background(), v.ID, "1", "11")
	require.NoError(t, err)
	bus.Wait()

	assert.False(t, v.Resolved)
	assert.Equal(t, "unresolved", v.State)
	require.NotNil(t, v.Resolution)
	assert.Equal(t, "v2", v.Resolution.VariantID)
	mu.Lock()
	assert.Equal(t, 2, count)
	mu.Unlock()
}

func TestSelect_RejectsUnknownValues(t *testing.T) {
	svc, _, _ := newService(t, nil)
	v, err := svc.OpenView(context.Background(), "p1")
	require.NoError(t, err)

	_, err = svc.Select(context.Background(), v.ID, "9", "90")
	assert.ErrorIs(t, err, variant.ErrUnknownProperty)

	_, err = svc.Select(context.Background(), v.ID, "1", "99")
	assert.ErrorIs(t, err, variant.ErrUnknownOption)

	// Specification attributes are not selectable.
	_, err = svc.Select(context.Background(), v.ID, "3", "30")
	assert.ErrorIs(t, err, variant.ErrUnknownProperty)

	got, err := svc.GetView(v.ID)
	require.NoError(t, err)
	assert.Equal(t, model.Selection{"1": "10", "2": "20"}, got.Selection)
}

func TestSelect_UnknownView(t *testing.T) {
	svc, _, _ := newService(t, nil)
	_, err := svc.Select(context.Background(), "nope", "1", "10")
	assert.ErrorIs(t, err, ErrViewNotFound)
}

func TestCloseView(t *testing.T) {
	svc, _, _ := newService(t, nil)
	v, err := svc.OpenView(context.Background(), "p1")
	require.NoError(t, err)

	assert.True(t, svc.CloseView(v.ID))
	assert.False(t, svc.CloseView(v.ID))
	_, err = svc.GetView(v.ID)
	assert.ErrorIs(t, err, ErrViewNotFound)
}

func TestConcurrentSelectsOnOneView(t *testing.T) {
	svc, _, _ := newService(t, nil)
	v, err := svc.OpenView(context.Background(), "p1")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			vid := "20"
			if i%2 == 0 {
				vid = "21"
			}
			_, err := svc.Select(context.Background(), v.ID, "2", vid)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := svc.GetView(v.ID)
	require.NoError(t, err)
	assert.Contains(t, []string{"20", "21"}, got.Selection["2"])
	assert.Equal(t, "10", got.Selection["1"])
}

func TestSweep_EvictsIdleViews(t *testing.T) {
	svc, _, _ := newService(t, nil)
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	old, err := svc.OpenView(context.Background(), "p1")
	require.NoError(t, err)

	now = now.Add(50 * time.Second)
	fresh, err := svc.OpenView(context.Background(), "p1")
	require.NoError(t, err)

	now = now.Add(20 * time.Second)
	assert.Equal(t, 1, svc.Sweep())

	_, err = svc.GetView(old.ID)
	assert.ErrorIs(t, err, ErrViewNotFound)
	_, err = svc.GetView(fresh.ID)
	assert.NoError(t, err)
}

// ─── Memoization ──────────────────────────────────────────────────────────────

func TestIndexMemo_ReleasedWhenLastViewGoes(t *testing.T) {
	svc, products, _ := newService(t, nil)
	products.mu.Lock()
	for i := 0; i < 50; i++ {
		p := shirt()
		p.ID = fmt.Sprintf("p%d", 100+i)
		products.products[p.ID] = p
	}
	products.mu.Unlock()

	for i := 0; i < 50; i++ {
		v, err := svc.OpenView(context.Background(), fmt.Sprintf("p%d", 100+i))
		require.NoError(t, err)
		require.True(t, svc.CloseView(v.ID))
	}
	assert.Equal(t, 0, svc.memo.len())

	a, err := svc.OpenView(context.Background(), "p1")
	require.NoError(t, err)
	b, err := svc.OpenView(context.Background(), "p1")
	require.NoError(t, err)
	require.True(t, svc.CloseView(a.ID))
	assert.Equal(t, 1, svc.memo.len(), "kept while another view shows the product")
	require.True(t, svc.CloseView(b.ID))
	assert.Equal(t, 0, svc.memo.len())
}

func TestIndexMemo_ReleasedBySweep(t *testing.T) {
	svc, _, _ := newService(t, nil)
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	_, err := svc.OpenView(context.Background(), "p1")
	require.NoError(t, err)
	require.Equal(t, 1, svc.memo.len())

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 1, svc.Sweep())
	assert.Equal(t, 0, svc.memo.len())
}

func TestIndexMemo_ReusedUntilAttributesChange(t *testing.T) {
	svc, products, _ := newService(t, nil)

	_, err := svc.OpenView(context.Background(), "p1")
	require.NoError(t, err)
	_, err = svc.OpenView(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, svc.memo.builds)

	p := shirt()
	p.Attributes = append(p.Attributes, attr("2", "Size", "22", "L", ""))
	products.mu.Lock()
	products.products["p1"] = p
	products.mu.Unlock()

	v, err := svc.OpenView(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, svc.memo.builds)
	assert.Len(t, v.Groups[1].Options, 3)

	svc.ForgetProduct("p1")
	_, err = svc.OpenView(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 3, svc.memo.builds)
}

func TestFingerprint_DistinguishesConfiguratorFlag(t *testing.T) {
	a := []model.Attribute{attr("1", "Color", "10", "Red", "")}
	b := []model.Attribute{{PropertyID: "1", PropertyName: "Color", ValueID: "10", Value: "Red"}}
	assert.NotEqual(t, fingerprint(a), fingerprint(b))
	assert.Equal(t, fingerprint(a), fingerprint([]model.Attribute{attr("1", "Color", "10", "Red", "")}))
}

// ─── Breakdown ────────────────────────────────────────────────────────────────

func TestBreakdown_FromCart(t *testing.T) {
	bus := eventbus.New()
	var got model.BreakdownComputed
	eventbus.SubscribeTyped(bus, model.EventBreakdownComputed, func(e model.BreakdownComputed) { got = e })

	svc, _, _ := newService(t, bus)
	b, err := svc.Breakdown(context.Background(), BreakdownRequest{CartID: "c1", SelectedIDs: []string{"a", "b"}})
	require.NoError(t, err)
	bus.Wait()

	assert.Equal(t, "500000", b.Subtotal.String())
	assert.Equal(t, "7500", b.ServiceFee.String())
	assert.Equal(t, "355250", b.Deposit.String())
	assert.Equal(t, "500,000đ", b.Formatted.Subtotal)
	assert.Equal(t, "7,500đ", b.Formatted.ServiceFee)
	assert.Equal(t, "355,250đ", b.Formatted.Deposit)
	assert.Equal(t, "c1", got.CartID)
}

func TestBreakdown_NilSelectionMeansAllLines(t *testing.T) {
	svc, _, _ := newService(t, nil)
	b, err := svc.Breakdown(context.Background(), BreakdownRequest{CartID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, "500000", b.Subtotal.String())
}

func TestBreakdown_EmptySelectionMeansNone(t *testing.T) {
	svc, _, _ := newService(t, nil)
	b, err := svc.Breakdown(context.Background(), BreakdownRequest{CartID: "c1", SelectedIDs: []string{}})
	require.NoError(t, err)
	assert.True(t, b.Subtotal.IsZero())
	assert.Equal(t, "0đ", b.Formatted.Deposit)
}

func TestBreakdown_InlineLinesAndPendingRates(t *testing.T) {
	svc, _, book := newService(t, nil)
	book.table = nil
	unresolved := testutil.ToFloat64(metrics.RatesPendingCurrencies.WithLabelValues("USD"))

	b, err := svc.Breakdown(context.Background(), BreakdownRequest{Lines: []model.CartLine{
		{ID: "x", Price: decimal.NewFromInt(10), Currency: "USD", Quantity: 1},
	}})
	require.NoError(t, err)
	assert.True(t, b.RatesPending)
	assert.Equal(t, []string{"USD"}, b.PendingCurrencies)
	assert.True(t, b.Subtotal.IsZero())
	assert.Equal(t, unresolved+1, testutil.ToFloat64(metrics.RatesPendingCurrencies.WithLabelValues("USD")))

	book.table = rateTable()
	b, err = svc.Breakdown(context.Background(), BreakdownRequest{Lines: []model.CartLine{
		{ID: "x", Price: decimal.NewFromInt(10), Currency: "USD", Quantity: 1},
	}})
	require.NoError(t, err)
	assert.False(t, b.RatesPending)
	assert.Equal(t, "250000", b.Subtotal.String())
}

func TestBreakdown_UnknownCurrencyIsFlaggedAndLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	svc := NewService(zap.New(core), &stubProducts{}, nil, &stubBook{table: rateTable()}, nil, nil, nil, Config{})
	before := testutil.ToFloat64(metrics.UnknownCurrencies.WithLabelValues("cart"))

	b, err := svc.Breakdown(context.Background(), BreakdownRequest{Lines: []model.CartLine{
		{ID: "x", Price: decimal.NewFromInt(10), Currency: "XYZ", Quantity: 1},
	}})
	require.NoError(t, err)
	assert.Equal(t, "250000", b.Subtotal.String())
	assert.False(t, b.RatesPending)
	assert.Equal(t, []string{"XYZ"}, b.UnknownCurrencies)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.UnknownCurrencies.WithLabelValues("cart")))

	entries := logs.FilterMessage("currency.unresolved").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "XYZ", entries[0].ContextMap()["input"])
	assert.Equal(t, "USD", entries[0].ContextMap()["fallback"])
}

func TestOpenView_UnknownProductCurrency(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	p := shirt()
	p.Currency = "XYZ"
	products := &stubProducts{products: map[string]model.Product{"p1": p}}
	svc := NewService(zap.New(core), products, nil, &stubBook{table: rateTable()}, nil, nil, nil, Config{})

	v, err := svc.OpenView(context.Background(), "p1")
	require.NoError(t, err)
	assert.True(t, v.UnknownCurrency)
	assert.Equal(t, "$100.00", v.DisplayPrice)
	assert.Equal(t, 1, logs.FilterMessage("currency.unresolved").Len())

	plain, _, _ := newService(t, nil)
	known, err := plain.OpenView(context.Background(), "p1")
	require.NoError(t, err)
	assert.False(t, known.UnknownCurrency)
}

func TestBreakdown_CartErrors(t *testing.T) {
	svc, _, _ := newService(t, nil)
	_, err := svc.Breakdown(context.Background(), BreakdownRequest{CartID: "missing"})
	assert.Error(t, err)

	bare := NewService(nil, &stubProducts{}, nil, nil, nil, nil, nil, Config{})
	_, err = bare.Breakdown(context.Background(), BreakdownRequest{CartID: "c1"})
	assert.ErrorIs(t, err, ErrNoCartSource)
	assert.Nil(t, bare.Rates())
}

func TestFormatPrice(t *testing.T) {
	svc, _, _ := newService(t, nil)
	assert.Equal(t, "$1,234.50", svc.FormatPrice(decimal.RequireFromString("1234.5"), "$"))
}
