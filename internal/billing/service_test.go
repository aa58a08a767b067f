package billing_test

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartstock/smartstock/internal/billing"
	"github.com/smartstock/smartstock/internal/inventory"
	"github.com/smartstock/smartstock/internal/shared"
)

type fixture struct {
	repo     *memoryRepo
	svc      *billing.Service
	keys     *idempotencyStub
	notifier *notifierStub
	observer *observerStub
}

func newFixture() *fixture {
	f := &fixture{repo: newMemoryRepo(), keys: &idempotencyStub{}, notifier: &notifierStub{}, observer: &observerStub{}}
	f.svc = billing.NewService(f.repo, billing.Options{Idempotency: f.keys, Notifier: f.notifier, Observer: f.observer})
	return f
}

func (f *fixture) stock(t *testing.T, id int64) int {
	t.Helper()
	p, ok := f.repo.store.Product(id)
	require.True(t, ok)
	return p.Stock
}

func TestCreateBillSingleLine(t *testing.T) {
	f := newFixture()
	p := f.repo.store.Seed(inventory.Product{Name: "Widget", Stock: 10, Price: 5.00, MinStock: 5})

	bill, err := f.svc.CreateBill(context.Background(), billing.CreateBillInput{
		CustomerName: "  Acme Corp ",
		Lines:        []billing.LineInput{{ProductID: p.ID, Quantity: 4}},
		ActorID:      7,
	})
	require.NoError(t, err)
	require.Equal(t, "Acme Corp", bill.CustomerName)
	require.Len(t, bill.Items, 1)
	assert.Equal(t, 4, bill.Items[0].Quantity)
	assert.InDelta(t, 5.00, bill.Items[0].Price, 0.0001)
	assert.InDelta(t, 20.00, bill.Total(), 0.0001)
	assert.Equal(t, 6, f.stock(t, p.ID))

	ledger := f.repo.store.Ledger()
	require.Len(t, ledger, 1)
	assert.Equal(t, inventory.DirectionOut, ledger[0].Direction)
	assert.Equal(t, 4, ledger[0].Quantity)
	assert.Equal(t, int64(7), ledger[0].ActorID)
	assert.Equal(t, "Sale to Acme Corp on Bill #1", ledger[0].Remarks)
	assert.Equal(t, 1, f.observer.count(billing.OutcomeCommitted))
	assert.Empty(t, f.notifier.products)
}

func TestCreateBillInsufficientStockPersistsNothing(t *testing.T) {
	f := newFixture()
	p := f.repo.store.Seed(inventory.Product{Name: "Gadget", Stock: 3, Price: 2})

	_, err := f.svc.CreateBill(context.Background(), billing.CreateBillInput{
		CustomerName: "Bob",
		Lines:        []billing.LineInput{{ProductID: p.ID, Quantity: 5}},
	})
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)
	var short *inventory.InsufficientStockError
	require.True(t, errors.As(err, &short))
	assert.Equal(t, "Gadget", short.Product)
	assert.Equal(t, 3, short.Available)
	assert.Equal(t, 5, short.Requested)

	assert.Equal(t, 3, f.stock(t, p.ID))
	assert.Zero(t, f.repo.billCount())
	assert.Empty(t, f.repo.store.Ledger())
	assert.Equal(t, 1, f.observer.count(billing.OutcomeInsufficientStock))
}

func TestCreateBillLaterLineShortRollsBackEarlierLines(t *testing.T) {
	f := newFixture()
	a := f.repo.store.Seed(inventory.Product{Name: "A", Stock: 10, Price: 1})
	b := f.repo.store.Seed(inventory.Product{Name: "B", Stock: 1, Price: 1})

	_, err := f.svc.CreateBill(context.Background(), billing.CreateBillInput{
		CustomerName: "Carol",
		Lines: []billing.LineInput{
			{ProductID: a.ID, Quantity: 4},
			{ProductID: b.ID, Quantity: 2},
		},
	})
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)
	assert.Equal(t, 10, f.stock(t, a.ID))
	assert.Equal(t, 1, f.stock(t, b.ID))
	assert.Zero(t, f.repo.billCount())
	assert.Empty(t, f.repo.store.Ledger())
}

func TestCreateBillInjectedFailureIsAtomic(t *testing.T) {
	for n := 1; n <= 3; n++ {
		f := newFixture()
		ids := []int64{
			f.repo.store.Seed(inventory.Product{Name: "P1", Stock: 10, Price: 1}).ID,
			f.repo.store.Seed(inventory.Product{Name: "P2", Stock: 10, Price: 2}).ID,
			f.repo.store.Seed(inventory.Product{Name: "P3", Stock: 10, Price: 3}).ID,
		}
		f.repo.failItemAt = n

		_, err := f.svc.CreateBill(context.Background(), billing.CreateBillInput{
			CustomerName: "Dave",
			Lines: []billing.LineInput{
				{ProductID: ids[0], Quantity: 1},
				{ProductID: ids[1], Quantity: 2},
				{ProductID: ids[2], Quantity: 3},
			},
			IdempotencyKey: "key-1",
		})
		require.Error(t, err, "line %d", n)
		for _, id := range ids {
			assert.Equal(t, 10, f.stock(t, id), "line %d", n)
		}
		assert.Zero(t, f.repo.billCount(), "line %d", n)
		assert.Empty(t, f.repo.store.Ledger(), "line %d", n)
		assert.Equal(t, 1, f.observer.count(billing.OutcomeFailed))

		// the key is released, so a retry goes through
		f.repo.failItemAt = 0
		_, err = f.svc.CreateBill(context.Background(), billing.CreateBillInput{
			CustomerName:   "Dave",
			Lines:          []billing.LineInput{{ProductID: ids[0], Quantity: 1}},
			IdempotencyKey: "key-1",
		})
		require.NoError(t, err)
	}
}

func TestCreateBillStockFaultRollsBack(t *testing.T) {
	f := newFixture()
	a := f.repo.store.Seed(inventory.Product{Name: "A", Stock: 5, Price: 1})
	b := f.repo.store.Seed(inventory.Product{Name: "B", Stock: 5, Price: 1})
	f.repo.store.BeforeAdjust = func(productID int64, delta int) error {
		if productID == b.ID {
			return errors.New("disk on fire")
		}
		return nil
	}
	_, err := f.svc.CreateBill(context.Background(), billing.CreateBillInput{
		CustomerName: "Eve",
		Lines:        []billing.LineInput{{ProductID: a.ID, Quantity: 1}, {ProductID: b.ID, Quantity: 1}},
	})
	require.Error(t, err)
	assert.Equal(t, 5, f.stock(t, a.ID))
	assert.Zero(t, f.repo.billCount())
	assert.Empty(t, f.repo.store.Ledger())
}

func TestCreateBillValidation(t *testing.T) {
	f := newFixture()
	p := f.repo.store.Seed(inventory.Product{Name: "A", Stock: 5, Price: 1})

	cases := map[string]billing.CreateBillInput{
		"blank customer": {CustomerName: "   ", Lines: []billing.LineInput{{ProductID: p.ID, Quantity: 1}}},
		"no lines":       {CustomerName: "Frank"},
		"zero quantity":  {CustomerName: "Frank", Lines: []billing.LineInput{{ProductID: p.ID, Quantity: 0}}},
	}
	for name, input := range cases {
		_, err := f.svc.CreateBill(context.Background(), input)
		require.ErrorIs(t, err, shared.ErrValidation, name)
	}
	assert.Zero(t, f.repo.billCount())
	assert.Equal(t, 5, f.stock(t, p.ID))

	_, err := f.svc.CreateBill(context.Background(), billing.CreateBillInput{CustomerName: "Frank", Lines: []billing.LineInput{{ProductID: 404, Quantity: 1}}})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCreateBillRejectsReplayedKey(t *testing.T) {
	f := newFixture()
	p := f.repo.store.Seed(inventory.Product{Name: "A", Stock: 5, Price: 1})
	input := billing.CreateBillInput{CustomerName: "Gina", Lines: []billing.LineInput{{ProductID: p.ID, Quantity: 1}}, IdempotencyKey: "abc"}

	_, err := f.svc.CreateBill(context.Background(), input)
	require.NoError(t, err)
	_, err = f.svc.CreateBill(context.Background(), input)
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)
	assert.Equal(t, 1, f.repo.billCount())
	assert.Equal(t, 4, f.stock(t, p.ID))
}

func TestCreateBillConcurrentDemandNeverOversells(t *testing.T) {
	f := newFixture()
	p := f.repo.store.Seed(inventory.Product{Name: "Hot item", Stock: 10, Price: 3})

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		short     int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CreateBill(context.Background(), billing.CreateBillInput{
				CustomerName: "Rush",
				Lines:        []billing.LineInput{{ProductID: p.ID, Quantity: 3}},
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, inventory.ErrInsufficientStock):
				short++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, succeeded)
	assert.Equal(t, workers-3, short)
	assert.Equal(t, 1, f.stock(t, p.ID))
	assert.Equal(t, 3, f.repo.billCount())
	assert.Len(t, f.repo.store.Ledger(), 3)
}

func TestCreateBillNotifiesLowStockOnce(t *testing.T) {
	f := newFixture()
	p := f.repo.store.Seed(inventory.Product{Name: "Soap", Stock: 8, Price: 1, MinStock: 5})
	q := f.repo.store.Seed(inventory.Product{Name: "Rope", Stock: 50, Price: 1, MinStock: 5})

	_, err := f.svc.CreateBill(context.Background(), billing.CreateBillInput{
		CustomerName: "Hank",
		Lines: []billing.LineInput{
			{ProductID: p.ID, Quantity: 2},
			{ProductID: q.ID, Quantity: 1},
			{ProductID: p.ID, Quantity: 2},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, f.stock(t, p.ID))
	assert.Equal(t, []string{"Soap"}, f.notifier.products)
}

func TestBillTotalMatchesItems(t *testing.T) {
	f := newFixture()
	prices := []float64{0.10, 0.20, 19.99, 5, 2.5}
	var lines []billing.LineInput
	var expected float64
	for i, price := range prices {
		p := f.repo.store.Seed(inventory.Product{Name: string(rune('A' + i)), Stock: 100, Price: price})
		lines = append(lines, billing.LineInput{ProductID: p.ID, Quantity: i + 1})
		expected += float64(i+1) * price
	}
	bill, err := f.svc.CreateBill(context.Background(), billing.CreateBillInput{CustomerName: "Ivy", Lines: lines})
	require.NoError(t, err)
	assert.InDelta(t, expected, bill.Total(), 0.005)

	stored, err := f.svc.GetBill(context.Background(), bill.ID)
	require.NoError(t, err)
	assert.InDelta(t, bill.Total(), stored.Total(), 0.0001)

	bills, err := f.svc.ListBills(context.Background())
	require.NoError(t, err)
	require.Len(t, bills, 1)
	assert.InDelta(t, bill.Total(), bills[0].Total, 0.0001)
}

func TestNextInvoiceNumber(t *testing.T) {
	f := newFixture()
	next, err := f.svc.NextInvoiceNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), next)

	p := f.repo.store.Seed(inventory.Product{Name: "A", Stock: 5, Price: 1})
	_, err = f.svc.CreateBill(context.Background(), billing.CreateBillInput{CustomerName: "Jo", Lines: []billing.LineInput{{ProductID: p.ID, Quantity: 1}}})
	require.NoError(t, err)
	next, err = f.svc.NextInvoiceNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), next)
}

func TestParseBillFormSkipsInvalidRows(t *testing.T) {
	values := url.Values{
		"customer_name":   {"Kim"},
		"idempotency_key": {" k1 "},
		"product_ids":     {"3:0", "4:1", "garbage", "x:2", "5:3", "6:4"},
		"quantity_0":      {"2"},
		"quantity_1":      {"0"},
		"quantity_2":      {"9"},
		"quantity_3":      {"abc"},
		"quantity_4":      {" 7 "},
	}
	input := billing.ParseBillForm(values)
	assert.Equal(t, "Kim", input.CustomerName)
	assert.Equal(t, "k1", input.IdempotencyKey)
	assert.Equal(t, []billing.LineInput{{ProductID: 3, Quantity: 2}, {ProductID: 6, Quantity: 7}}, input.Lines)
}
