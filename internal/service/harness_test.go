package service

import (
	"fmt"
	"testing"

	"github.com/papegu/senegal-livres/internal/model"
	"github.com/papegu/senegal-livres/internal/payment"
	"github.com/papegu/senegal-livres/internal/testutil"
)

const (
	buyerID   uint64 = 7
	blockedID uint64 = 9
)

type harness struct {
	store      *testutil.Store
	mailer     *testutil.RecordingMailer
	provider   *testutil.ScriptedProvider
	registry   *payment.Registry
	dispatcher *testutil.RecordingDispatcher
	checkout   *Checkout
	reconciler *Reconciler
	fulfiller  *Fulfiller
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := testutil.NewStore()
	store.AddUser(model.User{ID: buyerID, Email: "awa@example.sn", Name: "Awa", Role: model.RoleCustomer})
	store.AddUser(model.User{ID: blockedID, Email: "blocked@example.sn", Role: model.RoleCustomer, IsBlocked: true})
	store.AddBook(model.Book{ID: "b1", Title: "Une si longue lettre", Author: "Mariama Ba", Price: 5000, EbookURL: "https://cdn.example/b1.pdf"})
	store.AddBook(model.Book{ID: "b2", Title: "Les bouts de bois de Dieu", Author: "Ousmane Sembene", Price: 7000})
	store.SetCart(buyerID, "b1", "b2")

	reg := payment.NewRegistry()
	prov := testutil.NewScriptedProvider(model.MethodSandbox)
	reg.Register(prov)

	mailer := &testutil.RecordingMailer{}
	f := &Fulfiller{
		Transactions: store,
		Purchases:    store,
		Carts:        store,
		Users:        store,
		Books:        store,
		Mailer:       mailer,
		Money:        payment.Money{Currency: "XOF"},
		AdminEmail:   "ops@example.sn",
	}
	d := &testutil.RecordingDispatcher{Forward: f.HandleEvent}
	co := NewCheckout(store, store, store, reg, "XOF", "https://shop.example/", "https://api.example")
	n := 0
	co.NewOrderID = func() string {
		n++
		return fmt.Sprintf("ord-%d", n)
	}
	return &harness{
		store:      store,
		mailer:     mailer,
		provider:   prov,
		registry:   reg,
		dispatcher: d,
		checkout:   co,
		reconciler: NewReconciler(store, reg, d, false, 0),
		fulfiller:  f,
	}
}

func ptr(v uint64) *uint64 { return &v }
