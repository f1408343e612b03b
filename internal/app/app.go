// Package app assembles repositories, providers and services from
// configuration.  Both the API server and paymentsctl build on it.
package app

import (
	"database/sql"
	"log"

	"github.com/papegu/senegal-livres/internal/config"
	"github.com/papegu/senegal-livres/internal/model"
	"github.com/papegu/senegal-livres/internal/notify"
	"github.com/papegu/senegal-livres/internal/payment"
	"github.com/papegu/senegal-livres/internal/queue"
	"github.com/papegu/senegal-livres/internal/repository"
	"github.com/papegu/senegal-livres/internal/service"
)

// App holds the wired components.  Dispatcher is the RabbitMQ publisher
// when a broker is configured and an in-process dispatcher otherwise;
// Consumer is nil in the latter case.
type App struct {
	Config       config.Config
	Money        payment.Money
	Transactions *repository.TransactionRepo
	Purchases    *repository.PurchaseRepo
	Carts        *repository.CartRepo
	Users        *repository.UserRepo
	Books        *repository.BookRepo
	Providers    *payment.Registry
	Fulfiller    *service.Fulfiller
	Dispatcher   service.Dispatcher
	Consumer     *queue.Consumer
	Reconciler   *service.Reconciler
	Checkout     *service.Checkout
	Cart         *service.Cart
	Sweeper      *service.Sweeper

	inProcess *service.InProcessDispatcher
}

// Build wires everything on top of db.
func Build(cfg config.Config, db *sql.DB) *App {
	a := &App{
		Config:       cfg,
		Money:        payment.Money{Currency: cfg.Currency, Exponent: cfg.CurrencyExponent},
		Transactions: repository.NewTransactionRepo(db),
		Purchases:    repository.NewPurchaseRepo(db),
		Carts:        repository.NewCartRepo(db),
		Users:        repository.NewUserRepo(db),
		Books:        repository.NewBookRepo(db),
		Providers:    payment.FromConfig(cfg),
	}
	a.Fulfiller = &service.Fulfiller{
		Transactions: a.Transactions,
		Purchases:    a.Purchases,
		Carts:        a.Carts,
		Users:        a.Users,
		Books:        a.Books,
		Mailer:       notify.New(cfg.Mail),
		Money:        a.Money,
		AdminEmail:   cfg.Mail.AdminEmail,
	}

	if cfg.AMQPURL != "" {
		a.Dispatcher = queue.NewPublisher(cfg.AMQPURL, cfg.FulfillmentQueue)
		a.Consumer = queue.NewConsumer(cfg.AMQPURL, cfg.FulfillmentQueue, a.Fulfiller.HandleEvent)
		log.Printf("app: fulfillment via rabbitmq queue %q", cfg.FulfillmentQueue)
	} else {
		a.inProcess = service.NewInProcessDispatcher(a.Fulfiller.HandleEvent)
		a.Dispatcher = a.inProcess
		log.Printf("app: fulfillment in process (no broker configured)")
	}

	a.Reconciler = service.NewReconciler(a.Transactions, a.Providers, a.Dispatcher, cfg.ConfirmWithProvider, cfg.ProviderTimeout)
	a.Checkout = service.NewCheckout(a.Transactions, a.Users, a.Books, a.Providers, cfg.Currency, cfg.PublicBaseURL, cfg.APIBaseURL)
	a.Cart = &service.Cart{Carts: a.Carts, Books: a.Books}
	a.Sweeper = &service.Sweeper{Transactions: a.Transactions, Dispatcher: a.Dispatcher}
	return a
}

// Sandbox returns the sandbox adapter when it is enabled.
func (a *App) Sandbox() (*payment.Sandbox, bool) {
	p, err := a.Providers.Get(model.MethodSandbox)
	if err != nil {
		return nil, false
	}
	sb, ok := p.(*payment.Sandbox)
	return sb, ok
}

// Drain waits for in-flight background work: advisory confirmations and
// in-process fulfillments.
func (a *App) Drain() {
	a.Reconciler.Wait()
	if a.inProcess != nil {
		a.inProcess.Wait()
	}
}
