package repo

import (
	"context"

	"github.com/radieske/freelance-wallet-payments/internal/payments-service/domain"
)

// Store reúne as operações de Wallet, Transaction e Ledger.
//
// Inserções que podem colidir em chave única (wallet por usuário, transação
// por idempotency key) seguem o contrato "insere; em conflito, relê": quem
// perde a corrida recebe a linha existente e nunca um erro de conflito.
type Store interface {
	GetOrCreateWallet(ctx context.Context, userID, currency string) (domain.Wallet, error)
	GetWallet(ctx context.Context, id string) (domain.Wallet, error)
	GetWalletByUserID(ctx context.Context, userID string) (domain.Wallet, error)

	GetTransaction(ctx context.Context, id string) (domain.Transaction, error)
	GetTransactionByIdempotencyKey(ctx context.Context, key string) (domain.Transaction, error)
	// CreateTransaction devolve created=false quando a chave já existia.
	CreateTransaction(ctx context.Context, t domain.Transaction) (stored domain.Transaction, created bool, err error)
	// AttachExternalRef só grava se a referência estiver vazia ou for a mesma.
	AttachExternalRef(ctx context.Context, id, externalRef, externalStatus string) error

	// CompleteDeposit é a unidade atômica da liquidação: status -> completed,
	// saldo e total_earned incrementados. applied=false em replay.
	CompleteDeposit(ctx context.Context, id, externalStatus string) (t domain.Transaction, applied bool, err error)
	// TransitionStatus aplica to somente se o status atual estiver em from.
	TransitionStatus(ctx context.Context, id string, to domain.Status, externalStatus string, from ...domain.Status) (bool, error)
	MarkDisputedByExternalRef(ctx context.Context, refs []string, externalStatus string) (int64, error)

	// AppendLedger devolve inserted=false se a entrada já existia.
	AppendLedger(ctx context.Context, e domain.LedgerEntry) (inserted bool, err error)

	Ping(ctx context.Context) error
}

var (
	_ Store = (*Postgres)(nil)
	_ Store = (*Memory)(nil)
)

// disputable são os status de onde uma disputa pode partir.
var disputable = []domain.Status{domain.StatusCompleted, domain.StatusProcessing}
