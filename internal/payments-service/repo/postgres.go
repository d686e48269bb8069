package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/radieske/freelance-wallet-payments/internal/payments-service/domain"
)

// Postgres implementa o Store em banco
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

const uniqueViolation = "23505"

// isUniqueViolation isola o formato de erro do driver do contrato de conflito.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

type rowScanner interface {
	Scan(dest ...any) error
}

const walletColumns = `id, user_id, balance_minor, pending_balance_minor, total_earned_minor, total_withdrawn_minor, currency, created_at, updated_at`

func scanWallet(row rowScanner) (domain.Wallet, error) {
	var w domain.Wallet
	err := row.Scan(&w.ID, &w.UserID, &w.BalanceMinor, &w.PendingMinor, &w.TotalEarnedMinor, &w.TotalWithdrawnMinor,
		&w.Currency, &w.CreatedAt, &w.UpdatedAt)
	return w, err
}

const txColumns = `id, wallet_id, type, status, amount_minor, currency, description, reference_type, provider, provider_payment_id, provider_status, idempotency_key, expires_at, created_at, updated_at`

func scanTransaction(row rowScanner) (domain.Transaction, error) {
	var (
		t              domain.Transaction
		kind, status   string
		ref, extStatus sql.NullString
		expiresAt      sql.NullTime
	)
	err := row.Scan(&t.ID, &t.WalletID, &kind, &status, &t.AmountMinor, &t.Currency, &t.Description,
		&t.ReferenceType, &t.Provider, &ref, &extStatus, &t.IdempotencyKey, &expiresAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return domain.Transaction{}, err
	}
	t.Kind = domain.Kind(kind)
	t.Status = domain.Status(status)
	t.ExternalRef = ref.String
	t.ExternalStatus = extStatus.String
	if expiresAt.Valid {
		t.ExpiresAt = expiresAt.Time
	}
	return t, nil
}

func notFoundOr(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	return domain.Dependency(op, err)
}

func statusStrings(in []domain.Status) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) GetWallet(ctx context.Context, id string) (domain.Wallet, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Wallet{}, fmt.Errorf("get wallet: %w", domain.ErrNotFound)
	}
	w, err := scanWallet(p.db.QueryRowContext(ctx, `SELECT `+walletColumns+` FROM wallets WHERE id = $1`, id))
	if err != nil {
		return domain.Wallet{}, notFoundOr("get wallet", err)
	}
	return w, nil
}

func (p *Postgres) GetWalletByUserID(ctx context.Context, userID string) (domain.Wallet, error) {
	w, err := scanWallet(p.db.QueryRowContext(ctx, `SELECT `+walletColumns+` FROM wallets WHERE user_id = $1`, userID))
	if err != nil {
		return domain.Wallet{}, notFoundOr("get wallet by user", err)
	}
	return w, nil
}

// GetOrCreateWallet retorna a carteira do usuário, criando-a zerada se não existir.
// Segura para retry: corrida perdida no INSERT cai na releitura.
func (p *Postgres) GetOrCreateWallet(ctx context.Context, userID, currency string) (domain.Wallet, error) {
	w, err := p.GetWalletByUserID(ctx, userID)
	if err == nil || !errors.Is(err, domain.ErrNotFound) {
		return w, err
	}

	w = domain.NewWallet(uuid.NewString(), userID, currency, time.Now().UTC())
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO wallets (id, user_id, balance_minor, pending_balance_minor, total_earned_minor, total_withdrawn_minor, currency)
		VALUES ($1,$2,0,0,0,0,$3)`, w.ID, w.UserID, w.Currency)
	if isUniqueViolation(err) {
		return p.GetWalletByUserID(ctx, userID)
	}
	if err != nil {
		return domain.Wallet{}, domain.Dependency("create wallet", err)
	}
	return w, nil
}

func (p *Postgres) GetTransaction(ctx context.Context, id string) (domain.Transaction, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Transaction{}, fmt.Errorf("get transaction: %w", domain.ErrNotFound)
	}
	t, err := scanTransaction(p.db.QueryRowContext(ctx, `SELECT `+txColumns+` FROM transactions WHERE id = $1`, id))
	if err != nil {
		return domain.Transaction{}, notFoundOr("get transaction", err)
	}
	return t, nil
}

func (p *Postgres) GetTransactionByIdempotencyKey(ctx context.Context, key string) (domain.Transaction, error) {
	t, err := scanTransaction(p.db.QueryRowContext(ctx, `SELECT `+txColumns+` FROM transactions WHERE idempotency_key = $1`, key))
	if err != nil {
		return domain.Transaction{}, notFoundOr("get transaction by key", err)
	}
	return t, nil
}

// CreateTransaction insere a tentativa PENDING; em conflito na idempotency_key
// relê e devolve a linha vencedora com created=false.
func (p *Postgres) CreateTransaction(ctx context.Context, t domain.Transaction) (domain.Transaction, bool, error) {
	var expiresAt sql.NullTime
	if !t.ExpiresAt.IsZero() {
		expiresAt = sql.NullTime{Time: t.ExpiresAt, Valid: true}
	}

	err := p.db.QueryRowContext(ctx, `
		INSERT INTO transactions (id, wallet_id, type, status, amount_minor, currency, description, reference_type, provider, idempotency_key, expires_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING created_at, updated_at`,
		t.ID, t.WalletID, string(t.Kind), string(t.Status), t.AmountMinor, t.Currency, t.Description,
		t.ReferenceType, t.Provider, t.IdempotencyKey, expiresAt,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if isUniqueViolation(err) {
		existing, rerr := p.GetTransactionByIdempotencyKey(ctx, t.IdempotencyKey)
		return existing, false, rerr
	}
	if err != nil {
		return domain.Transaction{}, false, domain.Dependency("create transaction", err)
	}
	return t, true, nil
}

func (p *Postgres) AttachExternalRef(ctx context.Context, id, externalRef, externalStatus string) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE transactions SET provider_payment_id = $2, provider_status = $3, updated_at = NOW()
		WHERE id = $1 AND (provider_payment_id IS NULL OR provider_payment_id = $2)`,
		id, externalRef, externalStatus)
	if err != nil {
		return domain.Dependency("attach external ref", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("attach external ref %s: %w", id, domain.ErrConflict)
	}
	return nil
}

// CompleteDeposit liquida o depósito numa única transação de banco
// Lock pessimista na linha da transação garante um único incremento de saldo
func (p *Postgres) CompleteDeposit(ctx context.Context, id, externalStatus string) (domain.Transaction, bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Transaction{}, false, fmt.Errorf("complete deposit: %w", domain.ErrNotFound)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Transaction{}, false, domain.Dependency("complete deposit: begin", err)
	}
	defer tx.Rollback()

	t, err := scanTransaction(tx.QueryRowContext(ctx, `SELECT `+txColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return domain.Transaction{}, false, notFoundOr("complete deposit: select", err)
	}

	switch {
	case t.Status.IsSettled():
		return t, false, nil // idempotente
	case t.Status.IsRejected():
		return t, false, fmt.Errorf("complete deposit %s in status %s: %w", t.ID, t.Status, domain.ErrStateAnomaly)
	case t.Kind != domain.KindDeposit:
		return t, false, fmt.Errorf("complete deposit %s of kind %s: %w", t.ID, t.Kind, domain.ErrStateAnomaly)
	}

	if err = tx.QueryRowContext(ctx, `UPDATE transactions SET status = 'completed', provider_status = COALESCE(NULLIF($2, ''), provider_status), updated_at = NOW() WHERE id = $1 RETURNING updated_at`,
		t.ID, externalStatus).Scan(&t.UpdatedAt); err != nil {
		return domain.Transaction{}, false, domain.Dependency("complete deposit: update transaction", err)
	}

	res, err := tx.ExecContext(ctx, `UPDATE wallets SET balance_minor = balance_minor + $1, total_earned_minor = total_earned_minor + $1, updated_at = NOW() WHERE id = $2`,
		t.AmountMinor, t.WalletID)
	if err != nil {
		return domain.Transaction{}, false, domain.Dependency("complete deposit: credit wallet", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return domain.Transaction{}, false, fmt.Errorf("complete deposit: wallet %s: %w", t.WalletID, domain.ErrNotFound)
	}

	if err = tx.Commit(); err != nil {
		return domain.Transaction{}, false, domain.Dependency("complete deposit: commit", err)
	}

	t.Status = domain.StatusCompleted
	if externalStatus != "" {
		t.ExternalStatus = externalStatus
	}
	return t, true, nil
}

func (p *Postgres) TransitionStatus(ctx context.Context, id string, to domain.Status, externalStatus string, from ...domain.Status) (bool, error) {
	if len(from) == 0 {
		return false, domain.Invalid("transition to %s without source status", to)
	}
	if _, err := uuid.Parse(id); err != nil {
		return false, nil
	}
	res, err := p.db.ExecContext(ctx, `UPDATE transactions SET status = $2, provider_status = COALESCE(NULLIF($3, ''), provider_status), updated_at = NOW() WHERE id = $1 AND status = ANY($4)`,
		id, string(to), externalStatus, pq.Array(statusStrings(from)))
	if err != nil {
		return false, domain.Dependency("transition status", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (p *Postgres) MarkDisputedByExternalRef(ctx context.Context, refs []string, externalStatus string) (int64, error) {
	if len(refs) == 0 {
		return 0, nil
	}
	res, err := p.db.ExecContext(ctx, `UPDATE transactions SET status = 'disputed', provider_status = $2, updated_at = NOW() WHERE provider_payment_id = ANY($1) AND status = ANY($3)`,
		pq.Array(refs), externalStatus, pq.Array(statusStrings(disputable)))
	if err != nil {
		return 0, domain.Dependency("mark disputed", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// AppendLedger grava a entrada; duplicata de depósito concluído é ignorada pelo índice parcial.
func (p *Postgres) AppendLedger(ctx context.Context, e domain.LedgerEntry) (bool, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	meta, err := json.Marshal(e.Metadata)
	if err != nil {
		return false, fmt.Errorf("append ledger: metadata: %w", err)
	}
	if e.Metadata == nil {
		meta = []byte("{}")
	}

	res, err := p.db.ExecContext(ctx, `INSERT INTO wallet_ledger (id, user_id, kind, status, amount_minor, currency, external_ref, metadata) VALUES ($1,$2,$3,$4,$5,$6,$7,$8) ON CONFLICT (external_ref) WHERE kind = 'deposit' AND status = 'completed' DO NOTHING`,
		e.ID, e.UserID, string(e.Kind), string(e.Status), e.AmountMinor, e.Currency, e.ExternalRef, string(meta))
	if err != nil {
		return false, domain.Dependency("append ledger", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}
