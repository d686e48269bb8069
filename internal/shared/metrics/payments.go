package metrics

import "github.com/prometheus/client_golang/prometheus"

// Payments agrupa os contadores do payments-service.
type Payments struct {
	Intents        *prometheus.CounterVec // outcome
	WebhookEvents  *prometheus.CounterVec // type, outcome
	Anomalies      prometheus.Counter
	LedgerFailures prometheus.Counter
}

func NewPayments(reg prometheus.Registerer) *Payments {
	m := &Payments{
		Intents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payments_intents_total",
			Help: "pedidos de depósito por resultado",
		}, []string{"outcome"}),
		WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payments_webhook_events_total",
			Help: "eventos de webhook por tipo e resultado",
		}, []string{"type", "outcome"}),
		Anomalies: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "payments_settlement_anomalies_total",
			Help: "eventos de sucesso recebidos para transações em estado terminal negativo",
		}),
		LedgerFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "payments_ledger_append_failures_total",
			Help: "falhas ao gravar no ledger após liquidação",
		}),
	}
	reg.MustRegister(m.Intents, m.WebhookEvents, m.Anomalies, m.LedgerFailures)
	return m
}

// LedgerRepair agrupa os contadores do ledger-repair-worker.
type LedgerRepair struct {
	Consumed prometheus.Counter
	Repaired prometheus.Counter
	Errors   *prometheus.CounterVec // stage
}

func NewLedgerRepair(reg prometheus.Registerer) *LedgerRepair {
	m := &LedgerRepair{
		Consumed: prometheus.NewCounter(prometheus.CounterOpts{Name: "ledger_repair_messages_consumed_total", Help: "mensagens consumidas"}),
		Repaired: prometheus.NewCounter(prometheus.CounterOpts{Name: "ledger_repair_entries_repaired_total", Help: "entradas de ledger reparadas"}),
		Errors:   prometheus.NewCounterVec(prometheus.CounterOpts{Name: "ledger_repair_errors_total", Help: "erros por estágio"}, []string{"stage"}),
	}
	reg.MustRegister(m.Consumed, m.Repaired, m.Errors)
	return m
}
