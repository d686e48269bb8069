package domain

import (
	"errors"
	"fmt"
)

// Taxonomia de erros do core de pagamentos.
// Camadas externas (HTTP, worker) decidem status/retry com errors.Is.
var (
	ErrConfiguration  = errors.New("configuration error")
	ErrValidation     = errors.New("validation error")
	ErrAuthentication = errors.New("authentication error")
	ErrConflict       = errors.New("conflict")
	ErrStateAnomaly   = errors.New("state anomaly")
	ErrDependency     = errors.New("dependency unavailable")
	ErrNotFound       = errors.New("not found")

	// ErrGatewayRejected é um erro de cliente: o gateway recusou valor/moeda.
	ErrGatewayRejected = fmt.Errorf("%w: rejected by payment gateway", ErrValidation)
)

// Dependency embrulha uma falha de infraestrutura (store, gateway, broker).
func Dependency(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrDependency, err)
}

// Invalid cria um erro de validação com mensagem legível pelo cliente.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
