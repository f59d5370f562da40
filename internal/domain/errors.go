package domain

import "errors"

// Errores sentinela del core. Los adapters y la aplicación los envuelven con
// fmt.Errorf("...: %w", err) y los consumidores comparan con errors.Is.
var (
	// ErrInvalidSnapshot: datos de mercado malformados. Se salta el mercado.
	ErrInvalidSnapshot = errors.New("invalid snapshot")

	// ErrNoSize: la oportunidad no sobrevive al sizing (stake <= 0 o bajo el mínimo).
	ErrNoSize = errors.New("no size")

	// ErrInvalidConfig: límites contradictorios. Fatal al arrancar.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrExecutionFailure: el executor rechazó o no pudo colocar la orden.
	ErrExecutionFailure = errors.New("execution failure")

	// ErrOrderPending: la orden fue enviada pero su resultado aún no está confirmado.
	// Se reconcilia al inicio del siguiente ciclo.
	ErrOrderPending = errors.New("order pending confirmation")

	// ErrPositionNotFound: el ledger no conoce la posición pedida.
	ErrPositionNotFound = errors.New("position not found")
)
