package bundle

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/oshokin/pkg-assembler/internal/logger"
)

var errNoStrategies = errors.New("no bundle strategies configured")

// Assembler tries its strategies in order until one produces a bundle.
type Assembler struct {
	strategies []Strategy
}

// NewAssembler creates an Assembler over strategies in priority order.
func NewAssembler(strategies ...Strategy) *Assembler {
	return &Assembler{strategies: strategies}
}

// Build runs the strategies and returns the name of the one that succeeded.
// When all fail, the error joins every strategy's cause in order.
func (a *Assembler) Build(ctx context.Context, in Input) (string, error) {
	if len(a.strategies) == 0 {
		return "", errNoStrategies
	}

	causes := make([]error, 0, len(a.strategies))

	for _, strategy := range a.strategies {
		err := strategy.Assemble(ctx, in)
		if err == nil {
			return strategy.Name(), nil
		}

		logger.WarnKV(ctx, "Bundle strategy failed", "strategy", strategy.Name(), "error", err)
		causes = append(causes, fmt.Errorf("%s: %w", strategy.Name(), err))

		// A failed strategy must not leave a partial bundle for the next one.
		_ = os.Remove(in.OutputPath)
	}

	return "", errors.Join(causes...)
}
