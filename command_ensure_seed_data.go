package identity

import (
	"context"

	"github.com/goliatone/go-command"
	goerrors "github.com/goliatone/go-errors"
)

// EnsureSeedDataMessage asks for the baseline roles and users to be
// provisioned.
type EnsureSeedDataMessage struct{}

func (e EnsureSeedDataMessage) Type() string { return "identity.seed.ensure" }

// EnsureSeedDataHandler runs a Seeder in response to EnsureSeedDataMessage.
type EnsureSeedDataHandler struct {
	seeder *Seeder
}

var _ command.Commander[EnsureSeedDataMessage] = (*EnsureSeedDataHandler)(nil)

// NewEnsureSeedDataHandler returns a handler backed by seeder.
func NewEnsureSeedDataHandler(seeder *Seeder) *EnsureSeedDataHandler {
	return &EnsureSeedDataHandler{seeder: seeder}
}

func (h *EnsureSeedDataHandler) Execute(ctx context.Context, event EnsureSeedDataMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during identity seed",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *EnsureSeedDataHandler) execute(ctx context.Context, _ EnsureSeedDataMessage) error {
	if h.seeder == nil {
		return goerrors.New("seeder is required", goerrors.CategoryInternal).
			WithTextCode(TextCodeInvalidInput)
	}
	return h.seeder.EnsureSeedData(ctx)
}
