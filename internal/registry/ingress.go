package registry

import (
	"context"
	"log"

	"github.com/dyluth/chalk/pkg/board"
)

// Consume applies every operation delivered on sub until ctx is cancelled or
// the subscription ends. Operations that fail are logged and dropped.
func (r *Registry) Consume(ctx context.Context, sub *board.OperationSubscription) {
	events := sub.Events()
	errs := sub.Errors()

	for {
		select {
		case <-ctx.Done():
			return

		case env, ok := <-events:
			if !ok {
				return
			}
			r.applyEnvelope(ctx, env)

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			log.Printf("[Registry] Skipped malformed operation: %v", err)
		}
	}
}

func (r *Registry) applyEnvelope(ctx context.Context, env *board.Envelope) {
	op, err := board.ParseOperation(env.Op)
	if err != nil {
		log.Printf("[Registry] Dropped operation for board '%s': %v", env.Board, err)
		return
	}

	if err := r.Apply(ctx, env.Board, op); err != nil {
		log.Printf("[Registry] Dropped %s operation for board '%s' element '%s': %v",
			op.Kind(), env.Board, op.ID, err)
		return
	}

	r.logEvent("operation_applied", map[string]interface{}{
		"board": env.Board,
		"kind":  string(op.Kind()),
		"id":    op.ID,
	})
}
