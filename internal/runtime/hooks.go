package runtime

import (
	"context"
	"time"

	"github.com/drblury/routeflow/internal/rules"
	loggingpkg "github.com/drblury/routeflow/internal/runtime/logging"
	metadatapkg "github.com/drblury/routeflow/internal/runtime/metadata"
)

// ResolutionContext describes one resolution pass over a message.
type ResolutionContext struct {
	// Context is the message context.
	Context     context.Context
	MessageUUID string
	// Policies lists the policies evaluated, in order.
	Policies []string
	// Result aggregates fired, skipped and failed rules across Policies.
	Result rules.Result
	// Metadata is a snapshot of the message metadata after resolution.
	Metadata metadatapkg.Metadata
	Duration time.Duration
}

// ResolutionHooks observe resolution passes. Nil hooks are skipped. Hooks run
// synchronously on the handler goroutine and must not mutate the message.
type ResolutionHooks struct {
	OnResolved func(ctx ResolutionContext)
	OnFailed   func(ctx ResolutionContext, err error)
}

// Merge returns hooks that call h first and then other.
func (h ResolutionHooks) Merge(other ResolutionHooks) ResolutionHooks {
	merged := ResolutionHooks{OnResolved: h.OnResolved, OnFailed: h.OnFailed}
	if a, b := h.OnResolved, other.OnResolved; a != nil && b != nil {
		merged.OnResolved = func(ctx ResolutionContext) {
			a(ctx)
			b(ctx)
		}
	} else if b != nil {
		merged.OnResolved = b
	}
	if a, b := h.OnFailed, other.OnFailed; a != nil && b != nil {
		merged.OnFailed = func(ctx ResolutionContext, err error) {
			a(ctx, err)
			b(ctx, err)
		}
	} else if b != nil {
		merged.OnFailed = b
	}
	return merged
}

func (h ResolutionHooks) resolved(ctx ResolutionContext) {
	if h.OnResolved != nil {
		h.OnResolved(ctx)
	}
}

func (h ResolutionHooks) failed(ctx ResolutionContext, err error) {
	if h.OnFailed != nil {
		h.OnFailed(ctx, err)
	}
}

// LoggingHooks logs every pass that changed metadata at debug level and
// every failure at error level.
func LoggingHooks(logger loggingpkg.ServiceLogger) ResolutionHooks {
	return ResolutionHooks{
		OnResolved: func(ctx ResolutionContext) {
			if !ctx.Result.Changed() {
				return
			}
			logger.Debug("Metadata resolved", loggingpkg.LogFields{
				"message_uuid": ctx.MessageUUID,
				"policies":     ctx.Policies,
				"fired":        ctx.Result.Fired,
				"duration_us":  ctx.Duration.Microseconds(),
			})
		},
		OnFailed: func(ctx ResolutionContext, err error) {
			logger.Error("Metadata resolution failed", err, loggingpkg.LogFields{
				"message_uuid": ctx.MessageUUID,
				"policies":     ctx.Policies,
				"failed":       ctx.Result.Failed,
			})
		},
	}
}
