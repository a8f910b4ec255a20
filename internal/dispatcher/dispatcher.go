// Package dispatcher turns one inbound update into at most one handler call.
package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"

	"github.com/BatmanBruc/bat-bot-subscriptions/internal/contextkeys"
	"github.com/BatmanBruc/bat-bot-subscriptions/internal/logger"
	"github.com/BatmanBruc/bat-bot-subscriptions/internal/middleware"
	"github.com/BatmanBruc/bat-bot-subscriptions/types"
)

type Status string

const (
	StatusOK        Status = "ok"
	StatusDuplicate Status = "duplicate"
	StatusError     Status = "error"
)

type Result struct {
	Status   Status
	UpdateID int64
	TraceID  string
}

type Router interface {
	HandleCallback(ctx context.Context, cb *middleware.Callback) error
	HandleContent(ctx context.Context, msg *middleware.Content) error
	// EnsureAnswered acknowledges a callback nothing answered yet.
	EnsureAnswered(ctx context.Context, cb *middleware.Callback)
}

type Reporter interface {
	AnswerFailure(ctx context.Context, in middleware.Inbound)
	ReportFailure(ctx context.Context, updateID int64, traceID string, err error)
}

type Dispatcher struct {
	marker   types.UpdateMarker
	router   Router
	reporter Reporter
}

func New(marker types.UpdateMarker, router Router, reporter Reporter) *Dispatcher {
	return &Dispatcher{marker: marker, router: router, reporter: reporter}
}

// Dispatch never panics and never returns an error: failures become
// StatusError after the user and the operator have been told.
func (d *Dispatcher) Dispatch(ctx context.Context, update *models.Update) (res Result) {
	res = Result{UpdateID: update.ID, TraceID: uuid.NewString()}
	ctx = contextkeys.WithUpdateID(ctx, update.ID)
	ctx = contextkeys.WithTraceID(ctx, res.TraceID)

	in := middleware.Classify(update)
	ctx = contextkeys.WithMessageType(ctx, messageType(in))
	log := logger.FromContext(ctx, logger.Flow)

	advanced, err := d.marker.AdvanceUpdateID(ctx, update.ID)
	if err != nil {
		log.Error("advance update marker failed", slog.String("event", "dispatch.marker_failed"), slog.Any("err", err))
		d.reporter.AnswerFailure(ctx, in)
		res.Status = StatusError
		return res
	}
	if !advanced {
		log.Info("duplicate update", slog.String("event", "dispatch.duplicate"))
		res.Status = StatusDuplicate
		return res
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("panic while handling update",
				slog.String("event", "dispatch.panic"),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			d.fail(ctx, in, res.TraceID, fmt.Errorf("panic: %v", r))
			res.Status = StatusError
		}
	}()

	switch {
	case in.Callback != nil:
		log.Debug("callback", slog.String("event", "dispatch.callback"), slog.String("action", in.Callback.Action.Kind.String()))
		err = d.router.HandleCallback(ctx, in.Callback)
	case in.Content != nil:
		log.Debug("message", slog.String("event", "dispatch.content"), slog.Int64("chat_id", in.Content.ChatID))
		err = d.router.HandleContent(ctx, in.Content)
	default:
		log.Debug("update ignored", slog.String("event", "dispatch.ignored"))
	}

	if err != nil {
		log.Error("handle update failed", slog.String("event", "dispatch.failed"), slog.Any("err", err))
		d.fail(ctx, in, res.TraceID, err)
		res.Status = StatusError
		return res
	}
	if in.Callback != nil {
		d.router.EnsureAnswered(ctx, in.Callback)
	}
	res.Status = StatusOK
	return res
}

func (d *Dispatcher) fail(ctx context.Context, in middleware.Inbound, traceID string, err error) {
	d.reporter.AnswerFailure(ctx, in)
	d.reporter.ReportFailure(ctx, in.UpdateID, traceID, err)
}

func messageType(in middleware.Inbound) contextkeys.MessageType {
	switch {
	case in.Callback != nil:
		return contextkeys.MessageTypeClickButton
	case in.Content != nil:
		return in.Content.MessageType()
	default:
		return contextkeys.MessageTypeUnknown
	}
}
