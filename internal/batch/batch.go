package batch

import (
	"context"
	"fmt"

	"github.com/eagraf/kitsune-hub/internal/installer"
	"github.com/eagraf/kitsune-hub/internal/logstore"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type Status string

const (
	StatusPending    Status = "Pending"
	StatusInstalling Status = "Installing"
	StatusCompleted  Status = "Completed"
	StatusFailed     Status = "Failed"
)

// Terminal reports whether no further transitions can happen.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

const MessageNotFound = "installer not found"

// Item is the progress of one id within a batch run.
type Item struct {
	ID       string `json:"id"`
	Status   Status `json:"status"`
	Progress int    `json:"progress"`
	Message  string `json:"message"`
}

type Request struct {
	IDs []string `json:"ids"`
}

type Response struct {
	BatchID   string `json:"batch_id"`
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
	Progress  []Item `json:"progress"`
}

// Resolver finds installers by id.
type Resolver interface {
	Lookup(id string) (installer.Installer, bool)
}

// Observer receives a copy of an item after each of its transitions.
type Observer func(batchID string, action installer.Action, item Item)

type Orchestrator struct {
	resolver Resolver
	logs     logstore.Store
	observer Observer
}

type Option func(*Orchestrator)

func WithObserver(o Observer) Option {
	return func(orch *Orchestrator) {
		orch.observer = o
	}
}

func NewOrchestrator(resolver Resolver, logs logstore.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		resolver: resolver,
		logs:     logs,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) Install(ctx context.Context, ids []string) *Response {
	return o.Run(ctx, installer.ActionInstall, ids)
}

func (o *Orchestrator) Update(ctx context.Context, ids []string) *Response {
	return o.Run(ctx, installer.ActionUpdate, ids)
}

func (o *Orchestrator) Uninstall(ctx context.Context, ids []string) *Response {
	return o.Run(ctx, installer.ActionUninstall, ids)
}

// Run applies action to every id strictly in order. A failing item never stops the ones after it,
// and every requested id appears in the response exactly once, duplicates included.
func (o *Orchestrator) Run(ctx context.Context, action installer.Action, ids []string) *Response {
	resp := &Response{
		BatchID:  uuid.NewString(),
		Total:    len(ids),
		Progress: make([]Item, len(ids)),
	}
	for i, id := range ids {
		resp.Progress[i] = Item{
			ID:       id,
			Status:   StatusPending,
			Progress: 0,
			Message:  "waiting",
		}
	}

	logger := log.With().Str("batch_id", resp.BatchID).Str("action", action.String()).Logger()
	logger.Info().Msgf("starting batch of %d", len(ids))

	for i := range resp.Progress {
		if o.runItem(ctx, resp.BatchID, action, &resp.Progress[i]) {
			resp.Completed++
		} else {
			resp.Failed++
		}
	}

	logger.Info().Msgf("batch finished: %d completed, %d failed", resp.Completed, resp.Failed)
	return resp
}

func (o *Orchestrator) runItem(ctx context.Context, batchID string, action installer.Action, item *Item) bool {
	id := item.ID

	o.transition(batchID, action, item, StatusInstalling, 10, "starting")
	o.log(id, action, logstore.StatusStarted, "starting "+action.String(), "")

	o.transition(batchID, action, item, StatusInstalling, 30, progressVerb(action))

	inst, ok := o.resolver.Lookup(id)
	if !ok {
		o.transition(batchID, action, item, StatusFailed, 100, MessageNotFound)
		o.log(id, action, logstore.StatusFailed, MessageNotFound, "")
		return false
	}

	res, err := installer.Do(ctx, inst, action)
	switch {
	case err != nil:
		msg := fmt.Sprintf("error: %s", err)
		o.transition(batchID, action, item, StatusFailed, 100, msg)
		o.log(id, action, logstore.StatusFailed, msg, msg)
		return false
	case res.Success:
		o.transition(batchID, action, item, StatusCompleted, 100, res.Message)
		o.log(id, action, logstore.StatusSuccess, res.Message, res.Message)
		return true
	default:
		o.transition(batchID, action, item, StatusFailed, 100, res.Message)
		o.log(id, action, logstore.StatusFailed, res.Message, res.Message)
		return false
	}
}

func (o *Orchestrator) transition(batchID string, action installer.Action, item *Item, status Status, progress int, message string) {
	item.Status = status
	item.Progress = progress
	item.Message = message
	if o.observer != nil {
		o.observer(batchID, action, *item)
	}
}

func (o *Orchestrator) log(id string, action installer.Action, status logstore.Status, message, output string) {
	err := o.logs.Log(id, action, status, message, output)
	if err != nil {
		log.Warn().Err(err).Msgf("unable to record %s log for %s", action, id)
	}
}

func progressVerb(action installer.Action) string {
	switch action {
	case installer.ActionUpdate:
		return "updating"
	case installer.ActionUninstall:
		return "uninstalling"
	default:
		return "installing"
	}
}
