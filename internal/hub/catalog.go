package hub

import (
	"context"
	"errors"
	"sort"

	"github.com/bradenaw/juniper/xmaps"
	"github.com/eagraf/kitsune-hub/internal/batch"
	"github.com/eagraf/kitsune-hub/internal/installer"
	"github.com/eagraf/kitsune-hub/internal/logstore"
	"github.com/eagraf/kitsune-hub/internal/registry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"golang.org/x/sync/errgroup"
)

var ErrNotFound = errors.New("installer not found")

// Max number of installers inspected at once when building a listing.
const infoConcurrency = 8

// Filter narrows a listing. Zero values match everything.
type Filter struct {
	Category  string `schema:"category"`
	Installed *bool  `schema:"installed"`
}

// Catalog is the combined view over built-in installers and the registry. Built-ins win when both
// define the same id.
type Catalog struct {
	builtins []installer.Installer
	registry *registry.Registry
	logs     logstore.Store

	actions metric.Int64Counter
}

var _ batch.Resolver = (*Catalog)(nil)

func NewCatalog(builtins []installer.Installer, reg *registry.Registry, logs logstore.Store) *Catalog {
	meter := otel.Meter("github.com/eagraf/kitsune-hub/internal/hub")
	actions, err := meter.Int64Counter(
		"kitsunehub.installer.actions",
		metric.WithDescription("Installer actions by outcome"),
		metric.WithUnit("{action}"),
	)
	if err != nil {
		log.Err(err).Msg("unable to create installer action counter")
		actions = noop.Int64Counter{}
	}

	return &Catalog{
		builtins: builtins,
		registry: reg,
		logs:     logs,
		actions:  actions,
	}
}

// Lookup searches the built-in set first, then the registry snapshot.
func (c *Catalog) Lookup(id string) (installer.Installer, bool) {
	for _, i := range c.builtins {
		if i.ID() == id {
			return i, true
		}
	}
	return c.registry.Get(id)
}

// Installers returns built-ins followed by registry installers not shadowed by a built-in.
func (c *Catalog) Installers() []installer.Installer {
	builtinIDs := xmaps.Set[string]{}
	all := make([]installer.Installer, 0, len(c.builtins))
	for _, i := range c.builtins {
		builtinIDs.Add(i.ID())
		all = append(all, i)
	}
	for _, i := range c.registry.All() {
		if builtinIDs.Contains(i.ID()) {
			continue
		}
		all = append(all, i)
	}
	return all
}

// List computes the info of every installer matching filter, in catalog order.
func (c *Catalog) List(ctx context.Context, filter Filter) ([]installer.Info, error) {
	candidates := make([]installer.Installer, 0)
	for _, i := range c.Installers() {
		if filter.Category != "" && i.Category() != filter.Category {
			continue
		}
		candidates = append(candidates, i)
	}

	infos := make([]installer.Info, len(candidates))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(infoConcurrency)
	for idx, i := range candidates {
		eg.Go(func() error {
			infos[idx] = installer.GetInfo(egCtx, i)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if filter.Installed == nil {
		return infos, nil
	}
	matching := make([]installer.Info, 0, len(infos))
	for _, info := range infos {
		if info.Installed == *filter.Installed {
			matching = append(matching, info)
		}
	}
	return matching, nil
}

func (c *Catalog) Info(ctx context.Context, id string) (installer.Info, error) {
	i, ok := c.Lookup(id)
	if !ok {
		return installer.Info{}, ErrNotFound
	}
	return installer.GetInfo(ctx, i), nil
}

// Run applies action to the installer with the given id, recording a started entry and then the
// outcome. Errors from the installer itself come back as a failed Result; only an unknown id is an
// error.
func (c *Catalog) Run(ctx context.Context, id string, action installer.Action) (*installer.Result, error) {
	i, ok := c.Lookup(id)
	if !ok {
		return nil, ErrNotFound
	}

	c.log(id, action, logstore.StatusStarted, "starting "+action.String(), "")

	res, err := installer.Do(ctx, i, action)
	if err != nil {
		res = &installer.Result{
			Success: false,
			Message: err.Error(),
		}
	}

	status := logstore.StatusFailed
	if res.Success {
		status = logstore.StatusSuccess
	}
	c.log(id, action, status, res.Message, res.Message)
	c.record(ctx, action, status)

	return res, nil
}

// ObserveBatch counts the terminal outcome of each batch item. It satisfies batch.Observer.
func (c *Catalog) ObserveBatch(batchID string, action installer.Action, item batch.Item) {
	switch item.Status {
	case batch.StatusCompleted:
		c.record(context.Background(), action, logstore.StatusSuccess)
	case batch.StatusFailed:
		c.record(context.Background(), action, logstore.StatusFailed)
	default:
		log.Debug().Str("batch_id", batchID).Msgf("%s: %s (%d%%)", item.ID, item.Message, item.Progress)
	}
}

func (c *Catalog) record(ctx context.Context, action installer.Action, status logstore.Status) {
	c.actions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", action.String()),
		attribute.String("status", string(status)),
	))
}

func (c *Catalog) log(id string, action installer.Action, status logstore.Status, message, output string) {
	err := c.logs.Log(id, action, status, message, output)
	if err != nil {
		log.Warn().Err(err).Msgf("unable to record %s log for %s", action, id)
	}
}

// Logs returns the history of id. Unknown ids yield an empty slice.
func (c *Catalog) Logs(id string) []logstore.Entry {
	return c.logs.Logs(id)
}

func (c *Catalog) AllLogs() map[string][]logstore.Entry {
	return c.logs.All()
}

// Categories returns the distinct categories of every known installer, sorted.
func (c *Catalog) Categories() []string {
	set := xmaps.Set[string]{}
	for _, i := range c.Installers() {
		set.Add(i.Category())
	}

	categories := make([]string, 0, len(set))
	for category := range set {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	return categories
}

// Reload rescans the registry directory and notifies reload subscribers.
func (c *Catalog) Reload() (int, error) {
	err := c.registry.Reload()
	if err != nil {
		return 0, err
	}
	return c.registry.Len(), nil
}
