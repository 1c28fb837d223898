// Package pipeline assembles the build graph: a filesystem source collection,
// a derived collection of per-page render tasks, and a terminal effect that
// persists settled pages as artifacts. One-shot builds scan, await
// quiescence, and report; watch mode keeps the graph alive and publishes a
// change event after every settled rebuild.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	builderrors "git.home.luguber.info/inful/sitebuilder/internal/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/journal"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
	"git.home.luguber.info/inful/sitebuilder/internal/notify"
	"git.home.luguber.info/inful/sitebuilder/internal/reactive"
	"git.home.luguber.info/inful/sitebuilder/internal/render"
	"git.home.luguber.info/inful/sitebuilder/internal/source"
	"git.home.luguber.info/inful/sitebuilder/internal/storage"
)

// Options bundles the pipeline's collaborators. Store is required; the rest
// default to no-ops.
type Options struct {
	Config   *config.Config
	Store    storage.ArtifactStore
	Notifier notify.Notifier
	Journal  *journal.Journal
	Recorder metrics.Recorder
	Logger   *slog.Logger
}

// Pipeline owns the reactive build graph for one site.
type Pipeline struct {
	rt       *reactive.Runtime
	cfg      *config.Config
	src      *source.Source
	renderer *render.Renderer
	store    storage.ArtifactStore
	notifier notify.Notifier
	journal  *journal.Journal
	rec      metrics.Recorder
	logger   *slog.Logger

	site  *reactive.PropertyStore
	pages *reactive.KeyedCollection[*reactive.Task[render.Page]]

	persist *reactive.Effect
	siteEff *reactive.Effect

	// changed gets a non-blocking signal each persist run; watch mode uses
	// it to know a rebuild pass is underway.
	changed chan struct{}

	mu sync.Mutex
	// written maps page key to its persisted artifact path, for pruning
	// when a source vanishes or its output path moves.
	written map[string]string
	// reported maps page key to the failure text already journaled, so a
	// persistent failure is recorded once per distinct error.
	reported map[string]string
	baseCtx  context.Context
}

// passStats summarizes the graph at one settled point.
type passStats struct {
	total   int
	pending int
	failed  map[string]error
}

// New builds the graph. The source watcher stays inactive until Start wires
// the terminal effects (liveness is what turns it on).
func New(rt *reactive.Runtime, opts Options) (*Pipeline, error) {
	if opts.Config == nil {
		return nil, builderrors.ValidationFailed("config", "required")
	}
	if opts.Store == nil {
		return nil, builderrors.ValidationFailed("store", "required")
	}
	p := &Pipeline{
		rt:       rt,
		cfg:      opts.Config,
		renderer: render.NewRenderer(),
		store:    opts.Store,
		notifier: opts.Notifier,
		journal:  opts.Journal,
		rec:      opts.Recorder,
		logger:   opts.Logger,
		changed:  make(chan struct{}, 1),
		written:  make(map[string]string),
		reported: make(map[string]string),
		baseCtx:  context.Background(),
	}
	if p.notifier == nil {
		p.notifier = notify.Noop{}
	}
	if p.rec == nil {
		p.rec = metrics.NoopRecorder{}
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}

	src, err := source.New(rt, source.Options{
		Root:       p.cfg.Source.ContentDir,
		Extensions: p.cfg.Source.Extensions,
		Debounce:   p.cfg.Source.Debounce.Std(),
		Logger:     p.logger,
		Recorder:   p.rec,
	})
	if err != nil {
		return nil, err
	}
	p.src = src

	p.site = reactive.NewPropertyStore(rt, "site", p.cfg.SiteRecord())
	p.pages = reactive.Derive(src.Files(), "render",
		func(tc *reactive.TaskCtx, key string, rec source.FileRecord) (render.Page, error) {
			if err := tc.Context().Err(); err != nil {
				return render.Page{}, err
			}
			return p.renderer.Render(rec)
		})
	return p, nil
}

// Site exposes the site-wide property record. Writes propagate with field
// granularity: changing the title rewrites site metadata without touching
// any page.
func (p *Pipeline) Site() *reactive.PropertyStore { return p.site }

// Source exposes the file source, mainly so callers can trigger rescans.
func (p *Pipeline) Source() *source.Source { return p.src }

// Start wires the terminal effects. Their liveness cascades up through the
// render tasks into the source collection, which activates the watcher.
func (p *Pipeline) Start(ctx context.Context) {
	p.mu.Lock()
	p.baseCtx = ctx
	p.mu.Unlock()

	p.siteEff = reactive.NewEffect(p.rt, "site-meta", p.persistSiteMeta)
	p.persist = reactive.NewEffect(p.rt, "persist", p.persistPages)
}

// Stop disposes the terminal effects; the watcher deactivates when the last
// live subscriber goes away.
func (p *Pipeline) Stop() {
	if p.persist != nil {
		p.persist.Dispose()
		p.persist = nil
	}
	if p.siteEff != nil {
		p.siteEff.Dispose()
		p.siteEff = nil
	}
}

// persistSiteMeta writes the site-wide metadata artifact. It depends on the
// individual site fields only.
func (p *Pipeline) persistSiteMeta() {
	meta := map[string]any{
		"title":   p.site.Get("title"),
		"baseUrl": p.site.Get("baseUrl"),
	}
	data, err := json.Marshal(meta)
	if err != nil {
		p.logger.Error("site metadata encode failed", logfields.Error(err))
		return
	}
	if _, err := p.store.Put(p.ctx(), &storage.Artifact{Path: "site.json", Data: data}); err != nil {
		p.logger.Error("site metadata write failed", logfields.Error(err))
	}
}

// persistPages is the terminal effect: it re-runs whenever membership or any
// page task changes, writes settled pages, and prunes artifacts for
// vanished pages. A pending page keeps its previous artifact until the
// rerun settles.
func (p *Pipeline) persistPages() {
	entries := p.pages.Entries()
	present := make(map[string]bool, len(entries))

	for _, e := range entries {
		present[e.Key] = true
		res := e.Value.Result()
		if res.State != reactive.TaskOk {
			continue
		}
		p.persistPage(e.Key, res.Value)
	}
	p.prune(present)

	select {
	case p.changed <- struct{}{}:
	default:
	}
}

func (p *Pipeline) persistPage(key string, page render.Page) {
	p.mu.Lock()
	prev, had := p.written[key]
	p.mu.Unlock()

	if had && prev != page.OutputPath {
		// Slug or directory changed; the old artifact is stale.
		if err := p.store.Delete(p.ctx(), prev); err != nil && !storage.IsNotFound(err) {
			p.logger.Warn("stale artifact delete failed", logfields.Path(prev), logfields.Error(err))
		}
	}
	if _, err := p.store.Put(p.ctx(), &storage.Artifact{Path: page.OutputPath, Data: page.HTML}); err != nil {
		p.logger.Error("artifact write failed",
			logfields.Key(key), logfields.Path(page.OutputPath), logfields.Error(err))
		return
	}
	p.mu.Lock()
	p.written[key] = page.OutputPath
	p.mu.Unlock()
}

// prune removes artifacts whose source key left the collection.
func (p *Pipeline) prune(present map[string]bool) {
	p.mu.Lock()
	var stale [][2]string
	for key, path := range p.written {
		if !present[key] {
			stale = append(stale, [2]string{key, path})
			delete(p.written, key)
		}
	}
	p.mu.Unlock()

	for _, kp := range stale {
		if err := p.store.Delete(p.ctx(), kp[1]); err != nil && !storage.IsNotFound(err) {
			p.logger.Warn("artifact delete failed", logfields.Path(kp[1]), logfields.Error(err))
		}
		p.logger.Info("artifact removed", logfields.Key(kp[0]), logfields.Path(kp[1]))
	}
}

func (p *Pipeline) ctx() context.Context {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.baseCtx
}

// snapshot reads the graph untracked.
func (p *Pipeline) snapshot() passStats {
	stats := passStats{failed: make(map[string]error)}
	for _, e := range p.pages.Entries() {
		stats.total++
		res := e.Value.Result()
		switch res.State {
		case reactive.TaskPending:
			stats.pending++
		case reactive.TaskErr:
			stats.failed[e.Key] = res.Err
		}
	}
	return stats
}

// Build runs one full pass: scan, settle, persist, report. The terminal
// effects are torn down before returning.
func (p *Pipeline) Build(ctx context.Context) error {
	buildID := uuid.NewString()
	start := time.Now()
	p.logger.Info("build started", logfields.BuildID(buildID), logfields.Path(p.cfg.Source.ContentDir))
	p.journalRecord(ctx, journal.Entry{BuildID: buildID, Kind: journal.KindBuildStarted})

	p.Start(ctx)
	defer p.Stop()

	if err := p.src.Scan(); err != nil {
		p.finishPass(ctx, buildID, start, passStats{}, "failed")
		return err
	}
	if err := p.rt.AwaitQuiescence(ctx); err != nil {
		p.finishPass(ctx, buildID, start, passStats{}, "canceled")
		return err
	}

	stats := p.snapshot()
	outcome := outcomeOf(stats)
	p.finishPass(ctx, buildID, start, stats, outcome)

	if len(stats.failed) > 0 {
		keys := make([]string, 0, len(stats.failed))
		for key := range stats.failed {
			keys = append(keys, key)
		}
		return builderrors.New(builderrors.CategoryTransform, builderrors.SeverityError,
			fmt.Sprintf("%d page(s) failed: %s", len(keys), strings.Join(keys, ", ")))
	}
	return nil
}

// Watch runs an initial pass, then keeps the graph alive: file changes flow
// through the source watcher, rebuild passes settle on their own, and each
// settled pass is journaled and published. Returns when ctx is done.
func (p *Pipeline) Watch(ctx context.Context) error {
	buildID := uuid.NewString()
	start := time.Now()
	p.logger.Info("watch started", logfields.BuildID(buildID), logfields.Path(p.cfg.Source.ContentDir))
	p.journalRecord(ctx, journal.Entry{BuildID: buildID, Kind: journal.KindBuildStarted})

	p.Start(ctx)
	defer p.Stop()

	if err := p.src.Scan(); err != nil {
		return err
	}
	if err := p.rt.AwaitQuiescence(ctx); err != nil {
		return err
	}
	p.drainChanged()
	stats := p.snapshot()
	p.finishPass(ctx, buildID, start, stats, outcomeOf(stats))

	if p.src.Degraded() {
		p.logger.Warn("file watching unavailable; incremental rebuilds disabled",
			logfields.Path(p.cfg.Source.ContentDir))
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.changed:
			passID := uuid.NewString()
			passStart := time.Now()
			if err := p.rt.AwaitQuiescence(ctx); err != nil {
				return err
			}
			p.drainChanged()
			stats := p.snapshot()
			p.finishPass(ctx, passID, passStart, stats, outcomeOf(stats))
		}
	}
}

func outcomeOf(stats passStats) string {
	if len(stats.failed) > 0 {
		return "failed"
	}
	return "success"
}

func (p *Pipeline) drainChanged() {
	for {
		select {
		case <-p.changed:
		default:
			return
		}
	}
}

// finishPass journals, measures, and publishes one settled pass.
func (p *Pipeline) finishPass(ctx context.Context, buildID string, start time.Time, stats passStats, outcome string) {
	elapsed := time.Since(start)

	failedKeys := make([]string, 0, len(stats.failed))
	p.mu.Lock()
	for key, err := range stats.failed {
		failedKeys = append(failedKeys, key)
		text := err.Error()
		if p.reported[key] != text {
			p.reported[key] = text
			p.journalRecord(ctx, journal.Entry{
				BuildID: buildID, Kind: journal.KindItemFailed, Key: key, Detail: text,
			})
			p.logger.Error("page failed", logfields.BuildID(buildID), logfields.Key(key), logfields.Error(err))
		}
	}
	for key := range p.reported {
		if _, still := stats.failed[key]; !still {
			delete(p.reported, key)
		}
	}
	p.mu.Unlock()

	p.journalRecord(ctx, journal.Entry{BuildID: buildID, Kind: journal.KindBuildSettled, Detail: outcome})
	p.rec.ObserveBuildDuration(elapsed)
	p.rec.IncBuildOutcome(outcome)
	p.logger.Info("build settled",
		logfields.BuildID(buildID),
		logfields.Outcome(outcome),
		logfields.DurationMS(float64(elapsed.Microseconds())/1000),
		slog.Int("pages", stats.total-len(stats.failed)-stats.pending),
		slog.Int("failed", len(stats.failed)))

	ev := notify.BuildEvent{
		BuildID:    buildID,
		Outcome:    outcome,
		Pages:      stats.total - len(stats.failed) - stats.pending,
		Failed:     failedKeys,
		DurationMS: float64(elapsed.Microseconds()) / 1000,
		At:         time.Now(),
	}
	if err := p.notifier.Publish(ctx, ev); err != nil {
		p.logger.Warn("build event publish failed", logfields.BuildID(buildID), logfields.Error(err))
	}
}

func (p *Pipeline) journalRecord(ctx context.Context, e journal.Entry) {
	if p.journal == nil {
		return
	}
	if err := p.journal.Record(ctx, e); err != nil {
		p.logger.Warn("journal write failed", logfields.BuildID(e.BuildID), logfields.Error(err))
	}
}
