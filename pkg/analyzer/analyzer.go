// Package analyzer classifies file references against the compiled rule
// set, deduplicates content by SHA-256, and re-enters archive members into
// the work queue.
package analyzer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/huntlab/filehound/pkg/archive"
	"github.com/huntlab/filehound/pkg/config"
	"github.com/huntlab/filehound/pkg/rules"
	"github.com/huntlab/filehound/pkg/store"
	"github.com/huntlab/filehound/pkg/types"
)

// Submit offers a reference to the shared work queue. It returns false
// when the queue is full; the caller then analyzes inline so archive
// re-entry can never deadlock on its own queue.
type Submit func(types.FileRef) bool

// unmatchedCacheSize bounds the per-run cache of content hashes that
// matched no rule, so duplicate uninteresting files skip the content pass.
const unmatchedCacheSize = 8192

// Analyzer applies the decision procedure to one file reference at a
// time. It is safe for concurrent use by a pool of workers.
type Analyzer struct {
	cfg         *config.Config
	set         *rules.Set
	extractor   *archive.Extractor
	store       store.Store
	workspaceID int64
	ruleIDs     map[*rules.Rule]int64
	hostIDs     map[types.Host]int64
	submit      Submit
	log         *slog.Logger

	hostMu    sync.RWMutex
	group     singleflight.Group
	unmatched *lru.Cache[string, struct{}]

	stats Stats
}

// New builds an analyzer. The rule-id map comes from the store's rule
// snapshot; host ids are registered by the coordinator as drivers start.
func New(cfg *config.Config, set *rules.Set, st store.Store, workspaceID int64, ruleIDs map[*rules.Rule]int64, log *slog.Logger) *Analyzer {
	cache, _ := lru.New[string, struct{}](unmatchedCacheSize)
	return &Analyzer{
		cfg:         cfg,
		set:         set,
		extractor:   archive.NewExtractor(cfg.SupportedArchives),
		store:       st,
		workspaceID: workspaceID,
		ruleIDs:     ruleIDs,
		hostIDs:     make(map[types.Host]int64),
		submit:      func(types.FileRef) bool { return false },
		log:         log,
		unmatched:   cache,
	}
}

// SetSubmit wires the coordinator's work queue. Call it before the first
// Analyze; while unset, archive members are analyzed inline.
func (a *Analyzer) SetSubmit(s Submit) { a.submit = s }

// RegisterHost maps an enumerated host to its database id. Called by the
// coordinator before the host's driver starts emitting.
func (a *Analyzer) RegisterHost(h types.Host, id int64) {
	a.hostMu.Lock()
	defer a.hostMu.Unlock()
	a.hostIDs[h] = id
}

func (a *Analyzer) hostID(h types.Host) (int64, bool) {
	a.hostMu.RLock()
	defer a.hostMu.RUnlock()
	id, ok := a.hostIDs[h]
	return id, ok
}

// Stats returns a snapshot of the run counters.
func (a *Analyzer) Stats() StatsSnapshot { return a.stats.snapshot() }

// Analyze runs the full decision procedure for one reference. Per-file
// errors are logged and swallowed; only unrecoverable store loss is
// returned.
func (a *Analyzer) Analyze(ctx context.Context, ref types.FileRef) error {
	a.stats.Inspected.Add(1)

	isArchive := a.extractor.IsArchive(ref.Name())

	// Size gate. The fetcher is never invoked for gated files.
	limit := a.cfg.MaxFileSizeBytes
	if isArchive {
		limit = a.cfg.MaxArchiveSizeBytes
	}
	if limit > 0 && ref.Size > limit {
		a.stats.Gated.Add(1)
		return a.analyzeGated(ctx, ref)
	}

	content, err := a.fetch(ctx, ref)
	if err != nil {
		a.stats.Failed.Add(1)
		a.logRef(ref, "fetching file failed", err)
		return nil
	}

	sum := sha256.Sum256(content)
	sha := hex.EncodeToString(sum[:])

	if _, dup := a.unmatched.Get(sha); dup {
		a.stats.Deduplicated.Add(1)
		return nil
	}

	type outcome struct {
		file *types.File
		dup  bool
	}
	// The single-flight group guarantees at most one worker computes and
	// inserts a given hash; concurrent observers wait for its result and
	// fall through to path insertion below.
	executed := false
	key := fmt.Sprintf("%d:%s", a.workspaceID, sha)
	v, err, _ := a.group.Do(key, func() (interface{}, error) {
		executed = true
		existing, err := a.store.LookupFile(ctx, a.workspaceID, sha)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return outcome{file: existing, dup: true}, nil
		}
		file, err := a.classify(ctx, ref, content, sha, isArchive)
		if err != nil {
			return nil, err
		}
		return outcome{file: file}, nil
	})
	if err != nil {
		if isFatal(err) {
			return err
		}
		a.stats.Failed.Add(1)
		a.logRef(ref, "analyzing file failed", err)
		return nil
	}

	out := v.(outcome)
	switch {
	case out.file == nil:
		// Nothing matched; remember the hash so duplicates skip the
		// content pass entirely. Containers are exempt: their members
		// must be re-walked so every observation records its paths.
		if !isArchive {
			a.unmatched.Add(sha, struct{}{})
		}
	case !executed || out.dup:
		// Known content, observed again here: a cheap path-only insert
		// carrying the original matched rule. The executing caller's own
		// path was already written during classification.
		a.stats.Deduplicated.Add(1)
		if err := a.addPath(ctx, ref, out.file.ID, out.file.RuleID); err != nil {
			if isFatal(err) {
				return err
			}
			a.logRef(ref, "recording path failed", err)
		}
	}
	return nil
}

// classify performs steps 4-8 of the decision procedure for content that
// is new to the workspace. It returns the stored file, or nil when no rule
// matched. The singleflight group guarantees a single caller per hash.
func (a *Analyzer) classify(ctx context.Context, ref types.FileRef, content []byte, sha string, isArchive bool) (*types.File, error) {
	if isArchive {
		return a.classifyArchive(ctx, ref, content, sha)
	}

	rule, ok := a.matchFile(ref, content)
	if !ok {
		return nil, nil
	}
	return a.record(ctx, ref, content, sha, rule)
}

// matchFile applies the content, full-path and file-name views in that
// order; the first successful view decides.
func (a *Analyzer) matchFile(ref types.FileRef, content []byte) (*rules.Rule, bool) {
	if r, _, ok := rules.Match(a.set.View(types.LocationFileContent), content); ok {
		return r, true
	}
	return a.matchName(ref)
}

// matchName applies the full-path view to the observable path (archive
// chain included), then the file-name view to the basename.
func (a *Analyzer) matchName(ref types.FileRef) (*rules.Rule, bool) {
	if r, _, ok := rules.Match(a.set.View(types.LocationFullPath), []byte(ref.ObservablePath())); ok {
		return r, true
	}
	if r, _, ok := rules.Match(a.set.View(types.LocationFileName), []byte(ref.Name())); ok {
		return r, true
	}
	return nil, false
}

// classifyArchive handles a container within the size gate: name and path
// rules still apply to the container itself so it survives as a finding,
// its bytes are never content-matched, and every member re-enters the
// pipeline with an extended archive chain.
func (a *Analyzer) classifyArchive(ctx context.Context, ref types.FileRef, content []byte, sha string) (*types.File, error) {
	if ref.Depth() >= a.cfg.MaxArchiveDepth {
		a.stats.Skipped.Add(1)
		a.logRef(ref, "skipping container", archive.ErrTooDeep)
		return nil, nil
	}

	var file *types.File
	if rule, ok := a.matchName(ref); ok {
		f, err := a.record(ctx, ref, content, sha, rule)
		if err != nil {
			return nil, err
		}
		file = f
	}

	err := a.extractor.Extract(ref.Name(), content, func(m archive.Member) error {
		member := ref.Member(m.Path, m.Size, memberFetch(m))
		if !a.submit(member) {
			// Queue full: analyze inline rather than block. Bounded by
			// the configured archive depth.
			if err := a.Analyze(ctx, member); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if isFatal(err) {
			return nil, err
		}
		a.stats.Skipped.Add(1)
		a.logRef(ref, "extracting container failed", err)
	}
	return file, nil
}

// analyzeGated handles files above the size threshold: name and path rules
// only, a content-less file row, no hashing. Re-observations reuse the
// stored row so resumed runs stay idempotent.
func (a *Analyzer) analyzeGated(ctx context.Context, ref types.FileRef) error {
	rule, ok := a.matchName(ref)
	if !ok {
		return nil
	}

	hostID, ok := a.hostID(ref.Host)
	if !ok {
		a.logRef(ref, "recording path failed", fmt.Errorf("unregistered host %s", ref.Host))
		return nil
	}

	existing, err := a.store.LookupGatedFile(ctx, a.workspaceID, hostID, ref.FullPath, ref.DisplayChain())
	if err != nil {
		if isFatal(err) {
			return err
		}
		a.logRef(ref, "looking up gated file failed", err)
		return nil
	}
	if existing != nil {
		return nil
	}

	file, err := a.store.UpsertFileContent(ctx, a.workspaceID, store.UpsertFile{
		Size:     ref.Size,
		Category: rule.Category,
		RuleID:   a.ruleIDs[rule],
	})
	if err != nil {
		if isFatal(err) {
			return err
		}
		a.logRef(ref, "recording gated file failed", err)
		return nil
	}
	a.stats.Matched.Add(1)
	if err := a.addPath(ctx, ref, file.ID, a.ruleIDs[rule]); err != nil {
		if isFatal(err) {
			return err
		}
		a.logRef(ref, "recording path failed", err)
	}
	return nil
}

// record persists a first sighting: the deduplicated file row with its
// bytes plus one path row for this observation.
func (a *Analyzer) record(ctx context.Context, ref types.FileRef, content []byte, sha string, rule *rules.Rule) (*types.File, error) {
	file, err := a.store.UpsertFileContent(ctx, a.workspaceID, store.UpsertFile{
		SHA256:   sha,
		Size:     int64(len(content)),
		Content:  content,
		MimeHint: http.DetectContentType(content),
		Category: rule.Category,
		RuleID:   a.ruleIDs[rule],
	})
	if err != nil {
		return nil, err
	}
	a.stats.Matched.Add(1)
	a.log.Info("match",
		slog.String("host", ref.Host.String()),
		slog.String("path", ref.ObservablePath()),
		slog.String("category", rule.Category),
		slog.String("relevance", rule.Relevance.String()))

	if err := a.addPath(ctx, ref, file.ID, a.ruleIDs[rule]); err != nil {
		return nil, err
	}
	return file, nil
}

func (a *Analyzer) addPath(ctx context.Context, ref types.FileRef, fileID, ruleID int64) error {
	hostID, ok := a.hostID(ref.Host)
	if !ok {
		return fmt.Errorf("unregistered host %s", ref.Host)
	}
	return a.store.AddPathRecord(ctx, store.AddPath{
		HostID:       hostID,
		FileID:       fileID,
		FullPath:     ref.FullPath,
		ArchiveChain: ref.DisplayChain(),
		RuleID:       ruleID,
	})
}

// fetch invokes the reference's byte fetcher with bounded retries for
// transient transport failures.
func (a *Analyzer) fetch(ctx context.Context, ref types.FileRef) ([]byte, error) {
	const attempts = 3
	backoff := 200 * time.Millisecond

	var err error
	for i := 0; i < attempts; i++ {
		var content []byte
		content, err = ref.Fetch(ctx)
		if err == nil {
			return content, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		backoff *= 2
	}
	return nil, err
}

func memberFetch(m archive.Member) types.FetchFunc {
	return func(context.Context) ([]byte, error) {
		rc, err := m.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
}

func (a *Analyzer) logRef(ref types.FileRef, msg string, err error) {
	a.log.Warn(msg,
		slog.String("host", ref.Host.String()),
		slog.String("path", ref.FullPath),
		slog.String("archive_chain", ref.DisplayChain()),
		slog.Any("error", err))
}

// isFatal reports whether the error must abort the worker. Only
// unrecoverable database loss propagates past a single file.
func isFatal(err error) bool {
	return store.IsFatal(err)
}
