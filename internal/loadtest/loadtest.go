// Package loadtest drives a cache with concurrent agents.
//
// Each agent works from its own, periodically refreshed copy of the tree, so
// many of its operations name nodes another agent has already moved or
// removed. The cache must reject those cleanly; after the run the tree has to
// pass validation.
package loadtest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/marksync/marksync/internal/cache"
	"github.com/marksync/marksync/internal/tree"
)

// Op names one kind of operation an agent performs.
type Op string

const (
	OpRead           Op = "read"
	OpCreateBookmark Op = "createBookmark"
	OpUpdateBookmark Op = "updateBookmark"
	OpRemoveBookmark Op = "removeBookmark"
	OpCreateFolder   Op = "createFolder"
	OpMoveFolder     Op = "moveFolder"
	OpOrderFolder    Op = "orderFolder"
	OpRemoveFolder   Op = "removeFolder"
)

// mix is the weighted operation distribution, read-heavy like a sync client.
var mix = []Op{
	OpRead, OpRead, OpRead, OpRead,
	OpCreateBookmark, OpCreateBookmark, OpCreateBookmark,
	OpUpdateBookmark, OpUpdateBookmark,
	OpRemoveBookmark,
	OpCreateFolder,
	OpMoveFolder, OpMoveFolder,
	OpOrderFolder,
	OpRemoveFolder,
}

// Config controls a run.
type Config struct {
	// Agents is the number of concurrent goroutines.
	Agents int

	// OpsPerAgent is how many operations each agent performs.
	OpsPerAgent int

	// Seed makes the operation sequence reproducible.
	Seed int64
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{Agents: 50, OpsPerAgent: 200, Seed: 42}
}

// LatencyStats captures performance metrics from a run.
type LatencyStats struct {
	Min  time.Duration
	Max  time.Duration
	Mean time.Duration
	P50  time.Duration // Median
	P95  time.Duration
	P99  time.Duration

	TotalOps int

	// Rejected counts operations the cache refused with a *cache.Error.
	Rejected int

	// Errors counts any other failure.
	Errors int

	ByOp map[Op]int
}

// Populate fills the root of c with folders holding bookmarksPerFolder
// bookmarks each. Folder i is nested under folder i/2 so the tree has depth.
func Populate(ctx context.Context, c *cache.Cache, folders, bookmarksPerFolder int) error {
	ids := []tree.ID{tree.RootID}
	for i := 0; i < folders; i++ {
		parent := ids[len(ids)/2]
		id, err := c.CreateFolder(ctx, cache.FolderInput{ParentID: parent, Title: fmt.Sprintf("Folder %d", i)})
		if err != nil {
			return fmt.Errorf("failed to create folder %d: %w", i, err)
		}
		ids = append(ids, id)
		for j := 0; j < bookmarksPerFolder; j++ {
			_, err := c.CreateBookmark(ctx, cache.BookmarkInput{
				ParentID: id,
				URL:      fmt.Sprintf("https://example.com/%d/%d", i, j),
				Title:    fmt.Sprintf("Bookmark %d.%d", i, j),
			})
			if err != nil {
				return fmt.Errorf("failed to create bookmark %d.%d: %w", i, j, err)
			}
		}
	}
	return nil
}

// Run executes cfg against c and returns aggregated statistics. The returned
// error is non-nil only if the tree fails validation afterwards.
func Run(ctx context.Context, c *cache.Cache, cfg Config) (*LatencyStats, error) {
	if cfg.Agents <= 0 || cfg.OpsPerAgent <= 0 {
		return nil, errors.New("agents and ops per agent must be positive")
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		samples []sample
	)
	for i := 0; i < cfg.Agents; i++ {
		wg.Add(1)
		go func(agentID int) {
			defer wg.Done()
			a := &agent{
				id:    agentID,
				cache: c,
				rng:   rand.New(rand.NewSource(cfg.Seed + int64(agentID))),
			}
			got := a.run(ctx, cfg.OpsPerAgent)

			mu.Lock()
			samples = append(samples, got...)
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	stats := computeLatencyStats(samples)

	t, err := c.GetBookmarksTree(ctx)
	if err != nil {
		return stats, err
	}
	if err := t.Validate(); err != nil {
		return stats, fmt.Errorf("tree invalid after run: %w", err)
	}
	if t.HighestID() > c.HighestID() {
		return stats, fmt.Errorf("tree holds id %s above the cache's highest id %s", t.HighestID(), c.HighestID())
	}
	return stats, nil
}

type sample struct {
	op      Op
	elapsed time.Duration
	err     error
}

type agent struct {
	id    int
	cache *cache.Cache
	rng   *rand.Rand

	folders   []tree.ID
	bookmarks []tree.ID
	view      *tree.Tree
}

func (a *agent) run(ctx context.Context, ops int) []sample {
	if err := a.refresh(ctx); err != nil {
		return []sample{{op: OpRead, err: err}}
	}
	out := make([]sample, 0, ops)
	for i := 0; i < ops; i++ {
		op := mix[a.rng.Intn(len(mix))]
		start := time.Now()
		err := a.do(ctx, op, i)
		out = append(out, sample{op: op, elapsed: time.Since(start), err: err})
	}
	return out
}

// refresh replaces the agent's view with a fresh copy of the tree.
func (a *agent) refresh(ctx context.Context) error {
	t, err := a.cache.GetBookmarksTree(ctx)
	if err != nil {
		return err
	}
	a.view = t
	a.folders = append(a.folders[:0], tree.RootID)
	a.bookmarks = a.bookmarks[:0]
	t.Traverse(func(n tree.Node, _ *tree.Folder) {
		if n.Kind() == tree.KindFolder {
			a.folders = append(a.folders, tree.IDOf(n))
		} else {
			a.bookmarks = append(a.bookmarks, tree.IDOf(n))
		}
	})
	return nil
}

func (a *agent) folder() tree.ID {
	return a.folders[a.rng.Intn(len(a.folders))]
}

// bookmark returns a known bookmark id, or an id nothing has used yet when
// the agent knows none.
func (a *agent) bookmark() tree.ID {
	if len(a.bookmarks) == 0 {
		return a.cache.HighestID() + 1
	}
	return a.bookmarks[a.rng.Intn(len(a.bookmarks))]
}

func (a *agent) do(ctx context.Context, op Op, seq int) error {
	c := a.cache
	switch op {
	case OpRead:
		return a.refresh(ctx)

	case OpCreateBookmark:
		id, err := c.CreateBookmark(ctx, cache.BookmarkInput{
			ParentID: a.folder(),
			URL:      fmt.Sprintf("https://agent%d.example.com/%d", a.id, seq),
			Title:    fmt.Sprintf("agent %d #%d", a.id, seq),
		})
		if err == nil {
			a.bookmarks = append(a.bookmarks, id)
		}
		return err

	case OpUpdateBookmark:
		in := cache.BookmarkInput{
			ID:    a.bookmark(),
			URL:   fmt.Sprintf("https://agent%d.example.com/%d/moved", a.id, seq),
			Title: fmt.Sprintf("agent %d #%d (edited)", a.id, seq),
		}
		if b, ok := a.view.FindBookmark(in.ID); ok {
			in.ParentID = b.ParentID
		}
		if a.rng.Intn(2) == 0 {
			in.ParentID = a.folder()
		}
		return c.UpdateBookmark(ctx, in)

	case OpRemoveBookmark:
		return c.RemoveBookmark(ctx, a.bookmark())

	case OpCreateFolder:
		id, err := c.CreateFolder(ctx, cache.FolderInput{
			ParentID: a.folder(),
			Title:    fmt.Sprintf("agent %d folder %d", a.id, seq),
		})
		if err == nil {
			a.folders = append(a.folders, id)
		}
		return err

	case OpMoveFolder:
		id := a.folder()
		title := fmt.Sprintf("agent %d moved %d", a.id, seq)
		if f, ok := a.view.FindFolder(id); ok {
			title = f.Title
		}
		return c.UpdateFolder(ctx, cache.FolderInput{ID: id, ParentID: a.folder(), Title: title})

	case OpOrderFolder:
		f, ok := a.view.FindFolder(a.folder())
		if !ok {
			return nil
		}
		order := make([]cache.OrderItem, len(f.Children))
		for i, child := range f.Children {
			order[i] = cache.OrderItem{Type: child.Kind(), ID: tree.IDOf(child)}
		}
		slices.Reverse(order)
		return c.OrderFolder(ctx, f.ID, order)

	case OpRemoveFolder:
		// Leave the root and the first level alone so the tree keeps some
		// shape for the other agents.
		id := a.folder()
		if f, ok := a.view.FindFolder(id); !ok || f.ParentID == tree.RootID || id == tree.RootID {
			return nil
		}
		return c.RemoveFolder(ctx, id)
	}
	return fmt.Errorf("unknown op %q", op)
}

// computeLatencyStats calculates statistics from the samples.
func computeLatencyStats(samples []sample) *LatencyStats {
	stats := &LatencyStats{ByOp: make(map[Op]int)}
	if len(samples) == 0 {
		return stats
	}

	sorted := make([]time.Duration, len(samples))
	var sum time.Duration
	for i, s := range samples {
		sorted[i] = s.elapsed
		sum += s.elapsed
		stats.ByOp[s.op]++

		var rejected *cache.Error
		switch {
		case s.err == nil:
		case errors.As(s.err, &rejected):
			stats.Rejected++
		default:
			stats.Errors++
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	stats.Min = sorted[0]
	stats.Max = sorted[len(sorted)-1]
	stats.Mean = sum / time.Duration(len(sorted))
	stats.P50 = sorted[len(sorted)*50/100]
	stats.P95 = sorted[len(sorted)*95/100]
	stats.P99 = sorted[len(sorted)*99/100]
	stats.TotalOps = len(sorted)
	return stats
}

// PrintStats formats the statistics to w.
func (s *LatencyStats) PrintStats(w io.Writer) {
	fmt.Fprintf(w, "Latency Statistics:\n")
	fmt.Fprintf(w, "  Total Ops:     %d\n", s.TotalOps)
	fmt.Fprintf(w, "  Rejected:      %d\n", s.Rejected)
	fmt.Fprintf(w, "  Errors:        %d\n", s.Errors)
	fmt.Fprintf(w, "  Min:           %v\n", s.Min)
	fmt.Fprintf(w, "  P50 (Median):  %v\n", s.P50)
	fmt.Fprintf(w, "  Mean:          %v\n", s.Mean)
	fmt.Fprintf(w, "  P95:           %v\n", s.P95)
	fmt.Fprintf(w, "  P99:           %v\n", s.P99)
	fmt.Fprintf(w, "  Max:           %v\n", s.Max)

	ops := make([]string, 0, len(s.ByOp))
	for op := range s.ByOp {
		ops = append(ops, string(op))
	}
	sort.Strings(ops)
	for _, op := range ops {
		fmt.Fprintf(w, "  %-15s %d\n", op+":", s.ByOp[Op(op)])
	}
}
