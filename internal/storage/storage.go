// Package storage holds the sink contract shared by the relational and lake
// writers and the registry through which backends make themselves available.
//
// Backends register a Factory at init time; importing storage/all wires every
// built-in backend:
//
//	import _ "github.com/YogovAI/Product-Development-Yogov/internal/storage/all"
//
//	sink, err := storage.Open(ctx, job, log)
package storage

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/YogovAI/Product-Development-Yogov/internal/batch"
	"github.com/YogovAI/Product-Development-Yogov/internal/config"
	"github.com/YogovAI/Product-Development-Yogov/internal/etlerr"
	"github.com/YogovAI/Product-Development-Yogov/internal/schema"
)

// Kind is the closed set of sink kinds.
type Kind int

const (
	KindRelational Kind = iota + 1
	KindLake
)

func (k Kind) String() string {
	switch k {
	case KindRelational:
		return "relational"
	case KindLake:
		return "lake"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind reads target.kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "relational", "rdbms", "sql":
		return KindRelational, nil
	case "lake", "datalake", "data_lake":
		return KindLake, nil
	}
	return 0, etlerr.New(etlerr.Config, "storage", "unsupported target kind %q", s)
}

// Sink receives the processed batches of one run.
//
// Bootstrap is called once, with the resolved table, before the first Write.
// Commit finalises the run's output after the last Write. Close releases
// every resource and is called exactly once whatever happened before.
type Sink interface {
	Bootstrap(ctx context.Context, t schema.Table) error
	Write(ctx context.Context, b *batch.Batch) (int64, error)
	Commit(ctx context.Context) error
	Close() error
	// Target describes where rows land (a table name or an object URL).
	Target() string
}

// Factory opens a sink for a job.
type Factory func(ctx context.Context, job *config.Job, log zerolog.Logger) (Sink, error)

var (
	mu        sync.RWMutex
	factories = map[Kind]Factory{}
)

// Register registers (or replaces) the factory for a kind.
func Register(k Kind, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[k] = f
}

// Kinds lists the registered kinds.
func Kinds() []Kind {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]Kind, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// Open builds the sink for job.Target.
func Open(ctx context.Context, job *config.Job, log zerolog.Logger) (Sink, error) {
	if job.Target == nil {
		return nil, etlerr.New(etlerr.Config, "storage", "missing required configuration key: target")
	}
	k, err := ParseKind(job.Target.Kind)
	if err != nil {
		return nil, err
	}
	mu.RLock()
	f, ok := factories[k]
	mu.RUnlock()
	if !ok {
		return nil, etlerr.New(etlerr.Config, "storage", "no sink registered for target kind %s", k)
	}
	return f(ctx, job, log)
}
