package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/educa-hub/pei-hub/internal/domain/pei"
	"github.com/educa-hub/pei-hub/internal/domain/shared"
	"github.com/educa-hub/pei-hub/pkg/logger"
)

// DefaultKeyPrefix namespaces plan snapshots.
const DefaultKeyPrefix = "pei:"

// GatewayConfig configures a Gateway.
type GatewayConfig struct {
	// KeyPrefix is prepended to plan ids. Default: "pei:".
	KeyPrefix string

	// Logger receives warnings about undecodable entries.
	Logger *slog.Logger
}

// Gateway implements pei.Repository on top of a Store.
type Gateway struct {
	store  Store
	prefix string
	logger *slog.Logger
}

var _ pei.Repository = (*Gateway)(nil)

// NewGateway creates a Gateway.
func NewGateway(store Store, cfg GatewayConfig) *Gateway {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultKeyPrefix
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Gateway{
		store:  store,
		prefix: cfg.KeyPrefix,
		logger: cfg.Logger.With(logger.Component("kv_gateway"), logger.Backend(BackendName(store))),
	}
}

// Key returns the storage key of a plan id.
func (g *Gateway) Key(id string) string {
	return g.prefix + id
}

// Load implements pei.Repository.
func (g *Gateway) Load(ctx context.Context, id string) (pei.PEI, error) {
	raw, err := g.store.Get(ctx, g.Key(id))
	if errors.Is(err, ErrKeyNotFound) {
		return pei.PEI{}, fmt.Errorf("load %s: %w", id, pei.ErrPEINotFound)
	}
	if err != nil {
		return pei.PEI{}, shared.WrapError("pei", "Load", shared.ErrStorage, "failed to read plan", err)
	}

	p, err := decode(raw)
	if err != nil {
		return pei.PEI{}, shared.WrapError("pei", "Load", shared.ErrStorage, "failed to decode plan", err)
	}
	return p, nil
}

// Save implements pei.Repository.
func (g *Gateway) Save(ctx context.Context, p pei.PEI) error {
	if p.ID == "" {
		return shared.NewDomainError("pei", "Save", shared.ErrInvalidID, "plan has no id")
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return shared.WrapError("pei", "Save", shared.ErrStorage, "failed to encode plan", err)
	}
	if err := g.store.Set(ctx, g.Key(p.ID), raw); err != nil {
		return shared.WrapError("pei", "Save", shared.ErrStorage, "failed to write plan", err)
	}
	return nil
}

// ListByStudent implements pei.Repository.
// Entries that cannot be decoded are skipped and logged.
func (g *Gateway) ListByStudent(ctx context.Context, studentID string) ([]pei.PEI, error) {
	entries, err := g.store.ScanPrefix(ctx, g.prefix)
	if err != nil {
		return nil, shared.WrapError("pei", "ListByStudent", shared.ErrStorage, "failed to scan plans", err)
	}

	plans := make([]pei.PEI, 0)
	for _, e := range entries {
		p, err := decode(e.Value)
		if err != nil {
			g.logger.Warn("skipping malformed plan entry", "key", e.Key, "error", err)
			continue
		}
		if p.StudentID == studentID {
			plans = append(plans, p)
		}
	}

	sort.SliceStable(plans, func(i, j int) bool {
		return plans[i].CreatedDate.After(plans[j].CreatedDate)
	})
	return plans, nil
}

// Delete implements pei.Repository.
func (g *Gateway) Delete(ctx context.Context, id string) error {
	err := g.store.Delete(ctx, g.Key(id))
	if errors.Is(err, ErrKeyNotFound) {
		return fmt.Errorf("delete %s: %w", id, pei.ErrPEINotFound)
	}
	if err != nil {
		return shared.WrapError("pei", "Delete", shared.ErrStorage, "failed to delete plan", err)
	}
	return nil
}

func decode(raw []byte) (pei.PEI, error) {
	var p pei.PEI
	if err := json.Unmarshal(raw, &p); err != nil {
		return pei.PEI{}, err
	}
	if p.ID == "" {
		return pei.PEI{}, errors.New("snapshot has no id")
	}
	p = p.Normalize()
	if err := p.Validate(); err != nil {
		return pei.PEI{}, err
	}
	return p, nil
}
