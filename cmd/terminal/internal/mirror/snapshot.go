package mirror

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/shubham-shewale/marketfeed/pkg/models"
)

// Snapshots fetches the mirrored tick of each symbol with one MGET.
// Missing, expired or unreadable entries are skipped.
func (m *Mirror) Snapshots(ctx context.Context, symbols []string) ([]*models.Tick, error) {
	if len(symbols) == 0 {
		return nil, nil
	}

	keys := make([]string, len(symbols))
	for i, sym := range symbols {
		keys[i] = Key(sym)
	}

	results, err := m.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget snapshots: %w", err)
	}

	var ticks []*models.Tick
	for i, val := range results {
		payload, ok := val.(string)
		if !ok || payload == "" {
			continue
		}
		var tick models.Tick
		if err := json.Unmarshal([]byte(payload), &tick); err != nil {
			m.logger.Warn("Skipping unreadable snapshot", zap.String("key", keys[i]), zap.Error(err))
			continue
		}
		if err := tick.Validate(); err != nil {
			m.logger.Warn("Skipping invalid snapshot", zap.String("key", keys[i]), zap.Error(err))
			continue
		}
		ticks = append(ticks, &tick)
	}
	return ticks, nil
}

// Warm loads the mirrored ticks for symbols into sink and returns how many
// were applied.
func (m *Mirror) Warm(ctx context.Context, sink TickSink, symbols []string) (int, error) {
	ticks, err := m.Snapshots(ctx, symbols)
	if err != nil {
		return 0, err
	}
	for _, tick := range ticks {
		sink.UpdateTick(tick)
	}
	m.logger.Info("Warm start", zap.Int("requested", len(symbols)), zap.Int("applied", len(ticks)))
	return len(ticks), nil
}
