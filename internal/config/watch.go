package config

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// ApplyFunc pushes a businesses config into the running system.
type ApplyFunc func(ctx context.Context, cfg *BusinessesConfig) error

// businessesWatcher tracks the digest of the last businesses.yaml that was
// applied successfully.
type businessesWatcher struct {
	path    string
	apply   ApplyFunc
	logger  zerolog.Logger
	applied [sha256.Size]byte
}

// WatchBusinesses applies businesses.yaml once, then polls it every interval
// and re-applies it whenever its content changes. A failed initial apply is
// returned. A failed re-apply is logged and retried on the next tick, since
// the digest only advances after apply succeeds.
func WatchBusinesses(ctx context.Context, path string, interval time.Duration, logger zerolog.Logger, apply ApplyFunc) error {
	if path == "" {
		path = "configs/businesses.yaml"
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	w := &businessesWatcher{
		path:   path,
		apply:  apply,
		logger: logger.With().Str("path", path).Logger(),
	}
	if _, err := w.sync(ctx); err != nil {
		return err
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				changed, err := w.sync(ctx)
				if err != nil {
					w.logger.Error().Err(err).Msg("businesses config reload failed")
					continue
				}
				if changed {
					w.logger.Info().Msg("businesses config reloaded")
				}
			}
		}
	}()
	return nil
}

// sync reads the file and applies it when its digest differs from the last
// applied one. Touching the file without editing it is a no-op.
func (w *businessesWatcher) sync(ctx context.Context) (bool, error) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return false, fmt.Errorf("read businesses config: %w", err)
	}
	sum := sha256.Sum256(data)
	if sum == w.applied {
		return false, nil
	}
	cfg, err := ParseBusinessesConfig(data)
	if err != nil {
		return false, err
	}
	if w.apply != nil {
		if err := w.apply(ctx, cfg); err != nil {
			return false, fmt.Errorf("apply businesses config: %w", err)
		}
	}
	w.applied = sum
	w.logger.Debug().Str("config", cfg.String()).Hex("sha256", sum[:8]).Msg("businesses config applied")
	return true, nil
}
