package room

import (
	"context"
	"sync"
	"time"

	"wordclash-backend/internal/config"
	"wordclash-backend/internal/game"
	"wordclash-backend/internal/logging"
)

// CleanupService reaps rooms that outlived their usefulness. Rooms destroy
// themselves when the last player is removed; the sweeper covers the rest:
// rooms idle past the inactivity timeout and finished rooms nobody resets.
type CleanupService struct {
	manager *Manager
	cfg     config.RoomConfig
	logger  *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool
}

func NewCleanupService(manager *Manager, cfg config.RoomConfig) *CleanupService {
	ctx, cancel := context.WithCancel(context.Background())
	return &CleanupService{
		manager: manager,
		cfg:     cfg,
		logger:  logging.CreateLogger("room.cleanup"),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the periodic sweep. Idempotent.
func (cs *CleanupService) Start() {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.running {
		return
	}
	cs.running = true
	cs.wg.Add(1)
	go cs.sweepLoop()
	cs.logger.Info("cleanup service started",
		"interval", cs.cfg.CleanupInterval.String(),
		"inactiveTimeout", cs.cfg.InactiveTimeout.String(),
		"finishedTimeout", cs.cfg.FinishedTimeout.String())
}

// Stop halts the sweep and waits for an in-flight pass to finish.
func (cs *CleanupService) Stop() {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if !cs.running {
		return
	}
	cs.running = false
	cs.cancel()
	cs.wg.Wait()
	cs.logger.Info("cleanup service stopped")
}

func (cs *CleanupService) sweepLoop() {
	defer cs.wg.Done()
	ticker := time.NewTicker(cs.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-cs.ctx.Done():
			return
		case <-ticker.C:
			cs.Sweep()
		}
	}
}

// Sweep destroys every expired room and returns how many it reaped.
func (cs *CleanupService) Sweep() int {
	start := time.Now()
	reaped := 0
	for _, r := range cs.manager.Rooms() {
		state, lastActivity, ok := r.IdleInfo()
		if !ok {
			continue
		}
		reason, expired := cs.expired(state, lastActivity)
		if !expired {
			continue
		}
		cs.logger.Info("reaping room", "roomCode", r.Code(),
			"state", string(state), "idle", time.Since(lastActivity).String())
		r.Destroy(reason)
		reaped++
	}
	if reaped > 0 {
		cs.logger.Info("sweep finished", "reaped", reaped,
			"duration", time.Since(start).String())
	}
	return reaped
}

// expired decides whether a room may be reaped. Finished rooms get the
// shorter timeout: a group that wants a rematch resets well within it.
func (cs *CleanupService) expired(state game.RoomState, lastActivity time.Time) (string, bool) {
	idle := time.Since(lastActivity)
	if state == game.StateFinished && idle > cs.cfg.FinishedTimeout {
		return "finished and idle", true
	}
	if idle > cs.cfg.InactiveTimeout {
		return "inactive", true
	}
	return "", false
}
