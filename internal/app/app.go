// Package app wires the Session Binder, Applied-Input Pipeline,
// Simulation Kernel, Broadcaster, and Replay Recorder into a runnable
// process: one match per Run call, started by a thin cmd/server main.
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"duelmatch/server/internal/broadcast"
	"duelmatch/server/internal/config"
	"duelmatch/server/internal/kernel"
	"duelmatch/server/internal/pipeline"
	"duelmatch/server/internal/replay"
	"duelmatch/server/internal/session"
	"duelmatch/server/internal/transport"
	"duelmatch/server/internal/transport/ws"
	"duelmatch/server/internal/wire"
	"duelmatch/server/logging"
	loggingsinks "duelmatch/server/logging/sinks"
	"duelmatch/server/logging/lifecycle"
)

// Deps lets tests substitute an in-memory transport and logger; the
// production entry point (cmd/server) leaves everything nil and gets the
// real WebSocket transport and console sink.
type Deps struct {
	Transport transport.Transport
	Publisher logging.Publisher
	Seed      string
	MatchID   string
}

// Run executes exactly one match end to end: binds two sessions, runs
// the fixed-timestep tick loop until completion or disconnect, and
// persists the replay artifact. It returns once the match has ended.
func Run(ctx context.Context, cfg config.Config, deps Deps) error {
	if cfg.SnapshotRateHz != cfg.TickRateHz {
		return fmt.Errorf("app: snapshot_rate_hz (%d) must equal tick_rate_hz (%d) in this phase", cfg.SnapshotRateHz, cfg.TickRateHz)
	}

	seed := deps.Seed
	if seed == "" {
		seed = randomSeed()
	}
	matchID := deps.MatchID
	if matchID == "" {
		matchID = randomMatchID()
	}

	pub := deps.Publisher
	var router *logging.Router
	var jsonLogFile *os.File
	if pub == nil {
		logCfg := logging.DefaultConfig(matchID)
		namedSinks := []logging.NamedSink{
			{Name: "console", Sink: loggingsinks.NewConsoleSink(os.Stdout, logCfg.Console)},
		}
		if cfg.LogJSONPath != "" {
			f, err := os.OpenFile(cfg.LogJSONPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return fmt.Errorf("app: open json log %s: %w", cfg.LogJSONPath, err)
			}
			jsonLogFile = f
			logCfg.EnabledSinks = append(logCfg.EnabledSinks, "json")
			namedSinks = append(namedSinks, logging.NamedSink{
				Name: "json",
				Sink: loggingsinks.NewJSON(f, logCfg.JSON.FlushInterval),
			})
		}
		r, err := logging.NewRouter(nil, logCfg, namedSinks)
		if err != nil {
			return fmt.Errorf("app: construct logging router: %w", err)
		}
		router = r
		pub = r
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if cerr := router.Close(closeCtx); cerr != nil {
				log.Printf("app: failed to close logging router: %v", cerr)
			}
			if jsonLogFile != nil {
				if cerr := jsonLogFile.Close(); cerr != nil {
					log.Printf("app: failed to close json log: %v", cerr)
				}
			}
		}()
	}

	tr := deps.Transport
	if tr == nil {
		wsTransport := ws.New(ws.Config{})
		mux := http.NewServeMux()
		mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
			peerID := r.URL.Query().Get("peer")
			if peerID == "" {
				http.Error(w, "missing peer", http.StatusBadRequest)
				return
			}
			if err := wsTransport.Upgrade(w, r, peerID); err != nil {
				log.Printf("app: upgrade failed: %v", err)
			}
		})
		srv := &http.Server{Addr: cfg.ListenAddr, Handler: mux}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("app: listen: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		defer g.Wait()

		tr = wsTransport
	}

	idAssigner := session.DefaultIDAssigner
	if cfg.TestMode {
		idAssigner = func(bindIndex int) int { return cfg.TestPlayerIDs[bindIndex] }
	}

	binder := session.New(tr, pub, session.Config{
		ConnectTimeout: cfg.ConnectTimeout,
		IDAssigner:     idAssigner,
	})

	bound, err := binder.Bind(ctx)
	if err != nil {
		return err
	}

	world, err := kernel.Construct(seed, cfg.TickRateHz)
	if err != nil {
		return fmt.Errorf("app: construct world: %w", err)
	}

	spawnOrder := []int{bound[0].PlayerID, bound[1].PlayerID}
	entityByPlayer := make(map[int]uint64, 2)
	for _, playerID := range spawnOrder {
		entityByPlayer[playerID] = world.SpawnCharacter(playerID)
	}
	baseline := world.Baseline()

	pipe := pipeline.New(pipeline.Config{
		MaxFutureTicks:        cfg.MaxFutureTicks,
		InputRateLimitPerTick: cfg.InputRateLimitPerTick(),
	}, pub)
	for _, playerID := range spawnOrder {
		pipe.RegisterSession(playerID, cfg.InputLeadTicks)
	}

	caster := broadcast.New(tr, pipe, cfg.InputLeadTicks)
	for _, s := range bound {
		caster.BindPeer(s.PlayerID, s.PeerID)
	}

	rec := replay.New(pub, cfg.ArtifactDir, matchID)
	players := make([]replay.PlayerEntity, 0, 2)
	for _, playerID := range spawnOrder {
		players = append(players, replay.PlayerEntity{PlayerID: playerID, EntityID: entityByPlayer[playerID]})
	}
	testIDs := []int(nil)
	if cfg.TestMode {
		testIDs = []int{cfg.TestPlayerIDs[0], cfg.TestPlayerIDs[1]}
	}
	rec.Init(seed, cfg.TickRateHz, spawnOrder, players, baseline, cfg.TestMode, testIDs)

	lifecycle.MatchStarted(ctx, pub, lifecycle.MatchStartedPayload{
		MatchID:    matchID,
		Seed:       seed,
		TickRateHz: cfg.TickRateHz,
		SpawnOrder: spawnOrder,
	})

	for _, s := range bound {
		if err := caster.SendWelcome(ctx, s.PlayerID, entityByPlayer[s.PlayerID], cfg.TickRateHz, baseline); err != nil {
			return fmt.Errorf("app: send welcome to player %d: %w", s.PlayerID, err)
		}
	}

	endReason, checkpoint, err := runMatchLoop(ctx, cfg, tr, pipe, world, caster, rec, bound, pub)
	if err != nil {
		return err
	}

	fp, err := replay.CurrentFingerprint()
	if err != nil {
		fp = replay.BuildFingerprint{}
	}
	if _, err := rec.Finish(ctx, fp, world.StateDigest(), checkpoint, endReason); err != nil {
		return fmt.Errorf("app: finish replay artifact: %w", err)
	}

	lifecycle.MatchEnded(ctx, pub, lifecycle.MatchEndedPayload{
		MatchID:        matchID,
		EndReason:      string(endReason),
		CheckpointTick: checkpoint,
	})
	return nil
}

// matchDriver owns the work of exactly one tick: draining transport
// input, admitting it into the pipeline, advancing the kernel, and
// broadcasting the resulting snapshot. It never blocks on a clock —
// runMatchLoop decides how (or whether) to pace calls to Step.
type matchDriver struct {
	tr           transport.Transport
	pipe         *pipeline.Pipeline
	world        *kernel.World
	caster       *broadcast.Broadcaster
	rec          *replay.Recorder
	pub          logging.Publisher
	peerToPlayer map[string]int
}

// Step runs one tick to completion and reports whether the match should
// stop, per spec.md §4.5's termination semantics: the current tick
// always finishes before a disconnect is honored.
func (d *matchDriver) Step(ctx context.Context, tick uint64) (stop bool, reason replay.EndReason, err error) {
	for _, msg := range d.tr.Drain() {
		playerID, ok := d.peerToPlayer[msg.PeerID]
		if !ok {
			continue
		}
		decoded, derr := wire.Decode(msg.Payload)
		if derr != nil {
			continue
		}
		cmd, ok := decoded.(wire.InputCmd)
		if !ok {
			continue
		}
		d.pipe.Admit(ctx, playerID, tick, pipeline.InputMessage{
			Tick:     cmd.Tick,
			InputSeq: cmd.InputSeq,
			MoveDir:  cmd.MoveDir(),
		})
	}

	var disconnected bool
	select {
	case peerID := <-d.tr.Disconnected():
		if playerID, ok := d.peerToPlayer[peerID]; ok {
			disconnected = true
			lifecycle.InMatchDisconnect(ctx, d.pub, lifecycle.InMatchDisconnectPayload{
				PlayerID: playerID,
				Tick:     tick,
			})
		}
	default:
	}

	applied := d.pipe.ConsumeTick(ctx, tick)
	d.rec.Observe(applied)
	stepInputs := pipeline.StepInputs(applied)
	snap := d.world.Advance(tick, stepInputs)

	if err := d.caster.Publish(ctx, snap); err != nil {
		return true, replay.EndReasonDisconnect, err
	}
	if disconnected {
		return true, replay.EndReasonDisconnect, nil
	}
	return false, "", nil
}

// runMatchLoop runs ticks [0, match_duration_ticks) or until a bound
// session disconnects. In production it paces every Step against a
// ticker at the configured tick rate; in test mode it drives the same
// Step method synchronously with no pacing calls at all, so tests never
// depend on wall-clock timing to exercise the tick-by-tick semantics.
func runMatchLoop(
	ctx context.Context,
	cfg config.Config,
	tr transport.Transport,
	pipe *pipeline.Pipeline,
	world *kernel.World,
	caster *broadcast.Broadcaster,
	rec *replay.Recorder,
	bound [2]session.Session,
	pub logging.Publisher,
) (replay.EndReason, uint64, error) {
	peerToPlayer := make(map[string]int, 2)
	for _, s := range bound {
		peerToPlayer[s.PeerID] = s.PlayerID
	}

	driver := &matchDriver{
		tr:           tr,
		pipe:         pipe,
		world:        world,
		caster:       caster,
		rec:          rec,
		pub:          pub,
		peerToPlayer: peerToPlayer,
	}

	if cfg.TestMode {
		return runManualStep(ctx, cfg, driver)
	}
	return runPacedTicks(ctx, cfg, driver)
}

// runPacedTicks is the production loop: one Step per tick of the
// configured tick rate, each one released by a ticker.
func runPacedTicks(ctx context.Context, cfg config.Config, driver *matchDriver) (replay.EndReason, uint64, error) {
	ticker := time.NewTicker(time.Second / time.Duration(cfg.TickRateHz))
	defer ticker.Stop()

	for tick := uint64(0); tick < cfg.MatchDurationTicks; tick++ {
		select {
		case <-ctx.Done():
			return replay.EndReasonDisconnect, tick, ctx.Err()
		case <-ticker.C:
		}

		if stop, reason, err := driver.Step(ctx, tick); err != nil {
			return replay.EndReasonDisconnect, driver.world.CurrentTick(), err
		} else if stop {
			return reason, driver.world.CurrentTick(), nil
		}
	}
	return replay.EndReasonComplete, driver.world.CurrentTick(), nil
}

// runManualStep is the test-mode "manual step" loop: it drives the
// match synchronously, calling Step back to back with no ticker and no
// pacing of any kind, so a test controls exactly when each tick runs.
func runManualStep(ctx context.Context, cfg config.Config, driver *matchDriver) (replay.EndReason, uint64, error) {
	for tick := uint64(0); tick < cfg.MatchDurationTicks; tick++ {
		if err := ctx.Err(); err != nil {
			return replay.EndReasonDisconnect, tick, err
		}

		if stop, reason, err := driver.Step(ctx, tick); err != nil {
			return replay.EndReasonDisconnect, driver.world.CurrentTick(), err
		} else if stop {
			return reason, driver.world.CurrentTick(), nil
		}
	}
	return replay.EndReasonComplete, driver.world.CurrentTick(), nil
}
