// Command agentkerneld wires the sixteen control-plane components into a
// running kernel: manifest/profile loading, capability tokens, the
// communication hub, the scheduler, the workflow engine, the budget
// guardian, the auto-fix coordinator, the code-drop pipeline and its
// sandbox lanes, the evidence ledger, the memory stores, and the
// control surface.
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/agentkernel/core/internal/autofix"
	"github.com/agentkernel/core/internal/budget"
	"github.com/agentkernel/core/internal/capability"
	"github.com/agentkernel/core/internal/controlsurface"
	"github.com/agentkernel/core/internal/crc"
	"github.com/agentkernel/core/internal/evidence"
	"github.com/agentkernel/core/internal/hub"
	"github.com/agentkernel/core/internal/manifest"
	"github.com/agentkernel/core/internal/memorystore"
	"github.com/agentkernel/core/internal/notify"
	"github.com/agentkernel/core/internal/registry"
	"github.com/agentkernel/core/internal/runtime"
	"github.com/agentkernel/core/internal/sandbox"
	"github.com/agentkernel/core/internal/scheduler"
	"github.com/agentkernel/core/internal/telemetry"
	"github.com/agentkernel/core/internal/workflow"
)

func main() {
	port := flag.Int("port", 8080, "control surface HTTP port")
	dropPort := flag.Int("drop-port", 8081, "drop-control RPC port")
	dataDir := flag.String("data-dir", "data", "root directory for persisted state")
	kernelManifestPath := flag.String("manifest", "configs/kernel.yaml", "kernel manifest path")
	profilePath := flag.String("profile", "configs/profile.yaml", "profile document path")
	agentRegistryPath := flag.String("agents", "configs/agents.csv", "tabular agent registry path")
	mode := flag.String("mode", "supervised", "scheduler operating mode: autonomous|supervised|interactive")
	slackWebhook := flag.String("slack-webhook", os.Getenv("AGENTKERNEL_SLACK_WEBHOOK"), "Slack webhook URL for critical alerts")
	natsURL := flag.String("nats-url", os.Getenv("AGENTKERNEL_NATS_URL"), "optional NATS URL to bridge hub broadcasts onto (disabled if empty)")
	flag.Parse()

	basePath, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to determine base path: %v\n", err)
		os.Exit(controlsurface.ExitUnrecoverable)
	}
	if !filepath.IsAbs(*dataDir) {
		*dataDir = filepath.Join(basePath, *dataDir)
	}
	if err := os.MkdirAll(*dataDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create data directory: %v\n", err)
		os.Exit(controlsurface.ExitUnrecoverable)
	}

	k, err := bootstrap(bootstrapConfig{
		basePath:          basePath,
		dataDir:           *dataDir,
		kernelManifestPath: *kernelManifestPath,
		profilePath:       *profilePath,
		agentRegistryPath: *agentRegistryPath,
		mode:              scheduler.OperatingMode(*mode),
		slackWebhook:      *slackWebhook,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "bootstrap failed: %v\n", err)
		os.Exit(controlsurface.ExitCodeFor(err))
	}
	defer k.Close()

	if *natsURL != "" {
		bridge, err := hub.NewNatsBridge(k.hub, *natsURL)
		if err != nil {
			log.Printf("[AGENTKERNELD] NATS bridge unavailable (continuing without it): %v", err)
		} else {
			defer bridge.Close()
		}
	}

	httpAPI := controlsurface.NewHTTPAPI(k)
	dropAPI := controlsurface.NewDropAPI(k.pipeline)
	events := controlsurface.NewEventStream()
	k.hub.SubscribeTopic("topic::broadcast")
	events.Pipe(mustGlobalFeed(k.hub))

	log.Printf("[AGENTKERNELD] starting control surface on :%d, drop-control on :%d", *port, *dropPort)

	controlAddr := fmt.Sprintf(":%d", *port)
	dropAddr := fmt.Sprintf(":%d", *dropPort)

	controlErr := make(chan error, 1)
	dropErr := make(chan error, 1)
	go func() { controlErr <- listenAndServe(controlAddr, httpAPI) }()
	go func() { dropErr <- listenAndServe(dropAddr, dropAPI) }()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(k.sched.HealthMonitorInterval())
	defer ticker.Stop()
	stopLoop := make(chan struct{})
	go k.runLoop(ticker, stopLoop)

	select {
	case err := <-controlErr:
		log.Printf("[AGENTKERNELD] control surface error: %v", err)
	case err := <-dropErr:
		log.Printf("[AGENTKERNELD] drop-control surface error: %v", err)
	case <-shutdown:
		log.Println("[AGENTKERNELD] shutting down (signal received)")
	}
	close(stopLoop)
	_ = events.ClientCount() // keep events referenced through shutdown
}

// mustGlobalFeed exposes the hub's broadcast topic as a read channel for
// the event stream to pipe into connected WebSocket clients.
func mustGlobalFeed(h *hub.Hub) <-chan hub.Message {
	return h.SubscribeTopic("topic::broadcast")
}

type bootstrapConfig struct {
	basePath           string
	dataDir            string
	kernelManifestPath string
	profilePath        string
	agentRegistryPath  string
	mode               scheduler.OperatingMode
	slackWebhook       string
}

// kernel holds every wired component and implements
// controlsurface.ControlPlane.
type kernel struct {
	profile  manifest.Profile
	caps     *capability.Service
	runtimes *runtime.Manager
	agents   *registry.Registry
	hub      *hub.Hub
	sched    *scheduler.Scheduler
	ledger   *evidence.Ledger
	engine   *workflow.Engine
	guard    *budget.Guardian
	fixer    *autofix.Coordinator
	pipeline *crc.Pipeline
	sandboxes *sandbox.Manager
	session  *memorystore.Store
	longTerm *memorystore.Store
	slack    *notify.SlackNotifier

	autonomous bool
}

func bootstrap(cfg bootstrapConfig) (*kernel, error) {
	km, err := manifest.LoadKernelManifest(cfg.kernelManifestPath)
	if err != nil {
		return nil, err
	}
	profile, err := manifest.LoadProfile(cfg.profilePath)
	if err != nil {
		return nil, err
	}

	caps := capability.NewService()
	caps.Configure(km.Capability())

	runtimes, err := runtime.FromManifest(km.RuntimePlugins())
	if err != nil {
		return nil, err
	}

	agentRegistry := registry.New()
	if _, err := agentRegistry.LoadFromFile(cfg.agentRegistryPath); err != nil {
		log.Printf("[AGENTKERNELD] agent registry load failed (continuing with empty registry): %v", err)
	}

	commHub := hub.New()

	scalingLimits := telemetry.DefaultScalingLimits()
	scalingPolicy := telemetry.NewPolicy(scalingLimits)
	telemetryReg := telemetry.NewRegistry(nil)

	sched := scheduler.NewScheduler(agentRegistry, commHub, scalingPolicy, telemetryReg, cfg.mode)

	ledger, err := evidence.Open(filepath.Join(cfg.dataDir, "evidence.log"), evidence.NewSigner(signingKey(cfg.dataDir)))
	if err != nil {
		return nil, err
	}

	guard := budget.NewGuardian(budget.Limits{MaxTokens: 200_000, MaxLatencyMs: 30_000}, ledger)
	engine := workflow.NewEngine(ledger, func() int { return 4 }, guard)

	fixer := autofix.NewCoordinator(ledger)

	pipeline := crc.NewPipeline(0.8)
	sandboxes := sandbox.NewManager()

	session, err := memorystore.Open(filepath.Join(cfg.dataDir, "session.db"))
	if err != nil {
		return nil, err
	}
	longTerm, err := memorystore.Open(filepath.Join(cfg.dataDir, "long_term.db"))
	if err != nil {
		return nil, err
	}

	slack := notify.NewSlackNotifier(cfg.slackWebhook, "#agentkernel-alerts", "agentkernel")

	if w, err := crc.NewWatcher(filepath.Join(cfg.dataDir, "crc", "drop-in", "incoming"), pipeline); err != nil {
		log.Printf("[AGENTKERNELD] drop-in watcher unavailable (continuing without filesystem ingestion): %v", err)
	} else {
		go w.Run()
	}

	return &kernel{
		profile:   profile,
		caps:      caps,
		runtimes:  runtimes,
		agents:    agentRegistry,
		hub:       commHub,
		sched:     sched,
		ledger:    ledger,
		engine:    engine,
		guard:     guard,
		fixer:     fixer,
		pipeline:  pipeline,
		sandboxes: sandboxes,
		session:   session,
		longTerm:  longTerm,
		slack:     slack,
	}, nil
}

func signingKey(dataDir string) []byte {
	if key := os.Getenv("AGENTKERNEL_SIGNING_KEY"); key != "" {
		return []byte(key)
	}
	return []byte("agentkerneld-dev-signing-key-" + dataDir)
}

func (k *kernel) Close() {
	if k.ledger != nil {
		k.ledger.Close()
	}
	if k.session != nil {
		k.session.Close()
	}
	if k.longTerm != nil {
		k.longTerm.Close()
	}
}

// runLoop drives the periodic health-check / deadline-check / retention
// sweeps that would otherwise require an external cron.
func (k *kernel) runLoop(ticker *time.Ticker, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			k.sched.CheckDeadlines(now)
			offline := k.sched.CheckAgentHealth(now)
			for _, agentID := range offline {
				log.Printf("[AGENTKERNELD] agent %s marked offline on missed heartbeat", agentID)
			}
			archived := k.pipeline.ExpireRetention(now)
			for _, dropID := range archived {
				log.Printf("[AGENTKERNELD] drop %s archived on retention expiry", dropID)
			}
		}
	}
}

func listenAndServe(addr string, handler http.Handler) error {
	return http.ListenAndServe(addr, handler)
}
