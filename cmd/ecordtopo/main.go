// Command ecordtopo emulates E-CORD deployments: one CO leaf-spine fabric
// and one EE edge domain per configured domain, stitched together, started
// in one batch and handed to an operator console.
//
// Usage:
//
//	ecordtopo [flags] domainId:controllerIps:vlanIds[:outerIfs[:lf2Ifs]] ...
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ecordtopo/internal/config"
	"ecordtopo/internal/emulation"
	"ecordtopo/internal/handler"
	"ecordtopo/internal/hub"
	"ecordtopo/internal/logging"
	"ecordtopo/internal/observability"
	"ecordtopo/internal/orchestrator"
	"ecordtopo/internal/probe"
	"ecordtopo/internal/repository/sqlite"
	"ecordtopo/internal/session"
)

const usageHeader = `usage: ecordtopo [flags] domainId:controllerIps:vlanIds[:outerIfs[:lf2Ifs]] ...

Each token configures one CO/EE domain pair:
  domainId       integer 1-255
  controllerIps  comma-separated CO controller addresses
  vlanIds        comma-separated VLANs tagged on the UNI host
  outerIfs       optional devices attached to leaf 1
  lf2Ifs         optional devices attached to leaf 2

Flags:
`

type options struct {
	configPath  string
	exportDir   string
	format      string
	dbPath      string
	metricsAddr string
	probe       bool
	vlan        bool
	tracing     bool
	mover       string
	logLevel    string
	posture     string
	saveConfig  string
	batch       bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("ecordtopo", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var opts options
	fs.StringVar(&opts.configPath, "config", "", "settings file (default: search $ECORDTOPO_CONFIG, ./ecordtopo.yaml, XDG, /etc)")
	fs.StringVar(&opts.exportDir, "export-dir", "", "write each domain's segment-routing document to this directory")
	fs.StringVar(&opts.format, "format", "", "export format: netcfg, json or yaml")
	fs.StringVar(&opts.dbPath, "db", "", "SQLite deployment ledger path")
	fs.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	fs.BoolVar(&opts.probe, "probe", false, "probe controller reachability before starting")
	fs.BoolVar(&opts.vlan, "vlan", false, "tag the configured VLANs on each UNI host")
	fs.BoolVar(&opts.tracing, "tracing", false, "export deployment traces")
	fs.StringVar(&opts.mover, "mover", "noop", "namespace mover for attach fallback: noop, netlink or ip")
	fs.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error")
	fs.StringVar(&opts.posture, "posture", "", "probe posture: stealth, cautious, balanced or aggressive")
	fs.StringVar(&opts.saveConfig, "save-config", "", "write the effective settings to this path and exit")
	fs.BoolVar(&opts.batch, "batch", false, "deploy, export and stop without the operator console")
	fs.Usage = func() {
		fmt.Fprint(stderr, usageHeader)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if opts.saveConfig != "" {
		settings, _, err := loadSettings(fs, opts)
		if err != nil {
			fmt.Fprintf(stderr, "ecordtopo: %v\n", err)
			return 2
		}
		if err := settings.Save(opts.saveConfig); err != nil {
			fmt.Fprintf(stderr, "ecordtopo: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "settings written to %s\n", opts.saveConfig)
		return 0
	}

	deployment, err := config.ParseDeployment(fs.Args())
	if err != nil {
		fmt.Fprintf(stderr, "ecordtopo: %v\n\n", err)
		fs.Usage()
		return 2
	}

	settings, settingsPath, err := loadSettings(fs, opts)
	if err != nil {
		fmt.Fprintf(stderr, "ecordtopo: %v\n", err)
		return 2
	}

	log := logging.NewFromEnv(logging.Config{
		Level:  settings.Logging.Level,
		Format: settings.Logging.Format,
		Output: stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logging.ContextWithLogger(ctx, log)

	source := settingsPath
	if source == "" {
		source = "built-in defaults"
	}
	log.Info(ctx, "settings loaded", logging.String("source", source), logging.String("summary", settings.Summary()))

	if unused := settings.UnusedDomains(deployment.IDs()); len(unused) > 0 {
		log.Warn(ctx, "settings name domains that are not deployed", logging.Any("domains", unused))
	}

	if err := deploy(ctx, deployment, settings, opts, log, stdin, stdout); err != nil {
		log.Error(ctx, "deployment failed", logging.Err(err))
		return 1
	}
	return 0
}

// loadSettings reads the settings file and applies explicitly set flags on
// top of it. The returned path is empty when built-in defaults were used.
func loadSettings(fs *flag.FlagSet, opts options) (*config.Settings, string, error) {
	var (
		settings *config.Settings
		path     string
		err      error
	)
	if opts.configPath != "" {
		settings, path, err = config.LoadFromPath(opts.configPath)
	} else {
		settings, path, err = config.Load()
	}
	if err != nil {
		return nil, path, err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "export-dir":
			settings.Export.Dir = opts.exportDir
		case "format":
			settings.Export.Format = opts.format
		case "db":
			settings.Database.Path = opts.dbPath
		case "metrics-addr":
			settings.Metrics.Addr = opts.metricsAddr
		case "probe":
			settings.Probe.Enabled = opts.probe
		case "vlan":
			settings.VLAN = opts.vlan
		case "tracing":
			settings.Tracing.Enabled = opts.tracing
		case "log-level":
			settings.Logging.Level = opts.logLevel
		case "posture":
			settings.Probe.Posture = config.ParsePosture(opts.posture)
		}
	})
	return settings, path, settings.Validate()
}

func deploy(ctx context.Context, cfg config.DeploymentConfig, settings *config.Settings, opts options, log logging.Logger, stdin io.Reader, stdout io.Writer) error {
	shutdown, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     settings.Tracing.Enabled,
		ServiceName: "ecordtopo",
		Exporter:    settings.Tracing.Exporter,
		Endpoint:    settings.Tracing.Endpoint,
		Insecure:    settings.Tracing.Insecure,
		SampleRatio: settings.Tracing.SampleRatio,
	}, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdown, log)

	rt := emulation.NewNet()
	orchOpts := []orchestrator.Option{orchestrator.WithLogger(log)}

	mover, tagger, err := attachCapabilities(settings, opts.mover, rt)
	if err != nil {
		return err
	}
	orchOpts = append(orchOpts, orchestrator.WithMover(mover))
	if tagger != nil {
		orchOpts = append(orchOpts, orchestrator.WithTagger(tagger))
	}

	var collector *observability.DeploymentCollector
	if settings.Metrics.Addr != "" {
		collector, err = observability.NewDeploymentCollector(nil)
		if err != nil {
			return fmt.Errorf("init metrics: %w", err)
		}
		orchOpts = append(orchOpts, orchestrator.WithMetrics(collector))
	}

	if settings.Database.Path != "" {
		ledger, err := sqlite.New(settings.Database.Path)
		if err != nil {
			return fmt.Errorf("open ledger: %w", err)
		}
		defer ledger.Close()
		orchOpts = append(orchOpts, orchestrator.WithLedger(ledger))
		log.Info(ctx, "ledger opened", logging.String("path", settings.Database.Path))
	}

	if settings.Probe.Enabled {
		profile := settings.ProbeProfile()
		orchOpts = append(orchOpts, orchestrator.WithProbe(probe.NewControllerProbe(
			probe.WithPorts(settings.Probe.Ports),
			probe.WithTiming(profile.Timing),
			probe.WithTimeout(profile.Timeout),
			probe.WithMaxRetries(profile.MaxRetries),
			probe.WithLogger(log),
		)))
	}

	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	bus := orchestrator.NewEventBus()
	ch := make(chan orchestrator.Event, 100)
	bus.Subscribe(ch)
	events := hub.New(log)
	go events.Run(hubCtx, ch)
	orchOpts = append(orchOpts, orchestrator.WithEventBus(bus))

	orch := orchestrator.New(rt, cfg, settings, orchOpts...)

	if collector != nil {
		srv := serveStatus(ctx, settings.Metrics.Addr, collector, handler.NewStatusHandler(orch, log), events, log)
		defer func() {
			// event streams only end once the hub closes them
			stopHub()
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(sctx); err != nil {
				log.Warn(ctx, "status server shutdown", logging.Err(err))
			}
		}()
	}

	log.Info(ctx, "deploying", logging.Any("domains", orch.Domains()))
	if err := orch.Deploy(ctx); err != nil {
		return err
	}

	if settings.Export.Dir != "" {
		paths, err := orch.ExportAll(ctx, settings.Export.Dir, settings.Export.Format)
		if err != nil {
			return err
		}
		log.Info(ctx, "documents exported", logging.Int("count", len(paths)))
	}

	if !opts.batch {
		if err := session.New(rt, orch, stdin, stdout).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}
	return orch.Stop(context.Background())
}

// attachCapabilities selects the namespace mover and VLAN tagger. A remote
// host takes precedence over the -mover flag. Anything other than the noop
// mover acts on node PIDs, so it needs a runtime backed by real namespaces.
func attachCapabilities(settings *config.Settings, mover string, rt emulation.Runtime) (emulation.NamespaceMover, emulation.VLANTagger, error) {
	switch mover {
	case "", "noop", "netlink", "ip":
	default:
		return nil, nil, fmt.Errorf("unknown mover %q", mover)
	}
	kernel := emulation.HasRealNamespaces(rt)

	if settings.Remote != nil {
		if !kernel {
			return nil, nil, fmt.Errorf("remote host %s: %w", settings.Remote.Address, emulation.ErrSyntheticNamespaces)
		}
		sshCfg := emulation.SSHConfig{
			Address:    settings.Remote.Address,
			User:       settings.Remote.User,
			Password:   settings.Remote.Password,
			Passphrase: settings.Remote.Passphrase,
			Timeout:    settings.RemoteTimeout(),
		}
		if settings.Remote.KeyPath != "" {
			key, err := os.ReadFile(settings.Remote.KeyPath)
			if err != nil {
				return nil, nil, fmt.Errorf("read ssh key: %w", err)
			}
			sshCfg.PrivateKey = key
		}
		cmd, err := emulation.NewSSHCommander(sshCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("remote host: %w", err)
		}
		return emulation.CommandMover{Cmd: cmd}, emulation.CommandVLANTagger{Runtime: rt, Cmd: cmd}, nil
	}

	if mover == "" || mover == "noop" {
		return emulation.NoopMover{}, nil, nil
	}
	if !kernel {
		return nil, nil, fmt.Errorf("mover %q: %w", mover, emulation.ErrSyntheticNamespaces)
	}
	if mover == "netlink" {
		return emulation.NetlinkMover{}, nil, nil
	}
	return emulation.CommandMover{Cmd: emulation.LocalCommander{}}, nil, nil
}

// serveStatus exposes metrics, the status API and the lifecycle event
// stream on one listener.
func serveStatus(ctx context.Context, addr string, c *observability.DeploymentCollector, status *handler.StatusHandler, events *hub.Hub, log logging.Logger) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           statusMux(c, status, events),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info(ctx, "status listening", logging.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(ctx, "status server failed", logging.Err(err))
		}
	}()
	return srv
}

func statusMux(c *observability.DeploymentCollector, status *handler.StatusHandler, events *hub.Hub) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	mux.Handle("/events", events)
	status.Routes(mux)
	return mux
}
