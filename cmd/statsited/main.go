package main

import (
	"flag"
	"net"
	"os"
	"os/signal"
	"runtime/debug"
	"sync"
	"syscall"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
	"github.com/google/gops/agent"

	"github.com/ClusterCockpit/statsited/internal/config"
	"github.com/ClusterCockpit/statsited/internal/runtimeenv"
	"github.com/ClusterCockpit/statsited/pkg/flush"
	"github.com/ClusterCockpit/statsited/pkg/ingest"
)

func main() {
	var flagConfigFile string
	var flagGops bool
	var flagEnvFile string
	var flagLogLevel string

	flag.StringVar(&flagConfigFile, "config", "./config.json", "Path to the daemon's JSON configuration file")
	flag.StringVar(&flagEnvFile, "env", "./.env", "Path to a .env file merged into the process environment before config is loaded")
	flag.BoolVar(&flagGops, "gops", false, "Start the github.com/google/gops agent for live process inspection")
	flag.StringVar(&flagLogLevel, "loglevel", "info", "debug, info, warn, or err")
	flag.Parse()

	cclog.SetLogLevel(flagLogLevel)
	cclog.SetLogDateTime(true)

	if flagGops {
		if err := agent.Listen(agent.Options{}); err != nil {
			cclog.Fatalf("gops/agent.Listen failed: %s", err.Error())
		}
	}

	if err := runtimeenv.LoadEnv(flagEnvFile); err != nil && !os.IsNotExist(err) {
		cclog.Fatalf("parsing %q failed: %s", flagEnvFile, err.Error())
	}

	cfg, err := config.Load(flagConfigFile)
	if err != nil {
		cclog.Fatal(err)
	}

	sinks, err := cfg.BuildSinks()
	if err != nil {
		cclog.Fatal(err)
	}

	orchestrator := flush.New(flush.Config{
		MetricsConfig:    cfg.MetricsConfig(),
		Sinks:            sinks,
		IntervalSeconds:  cfg.FlushIntervalSeconds,
		ExtendedCounters: cfg.ExtendedCounters,
		Quantiles:        cfg.Quantiles,
		Prefixes:         cfg.SinkPrefixes(),
	})

	handler := &ingest.Handler{
		Registry:     orchestrator.Current,
		InputCounter: cfg.InputCounter,
	}

	listener, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		cclog.Fatal(err)
	}

	var udpConn net.PacketConn
	if cfg.UDPAddr != "" {
		udpConn, err = net.ListenPacket("udp", cfg.UDPAddr)
		if err != nil {
			cclog.Fatal(err)
		}
	}

	// The listener must be bound (and, for a privileged port, the UDP
	// socket too) before dropping root, and after that the accept
	// loops can be started.
	if err := runtimeenv.DropPrivileges(os.Getenv("STATSITED_USER"), os.Getenv("STATSITED_GROUP")); err != nil {
		cclog.Fatalf("error while changing user: %s", err.Error())
	}

	if err := orchestrator.Start(); err != nil {
		cclog.Fatal(err)
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := handler.Serve(listener); err != nil {
			cclog.Infof("tcp listener stopped: %s", err.Error())
		}
	}()

	if udpConn != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := handler.ServeUDP(udpConn); err != nil {
				cclog.Infof("udp listener stopped: %s", err.Error())
			}
		}()
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		runtimeenv.SystemdNotify(false, "shutting down")
		listener.Close()
		if udpConn != nil {
			udpConn.Close()
		}
		orchestrator.Shutdown()
		os.Exit(0)
	}()

	if os.Getenv("GOGC") == "" {
		debug.SetGCPercent(25)
	}
	runtimeenv.SystemdNotify(true, "running")
	wg.Wait()
}
