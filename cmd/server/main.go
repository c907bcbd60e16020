package main

import (
	"context"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"switchd/api/grpcserver"
	"switchd/config"
	"switchd/domain/meter"
	"switchd/infra/kafka"
	"switchd/infra/rcu"
	"switchd/infra/sequence"
	entrywal "switchd/infra/wal/entry"
	exitwal "switchd/infra/wal/exit"
	"switchd/jobs/broadcaster"
	"switchd/service"
	"switchd/snapshot"
)

func main() {
	cfg := config.Default()
	cfg.RegisterFlags(flag.CommandLine)
	flag.Parse()
	if err := cfg.Normalize(); err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := log.Default()
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---------------- RCU ----------------

	rcuCfg := cfg.RCU
	rcuCfg.Logger = logger
	rcuCfg.Registerer = reg
	domain := rcu.New(rcuCfg)
	domain.Start(ctx)

	// ---------------- Entry WAL ----------------

	entryWAL, err := entrywal.Open(entrywal.Config{
		Dir:             cfg.WALDir,
		SegmentSize:     cfg.WALSegmentSize,
		SegmentDuration: cfg.WALSegmentDuration,
		SyncEveryWrite:  cfg.WALSync,
	})
	if err != nil {
		log.Fatalf("entry WAL init failed: %v", err)
	}

	// ---------------- Exit WAL ----------------

	exitWAL, err := exitwal.Open(cfg.OutboxDir, exitwal.Options{})
	if err != nil {
		log.Fatalf("exit WAL init failed: %v", err)
	}

	// ---------------- Service ----------------

	table := meter.NewTable(cfg.Meters)
	svc := service.NewMeterService(domain, table, sequence.New(0), entryWAL, exitWAL, service.Config{
		Readers:    cfg.QueryThreads,
		Logger:     logger,
		Registerer: reg,
	})

	// ---------------- Recovery ----------------

	seq, err := svc.Recover(cfg.SnapshotDir, cfg.WALDir)
	if err != nil {
		log.Fatalf("recovery failed: %v", err)
	}
	log.Printf("recovered state up to seq=%d", seq)

	// ---------------- Background Jobs ----------------

	pub, err := newPublisher(cfg)
	if err != nil {
		log.Fatalf("publisher init failed: %v", err)
	}
	bc := broadcaster.New(exitWAL, pub, broadcaster.Config{
		Interval:   cfg.PublishInterval,
		MaxRetries: cfg.MaxRetries,
		Key:        service.EventKey,
		Logger:     logger,
		Registerer: reg,
	})
	bc.Start(ctx)

	var snapDone <-chan struct{}
	if cfg.SnapshotInterval > 0 {
		snapDone = svc.StartSnapshotJob(ctx, cfg.SnapshotDir, cfg.SnapshotInterval)
	} else {
		done := make(chan struct{})
		close(done)
		snapDone = done
	}

	// ---------------- Metrics ----------------

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		metricsSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("metrics server exited: %v", err)
			}
		}()
	}

	// ---------------- gRPC ----------------

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatalf("listen failed: %v", err)
	}
	grpcSrv := grpcserver.NewGRPCServer(svc, logger)

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		s := <-sig
		log.Printf("received %s, shutting down", s)
		grpcSrv.GracefulStop()
	}()

	log.Printf("switchd running on %s (broker=%s)", cfg.GRPCAddr, cfg.Broker)
	if err := grpcSrv.Serve(lis); err != nil {
		log.Printf("gRPC server exited: %v", err)
	}

	// ---------------- Shutdown ----------------

	cancel()
	bc.Wait()
	<-snapDone

	r := snapshot.NewReader(domain.Register("shutdown"))
	if seq, err := svc.TakeSnapshot(&snapshot.Writer{Dir: cfg.SnapshotDir}, r); err != nil {
		log.Printf("final snapshot failed: %v", err)
	} else {
		log.Printf("final snapshot seq=%d", seq)
	}
	r.Thread().Unregister()

	if metricsSrv != nil {
		_ = metricsSrv.Close()
	}
	svc.Close()
	if err := bc.Close(); err != nil {
		log.Printf("publisher close: %v", err)
	}
	if err := entryWAL.Close(); err != nil {
		log.Printf("entry WAL close: %v", err)
	}
	if err := exitWAL.Close(); err != nil {
		log.Printf("exit WAL close: %v", err)
	}

	drainCtx, drainCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer drainCancel()
	if err := domain.Shutdown(drainCtx); err != nil {
		log.Printf("rcu drain: %v", err)
	}
}

func newPublisher(cfg config.Config) (broadcaster.Publisher, error) {
	switch cfg.Broker {
	case config.BrokerSarama:
		return broadcaster.NewSaramaPublisher(cfg.Brokers, cfg.Topic)
	case config.BrokerKafkaGo:
		return kafka.NewProducer(cfg.Brokers, cfg.Topic), nil
	}
	return broadcaster.Discard{}, nil
}
