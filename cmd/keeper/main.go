package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zeromicro/go-zero/core/logx"
	zerosvc "github.com/zeromicro/go-zero/core/service"

	"lending-vault-sol/internal/config"
	"lending-vault-sol/internal/logic/grpc"
	"lending-vault-sol/internal/pkg/logger"
	"lending-vault-sol/internal/service"
	"lending-vault-sol/internal/svc"
)

var configFile = flag.String("f", "etc/keeper.yaml", "the config file")

func main() {
	defer func() {
		if r := recover(); r != nil {
			logx.Errorf("panic: %+v\nstack: %s", r, debug.Stack())
		}
	}()

	flag.Parse()

	c := config.MustLoad(*configFile)
	if err := logger.Init(c.LogConf.ToLogOption()); err != nil {
		panic(err)
	}
	defer logger.Sync()

	serviceContext, err := svc.NewKeeperServiceContext(c)
	if err != nil {
		panic(err)
	}
	defer serviceContext.Close()

	syncService, err := service.NewVaultSyncService(c, syncDeps(serviceContext))
	if err != nil {
		panic(err)
	}

	sg := zerosvc.NewServiceGroup()
	sg.Add(syncService)

	if c.Grpc.Endpoint != "" {
		slotStream, err := grpc.NewSlotStreamManager(c.Grpc, syncService.Watched(), serviceContext.Clock, serviceContext.Changes)
		if err != nil {
			panic(err)
		}
		sg.Add(slotStream)
	}
	if c.MetricsAddr != "" {
		sg.Add(newMetricsServer(c.MetricsAddr, serviceContext))
	}

	logx.Infof("Starting vault keeper for %s", c.Vault.Address)

	// 启动服务
	go sg.Start()

	// 等待退出信号
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logx.Info("Shutting down services...")
	sg.Stop()
}

// syncDeps 未配置的依赖保持 nil 接口
func syncDeps(ctx *svc.KeeperServiceContext) service.Deps {
	kc := ctx.Config.KafkaProducerConf
	deps := service.Deps{
		Reader:  ctx.Rpc,
		Clock:   ctx.Clock,
		Metrics: ctx.Metrics,
		Changes: ctx.Changes,
		Topics: service.Topics{
			Snapshot:           kc.Topics.Snapshot,
			SnapshotPartitions: kc.Partitions.Snapshot,
			Plan:               kc.Topics.Plan,
			PlanPartitions:     kc.Partitions.Plan,
		},
	}
	if ctx.Publisher != nil {
		deps.Publisher = ctx.Publisher
	}
	if ctx.Store != nil {
		deps.Store = ctx.Store
	}
	return deps
}

type metricsServer struct {
	srv *http.Server
}

func newMetricsServer(addr string, ctx *svc.KeeperServiceContext) *metricsServer {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(ctx.Registry, promhttp.HandlerOpts{}))
	return &metricsServer{srv: &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}}
}

func (m *metricsServer) Start() {
	logx.Infof("metrics listening on %s", m.srv.Addr)
	if err := m.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logx.Errorf("metrics server: %v", err)
	}
}

func (m *metricsServer) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = m.srv.Shutdown(ctx)
}
