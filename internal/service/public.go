package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"stockflow-service/internal/authz"
	"stockflow-service/internal/config"
	"stockflow-service/internal/utils/grpczap"
)

const shutdownTimeout = 10 * time.Second

// RunServices starts the gRPC permission service and the HTTP API. Both stop when ctx is done.
func RunServices(ctx context.Context, logger *zap.SugaredLogger, wg *sync.WaitGroup, cfg *config.Config,
	authorizer *authz.Authorizer, httpHandler http.Handler) {

	runGRPC(ctx, logger, wg, cfg, authorizer)
	runHTTP(ctx, logger, wg, cfg, httpHandler)
}

func newGRPCServer(logger *zap.SugaredLogger, development bool, authorizer *authz.Authorizer) (*grpc.Server, *health.Server) {
	opts := []logging.Option{
		logging.WithLogOnEvents(logging.StartCall, logging.FinishCall),
	}

	s := grpc.NewServer(grpc.ChainUnaryInterceptor(
		logging.UnaryServerInterceptor(grpczap.InterceptorLogger(logger.Desugar()), opts...),
		recovery.UnaryServerInterceptor(recovery.WithRecoveryHandler(func(p any) error {
			logger.Errorw("recovered from panic in gRPC handler", "panic", p)
			return status.Error(codes.Internal, "internal error")
		})),
	))

	if development {
		reflection.Register(s)
	}

	RegisterPermissionServiceServer(s, newPermissionService(logger, authorizer))

	healthServer := health.NewServer()
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, healthServer)

	return s, healthServer
}

func runGRPC(ctx context.Context, logger *zap.SugaredLogger, wg *sync.WaitGroup, cfg *config.Config,
	authorizer *authz.Authorizer) {

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		logger.Fatalw("failed to listen", "error", err)
	}

	s, healthServer := newGRPCServer(logger, cfg.Development, authorizer)
	logger.Infow("listening for gRPC requests", "port", cfg.GRPCPort)

	go func() {
		if err := s.Serve(lis); err != nil {
			logger.Fatalw("failed to serve", "error", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		healthServer.Shutdown()
		s.GracefulStop()
	}()
}

func runHTTP(ctx context.Context, logger *zap.SugaredLogger, wg *sync.WaitGroup, cfg *config.Config, handler http.Handler) {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          zap.NewStdLog(logger.Desugar()),
	}
	logger.Infow("listening for HTTP requests", "port", cfg.HTTPPort)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalw("failed to serve HTTP", "error", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Errorw("failed to shut down HTTP server", "error", err)
		}
	}()
}
