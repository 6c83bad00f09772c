package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/Domenick1991/airticket/api"
	"github.com/Domenick1991/airticket/config"
	"github.com/Domenick1991/airticket/docs"
	"github.com/Domenick1991/airticket/internal/service/booking"
	"github.com/Domenick1991/airticket/internal/service/flights"
	"github.com/gin-gonic/gin"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/sirupsen/logrus"
	httpSwagger "github.com/swaggo/http-swagger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const healthInterval = 10 * time.Second

// Check is a dependency probe feeding the gRPC health status.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

type Deps struct {
	Config   *config.Config
	Log      *logrus.Logger
	Flights  flights.FlightUseCase
	Bookings booking.BookingUseCase
	Passes   api.PassIssuer
	Checks   []Check
}

type Servers struct {
	grpcServer *grpc.Server
	httpServer *http.Server
	health     *health.Server
	conn       *grpc.ClientConn
}

// Run starts the gRPC health server and the HTTP API and blocks until ctx is
// canceled or a server fails.
func Run(ctx context.Context, deps Deps) error {
	s, err := newServers(deps)
	if err != nil {
		return err
	}
	defer s.conn.Close()

	errCh := make(chan error, 2)

	lis, err := net.Listen("tcp", deps.Config.GRPC.Address)
	if err != nil {
		return fmt.Errorf("listen gRPC %s: %w", deps.Config.GRPC.Address, err)
	}
	go func() { errCh <- s.grpcServer.Serve(lis) }()

	go func() {
		if err := s.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	go watchHealth(ctx, s.health, deps.Checks, healthInterval, deps.Log)

	deps.Log.WithFields(logrus.Fields{
		"http": deps.Config.HTTP.Address,
		"grpc": deps.Config.GRPC.Address,
	}).Info("servers started")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.health.Shutdown()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		s.grpcServer.GracefulStop()
		return nil
	}
}

func newServers(deps Deps) (*Servers, error) {
	grpcSrv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcSrv, hs)

	conn, err := grpc.NewClient(deps.Config.GRPC.Address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial gRPC health: %w", err)
	}
	gateway := runtime.NewServeMux(runtime.WithHealthzEndpoint(healthpb.NewHealthClient(conn)))

	httpSrv := &http.Server{
		Addr:              deps.Config.HTTP.Address,
		Handler:           NewRouter(deps, gateway),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Servers{
		grpcServer: grpcSrv,
		httpServer: httpSrv,
		health:     hs,
		conn:       conn,
	}, nil
}

// NewRouter mounts the API, the grpc-gateway health endpoint and the docs.
func NewRouter(deps Deps, gateway http.Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), api.RequestLogger(deps.Log))

	api.NewBookingHandler(deps.Bookings, deps.Flights, deps.Passes, deps.Log).Register(r.Group(""))
	api.NewFlightHandler(deps.Flights, deps.Bookings, deps.Log).Register(r.Group("/flights"))

	if gateway != nil {
		r.GET("/healthz", gin.WrapH(gateway))
	}
	r.GET("/openapi.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json", docs.OpenAPI)
	})
	r.GET("/swagger/*any", gin.WrapH(httpSwagger.Handler(httpSwagger.URL("/openapi.json"))))
	return r
}

// watchHealth runs every probe at interval and reports NOT_SERVING while any fails.
func watchHealth(ctx context.Context, hs *health.Server, checks []Check, interval time.Duration, log *logrus.Logger) {
	probe := func() {
		status := healthpb.HealthCheckResponse_SERVING
		for _, c := range checks {
			pctx, cancel := context.WithTimeout(ctx, interval/2)
			err := c.Probe(pctx)
			cancel()
			if err != nil {
				log.WithError(err).WithField("check", c.Name).Warn("health check failed")
				status = healthpb.HealthCheckResponse_NOT_SERVING
			}
		}
		hs.SetServingStatus("", status)
	}

	probe()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			probe()
		}
	}
}
