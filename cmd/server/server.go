package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/urfave/negroni/v3"
	"golang.org/x/sync/errgroup"

	"github.com/livekit/livekit-server-sdk/pkg/auth"
	"github.com/livekit/livekit-server-sdk/pkg/config"
	"github.com/livekit/livekit-server-sdk/pkg/logger"
	"github.com/livekit/livekit-server-sdk/pkg/service"
	"github.com/livekit/livekit-server-sdk/pkg/webhook"
)

const (
	shutdownTimeout = 5 * time.Second
	eventsPath      = "/events"
	metricsPath     = "/metrics"
)

// SDKServer receives webhooks, tracks room activity and serves the recent
// events to dashboards.
type SDKServer struct {
	conf       *config.Config
	roomClient *service.RoomServiceClient
	notifier   webhook.Notifier
	feed       *webhook.Feed
	tracker    *RoomTracker
	poller     *Poller
	redis      redis.UniversalClient

	httpServer *http.Server
	promServer *http.Server
}

func NewSDKServer(
	conf *config.Config,
	roomClient *service.RoomServiceClient,
	receiver *webhook.Receiver,
	deduper webhook.Deduper,
	notifier webhook.Notifier,
	feed *webhook.Feed,
	tracker *RoomTracker,
	poller *Poller,
	keyProvider auth.KeyProvider,
	rc redis.UniversalClient,
) *SDKServer {
	s := &SDKServer{
		conf:       conf,
		roomClient: roomClient,
		notifier:   notifier,
		feed:       feed,
		tracker:    tracker,
		poller:     poller,
		redis:      rc,
	}

	handler := webhook.NewHandler(receiver, s.onEvent,
		webhook.WithSkipAuth(conf.WebHook.SkipAuth),
		webhook.WithDeduper(deduper),
		webhook.WithHandlerLogger(logger.GetLogger().WithName("webhook")),
	)

	mux := http.NewServeMux()
	mux.Handle(conf.WebHook.Path, handler)
	mux.Handle(eventsPath, configureMiddlewares(
		service.RequireGrant(service.EnsureListPermission, feed),
		cors.New(cors.Options{
			AllowedOrigins:   conf.WebHook.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet},
			AllowedHeaders:   []string{auth.AuthorizationHeader},
			AllowCredentials: true,
		}),
		service.NewAPIKeyAuthMiddleware(keyProvider),
	))
	if conf.PrometheusPort == 0 {
		mux.Handle(metricsPath, promhttp.Handler())
	} else {
		s.promServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", conf.PrometheusPort),
			Handler: promhttp.Handler(),
		}
	}

	s.httpServer = &http.Server{
		Addr: fmt.Sprintf(":%d", conf.WebHook.Port),
		Handler: configureMiddlewares(mux,
			// always the first
			negroni.NewRecovery(),
			negroni.HandlerFunc(requestLogger),
		),
	}
	return s
}

// onEvent runs for every authenticated, non duplicate delivery
func (s *SDKServer) onEvent(ctx context.Context, event *webhook.Event) error {
	logger.Infow("received webhook", "event", event.Event, "room", event.RoomName(), "id", event.ID)

	s.tracker.Apply(event)
	s.poller.RequestRefresh()
	if err := s.feed.Publish(ctx, event); err != nil {
		return err
	}
	if s.notifier != nil {
		if err := s.notifier.QueueNotify(event); err != nil && !errors.Is(err, webhook.ErrNotifierStopped) {
			return err
		}
	}
	return nil
}

// PrintJoinToken logs a token that joins the configured room.
func (s *SDKServer) PrintJoinToken() error {
	token, err := auth.NewAccessToken(s.conf.APIKey, s.conf.APISecret).
		AddGrant(&auth.VideoGrant{RoomJoin: true, Room: s.conf.Room.Name}).
		SetIdentity(s.conf.Room.Identity).
		ToJWT()
	if err != nil {
		return err
	}
	logger.Infow("join token", "room", s.conf.Room.Name, "identity", s.conf.Room.Identity, "token", token)
	return nil
}

// Start serves until ctx is cancelled or a component fails.
func (s *SDKServer) Start(ctx context.Context) error {
	if err := s.PrintJoinToken(); err != nil {
		return err
	}
	if s.conf.Room.AutoCreate {
		room, err := s.roomClient.CreateRoom(ctx, s.conf.Room.Name, service.CreateRoomOptions{
			EmptyTimeout:    s.conf.Room.EmptyTimeout,
			MaxParticipants: s.conf.Room.MaxParticipants,
		})
		if err != nil {
			return errors.Wrap(err, "could not create room")
		}
		logger.Infow("created room", "room", room.Name, "sid", room.Sid)
	}

	// ensure we could listen
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	var promLn net.Listener
	if s.promServer != nil {
		if promLn, err = net.Listen("tcp", s.promServer.Addr); err != nil {
			_ = ln.Close()
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infow("starting webhook listener", "address", s.httpServer.Addr, "path", s.conf.WebHook.Path)
		return serve(s.httpServer, ln)
	})
	if promLn != nil {
		g.Go(func() error {
			logger.Infow("starting prometheus server", "address", s.promServer.Addr)
			return serve(s.promServer, promLn)
		})
	}
	g.Go(func() error {
		return s.poller.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		s.shutdown()
		return nil
	})

	return g.Wait()
}

func (s *SDKServer) shutdown() {
	logger.Infow("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	_ = s.httpServer.Shutdown(ctx)
	if s.promServer != nil {
		_ = s.promServer.Shutdown(ctx)
	}
	if s.notifier != nil {
		s.notifier.Stop(false)
	}
	s.roomClient.Close()
	if s.redis != nil {
		_ = s.redis.Close()
	}
}

func serve(srv *http.Server, ln net.Listener) error {
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func configureMiddlewares(handler http.Handler, middlewares ...negroni.Handler) *negroni.Negroni {
	n := negroni.New()
	for _, m := range middlewares {
		n.Use(m)
	}
	n.UseHandler(handler)
	return n
}

func requestLogger(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	start := time.Now()
	next(w, r)

	status := 0
	if rw, ok := w.(negroni.ResponseWriter); ok {
		status = rw.Status()
	}
	logger.Debugw("http request",
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"duration", time.Since(start),
	)
}
