// Package daemon wires the flag store to its storage, events, tracing and
// the HTTP and gRPC servers run by flagd.
package daemon

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rentapp/x/featureflagx"
	"github.com/rentapp/x/featureflagx/featureflaggrpc"
	"github.com/rentapp/x/featureflagx/featureflaghttp"
	"github.com/rentapp/x/internal/config"
	"github.com/rentapp/x/kvx"
	"github.com/rentapp/x/kvx/autosetup"
	"github.com/rentapp/x/loggerx"
	"github.com/rentapp/x/metricsx"
	"github.com/rentapp/x/otelx"
	"github.com/rentapp/x/pubsubx"
	pubsubautosetup "github.com/rentapp/x/pubsubx/autosetup"
	"github.com/rentapp/x/pubsubx/messagex"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

const (
	MetricsPath = "/metrics"

	defaultShutdownTimeout = 10 * time.Second
)

type Daemon struct {
	c *config.Config
	l *loggerx.Logger

	tracer  *otelx.Tracer
	meter   *otelx.Meter
	storage kvx.Storage
	pubsub  pubsubx.PubSub
	store   *featureflagx.Store

	httpLis net.Listener
	grpcLis net.Listener
	httpSrv *http.Server
	grpcSrv *grpc.Server
}

// New sets up every dependency described by c and binds the listeners.
// Nothing is served before Serve is called.
func New(ctx context.Context, l *loggerx.Logger, c *config.Config) (_ *Daemon, err error) {
	d := &Daemon{c: c, l: l}
	defer func() {
		if err != nil {
			d.close(ctx)
		}
	}()

	d.tracer, err = otelx.New(ctx, l, &c.Tracing)
	if err != nil {
		return nil, err
	}

	d.storage, err = autosetup.NewStorage(ctx, l, c.Origin, &c.Storage)
	if err != nil {
		return nil, err
	}

	d.pubsub, err = pubsubautosetup.New(ctx, l, &c.Events,
		pubsubx.WithTracerProvider(d.tracer.Provider()),
		pubsubx.WithPropagator(d.tracer.TextMapPropagator()),
	)
	if err != nil {
		return nil, err
	}

	d.meter, err = otelx.NewMeter(ctx, l, &c.Metrics)
	if err != nil {
		return nil, err
	}
	flagMetrics, err := metricsx.NewFlagMetrics(d.meter.Provider())
	if err != nil {
		return nil, err
	}
	httpMetrics, err := metricsx.NewHTTPMetrics(d.meter.Provider())
	if err != nil {
		return nil, err
	}

	opts := []featureflagx.StoreOption{
		featureflagx.WithLogger(l),
		featureflagx.WithTracerProvider(d.tracer.Provider()),
		featureflagx.WithMetrics(flagMetrics),
	}
	if d.pubsub != nil {
		opts = append(opts, featureflagx.WithPublisher(d.pubsub.Publisher(), messagex.Topic(c.Events.Topic)))
	}
	if c.Toggle.Atomic {
		opts = append(opts, featureflagx.WithAtomicToggle())
	}
	d.store = featureflagx.NewStore(d.storage, opts...)

	mux := http.NewServeMux()
	if g := d.meter.Gatherer(); g != nil {
		mux.Handle(MetricsPath, metricsx.Handler(g))
	}
	mux.Handle("/", featureflaghttp.NewHandler(d.store,
		featureflaghttp.WithLogger(l),
		featureflaghttp.WithMetrics(httpMetrics),
		featureflaghttp.WithTracing(d.tracer.Provider(), d.tracer.TextMapPropagator()),
		featureflaghttp.WithAllowedOrigins(c.Serve.CORS.AllowedOrigins...),
	))
	d.httpSrv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	d.grpcSrv = grpc.NewServer(grpc.ChainUnaryInterceptor(featureflaggrpc.UnaryServerInterceptor(l)))
	featureflaggrpc.RegisterFeatureFlagServiceServer(d.grpcSrv, featureflaggrpc.NewServer(d.store))

	if d.httpLis, err = net.Listen("tcp", c.Serve.HTTP.Address); err != nil {
		return nil, errors.WithStack(err)
	}
	if d.grpcLis, err = net.Listen("tcp", c.Serve.GRPC.Address); err != nil {
		return nil, errors.WithStack(err)
	}

	return d, nil
}

func (d *Daemon) Store() *featureflagx.Store {
	return d.store
}

func (d *Daemon) HTTPAddr() string {
	return d.httpLis.Addr().String()
}

func (d *Daemon) GRPCAddr() string {
	return d.grpcLis.Addr().String()
}

// Serve runs the servers until ctx is done, then shuts them down gracefully
// and releases every dependency.
func (d *Daemon) Serve(ctx context.Context) error {
	defer d.close(context.WithoutCancel(ctx))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		d.l.Info(gctx, "serving http", attribute.String("address", d.HTTPAddr()))
		if err := d.httpSrv.Serve(d.httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.WithStack(err)
		}
		return nil
	})

	g.Go(func() error {
		d.l.Info(gctx, "serving grpc", attribute.String("address", d.GRPCAddr()))
		return errors.WithStack(d.grpcSrv.Serve(d.grpcLis))
	})

	g.Go(func() error {
		d.watch(gctx)
		return nil
	})

	g.Go(func() error {
		return d.follow(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		timeout := d.c.Serve.ShutdownTimeout
		if timeout <= 0 {
			timeout = defaultShutdownTimeout
		}
		sctx, cancel := context.WithTimeout(context.WithoutCancel(gctx), timeout)
		defer cancel()

		d.l.Info(sctx, "shutting down")
		stopped := make(chan struct{})
		go func() {
			d.grpcSrv.GracefulStop()
			close(stopped)
		}()
		err := d.httpSrv.Shutdown(sctx)
		select {
		case <-stopped:
		case <-sctx.Done():
			d.grpcSrv.Stop()
		}
		return errors.WithStack(err)
	})

	return g.Wait()
}

// watch logs every change of the storage. Writes served by this daemon are
// reported as well, next to their own "feature flag written" line, since
// the storages cannot tell who made a change.
func (d *Daemon) watch(ctx context.Context) {
	err := d.store.Watch(ctx, func(ff featureflagx.FeatureFlag, enabled bool) {
		d.l.Info(ctx, "flag changed in storage", attribute.String("flag", ff.String()), attribute.Bool("enabled", enabled))
	})
	if err != nil {
		d.l.WithError(err).Debug(ctx, "storage changes are not watched")
	}
}

// follow logs the change events published by every flagd sharing the
// configured topic. Each daemon uses its own group to see all of them.
func (d *Daemon) follow(ctx context.Context) error {
	if d.pubsub == nil {
		return nil
	}

	sub, err := d.pubsub.Subscriber("flagd-" + uuid.NewString())
	if err != nil {
		return err
	}
	defer sub.Close()

	msgs, err := sub.Subscribe(ctx, messagex.Topic(d.c.Events.Topic))
	if err != nil {
		return err
	}

	for msg := range msgs {
		ev, err := featureflagx.ParseFlagChanged(msg)
		if err != nil {
			d.l.WithError(err).Warn(ctx, "dropping malformed flag change event", attribute.String("message_id", msg.ID))
			continue
		}
		d.l.Debug(msg.ExtractTraceContext(ctx), "flag change event received",
			attribute.String("flag", ev.Flag.String()),
			attribute.Bool("enabled", ev.Enabled),
		)
	}
	return nil
}

func (d *Daemon) close(ctx context.Context) {
	// Listeners are already closed once the servers are shut down.
	for _, lis := range []net.Listener{d.httpLis, d.grpcLis} {
		if lis != nil {
			_ = lis.Close()
		}
	}
	if d.pubsub != nil {
		if err := d.pubsub.Close(); err != nil {
			d.l.WithError(err).Warn(ctx, "could not close pubsub")
		}
	}
	if d.storage != nil {
		if err := kvx.Close(d.storage); err != nil {
			d.l.WithError(err).Warn(ctx, "could not close storage")
		}
	}
	if d.meter != nil {
		if err := d.meter.Shutdown(ctx); err != nil {
			d.l.WithError(err).Warn(ctx, "could not flush metrics")
		}
	}
	if d.tracer != nil {
		if err := d.tracer.Shutdown(ctx); err != nil {
			d.l.WithError(err).Warn(ctx, "could not flush traces")
		}
	}
}
