// Command gateway runs the reverse-proxy process: it loads its ruleset and
// authentication configuration, builds the engine and its three listeners
// (public traffic, internal token-reference API, observability), and
// serves until an interrupt triggers a graceful shutdown, following the
// donor gateway's main.go wiring sequence.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/logging"
	"github.com/go-redis/redis/v8"

	"github.com/corvid-gateway/gateway/authn"
	"github.com/corvid-gateway/gateway/config"
	"github.com/corvid-gateway/gateway/forwarder"
	"github.com/corvid-gateway/gateway/httpnet"
	"github.com/corvid-gateway/gateway/ratelimit"
	"github.com/corvid-gateway/gateway/ruleset"
	"github.com/corvid-gateway/gateway/server"
	"github.com/corvid-gateway/gateway/service"
	"github.com/corvid-gateway/gateway/store"
	"github.com/corvid-gateway/gateway/telemetry"
)

func main() {
	logger := log.New(os.Stdout, "gateway: ", log.LstdFlags)
	logger.Println("server is starting")

	input, err := config.Load()
	if err != nil {
		logger.Fatalf("load configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rulesetBytes, err := os.ReadFile(input.RulesetFile)
	if err != nil {
		logger.Fatalf("read ruleset file: %v", err)
	}
	rules, err := ruleset.Load(rulesetBytes)
	if err != nil {
		logger.Fatalf("load ruleset: %v", err)
	}

	authFile, err := os.Open(input.AuthFile)
	if err != nil {
		logger.Fatalf("open authentication config: %v", err)
	}
	authConfig, err := authn.ParseConfig(authFile)
	authFile.Close()
	if err != nil {
		logger.Fatalf("parse authentication config: %v", err)
	}

	secretSource, closeSource, err := authn.MakeSource(ctx, input.SecretSource, input.GCPProjectID)
	if err != nil {
		logger.Fatalf("build secret source: %v", err)
	}
	defer closeSource()

	factory := authn.NewFactory(secretSource, authConfig)

	var (
		tokenStore store.Store
		limiter    ratelimit.Strategy
	)
	if input.UseRedis {
		tokenStore = store.NewRedisStore(store.RedisConfig{Host: input.RedisHost, Port: input.RedisPort})
		limiter = ratelimit.NewSortedSetCounterStrategy(redis.NewClient(&redis.Options{
			Addr: fmt.Sprintf("%s:%d", input.RedisHost, input.RedisPort),
		}))
	} else {
		tokenStore = store.NewMemoryStore()
		limiter = ratelimit.NewMemoryCounter()
	}

	registry, err := factory.Build(ctx, tokenStore)
	if err != nil {
		logger.Fatalf("build authentication registry: %v", err)
	}

	referenceIssuer, valueParser, referenceParser, err := factory.Reference(ctx)
	if err != nil {
		logger.Fatalf("build phantom-token reference material: %v", err)
	}
	tokenReference := service.NewTokenReference(tokenStore, valueParser, referenceParser, referenceIssuer)
	tokenReferenceServer := service.NewTokenReferenceServer(tokenReference)

	logProject := input.GCPProjectID
	if logProject == "" {
		logProject = "local"
	}
	logClient, err := logging.NewClient(ctx, fmt.Sprintf("projects/%s", logProject))
	if err != nil {
		logger.Fatalf("build cloud logging client: %v", err)
	}
	defer logClient.Close()
	// RedirectAsJSON writes structured entries to our own stdout instead of
	// calling the Cloud Logging API directly, the shape a container's log
	// collector (e.g. a GKE node's fluentd) expects to ingest.
	cloudLogger := logClient.Logger("gateway", logging.RedirectAsJSON(os.Stdout))

	health := &server.Health{}
	metrics := telemetry.NewMetrics()
	logSink := telemetry.NewLogSink(cloudLogger)

	engine := forwarder.ProxyEngine{Telemetry: logSink, Now: time.Now}
	client := httpnet.NewClient(httpnet.NewTransport(httpnet.TransportOptions{}))

	gateway := NewGateway(engine, client, rules, registry, limiter, ratelimit.KeyFromRemoteAddr(), logger)
	gatewayHandler := telemetry.WithMetrics(metrics.RequestsRouted, metrics.RequestsDuration)(
		telemetry.WithLogging(cloudLogger)(gateway),
	)

	gatewaySrv := server.NewGateway(input.GatewayServerConfig(), gatewayHandler)
	internalSrv := server.NewInternal(input.InternalServerConfig(), map[string]http.Handler{
		"/internal/token-reference": http.HandlerFunc(tokenReferenceServer.HandleAssociation),
	})
	observabilitySrv := server.NewObservability(input.ObservabilityServerConfig(), health.Handler())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Println("public listener ready at", input.GatewayServerConfig().Address)
		if err := gatewaySrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("public listener stopped: %v", err)
		}
	}()
	go func() {
		logger.Println("internal listener ready at", input.InternalServerConfig().Address)
		if err := internalSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("internal listener stopped: %v", err)
		}
	}()
	go func() {
		logger.Println("observability listener ready at", input.ObservabilityServerConfig().Address)
		if err := observabilitySrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("observability listener stopped: %v", err)
		}
	}()

	health.MarkReady()

	<-quit
	logger.Println("server is shutting down")
	health.MarkNotReady()

	if err := server.Shutdown(ctx, gatewaySrv, input.GatewayServerConfig()); err != nil {
		logger.Printf("shut down public listener: %v", err)
	}
	if err := server.Shutdown(ctx, internalSrv, input.InternalServerConfig()); err != nil {
		logger.Printf("shut down internal listener: %v", err)
	}
	if err := server.Shutdown(ctx, observabilitySrv, input.ObservabilityServerConfig()); err != nil {
		logger.Printf("shut down observability listener: %v", err)
	}

	logger.Println("server stopped")
}
