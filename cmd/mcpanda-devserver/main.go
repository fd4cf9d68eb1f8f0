// Package main runs the MCPanda development backend.
//
// It serves the community API with cookie credentials and refresh rotation,
// backed by miniredis unless REDIS_ADDR is set.
//
// Endpoints:
//
//	POST /api/dev/login       JSON {"email":"..."}; sets accessToken and refreshToken cookies
//	POST /api/auth/reissue    rotates the refresh token and mints a new access token
//	POST /api/auth/logout     revokes the refresh family and clears cookies
//	GET  /api/members/me      guarded profile
//	     /api/articles, /api/comments, /api/mcps
//
// Run:
//
//	go run ./cmd/mcpanda-devserver -addr :8080
//
// Then:
//
//	curl -i -c jar.txt -X POST localhost:8080/api/dev/login \
//	  -H 'Content-Type: application/json' -d '{"email":"alice@example.com"}'
//	curl -i -b jar.txt localhost:8080/api/members/me
//	curl -i -b jar.txt -c jar.txt -X POST localhost:8080/api/auth/reissue
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrEthical07/goAuthClient/internal/devserver"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func main() {
	var (
		addr      = flag.String("addr", ":8080", "listen address")
		redisAddr = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "mcpanda-dev ", log.LstdFlags)

	cfg, err := devserver.LoadConfigFromEnv()
	if err != nil {
		logger.Fatal("config: ", err)
	}

	// ---------- infrastructure ----------
	raddr := *redisAddr
	if raddr == "" {
		raddr = os.Getenv("REDIS_ADDR")
	}
	if raddr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			logger.Fatal("miniredis: ", err)
		}
		defer mr.Close()
		raddr = mr.Addr()
		logger.Printf("using miniredis at %s", raddr)
	} else {
		logger.Printf("using redis at %s", raddr)
	}

	rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{raddr}})
	defer rdb.Close()

	// ---------- server ----------
	srv, err := devserver.New(cfg, rdb, logger)
	if err != nil {
		logger.Fatal("devserver: ", err)
	}

	hs := &http.Server{
		Addr:              *addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = hs.Shutdown(shutdownCtx)
	}()

	logger.Printf("listening on %s", *addr)
	if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal(err)
	}
}
