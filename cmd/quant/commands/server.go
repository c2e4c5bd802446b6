package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/kquant/internal/web"
	"github.com/wonny/kquant/pkg/redis"
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "대시보드 API 서버 시작",
	Long: `스코어링 결과를 제공하는 REST API 서버를 시작합니다.

Endpoints:
  GET  /health                 - Health check
  GET  /api/stocks             - 스코어링된 유니버스 (필터/정렬/페이징)
  GET  /api/stocks/{code}      - 종목 상세 + 최근 60일 주가
  GET  /api/screens/{name}     - 스타일 스크린 평가
  GET  /api/reports/{code}     - 정성 분석 보고서
  GET  /api/status             - 상태 조회
  POST /api/pipeline/trigger   - 파이프라인 수동 실행

Example:
  go run ./cmd/quant server
  go run ./cmd/quant server --port 8080`,
	RunE: runServer,
}

var serverPort string

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().StringVar(&serverPort, "port", "", "API 서버 포트 (기본값은 PORT 환경변수)")
}

func runServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== kquant API Server ===")

	ctx := cmd.Context()
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	if serverPort != "" {
		rt.cfg.Port = serverPort
	}

	// Redis는 선택 사항: 연결 실패 시 캐시 없이 동작
	var cache *redis.Cache
	if redisClient, err := redis.New(rt.cfg); err != nil {
		rt.log.WithError(err).Warn("Redis 연결 실패, 캐시 비활성화")
	} else {
		defer redisClient.Close()
		cache = redis.NewCache(redisClient, "kquant")
	}

	handler := web.NewHandler(rt.log, rt.dashboard, rt.prices, rt.reports, cache, rt.newRunner())
	router := web.NewRouter(handler, rt.log)
	server := web.New(rt.cfg, rt.log, router)

	go func() {
		if err := server.Start(); err != nil {
			rt.log.WithError(err).Fatal("Failed to start server")
		}
	}()

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", rt.cfg.Port)
	fmt.Println("Press Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}
