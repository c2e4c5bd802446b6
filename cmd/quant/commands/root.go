package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	env        string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "quant",
	Short: "kquant - 한국 주식 기본적 분석 & 멀티팩터 스크리너",
	Long: `kquant Unified CLI

KRX/FnGuide 데이터 수집부터 멀티팩터 스코어링, 스타일 스크리닝,
정성 분석 보고서까지 하나의 배치 파이프라인으로 처리합니다.

Usage:
  go run ./cmd/quant [command]

Examples:
  go run ./cmd/quant collect
  go run ./cmd/quant pipeline
  go run ./cmd/quant screen quality_value
  go run ./cmd/quant server`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().StringVar(&env, "env", "development", "environment (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
