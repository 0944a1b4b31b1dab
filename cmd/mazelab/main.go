package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"firemaze.ai/internal/sim/tuning"
)

var (
	configPath  string
	dataDirFlag string
)

var rootCmd = &cobra.Command{
	Use:   "mazelab",
	Short: "Generate fire mazes, search them and sweep survival statistics",
	Long: `mazelab generates n×n mazes with random obstacles, finds paths with DFS, BFS
and A*, and simulates spreading fire against escape strategies.

Examples:
  mazelab solve --dim 20 --density 0.3 --seed 7
  mazelab sweep fire --config configs/experiment.yaml
  mazelab report --run <run-id>`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "experiment YAML (defaults when empty)")
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data", "", "data directory (overrides data_dir)")
	rootCmd.AddCommand(solveCmd, sweepCmd, reportCmd)
}

func newLogger() *log.Logger {
	return log.New(os.Stdout, "[mazelab] ", log.LstdFlags|log.Lmicroseconds)
}

// loadConfig applies the config file and the --data override.
func loadConfig() (tuning.Experiment, error) {
	cfg, err := tuning.Load(configPath)
	if err != nil {
		return cfg, err
	}
	if dataDirFlag != "" {
		cfg.DataDir = dataDirFlag
	}
	return cfg, nil
}

func indexPath(dataDir string) string {
	return filepath.Join(dataDir, "index", "firemaze.sqlite")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "mazelab:", err)
		os.Exit(1)
	}
}
