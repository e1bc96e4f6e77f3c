// Command swarm opens the interactive viewer on a simulation built from
// a config file or a model/algorithm pair.
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/pthm-cable/swarm/config"
	"github.com/pthm-cable/swarm/game"
	"github.com/pthm-cable/swarm/sim"
)

var (
	configPath = flag.String("config", "", "Engine config YAML (empty = embedded defaults)")
	modelID    = flag.String("model", "", "Model id (overrides config; see -list)")
	algoID     = flag.String("algorithm", "", "Algorithm id (overrides config; see -list)")
	list       = flag.Bool("list", false, "List models and algorithms, then exit")
	debug      = flag.Bool("debug", false, "Verbose logging")
)

func main() {
	flag.Parse()

	if *list {
		printCatalog()
		return
	}

	log, err := buildLogger(*debug)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	s, err := buildSim()
	if err != nil {
		log.Fatal("engine construction failed", zap.Error(err))
	}

	game.New(s, log).Run()
}

func buildSim() (*sim.Sim, error) {
	if *modelID != "" || *algoID != "" {
		model := *modelID
		if model == "" {
			model = sim.ModelPoint
		}
		algo := *algoID
		if algo == "" {
			for _, m := range sim.AvailableModels() {
				if m.ID == model {
					algo = m.DefaultAlgorithm
				}
			}
		}
		return sim.NewWithIDs(model, algo)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, err
	}
	return sim.NewFromConfig(cfg)
}

func buildLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func printCatalog() {
	fmt.Println("models:")
	for _, m := range sim.AvailableModels() {
		fmt.Printf("  %-8s %s (default algorithm %s)\n", m.ID, m.Description, m.DefaultAlgorithm)
		algos, _ := sim.AlgorithmsForModel(m.ID)
		for _, a := range algos {
			fmt.Printf("           - %-20s %s\n", a.ID, a.Description)
		}
	}
}
