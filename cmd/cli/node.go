// Package cli wires the execution core into a set of cobra commands: one
// per intent the planner understands, plus a query command and an HTTP
// query server.
package cli

import (
	"os"
	"sync"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	cfg "ledgerengine/cmd/config"
	"ledgerengine/core"
)

var (
	nodeOnce     sync.Once
	backend      *core.InMemoryBackend
	worker       *core.Worker
	planner      *core.Planner
	epochPool    *core.EpochPool
	consensusDrv *core.ConsensusDriver
)

// nodeInit wires a single in-process node the first time any command
// runs, following the teacher's sync.Once-guarded PersistentPreRunE
// pattern (cmd/cli/contract_management.go's cmInit).
func nodeInit(cmd *cobra.Command, _ []string) error {
	var err error
	nodeOnce.Do(func() {
		_ = godotenv.Load()
		env := os.Getenv("CORE_ENV")
		cfg.LoadConfig(env)

		backend = core.NewInMemoryBackend()
		metrics, merr := core.NewMetrics(prometheus.NewRegistry())
		if merr != nil {
			err = merr
			return
		}
		worker = core.NewWorker(backend, metrics)
		cache, cerr := core.NewContractCache(256)
		if cerr != nil {
			err = cerr
			return
		}
		planner = core.NewPlanner(cache)
		epochPool = core.NewEpochPool(backend)
		consensusDrv = core.NewConsensusDriver(epochPool)
	})
	return err
}

// RootCmd builds the ledgerengine CLI root command.
func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:               "ledgerctl",
		Short:             "execution/accounting core command line interface",
		PersistentPreRunE: nodeInit,
	}
	root.AddCommand(applyContractCmd, upsertDocumentCmd, deleteDocumentCmd, insertIdentityCmd, withdrawCmd, queryCmd, serveCmd, consensusCmd)
	return root
}
