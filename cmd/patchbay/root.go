package main

import (
	"sync"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "patchbay",
	Short:         "Patchbay hosts integration connectors and dispatches their actions.",
	SilenceErrors: true,
	SilenceUsage:  true,
}

// commandExecutionContext records which command is running so fatal-path
// reporting can match it: long-running commands log structured records,
// one-shot commands print plain text.
type commandExecutionContext struct {
	CommandPath       string
	UsesStructuredLog bool
}

var (
	execCtxMu sync.Mutex
	execCtx   commandExecutionContext
)

func setCommandExecutionContext(ctx commandExecutionContext) {
	execCtxMu.Lock()
	defer execCtxMu.Unlock()
	execCtx = ctx
}

func currentCommandExecutionContext() commandExecutionContext {
	execCtxMu.Lock()
	defer execCtxMu.Unlock()
	return execCtx
}

func resetCommandExecutionContext() {
	setCommandExecutionContext(commandExecutionContext{})
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, _ []string) {
		structured := cmd == serveCmd || cmd == migrateCmd
		setCommandExecutionContext(commandExecutionContext{
			CommandPath:       cmd.CommandPath(),
			UsesStructuredLog: structured,
		})
	}
	rootCmd.AddCommand(serveCmd, migrateCmd, connectorsCmd, keygenCmd)
}
