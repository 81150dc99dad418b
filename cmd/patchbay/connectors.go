package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/patchbay-io/patchbay/internal/connectors/vaultkv"
	"github.com/patchbay-io/patchbay/internal/connectors/webhook"
	"github.com/patchbay-io/patchbay/internal/registry"
)

func buildRegistry() (*registry.Registry, error) {
	reg := registry.New()
	if err := reg.Register(webhook.Definition(), webhook.Factory); err != nil {
		return nil, err
	}
	if err := reg.Register(vaultkv.Definition(), vaultkv.Factory); err != nil {
		return nil, err
	}
	return reg, nil
}

var connectorsCmd = &cobra.Command{
	Use:   "connectors [query]",
	Short: "List the built-in integration catalog",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := buildRegistry()
		if err != nil {
			return err
		}

		defs := reg.Definitions()
		if len(args) == 1 {
			defs = reg.Search(args[0])
		}
		if len(defs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no integrations match")
			return nil
		}

		w := cmd.OutOrStdout()
		for _, def := range defs {
			fmt.Fprintf(w, "%-12s %-24s %s\n", def.ID, def.DisplayName, def.Description)
			actions := make([]string, 0)
			factory, err := reg.Resolve(def.ID)
			if err != nil {
				return err
			}
			conn, err := factory(map[string]any{}, map[string]string{})
			if err != nil {
				continue
			}
			for _, a := range conn.Actions() {
				actions = append(actions, a.ID)
			}
			if len(actions) > 0 {
				fmt.Fprintf(w, "%-12s actions: %s\n", "", strings.Join(actions, ", "))
			}
		}
		return nil
	},
}
