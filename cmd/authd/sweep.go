// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/holomush/authd/internal/auth"
	"github.com/holomush/authd/internal/logging"
)

// NewSweepCmd creates the sweep subcommand.
func NewSweepCmd() *cobra.Command {
	return newSweepCmdWithDeps(nil)
}

func newSweepCmdWithDeps(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired sessions once",
		Long: `Delete every session whose expiry has passed and exit. Expired sessions
are already rejected on lookup; sweeping only reclaims storage.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps = deps.withDefaults()

			cfg, err := loadConfig(cmd.Flags(), nil)
			if err != nil {
				return err
			}
			level, err := logging.ParseLevel(cfg.Log.Level)
			if err != nil {
				return err
			}
			logger := logging.Setup(logging.Options{
				Service: "authd",
				Version: version,
				Format:  cfg.Log.Format,
				Level:   level,
				Writer:  cmd.ErrOrStderr(),
			})

			stores, err := openBackends(cmd.Context(), cfg, deps, false, logger)
			if err != nil {
				return err
			}
			defer stores.close()

			// Interval is unused by SweepOnce.
			sweeper, err := auth.NewSweeper(stores.sessions, auth.SessionTTL, logger)
			if err != nil {
				return err
			}
			n, err := sweeper.SweepOnce(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Printf("Deleted %d expired session(s)\n", n)
			return nil
		},
	}
}
