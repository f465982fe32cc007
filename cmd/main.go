/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"fmt"
	"os"

	"github.com/kassa-labs/recon"
	"github.com/kassa-labs/recon/config"
	"github.com/kassa-labs/recon/database"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// CLI wraps the root Cobra command.
type CLI struct {
	cmd *cobra.Command
}

// reconInstance holds the engine and the configuration it was built from.
type reconInstance struct {
	recon *recon.Recon
	cnf   *config.Configuration
}

func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads the configuration and builds the engine before any command runs.
func preRun(app *reconInstance, configFile *string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := config.InitConfig(*configFile); err != nil {
			return fmt.Errorf("error loading config: %w", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}
		cnf.ConfigureLogging()

		newRecon, err := setupRecon(cnf)
		if err != nil {
			return err
		}

		app.recon = newRecon
		app.cnf = cnf
		return nil
	}
}

func setupRecon(cfg *config.Configuration) (*recon.Recon, error) {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}

	newRecon, err := recon.NewRecon(db)
	if err != nil {
		return nil, fmt.Errorf("error creating recon: %v", err)
	}
	return newRecon, nil
}

func NewCLI() *CLI {
	var configFile string
	r := &reconInstance{}

	var rootCmd = &cobra.Command{
		Use:   "recon",
		Short: "Reconciliation matching engine",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./recon.json", "Configuration file for the recon server")
	rootCmd.PersistentPreRunE = preRun(r, &configFile)

	rootCmd.AddCommand(serverCommands(r))
	rootCmd.AddCommand(migrateCommands(r))
	rootCmd.AddCommand(autoMatchCommands(r))

	return &CLI{cmd: rootCmd}
}

func (c CLI) executeCLI() {
	if err := c.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
