/*
Copyright 2024 Pitchroom Authors.

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
	"log"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pitchroom/dealflow"
	"github.com/pitchroom/dealflow/config"
	"github.com/pitchroom/dealflow/database"
	"github.com/pitchroom/dealflow/internal/notification"
)

// Dealflow represents the CLI application, encapsulating the root Cobra command.
type Dealflow struct {
	cmd *cobra.Command
}

// dealflowInstance holds the engine instance and its configuration so
// subcommands can share them after preRun.
type dealflowInstance struct {
	engine *dealflow.Dealflow
	cnf    *config.Configuration
}

// recoverPanic handles any panics during program execution and logs the error.
func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads the configuration and initializes the engine before running any command.
func preRun(app *dealflowInstance) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig("dealflow.json")
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		engine, err := setupDealflow(cnf)
		if err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}

		app.engine = engine
		app.cnf = cnf

		return nil
	}
}

// setupDealflow creates a new engine wired to the configured data source.
func setupDealflow(cfg *config.Configuration) (*dealflow.Dealflow, error) {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}

	engine, err := dealflow.NewDealflow(db)
	if err != nil {
		return nil, fmt.Errorf("error creating dealflow: %v", err)
	}
	return engine, nil
}

// NewCLI creates the command-line interface for the dealflow application.
func NewCLI() *Dealflow {
	var configFile string
	d := &dealflowInstance{}

	var rootCmd = &cobra.Command{
		Use:   "dealflow",
		Short: "Deal negotiation engine for creative pitches",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./dealflow.json", "Configuration file for dealflow")

	rootCmd.PersistentPreRunE = preRun(d)

	rootCmd.AddCommand(serverCommands(d))
	rootCmd.AddCommand(workerCommands(d))
	rootCmd.AddCommand(migrateCommands(d))
	rootCmd.AddCommand(configCommands())

	return &Dealflow{cmd: rootCmd}
}

// executeCLI runs the root command, handling any errors that occur during execution.
func (w Dealflow) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
