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

	"github.com/spf13/cobra"

	"github.com/pitchroom/dealflow/config"
	"github.com/pitchroom/dealflow/database"
)

// migrateCommands creates the command that provisions the database schema.
// ConnectDB creates every table idempotently, so running this against an
// existing database is a no-op.
func migrateCommands(_ *dealflowInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "create or update the dealflow schema",
		Run: func(cmd *cobra.Command, args []string) {
			cnf, err := config.Fetch()
			if err != nil {
				log.Printf("Error fetching config: %v", err)
				return
			}

			_, err = database.ConnectDB(cnf.DataSource.Dns)
			if err != nil {
				log.Printf("Error connecting to database: %v", err)
				return
			}

			fmt.Println("Schema is up to date!")
		},
	}

	return cmd
}
