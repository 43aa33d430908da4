/*
Copyright (c) Facebook, Inc. and its affiliates.

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
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var verboseFlag bool
var socketFlag string

var rootCmd = &cobra.Command{
	Use:   "dantesyncctl",
	Short: "Query a running dantesyncd instance's sync status",
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&socketFlag, "socket", "s", defaultSocketPath(), "path to the dantesyncd IPC channel")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "dump the full raw snapshot")
	rootCmd.AddCommand(statusCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
