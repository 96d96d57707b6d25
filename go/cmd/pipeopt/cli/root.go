/*
Copyright 2026 The Vitess Authors.

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

// Package cli implements the pipeopt commands.
package cli

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/liqd-js/mongodb-query-optimizer/go/flagutil"
	"github.com/liqd-js/mongodb-query-optimizer/go/log"
)

// Configuration keys. Nested keys map to sections of the config file and
// to PIPEOPT_ environment variables with dots and dashes turned into
// underscores, e.g. PIPEOPT_SERVER_ADDR.
const (
	keyInputFormat      = "input-format"
	keyOutputFormat     = "output-format"
	keyStrict           = "strict"
	keyIndent           = "indent"
	keyLogFormat        = "log-fmt"
	keyLogLevel         = "log-level"
	keyServerAddr       = "server.addr"
	keyCacheTTL         = "server.cache-ttl"
	keyCacheCleanup     = "server.cache-cleanup"
	keyMaxBodyBytes     = "server.max-body-bytes"
	keyBatchConcurrency = "batch.concurrency"
)

const envPrefix = "PIPEOPT"

// NewRoot returns the pipeopt command tree with its own configuration.
func NewRoot() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	var configFile string
	root := &cobra.Command{
		Use:   "pipeopt",
		Short: "pipeopt reorders and prunes MongoDB aggregation pipelines.",
		Long: "`pipeopt` statically analyzes an aggregation pipeline, works out which stages depend on which,\n" +
			"and emits an equivalent pipeline with selective stages first and joins last.\n" +
			"Pipelines ending in `$count` also lose every stage that cannot change the count.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configFile != "" {
				v.SetConfigFile(configFile)
				if err := v.ReadInConfig(); err != nil {
					return err
				}
			}
			if err := log.Init(cmd.Flags()); err != nil {
				return err
			}
			if !cmd.Flags().Changed(keyLogFormat) && v.IsSet(keyLogFormat) {
				return log.Configure(v.GetString(keyLogFormat), v.GetString(keyLogLevel))
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			log.Flush()
		},
	}

	fs := root.PersistentFlags()
	flagutil.SetFlagStringVar(fs, &configFile, "config", "", "Path to a config file (yaml, json or toml).")
	fs.String(keyInputFormat, "", "Input encoding: json, yaml or bson. Guessed from the file extension when empty.")
	log.RegisterFlags(fs)
	for _, key := range []string{keyInputFormat, keyLogFormat, keyLogLevel} {
		bindFlag(v, key, fs.Lookup(key))
	}

	root.AddCommand(
		newOptimizeCommand(v),
		newExplainCommand(v),
		newGraphCommand(v),
		newServeCommand(v),
	)
	return root
}

// bindFlag makes the flag the highest priority source of key. It panics on
// a nil flag, which is a registration bug.
func bindFlag(v *viper.Viper, key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}
