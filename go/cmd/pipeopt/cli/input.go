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

package cli

import (
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/liqd-js/mongodb-query-optimizer/go/bson"
	"github.com/liqd-js/mongodb-query-optimizer/go/opterrors"
	"github.com/liqd-js/mongodb-query-optimizer/go/pipeline/pipelineio"
)

// stdinName stands for standard input in file arguments.
const stdinName = "-"

// readPipeline decodes the pipeline in the named file, or in standard input
// for "-". The format comes from the configuration, or else from the file
// extension.
func readPipeline(cmd *cobra.Command, v *viper.Viper, name string) ([]bson.D, error) {
	format, err := inputFormat(v, name)
	if err != nil {
		return nil, err
	}

	var data []byte
	if name == stdinName {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(name)
	}
	if err != nil {
		return nil, opterrors.Wrapf(err, "reading %s", name)
	}

	docs, err := pipelineio.Decode(data, format)
	if err != nil {
		return nil, opterrors.Wrapf(err, "decoding %s", name)
	}
	return docs, nil
}

func inputFormat(v *viper.Viper, name string) (pipelineio.Format, error) {
	if f := v.GetString(keyInputFormat); f != "" {
		return pipelineio.ParseFormat(f)
	}
	switch ext := filepath.Ext(name); ext {
	case ".yaml", ".yml", ".bson":
		return pipelineio.ParseFormat(ext[1:])
	}
	return pipelineio.FormatJSON, nil
}

// inputName returns the single file argument, defaulting to standard input.
func inputName(args []string) string {
	if len(args) == 0 {
		return stdinName
	}
	return args[0]
}
