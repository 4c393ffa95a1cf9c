/*
Copyright 2026 The KServe Authors.

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
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/kserve/tensorwire/pkg/client"
	"github.com/kserve/tensorwire/pkg/config"
	"github.com/kserve/tensorwire/pkg/constants"
	"github.com/kserve/tensorwire/pkg/logging"
	"github.com/kserve/tensorwire/pkg/tensor"
	"github.com/kserve/tensorwire/pkg/wire"
)

type callFlags struct {
	shape    []int64
	values   []float32
	identity string
	h2c      bool
}

// input builds the request tensor, or nil when no values were given.
func (f *callFlags) input() (*tensor.Tensor, error) {
	if len(f.values) == 0 && len(f.shape) == 0 {
		return nil, nil
	}
	x := tensor.FromFloat32s(f.values)
	if f.shape == nil {
		return x, nil
	}
	return x.Reshape(tensor.Shape(f.shape))
}

func newCallCommand() *cobra.Command {
	flags := &callFlags{}
	cmd := &cobra.Command{
		Use:   "call URL",
		Short: "Send a tensor to a dispatcher route and print the reply",
		Example: `  tensorwire call http://localhost:8080/echo --shape 2,3 --values 1,2,3,4,5,6
  tensorwire call http://localhost:8080/ping`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadClient()
			if err != nil {
				return err
			}
			input, err := flags.input()
			if err != nil {
				return err
			}
			zapLogger, err := logging.NewLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer func() { _ = zapLogger.Sync() }()

			opts := []client.Option{
				client.WithTimeout(cfg.Timeout),
				client.WithIdentityHeader(cfg.IdentityHeader),
				client.WithLogger(logging.NewLogr(zapLogger, "client")),
			}
			if flags.identity != "" {
				opts = append(opts, client.WithIdentity(flags.identity))
			}
			if flags.h2c {
				opts = append(opts, client.WithH2C())
			}
			reply, err := client.New(opts...).CallRaw(cmd.Context(), args[0], input)
			if err != nil {
				return err
			}
			return printReply(cmd.OutOrStdout(), reply)
		},
	}
	cmd.Flags().Int64SliceVar(&flags.shape, "shape", nil, "Tensor shape, defaults to a flat vector of the values")
	cmd.Flags().Float32SliceVar(&flags.values, "values", nil, "Row-major tensor elements; omit to send no body")
	cmd.Flags().StringVar(&flags.identity, "identity", "", "Caller identity, defaults to one derived from this process")
	cmd.Flags().BoolVar(&flags.h2c, "h2c", false, "Use cleartext HTTP/2 with prior knowledge")
	return cmd
}

func printReply(out io.Writer, reply *client.Reply) error {
	switch {
	case len(reply.Body) == 0:
		_, err := fmt.Fprintln(out, "(empty)")
		return err
	case reply.IsFrame():
		t, err := wire.Decode(reply.Body)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "%s %v\n", t, t.Float32s())
		return err
	case strings.HasPrefix(reply.ContentType, constants.BinaryContentType):
		_, err := fmt.Fprintf(out, "%d bytes %x\n", len(reply.Body), reply.Body)
		return err
	case gjson.ValidBytes(reply.Body):
		_, err := fmt.Fprint(out, gjson.GetBytes(reply.Body, "@pretty").String())
		return err
	default:
		_, err := fmt.Fprintln(out, strings.TrimRight(string(reply.Body), "\n"))
		return err
	}
}
