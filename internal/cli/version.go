package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/flightctl/gitlab-auth/pkg/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type VersionOptions struct {
	Output string

	out io.Writer
}

func DefaultVersionOptions() *VersionOptions {
	return &VersionOptions{
		Output: "",
	}
}

func NewCmdVersion() *cobra.Command {
	o := DefaultVersionOptions()
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print gitlab-auth version information.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Complete(cmd, args); err != nil {
				return err
			}
			if err := o.Validate(args); err != nil {
				return err
			}
			return o.Run(cmd.Context(), args)
		},
		SilenceUsage: true,
	}
	o.Bind(cmd.Flags())
	return cmd
}

func (o *VersionOptions) Bind(fs *pflag.FlagSet) {
	fs.StringVarP(&o.Output, "output", "o", o.Output, outputFlagUsage())
}

func (o *VersionOptions) Complete(cmd *cobra.Command, args []string) error {
	o.out = cmd.OutOrStdout()
	return nil
}

func (o *VersionOptions) Validate(args []string) error {
	return validateOutput(o.Output)
}

func (o *VersionOptions) Run(ctx context.Context, args []string) error {
	info := version.Get()
	if o.Output == "" {
		_, err := fmt.Fprintf(o.out, "%s version: %s\n", appName, info.String())
		return err
	}
	return printStructured(o.out, o.Output, &info)
}
