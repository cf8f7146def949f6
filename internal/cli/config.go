package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/flightctl/gitlab-auth/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type ConfigViewOptions struct {
	GlobalOptions

	Output string

	out io.Writer
}

func DefaultConfigViewOptions() *ConfigViewOptions {
	return &ConfigViewOptions{
		GlobalOptions: DefaultGlobalOptions(),
		Output:        yamlFormat,
	}
}

func NewCmdConfig() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the service configuration.",
	}
	cmd.AddCommand(NewCmdConfigView())
	return cmd
}

func NewCmdConfigView() *cobra.Command {
	o := DefaultConfigViewOptions()
	cmd := &cobra.Command{
		Use:   "view",
		Short: "Print the effective configuration with secrets redacted.",
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

func (o *ConfigViewOptions) Bind(fs *pflag.FlagSet) {
	o.GlobalOptions.Bind(fs)
	fs.StringVarP(&o.Output, "output", "o", o.Output, outputFlagUsage())
}

func (o *ConfigViewOptions) Complete(cmd *cobra.Command, args []string) error {
	if err := o.GlobalOptions.Complete(cmd, args); err != nil {
		return err
	}
	o.out = cmd.OutOrStdout()
	return nil
}

func (o *ConfigViewOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}
	return validateOutput(o.Output)
}

// Run prints the configuration as loaded, before validation, so that a
// broken file can still be inspected.
func (o *ConfigViewOptions) Run(ctx context.Context, args []string) error {
	cfg, err := config.Load(o.ConfigFilePath)
	if err != nil {
		return fmt.Errorf("reading configuration: %w", err)
	}
	output := o.Output
	if output == "" {
		output = yamlFormat
	}
	return printStructured(o.out, output, cfg)
}
