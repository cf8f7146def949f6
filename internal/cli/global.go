package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/flightctl/gitlab-auth/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"sigs.k8s.io/yaml"
)

const (
	appName = "gitlab-auth"

	jsonFormat = "json"
	yamlFormat = "yaml"
)

var legalOutputTypes = []string{jsonFormat, yamlFormat}

// GlobalOptions are shared by every command that reads the service
// configuration.
type GlobalOptions struct {
	ConfigFilePath string
}

func DefaultGlobalOptions() GlobalOptions {
	return GlobalOptions{
		ConfigFilePath: config.ConfigFile(),
	}
}

func (o *GlobalOptions) Bind(fs *pflag.FlagSet) {
	fs.StringVar(&o.ConfigFilePath, "config", o.ConfigFilePath, "Path to the configuration file (.properties or .yaml).")
}

func (o *GlobalOptions) Complete(cmd *cobra.Command, args []string) error {
	return nil
}

func (o *GlobalOptions) Validate(args []string) error {
	if strings.TrimSpace(o.ConfigFilePath) == "" {
		return fmt.Errorf("--config must not be empty")
	}
	return nil
}

func validateOutput(output string) error {
	if len(output) > 0 && !slices.Contains(legalOutputTypes, output) {
		return fmt.Errorf("output format must be one of (%s)", strings.Join(legalOutputTypes, ", "))
	}
	return nil
}

func outputFlagUsage() string {
	return fmt.Sprintf("Output format. One of: (%s).", strings.Join(legalOutputTypes, ", "))
}

// printStructured writes data as yaml or json.
func printStructured(w io.Writer, output string, data any) error {
	switch output {
	case yamlFormat:
		marshalled, err := yaml.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshalling yaml: %w", err)
		}
		_, err = fmt.Fprint(w, string(marshalled))
		return err
	case jsonFormat:
		marshalled, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return fmt.Errorf("marshalling json: %w", err)
		}
		_, err = fmt.Fprintln(w, string(marshalled))
		return err
	default:
		// There is a bug in the program if we hit this case.
		// However, we follow a policy of never panicking.
		return fmt.Errorf("output options were not validated: --output=%q should have been rejected", output)
	}
}
