package docai

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/docaihq/docai/pkg/config"
	"github.com/docaihq/docai/pkg/log"
)

var (
	cfgFile string
	verbose bool
	cfg     *config.Config
	version = "dev"
)

var RootCmd = &cobra.Command{
	Use:   "docai",
	Short: "DocAI - document question answering service",
	Long: `DocAI ingests PDF, DOCX, TXT and Markdown documents into per-file
vector partitions and answers questions over them with a streaming
retrieval-augmented pipeline.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		log.SetDebug(verbose)
		return nil
	},
}

func Execute() error {
	return RootCmd.Execute()
}

// SetVersion sets the version reported by the CLI.
func SetVersion(v string) {
	version = v
	RootCmd.Version = v
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("DocAI version %s\n", version)
	},
}

func init() {
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "configuration file path (default: ./docai.toml or ~/.docai/docai.toml)")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging output")

	RootCmd.AddCommand(versionCmd)
	RootCmd.AddCommand(serveCmd)
}
