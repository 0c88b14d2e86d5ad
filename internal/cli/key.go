package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var keyAsFile bool

// keyCmd represents the key command
var keyCmd = &cobra.Command{
	Use:   "key <text>...",
	Short: "Print the match key for titles or file names",
	Example: `  concordia key "Asia Fintech Outlook - Full Report"
  concordia key --file asia-fintech-outlook.pdf`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		a := &app{cfg: cfg}
		n := a.normalizer()

		for _, arg := range args {
			key := n.Title(arg)
			if keyAsFile {
				key = n.File(arg)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%q\n", arg, key)
		}
		return nil
	},
}

func init() {
	keyCmd.Flags().BoolVar(&keyAsFile, "file", false, "treat arguments as file names (strip directory and extension)")
	rootCmd.AddCommand(keyCmd)
}
