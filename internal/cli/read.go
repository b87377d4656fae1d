package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var readCmd = &cobra.Command{
	Use:   "read <path>",
	Short: "Print a note's content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := cl.ReadNote(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(map[string]string{"path": args[0], "content": content})
		}
		fmt.Print(content)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(readCmd)
}
