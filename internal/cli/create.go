package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var createContent string

var createCmd = &cobra.Command{
	Use:   "create <path>",
	Short: "Create a new note",
	Long: `Create a new note at the given path (.md is appended when missing).
Content comes from --content, or from stdin when --content is not given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		content := createContent
		if !cmd.Flags().Changed("content") {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return err
			}
			content = string(data)
		}

		f, err := cl.CreateNote(cmd.Context(), args[0], content)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(map[string]string{"path": f.Path()})
		}
		fmt.Println("created", f.Path())
		return nil
	},
}

func init() {
	createCmd.Flags().StringVar(&createContent, "content", "", "note content (default: read from stdin)")
	rootCmd.AddCommand(createCmd)
}
