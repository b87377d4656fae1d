package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var listFolder string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all notes in the vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		notes := cl.ListNotes()
		if listFolder != "" {
			prefix := strings.TrimSuffix(listFolder, "/") + "/"
			filtered := notes[:0]
			for _, path := range notes {
				if strings.HasPrefix(path, prefix) {
					filtered = append(filtered, path)
				}
			}
			notes = filtered
		}
		if flagJSON {
			return printJSON(notes)
		}
		for _, path := range notes {
			fmt.Println(path)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().StringVar(&listFolder, "folder", "", "restrict to notes under this folder")
	rootCmd.AddCommand(listCmd)
}
