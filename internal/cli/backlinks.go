package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var backlinksDetailed bool

var backlinksCmd = &cobra.Command{
	Use:   "backlinks <path>",
	Short: "List the notes linking to a note",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if backlinksDetailed {
			backlinks, err := cl.DetailedBacklinks(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if flagJSON {
				return printJSON(backlinks)
			}
			for _, bl := range backlinks {
				fmt.Printf("%s (%d)\n", bl.Source, bl.Count)
				for _, pos := range bl.Positions {
					fmt.Printf("  %d:%d\n", pos.Line+1, pos.Col+1)
				}
			}
			return nil
		}

		nc, err := cl.GetNoteContext(args[0])
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(nc.Backlinks)
		}
		if len(nc.Backlinks) == 0 {
			fmt.Println("no backlinks")
			return nil
		}
		for _, source := range nc.Backlinks {
			fmt.Println(source)
		}
		return nil
	},
}

func init() {
	backlinksCmd.Flags().BoolVar(&backlinksDetailed, "detailed", false, "include line/column positions per link")
	rootCmd.AddCommand(backlinksCmd)
}
