package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "List every tag with the notes carrying it",
	RunE: func(cmd *cobra.Command, args []string) error {
		index := cl.TagIndex()
		if flagJSON {
			return printJSON(index)
		}

		tags := make([]string, 0, len(index))
		for tag := range index {
			tags = append(tags, tag)
		}
		sort.Strings(tags)
		for _, tag := range tags {
			fmt.Printf("#%s (%d)\n", tag, len(index[tag]))
			for _, path := range index[tag] {
				fmt.Printf("  %s\n", path)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tagsCmd)
}
