package dmap

import (
	"fmt"

	"github.com/jdefrancesco/dups/pkg/utils"

	"github.com/pterm/pterm"
	"github.com/pterm/pterm/putils"
)

// leveledList turns res into a pterm leveled list: one level-0 item per
// group, its members at level 1.
func leveledList(res *ScanResult) pterm.LeveledList {
	var list pterm.LeveledList

	for _, g := range res.Groups {
		header := fmt.Sprintf("%s - %d copies of %s", g.Hash.Short(), len(g.Files),
			utils.DisplaySize(uint64(max(g.Size(), 0)))) // #nosec G115
		list = append(list, pterm.LeveledListItem{Level: 0, Text: header})

		for i, f := range g.Files {
			text := pterm.Red(f.FileName()) + pterm.Gray(" (redundant)")
			if i == 0 {
				text = pterm.Green(f.FileName()) + pterm.Gray(" (original)")
			}
			list = append(list, pterm.LeveledListItem{Level: 1, Text: text})
		}
	}
	return list
}

// ShowResults displays the duplicate groups of res as a pretty tree.
func ShowResults(res *ScanResult) error {
	if len(res.Groups) == 0 {
		pterm.Info.Println("No duplicates found.")
		return nil
	}

	root := putils.TreeFromLeveledList(leveledList(res))
	return pterm.DefaultTree.WithRoot(root).Render()
}

// ShowWarnings prints every warning collected during the run.
func ShowWarnings(res *ScanResult) {
	for _, err := range res.Warnings {
		pterm.Warning.Println(err.Error())
	}
}
