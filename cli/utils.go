package cli

import (
	"github.com/fatih/color"
	prettyjson "github.com/hokaccha/go-prettyjson"
	"github.com/spf13/cobra"
)

func logJSONCmd(cmd cobra.Command, iList ...any) {
	for _, i := range iList {
		pj, err := prettyjson.Marshal(i)
		if err != nil {
			logErrorCmd(cmd, err)

			return
		}
		cmd.Println(string(pj))
	}
}

func logErrorCmd(cmd cobra.Command, err error) {
	boldRed := color.New(color.FgRed, color.Bold)
	cmd.PrintErrf("\n%s %s\n\n", boldRed.Sprint("error:"), err.Error())
}

func logUsageCmd(cmd cobra.Command, u string) {
	cmd.Printf("\nusage: %s\n\n", u)
}

func logOKCmd(cmd cobra.Command) {
	green := color.New(color.FgGreen)
	cmd.Printf("\n%s\n\n", green.Sprint("ok"))
}
