package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"tosgamelogs/internal/gamelog"
	"tosgamelogs/internal/render"
)

// dump_messages prints every line of a gamelog with the message type it was
// classified as. Handy when the exporter changes its markup.
func main() {
	var raw bool
	cmd := &cobra.Command{
		Use:   "dump_messages FILE",
		Short: "Print the classified messages of a gamelog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			return dump(cmd.OutOrStdout(), string(data), raw)
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "also print unclassified lines and their markup")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func dump(w io.Writer, text string, raw bool) error {
	lines, err := gamelog.Lines(gamelog.CleanTags(text))
	if err != nil {
		return err
	}
	n := 0
	for line := range lines {
		n++
		m, ok := gamelog.Classify(line)
		switch {
		case ok:
			fmt.Fprintf(w, "%4d %-26T %s\n", n, m, describe(m))
		case raw:
			fmt.Fprintf(w, "%4d %-26s %s\n", n, "-", line)
		}
	}
	return nil
}

func describe(m gamelog.Message) string {
	if info, ok := m.(gamelog.PlayerInfo); ok {
		parts := []string{fmt.Sprintf("[%d] %s (%s) %s #%s", info.Number, info.GameName, info.AccountName, info.Role.Name, info.Role.Colour)}
		if info.PrevRole != nil {
			parts = append(parts, "was "+info.PrevRole.Name)
		}
		if info.IsVIP {
			parts = append(parts, "VIP")
		}
		if will := render.LastWill(info); will != "" {
			parts = append(parts, fmt.Sprintf("will %q", will))
		}
		return strings.Join(parts, ", ")
	}
	if s, ok := render.Line(m); ok {
		return s
	}
	return fmt.Sprintf("%+v", m)
}
