package main

import (
	vnc "github.com/amitbet/vncclone"
	"github.com/spf13/cobra"
)

func replayCmd() *cobra.Command {
	var (
		f        sessionFlags
		realtime bool
	)

	cmd := &cobra.Command{
		Use:   "replay <file.fbs>",
		Short: "Replay an FBS recording through the client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fbs, err := vnc.NewFbsConn(args[0])
			if err != nil {
				return err
			}
			fbs.Realtime = realtime
			return runSession(cmd, fbs, &f, 0)
		},
	}

	f.register(cmd)
	cmd.Flags().BoolVar(&realtime, "realtime", false, "pace the replay by the recorded timestamps")
	return cmd
}
