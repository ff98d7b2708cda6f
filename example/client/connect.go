package main

import (
	"crypto/tls"
	"fmt"
	"os"
	"time"

	vnc "github.com/amitbet/vncclone"
	"github.com/spf13/cobra"
)

func connectCmd() *cobra.Command {
	var (
		f        sessionFlags
		record   string
		timeout  time.Duration
		insecure bool
	)

	cmd := &cobra.Command{
		Use:   "connect <address>",
		Short: "Connect to an RFB server",
		Long: `Connect to an RFB server. The address is host[:port] or a URL with one
of the schemes tcp, unix, ws, wss or quic.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dcfg := &vnc.DialConfig{Timeout: timeout}
			if insecure {
				dcfg.TLSConfig = &tls.Config{InsecureSkipVerify: true}
			}
			nc, err := vnc.Dial(cmd.Context(), args[0], dcfg)
			if err != nil {
				return fmt.Errorf("error connecting to VNC host: %w", err)
			}
			if record != "" {
				file, err := os.Create(record)
				if err != nil {
					nc.Close()
					return err
				}
				if nc, err = vnc.NewRecordingConn(nc, file); err != nil {
					file.Close()
					return err
				}
			}
			return runSession(cmd, nc, &f, timeout)
		},
	}

	f.register(cmd)
	cmd.Flags().StringVar(&record, "record", "", "keep the server stream in this FBS file")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "dial and handshake timeout")
	cmd.Flags().BoolVar(&insecure, "insecure", false, "skip TLS certificate verification for wss and quic")
	return cmd
}
