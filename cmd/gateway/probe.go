package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/omochice/j2me-gateway/internal/client"
)

func newProbeCmd() *cobra.Command {
	var (
		addr           string
		url            string
		events         []string
		showGuildEmoji bool
	)

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Connect to a running gateway as a client and print what it sends",
		Long: "Connect to a running gateway the way a constrained client does. " +
			"Lines typed on stdin are sent as they are; every line the gateway sends is printed.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c := client.New(addr, zap.NewNop())
			if err := c.Connect(); err != nil {
				return err
			}
			defer c.Disconnect()

			if showGuildEmoji {
				if err := c.ShowGuildEmoji(true); err != nil {
					return err
				}
			}
			if url != "" {
				if err := c.ConnectUpstream(url, events); err != nil {
					return err
				}
			}

			go func() {
				scanner := bufio.NewScanner(cmd.InOrStdin())
				for scanner.Scan() {
					text := strings.TrimSpace(scanner.Text())
					if text == "" {
						continue
					}
					if err := c.Send([]byte(text)); err != nil {
						fmt.Fprintln(cmd.ErrOrStderr(), err)
						return
					}
				}
			}()

			out := cmd.OutOrStdout()
			for {
				select {
				case line, ok := <-c.Lines():
					if !ok {
						return nil
					}
					fmt.Fprintln(out, string(line))
				case <-ctx.Done():
					return nil
				}
			}
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&addr, "addr", "localhost:8081", "gateway address")
	flags.StringVar(&url, "url", "", "upstream gateway URL to connect to")
	flags.StringSliceVar(&events, "events", nil, "supported events sent with the connect command")
	flags.BoolVar(&showGuildEmoji, "show-guild-emoji", false, "keep custom emoji references in message text")
	return cmd
}
