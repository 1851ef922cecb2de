package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	fantoccini "github.com/LegNeato/fantoccini-go"
)

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Start and drive a single session",
	}
	cmd.AddCommand(newSessionGotoCmd())
	cmd.AddCommand(newSessionFetchCmd())
	return cmd
}

func dialClient(cmd *cobra.Command) (fantoccini.Client, error) {
	endpoint, _ := cmd.Flags().GetString("endpoint")
	configPath, _ := cmd.Flags().GetString("config")
	trace, _ := cmd.Flags().GetBool("trace")
	fantoccini.Trace = trace
	if trace {
		logrus.SetLevel(logrus.DebugLevel)
	}

	cfg, err := fantoccini.LoadConfig(configPath)
	if err != nil {
		return fantoccini.Client{}, err
	}
	if endpoint != "" {
		cfg.Endpoint = endpoint
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return fantoccini.NewClient(ctx, cfg)
}

func newSessionGotoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "goto [url]",
		Short: "Navigate a fresh session to a URL and print its title-equivalent source length",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := dialClient(cmd)
			if err != nil {
				return err
			}
			defer client.Release()

			ctx := cmd.Context()
			if err := client.Goto(ctx, args[0]); err != nil {
				return err
			}
			src, err := client.Source(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("fetched %d bytes of source from %s\n", len(src), args[0])
			return nil
		},
	}
}

func newSessionFetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch [url]",
		Short: "Fetch a URL carrying the current session's cookies, without navigating to it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := dialClient(cmd)
			if err != nil {
				return err
			}
			defer client.Release()

			resp, err := client.RawRequest(cmd.Context(), "GET", args[0], nil)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			fmt.Printf("%s -> %d\n", args[0], resp.StatusCode)
			return nil
		},
	}
}
