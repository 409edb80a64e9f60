package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// errUnanswered signals a finished run whose question was not answered.
var errUnanswered = errors.New("question was not answered")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errUnanswered) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "dish-advisor",
		Short:         "Ask a vision model questions about a photo of a dish",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (default ./configs/config.yaml or ./config.yaml)")

	root.AddCommand(newServeCmd(&configPath), newAskCmd(&configPath))
	return root
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the web server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(*configPath)
			if err != nil {
				return err
			}
			defer a.close()
			return a.serve(nil, nil)
		},
	}
}

func newAskCmd(configPath *string) *cobra.Command {
	var imagePath, question string

	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Ask one question about a dish photo and print the answer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(*configPath)
			if err != nil {
				return err
			}
			defer a.close()
			return a.ask(cmd.Context(), cmd.OutOrStdout(), imagePath, question)
		},
	}
	cmd.Flags().StringVar(&imagePath, "image", "", "PNG or JPEG photo of the dish")
	cmd.Flags().StringVar(&question, "question", "", "question about the dish")
	return cmd
}
