// Command flowctl is a thin HTTP client CLI for the flowengine HTTP
// surface: submit a run, poll its status, stream its elements, fetch its
// result, or cancel it.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

const defaultServerEndpoint = "http://127.0.0.1:8088"

func main() {
	rootCmd := &cobra.Command{
		Use:   "flowctl",
		Short: "Control plane for a flowengine server",
	}

	rootCmd.PersistentFlags().String("server", defaultServerEndpoint, "flowengine server base URL")

	rootCmd.AddCommand(
		submitCmd(),
		statusCmd(),
		elementsCmd(),
		resultCmd(),
		cancelCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func submitCmd() *cobra.Command {
	var userID, inputJSON string

	cmd := &cobra.Command{
		Use:   "submit <flow-name>",
		Short: "Submit a new flow run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			server := serverFlag(cmd)

			var input any
			if inputJSON != "" {
				if err := json.Unmarshal([]byte(inputJSON), &input); err != nil {
					return fmt.Errorf("parse --input: %w", err)
				}
			}

			body, err := json.Marshal(map[string]any{"input": input, "user_id": userID})
			if err != nil {
				return err
			}

			resp, err := http.Post(server+"/flows/"+args[0]+"/runs", "application/json", strings.NewReader(string(body)))
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			return printResponse(resp)
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id attached to the run")
	cmd.Flags().StringVar(&inputJSON, "input", "", "JSON-encoded input payload")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <run-id>",
		Short: "Fetch a run's current status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := http.Get(serverFlag(cmd) + "/runs/" + args[0])
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			return printResponse(resp)
		},
	}
}

func elementsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "elements <run-id>",
		Short: "Fetch a run's elements emitted so far",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := http.Get(serverFlag(cmd) + "/runs/" + args[0] + "/elements")
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			return printResponse(resp)
		},
	}
}

func resultCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "result <run-id>",
		Short: "Fetch a run's terminal result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := http.Get(serverFlag(cmd) + "/runs/" + args[0] + "/result")
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			return printResponse(resp)
		},
	}
}

func cancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <run-id>",
		Short: "Cancel a running run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := http.Post(serverFlag(cmd)+"/runs/"+args[0]+"/cancel", "application/json", nil)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			return printResponse(resp)
		},
	}
}

func serverFlag(cmd *cobra.Command) string {
	v, _ := cmd.Flags().GetString("server")
	if v == "" {
		v = defaultServerEndpoint
	}
	return v
}

func printResponse(resp *http.Response) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
