package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// call <method> [input-json]: invoke an RPC method and print its data.
func callCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "call <method> [input-json]",
		Short: "Invoke an API method and print the response data",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := json.RawMessage(`{}`)
			if len(args) == 2 {
				if !json.Valid([]byte(args[1])) {
					return fmt.Errorf("input is not valid JSON")
				}
				input = json.RawMessage(args[1])
			}

			resp, err := a.client.Call(cmd.Context(), args[0], input)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(resp.Data)
		},
	}
}
