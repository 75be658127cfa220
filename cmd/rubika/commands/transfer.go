package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// upload <path>: upload a file and print its identifiers.
func uploadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <path>",
		Short: "Upload a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.client.Upload(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{
				"file_id":     res.FileID,
				"dc_id":       res.DC,
				"access_hash": res.AccessHash,
			})
		},
	}
}

// download <access-hash> <file-id> <dc> <out>: fetch a file, resuming a
// previous partial download of the same file.
func downloadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "download <access-hash> <file-id> <dc> <out>",
		Short: "Download a file, resuming if interrupted",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client.Download(cmd.Context(), args[0], args[1], args[2], args[3]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", args[3])
			return nil
		},
	}
}
