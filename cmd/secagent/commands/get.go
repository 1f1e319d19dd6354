package commands

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/awnumar/memguard"
	"github.com/spf13/cobra"
	"github.com/systmms/secagent/internal/config"
	dserrors "github.com/systmms/secagent/internal/errors"
)

// Output encodings accepted by --format
const (
	FormatRaw    = "raw"
	FormatBase64 = "base64"
	FormatHex    = "hex"
)

func NewGetCommand(cfg *config.Config) *cobra.Command {
	var (
		format  string
		outFile string
	)

	cmd := &cobra.Command{
		Use:   "get <secrets:[resource:]key>",
		Short: "Fetch a single secret",
		Long: `Fetch one secret from the agent and write it to stdout or a file.

The secret is written exactly as stored unless --format asks for an
encoding. Files written with --out are created with mode 0600.

Examples:
  # Print a secret without a resource
  secagent get secrets:api-token

  # Fetch from a resource and save to a file
  secagent get secrets:prod:db-password --out ./db-password

  # Binary secrets are easier to inspect as hex
  secagent get secrets:tls:session-key --format hex`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			encode, err := encoderFor(format)
			if err != nil {
				return err
			}

			client, err := newClient(cfg)
			if err != nil {
				return err
			}

			payload, err := client.GetSecret(cmd.Context(), args[0])
			if err != nil {
				return dserrors.AgentError("get", err)
			}
			defer payload.Wipe()

			out := encode(payload.Bytes())
			if format != FormatRaw {
				defer memguard.WipeBytes(out)
			}

			if outFile != "" {
				if err := writeSecretFile(outFile, out); err != nil {
					return err
				}
				cfg.Logger.Info("Wrote %d bytes to %s", len(out), outFile)
				return nil
			}

			return writeAll(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().StringVar(&format, "format", FormatRaw, "Output encoding: raw, base64 or hex")
	cmd.Flags().StringVarP(&outFile, "out", "o", "", "Write the secret to this file (mode 0600) instead of stdout")

	return cmd
}

func encoderFor(format string) (func([]byte) []byte, error) {
	switch format {
	case FormatRaw:
		return func(b []byte) []byte { return b }, nil
	case FormatBase64:
		return func(b []byte) []byte {
			out := make([]byte, base64.StdEncoding.EncodedLen(len(b)))
			base64.StdEncoding.Encode(out, b)
			return out
		}, nil
	case FormatHex:
		return func(b []byte) []byte {
			out := make([]byte, hex.EncodedLen(len(b)))
			hex.Encode(out, b)
			return out
		}, nil
	}
	return nil, dserrors.UserError{
		Message:    fmt.Sprintf("Unsupported output format %q", format),
		Suggestion: "Use --format raw, base64 or hex",
	}
}

func writeSecretFile(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return dserrors.UserError{
			Message:    "Failed to create output file",
			Details:    err.Error(),
			Suggestion: "Check that the directory exists and is writable",
			Err:        err,
		}
	}
	// O_CREATE keeps the mode of an existing file
	if err := f.Chmod(0600); err != nil {
		f.Close()
		return fmt.Errorf("failed to restrict %s: %w", path, err)
	}
	if err := writeAll(f, data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeAll(w io.Writer, data []byte) error {
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write secret: %w", err)
	}
	return nil
}
