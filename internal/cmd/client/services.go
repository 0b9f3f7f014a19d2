package client

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"

	"github.com/globulario/services-sub005/internal/resolver"
	"github.com/spf13/cobra"
)

// NewServicesCommand constructs the `services` command group, which talks
// to the HTTP gateway.
func NewServicesCommand(baseURL BaseURLFunc) *cobra.Command {
	if baseURL == nil {
		baseURL = httpURLFromEnv
	}
	servicesCmd := &cobra.Command{Use: "services", Short: "Service configuration operations"}
	servicesCmd.AddCommand(
		newServicesListCommand(baseURL),
		newServicesResolveCommand(baseURL),
		newServicesApplyCommand(baseURL),
		newServicesWatchCommand(),
	)
	return servicesCmd
}

// BaseURLFunc provides the base HTTP API URL (e.g., from env or flag).
type BaseURLFunc func() string

func newServicesListCommand(baseURL BaseURLFunc) *cobra.Command {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List service configurations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, _ := cmd.Flags().GetString("name")
			u := baseURL() + "/v1/services"
			if name != "" {
				u += "?name=" + url.QueryEscape(name)
			}
			return getAndPrint(cmd, u)
		},
	}
	listCmd.Flags().String("name", "", "Only configurations of this service name")
	return listCmd
}

func newServicesResolveCommand(baseURL BaseURLFunc) *cobra.Command {
	resolveCmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve endpoints for a service name",
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, _ := cmd.Flags().GetString("name")
			if name == "" {
				return fmt.Errorf("--name is required")
			}
			return getAndPrint(cmd, baseURL()+"/v1/services/resolve?name="+url.QueryEscape(name))
		},
	}
	resolveCmd.Flags().String("name", "", "Service name")
	return resolveCmd
}

func newServicesApplyCommand(baseURL BaseURLFunc) *cobra.Command {
	applyCmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply a service configuration and broadcast it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			file, _ := cmd.Flags().GetString("file")
			if file == "" {
				return fmt.Errorf("--file is required")
			}
			var (
				body []byte
				err  error
			)
			if file == "-" {
				body, err = io.ReadAll(cmd.InOrStdin())
			} else {
				body, err = os.ReadFile(file)
			}
			if err != nil {
				return err
			}
			// validate locally before sending
			if _, err := resolver.ParseServiceConfig(body); err != nil {
				return err
			}
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, baseURL()+"/v1/services", bytes.NewReader(body))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")
			return doAndPrint(cmd, req, http.StatusAccepted)
		},
	}
	applyCmd.Flags().StringP("file", "f", "", "ServiceConfig JSON file (- for stdin)")
	return applyCmd
}

func getAndPrint(cmd *cobra.Command, u string) error {
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return doAndPrint(cmd, req, http.StatusOK)
}

func doAndPrint(cmd *cobra.Command, req *http.Request, want int) error {
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != want {
		return fmt.Errorf("%s: %s", resp.Status, bytes.TrimSpace(b))
	}
	var v any
	if err := jsonAPI.Unmarshal(b, &v); err != nil {
		return err
	}
	out, err := jsonAPI.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err
}
