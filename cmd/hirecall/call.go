package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/outreachlabs/hirecall/engine"
	"github.com/outreachlabs/hirecall/server"
)

func newCallCmd() *cobra.Command {
	var (
		serverURL      string
		phone          string
		name           string
		location       string
		role           string
		employmentType string
	)

	cmd := &cobra.Command{
		Use:   "call",
		Short: "Place one hiring-inquiry call via a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := server.PlaceCallRequest{
				Phone: phone,
				Business: engine.BusinessIdentity{
					Name:           name,
					Location:       location,
					Role:           role,
					EmploymentType: employmentType,
				},
			}

			body, err := json.Marshal(req)
			if err != nil {
				return err
			}

			httpClient := &http.Client{Timeout: 30 * time.Second}
			resp, err := httpClient.Post(serverURL+"/calls", "application/json", bytes.NewReader(body))
			if err != nil {
				return err
			}
			defer func() { _ = resp.Body.Close() }()

			if resp.StatusCode != http.StatusCreated {
				var apiErr struct {
					Error string `json:"error"`
				}
				_ = json.NewDecoder(resp.Body).Decode(&apiErr)
				return fmt.Errorf("call placement failed (status %d): %s", resp.StatusCode, apiErr.Error)
			}

			var placed server.PlaceCallResponse
			if err := json.NewDecoder(resp.Body).Decode(&placed); err != nil {
				return err
			}

			fmt.Printf("Call placed: %s (%s, %s %s)\n",
				placed.CallID, placed.Business.Name,
				placed.Business.EmploymentType, placed.Business.Role)
			return nil
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "running hirecall server")
	cmd.Flags().StringVar(&phone, "to", "", "phone number to call")
	cmd.Flags().StringVar(&name, "name", "", "business name")
	cmd.Flags().StringVar(&location, "location", "", "business location")
	cmd.Flags().StringVar(&role, "role", "", "role to ask about")
	cmd.Flags().StringVar(&employmentType, "employment-type", "Full-time", "employment type")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("role")

	return cmd
}
