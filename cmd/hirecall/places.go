package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/outreachlabs/hirecall/discovery"
)

func newPlacesCmd() *cobra.Command {
	var (
		location string
		keyword  string
		radius   int
	)

	cmd := &cobra.Command{
		Use:   "places",
		Short: "Discover nearby businesses to call",
		RunE: func(cmd *cobra.Command, args []string) error {
			finder, err := discovery.New(discovery.WithAPIKey(cfg.Places.APIKey))
			if err != nil {
				return err
			}

			businesses, err := finder.FindBusinesses(cmd.Context(), location, radius, keyword)
			if err != nil {
				return err
			}

			if len(businesses) == 0 {
				fmt.Println("No businesses found.")
				return nil
			}
			for _, b := range businesses {
				phone := b.Phone
				if phone == "" {
					phone = "N/A"
				}
				fmt.Printf("%-30s  %-15s  %s\n", b.Name, phone, b.Address)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&location, "location", "", "address or city name")
	cmd.Flags().StringVar(&keyword, "keyword", "", "optional filter like 'restaurant'")
	cmd.Flags().IntVar(&radius, "radius", discovery.DefaultRadius, "search radius in meters")
	_ = cmd.MarkFlagRequired("location")

	return cmd
}
