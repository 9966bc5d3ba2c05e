package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/fedtaxi/hojaruta/internal/models"
	"github.com/spf13/cobra"
)

func newSheetsCommand(env Env, g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sheets",
		Aliases: []string{"sheet"},
		Short:   "Work with route sheets",
	}
	cmd.AddCommand(
		newSheetsListCommand(env, g),
		newSheetsGetCommand(env, g),
		newSheetsCreateCommand(env, g),
		newSheetsPDFCommand(env, g),
	)
	return cmd
}

func printSheets(cmd *cobra.Command, sheets ...models.RouteSheet) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tPLATE\tROUTE\tPDF")
	for _, s := range sheets {
		pdf := "-"
		if s.HasPDF {
			pdf = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s → %s\t%s\n", s.ID, s.ServiceDate, s.VehiclePlate, s.Origin, s.Destination, pdf)
	}
	_ = w.Flush()
}

func newSheetsListCommand(env Env, g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your route sheets",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.client(cmd, env, true)
			if err != nil {
				return err
			}
			defer c.Close()
			if err := requireLogin(c); err != nil {
				return err
			}
			sheets, err := c.ListRouteSheets(cmd.Context())
			if err != nil {
				return err
			}
			printSheets(cmd, sheets...)
			return nil
		},
	}
}

func newSheetsGetCommand(env Env, g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one route sheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.client(cmd, env, true)
			if err != nil {
				return err
			}
			defer c.Close()
			if err := requireLogin(c); err != nil {
				return err
			}
			s, err := c.GetRouteSheet(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printSheets(cmd, *s)
			if s.Notes != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n", s.Notes)
			}
			return nil
		},
	}
}

func newSheetsCreateCommand(env Env, g *globals) *cobra.Command {
	var (
		in      models.CreateRouteSheetRequest
		pdfPath string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a route sheet",
		RunE: func(cmd *cobra.Command, args []string) error {
			if pdfPath != "" {
				b, err := os.ReadFile(pdfPath)
				if err != nil {
					return err
				}
				in.PDF = b
			}
			c, err := g.client(cmd, env, true)
			if err != nil {
				return err
			}
			defer c.Close()
			if err := requireLogin(c); err != nil {
				return err
			}
			s, err := c.CreateRouteSheet(cmd.Context(), in)
			if err != nil {
				return err
			}
			printSheets(cmd, *s)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.ServiceDate, "date", "", "service date (YYYY-MM-DD)")
	f.StringVar(&in.VehiclePlate, "plate", "", "vehicle plate")
	f.StringVar(&in.Origin, "from", "", "origin")
	f.StringVar(&in.Destination, "to", "", "destination")
	f.IntVar(&in.Passengers, "passengers", 0, "passenger count")
	f.StringVar(&in.Notes, "notes", "", "free-form notes")
	f.StringVar(&pdfPath, "pdf", "", "path of a signed PDF to attach")
	for _, name := range []string{"date", "plate", "from", "to"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newSheetsPDFCommand(env Env, g *globals) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "pdf <id>",
		Short: "Download the PDF of a route sheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := g.client(cmd, env, true)
			if err != nil {
				return err
			}
			defer c.Close()
			if err := requireLogin(c); err != nil {
				return err
			}
			b, err := c.RouteSheetPDF(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if out == "" || out == "-" {
				_, err = cmd.OutOrStdout().Write(b)
				return err
			}
			if err := os.WriteFile(out, b, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d bytes to %s\n", len(b), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output file (default stdout)")
	return cmd
}
