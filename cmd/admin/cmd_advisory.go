package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AhmadRadith/jycc-sub001/internal/bootstrap"
	"github.com/AhmadRadith/jycc-sub001/internal/domain"
	"github.com/AhmadRadith/jycc-sub001/internal/events"
	"github.com/AhmadRadith/jycc-sub001/internal/observability"
)

var advisoryFlags struct {
	role       string
	schoolName string
	generate   bool
	refresh    bool
}

var advisoryCmd = &cobra.Command{
	Use:   "advisory <ticket-id>",
	Short: "Print the advisory a role would see for a ticket",
	Args:  cobra.ExactArgs(1),
	RunE:  runAdvisory,
}

func init() {
	f := advisoryCmd.Flags()
	f.StringVar(&advisoryFlags.role, "role", "daerah", "Viewer role")
	f.StringVar(&advisoryFlags.schoolName, "school-name", "", "Viewer school, for the sekolah role")
	f.BoolVar(&advisoryFlags.generate, "generate", false, "Use the generated advisory path")
	f.BoolVar(&advisoryFlags.refresh, "refresh", false, "Ignore the cached generated advisory")
}

func runAdvisory(cmd *cobra.Command, args []string) error {
	role, err := domain.ParseRole(advisoryFlags.role)
	if err != nil {
		return err
	}
	e, err := loadEnv(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer e.close()

	viewer := domain.Identity{ID: "admin-cli", Username: "admin-cli", Role: role, SchoolName: advisoryFlags.schoolName}
	tickets := bootstrap.NewTicketService(e.cfg, e.stores, events.NewInMemoryDispatcher(), e.logger, observability.NewMetrics())

	var out any
	if advisoryFlags.generate {
		result, err := tickets.GenerateAdvisory(cmd.Context(), viewer, args[0], advisoryFlags.refresh)
		if err != nil {
			return err
		}
		out = map[string]any{"cached": result.Cached, "analysis": result.Analysis}
	} else {
		advice, err := tickets.Advisory(cmd.Context(), viewer, args[0])
		if err != nil {
			return err
		}
		out = advice
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode advisory: %w", err)
	}
	return nil
}
