package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"commitbet/config"
	"commitbet/events"
	"commitbet/models"
	"commitbet/service"

	"github.com/olekukonko/tablewriter"
)

// ListMarkets prints the newest markets of the configured store as a table.
// args may hold a status filter.
func ListMarkets(ctx context.Context, w io.Writer, args []string) error {
	var status *models.MarketStatus
	if len(args) > 0 {
		parsed, err := models.ParseMarketStatus(args[0])
		if err != nil {
			return err
		}
		status = &parsed
	}

	cfg := config.Get()
	uowFactory, closeStore, err := OpenStore(ctx, cfg, events.NewBus(), nil)
	if err != nil {
		return err
	}
	defer closeStore()

	markets, err := service.NewMarketService(uowFactory, service.SystemClock{}, nil, nil).
		ListMarkets(ctx, status, service.MaxListLimit)
	if err != nil {
		return err
	}

	return RenderMarkets(w, markets)
}

// RenderMarkets writes markets as a table
func RenderMarkets(w io.Writer, markets []*models.Market) error {
	table := tablewriter.NewWriter(w)
	table.Header("Market", "Creator", "Status", "Outcome", "Deadline", "Reveal By", "Pool", "Yes", "No", "Question")

	for _, m := range markets {
		outcome := "-"
		if m.Outcome != nil {
			outcome = m.Outcome.String()
		}
		if err := table.Append(
			shortKey(m.Key),
			string(m.Creator),
			string(m.Status),
			outcome,
			m.Deadline.UTC().Format(time.RFC3339),
			m.RevealDeadline.UTC().Format(time.RFC3339),
			fmt.Sprintf("%d", m.TotalPool),
			fmt.Sprintf("%d (%d)", m.YesPool, m.YesCount),
			fmt.Sprintf("%d (%d)", m.NoPool, m.NoCount),
			truncate(m.Question, 40),
		); err != nil {
			return fmt.Errorf("failed to render market %s: %w", m.Key, err)
		}
	}

	return table.Render()
}

func shortKey(k models.MarketKey) string {
	s := k.String()
	return s[:8] + "…" + s[len(s)-4:]
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
