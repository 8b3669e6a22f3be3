package utils

import (
	"fmt"
	"sort"

	"github.com/elC0mpa/ec2-concierge/model"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// RenderStatusTable renders the fleet status as a monospace table suitable
// for embedding in a chat message. Rows are ordered by accrued cost, most
// expensive first.
func RenderStatusTable(estimates []model.CostEstimate) string {
	sorted := make([]model.CostEstimate, len(estimates))
	copy(sorted, estimates)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].AccruedUSD > sorted[j].AccruedUSD
	})

	tw := table.Table{}
	tw.AppendHeader(table.Row{"Instance", "Owner", "Type", "Running", "$/hr", "Accrued"})

	var total float64
	for _, est := range sorted {
		tw.AppendRow(table.Row{
			est.InstanceID,
			est.Owner,
			est.InstanceType,
			fmt.Sprintf("%dd", est.RunningDays),
			fmt.Sprintf("%.2f", est.HourlyRate),
			fmt.Sprintf("%.2f", est.AccruedUSD),
		})
		total += est.AccruedUSD
	}
	tw.AppendFooter(table.Row{"", "", "", "", "Total", fmt.Sprintf("%.2f", total)})

	tw.SetStyle(table.StyleRounded)
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
	})
	return tw.Render()
}

// RenderSpendTable renders a month-to-date spend report grouped by service.
func RenderSpendTable(report *model.SpendReport) string {
	services := make([]model.ServiceSpend, len(report.Services))
	copy(services, report.Services)
	sort.Slice(services, func(i, j int) bool {
		return services[i].Amount > services[j].Amount
	})

	tw := table.Table{}
	tw.AppendHeader(table.Row{"Service", fmt.Sprintf("%s to %s", report.Start, report.End)})
	for _, svc := range services {
		tw.AppendRow(table.Row{svc.Service, fmt.Sprintf("%.2f %s", svc.Amount, svc.Unit)})
	}
	tw.AppendFooter(table.Row{"Total", fmt.Sprintf("%.2f", report.Total)})

	tw.SetStyle(table.StyleRounded)
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
	})
	return tw.Render()
}
