package notify

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/alejandrodnm/polyedge/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// Console implementa ports.Notifier escribiendo cada ciclo en texto.
type Console struct {
	out   io.Writer
	table bool
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table}
}

// NewConsoleWriter crea un notificador sobre un writer arbitrario (tests).
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table}
}

// NotifyCycle imprime el resumen del ciclo en el modo configurado.
func (c *Console) NotifyCycle(_ context.Context, r domain.CycleReport) error {
	c.printHeader(r)
	if r.Err != nil {
		fmt.Fprintf(c.out, "  error: %v\n", r.Err)
	}
	if len(r.Decisions) == 0 && len(r.Exits) == 0 {
		return nil
	}
	if c.table {
		c.printDecisionTable(r.Decisions)
	} else {
		c.printCompact(r.Decisions)
	}
	c.printExits(r.Exits)
	return nil
}

// printHeader: una línea por ciclo con conteos y estado del gate.
func (c *Console) printHeader(r domain.CycleReport) {
	approved, rejected, failed := r.Counts()
	var kinds []string
	for _, k := range domain.OpportunityKinds() {
		if n := r.Opportunities[k]; n > 0 {
			kinds = append(kinds, fmt.Sprintf("%s:%d", kindLabel(k), n))
		}
	}
	if len(kinds) == 0 {
		kinds = append(kinds, "none")
	}

	fmt.Fprintf(c.out, "[%s] %d mkts (%d invalid) -> opps %s | ok:%d rej:%d fail:%d | gate %s pnl $%s bankroll $%s (%s)\n",
		r.StartedAt.Format("15:04:05"),
		r.Snapshots, r.Invalid,
		strings.Join(kinds, " "),
		approved, rejected, failed,
		r.Risk.Status, r.Risk.DailyRealizedPnL.StringFixed(2), r.Bankroll.StringFixed(2),
		r.Duration.Round(time.Millisecond),
	)
	if r.Risk.Status.Halted() && r.Risk.HaltReason != "" {
		fmt.Fprintf(c.out, "  halted: %s\n", r.Risk.HaltReason)
	}
}

func (c *Console) printCompact(decisions []domain.Decision) {
	for _, d := range decisions {
		if d.Outcome == domain.Rejected {
			continue
		}
		fmt.Fprintf(c.out, "  %s %s %s $%s @ %.4f %s\n",
			kindLabel(d.Order.Opportunity.Kind()),
			marketLabel(d.Order.Opportunity.Base()),
			d.Order.Side,
			d.Order.Stake.StringFixed(2),
			d.Order.LimitPrice,
			decisionResult(d),
		)
	}
}

func (c *Console) printDecisionTable(decisions []domain.Decision) {
	if len(decisions) == 0 {
		return
	}
	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Kind", "Market", "Side", "Edge", "Stake", "Limit", "Result")
	for i, d := range decisions {
		base := d.Order.Opportunity.Base()
		table.Append(
			fmt.Sprintf("%d", i+1),
			kindLabel(d.Order.Opportunity.Kind()),
			marketLabel(base),
			string(d.Order.Side),
			fmt.Sprintf("%+.2f%%", base.ExpectedEdge*100),
			"$"+d.Order.Stake.StringFixed(2),
			fmt.Sprintf("%.4f", d.Order.LimitPrice),
			decisionResult(d),
		)
	}
	table.Render()
}

func (c *Console) printExits(exits []domain.Position) {
	for _, p := range exits {
		fmt.Fprintf(c.out, "  exit %s %s %s @ %.4f -> %.4f pnl $%s\n",
			p.ExitReason,
			domain.TruncateQuestion(p.Question, p.MarketID, 38),
			p.Side, p.EntryPrice, p.ExitPrice, p.RealizedPnL.StringFixed(2),
		)
	}
}

// PrintPerformance imprime el informe de rendimiento del modo -report.
func (c *Console) PrintPerformance(s domain.PerformanceSummary) {
	fmt.Fprintf(c.out, "\nPerformance since %s\n", s.Since.Format("2006-01-02"))

	table := tablewriter.NewWriter(c.out)
	table.Header("Metric", "Value")
	table.Append("Trades", fmt.Sprintf("%d (%d open)", s.TotalTrades, s.OpenPositions))
	table.Append("Wins / Losses", fmt.Sprintf("%d / %d", s.Wins, s.Losses))
	table.Append("Win rate", fmt.Sprintf("%.1f%%", s.WinRate*100))
	table.Append("Total P&L", "$"+s.TotalPnL.StringFixed(2))
	table.Append("Avg win", "$"+s.AvgWin.StringFixed(2))
	table.Append("Avg loss", "$"+s.AvgLoss.StringFixed(2))
	table.Append("Best / worst", fmt.Sprintf("$%s / $%s", s.BestTrade.StringFixed(2), s.WorstTrade.StringFixed(2)))
	table.Append("Profit factor", ratio(s.ProfitFactor))
	table.Append("Max drawdown", fmt.Sprintf("$%s (%.1f%%)", s.MaxDrawdown.StringFixed(2), s.MaxDrawdownPct*100))
	table.Append("ROI", fmt.Sprintf("%.2f%%", s.ROI*100))
	table.Append("Sharpe", fmt.Sprintf("%.2f", s.Sharpe))
	table.Render()

	if len(s.ByStrategy) == 0 {
		return
	}
	byKind := tablewriter.NewWriter(c.out)
	byKind.Header("Strategy", "Trades", "Win rate", "P&L")
	for _, k := range domain.OpportunityKinds() {
		st, ok := s.ByStrategy[k]
		if !ok {
			continue
		}
		byKind.Append(
			k.String(),
			fmt.Sprintf("%d", st.Trades),
			fmt.Sprintf("%.1f%%", st.WinRate()*100),
			"$"+st.PnL.StringFixed(2),
		)
	}
	byKind.Render()
}

func decisionResult(d domain.Decision) string {
	switch {
	case d.Outcome == domain.Rejected:
		return string(d.Reason)
	case d.Err != nil:
		return "FAILED"
	case d.Pending:
		return "PENDING"
	case d.Fill != nil && d.Fill.Filled:
		return fmt.Sprintf("FILLED %.4f", d.Fill.Price)
	}
	return "UNFILLED"
}

func kindLabel(k domain.OpportunityKind) string {
	switch k {
	case domain.KindArbitrage:
		return "ARB"
	case domain.KindValueBet:
		return "VAL"
	case domain.KindQualityMarket:
		return "QM"
	}
	return "?"
}

func marketLabel(b domain.OpportunityBase) string {
	return domain.TruncateQuestion(b.Question, b.MarketID, 38)
}

func ratio(v float64) string {
	if math.IsInf(v, 1) {
		return "INF"
	}
	return fmt.Sprintf("%.2f", v)
}
