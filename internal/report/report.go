// Package report renders a campaign run into a printable, self-contained
// HTML document. Operators archive these for compliance audits.
package report

import (
	"fmt"
	"time"

	"github.com/osteele/liquid"

	"github.com/safegreen/outreach-engine/internal/domain"
)

const runTemplate = `<!DOCTYPE html>
<html lang="pt-BR">
<head>
<meta charset="utf-8">
<title>Relatório de disparo {{ run_id }}</title>
<style>
body { font-family: sans-serif; margin: 2rem; color: #222; }
h1 { font-size: 1.3rem; }
table { border-collapse: collapse; width: 100%; margin-top: 1rem; }
th, td { border: 1px solid #ccc; padding: 4px 8px; font-size: 0.85rem; text-align: left; }
th { background: #f0f0f0; }
.summary td { border: none; padding: 2px 12px 2px 0; }
.outcome-sent { color: #1a7f37; }
.outcome-failed { color: #b42318; }
@media print { body { margin: 0; } }
</style>
</head>
<body>
<h1>Relatório de disparo — {{ kind }} ({{ trigger }})</h1>
<table class="summary">
<tr><td>Run</td><td>{{ run_id }}</td></tr>
<tr><td>Status</td><td>{{ status }}</td></tr>
<tr><td>Início</td><td>{{ started_at }}</td></tr>
<tr><td>Término</td><td>{{ completed_at }}</td></tr>
<tr><td>Candidatos</td><td>{{ total }}</td></tr>
<tr><td>Enviados</td><td>{{ sent }}</td></tr>
<tr><td>Falhas</td><td>{{ failed }}</td></tr>
<tr><td>Pulados (duplicado)</td><td>{{ skipped_duplicate }}</td></tr>
<tr><td>Pulados (sem telefone)</td><td>{{ skipped_no_phone }}</td></tr>
{% if simulated > 0 %}<tr><td>Simulados</td><td>{{ simulated }}</td></tr>{% endif %}
{% if error_detail != "" %}<tr><td>Observação</td><td>{{ error_detail }}</td></tr>{% endif %}
</table>
<table>
<thead>
<tr><th>#</th><th>Destinatário</th><th>Telefone</th><th>Canal</th><th>Resultado</th><th>Agendado</th><th>Detalhe</th></tr>
</thead>
<tbody>
{% for e in entries %}
<tr>
<td>{{ forloop.index }}</td>
<td>{{ e.recipient }}</td>
<td>{{ e.phone }}</td>
<td>{{ e.channel }}</td>
<td class="outcome-{{ e.outcome }}">{{ e.outcome }}</td>
<td>{{ e.scheduled_at }}</td>
<td>{{ e.detail }}</td>
</tr>
{% endfor %}
</tbody>
</table>
<p>Gerado em {{ generated_at }}.</p>
</body>
</html>
`

// Exporter renders run reports.
type Exporter struct {
	engine *liquid.Engine
	now    func() time.Time
}

// NewExporter returns a report exporter.
func NewExporter() *Exporter {
	return &Exporter{engine: liquid.NewEngine(), now: time.Now}
}

// RenderRun produces the HTML report for one run and its log.
func (x *Exporter) RenderRun(run *domain.CampaignRun, entries []domain.RunLogEntry) (string, error) {
	rows := make([]map[string]interface{}, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, map[string]interface{}{
			"recipient":    e.Recipient,
			"phone":        e.Phone,
			"channel":      e.Channel,
			"outcome":      string(e.Outcome),
			"scheduled_at": formatTimePtr(e.ScheduledAt),
			"detail":       e.Detail,
		})
	}

	bindings := map[string]interface{}{
		"run_id":            run.ID,
		"kind":              string(run.Kind),
		"trigger":           string(run.Trigger),
		"status":            string(run.Status),
		"started_at":        formatTimePtr(run.StartedAt),
		"completed_at":      formatTimePtr(run.CompletedAt),
		"total":             run.TotalCandidates,
		"sent":              run.Sent,
		"failed":            run.Failed,
		"skipped_duplicate": run.SkippedDuplicate,
		"skipped_no_phone":  run.SkippedNoPhone,
		"simulated":         run.Simulated,
		"error_detail":      run.ErrorDetail,
		"entries":           rows,
		"generated_at":      x.now().Format("02/01/2006 15:04"),
	}

	out, err := x.engine.ParseAndRenderString(runTemplate, bindings)
	if err != nil {
		return "", fmt.Errorf("render run report: %w", err)
	}
	return out, nil
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return "—"
	}
	return t.Format("02/01/2006 15:04:05")
}
