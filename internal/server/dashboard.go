package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>FraudGuard</title>
    <meta name="description" content="Fraud-risk decisions for e-commerce returns, live">
    <link rel="icon" href="data:image/svg+xml,<svg xmlns='http://www.w3.org/2000/svg' viewBox='0 0 100 100'><text y='.9em' font-size='90'>&#9673;</text></svg>">
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }

        :root {
            --bg: #09090b;
            --bg-subtle: #18181b;
            --border: #27272a;
            --text: #fafafa;
            --text-secondary: #a1a1aa;
            --green: #22c55e;
            --red: #ef4444;
            --amber: #f59e0b;
            --blue: #3b82f6;
        }

        body {
            font-family: -apple-system, 'Segoe UI', sans-serif;
            background: var(--bg);
            color: var(--text);
            min-height: 100vh;
            font-size: 14px;
            line-height: 1.5;
        }

        .container { max-width: 1100px; margin: 0 auto; padding: 32px 24px; }
        header { display: flex; justify-content: space-between; align-items: baseline; margin-bottom: 24px; }
        h1 { font-size: 20px; font-weight: 600; }
        .sub { color: var(--text-secondary); font-size: 13px; }

        .card {
            background: var(--bg-subtle);
            border: 1px solid var(--border);
            border-radius: 8px;
            padding: 16px;
            margin-bottom: 16px;
        }
        .card h2 { font-size: 14px; font-weight: 600; margin-bottom: 12px; color: var(--text-secondary); }

        table { width: 100%; border-collapse: collapse; }
        th, td { text-align: left; padding: 8px 12px; border-bottom: 1px solid var(--border); }
        th { color: var(--text-secondary); font-weight: 500; font-size: 12px; text-transform: uppercase; }
        td { font-family: ui-monospace, monospace; font-size: 13px; }

        .badge { padding: 2px 8px; border-radius: 9999px; font-size: 12px; }
        .badge.approved { background: rgba(34,197,94,.15); color: var(--green); }
        .badge.rejected { background: rgba(239,68,68,.15); color: var(--red); }
        .badge.under_review { background: rgba(245,158,11,.15); color: var(--amber); }
        .badge.pending { background: rgba(59,130,246,.15); color: var(--blue); }

        #feed { max-height: 320px; overflow-y: auto; }
        #feed .row { padding: 6px 0; border-bottom: 1px solid var(--border); color: var(--text-secondary); font-family: ui-monospace, monospace; font-size: 12px; }
        .empty { color: var(--text-secondary); padding: 16px 0; }
    </style>
</head>
<body>
    <div class="container">
        <header>
            <h1>FraudGuard</h1>
            <span class="sub" id="stats">connecting&hellip;</span>
        </header>

        <div class="card">
            <h2>Review queue</h2>
            <table>
                <thead>
                    <tr><th>Return</th><th>Customer</th><th>Amount</th><th>Score</th><th>State</th></tr>
                </thead>
                <tbody id="queue"><tr><td colspan="5" class="empty">Loading&hellip;</td></tr></tbody>
            </table>
        </div>

        <div class="card">
            <h2>Live decisions</h2>
            <div id="feed"><div class="empty">Waiting for events&hellip;</div></div>
        </div>
    </div>

    <script>
        async function loadQueue() {
            try {
                const res = await fetch('/v1/returns?state=under_review');
                const body = await res.json();
                const rows = (body.returns || []).map(r =>
                    '<tr><td>' + r.id + '</td><td>' + r.customerId + '</td>' +
                    '<td>$' + Number(r.amount).toFixed(2) + '</td><td>' + r.riskScore + '</td>' +
                    '<td><span class="badge ' + r.state + '">' + r.state + '</span></td></tr>');
                document.getElementById('queue').innerHTML =
                    rows.length ? rows.join('') : '<tr><td colspan="5" class="empty">Queue is empty</td></tr>';
            } catch (e) { /* keep last view */ }
        }

        async function loadStats() {
            try {
                const res = await fetch('/v1/realtime/stats');
                const s = await res.json();
                document.getElementById('stats').textContent =
                    s.connectedClients + ' clients / ' + s.totalEvents + ' events';
            } catch (e) { /* ignore */ }
        }

        function connect() {
            const proto = location.protocol === 'https:' ? 'wss' : 'ws';
            const ws = new WebSocket(proto + '://' + location.host + '/ws');
            const feed = document.getElementById('feed');
            ws.onmessage = (msg) => {
                const ev = JSON.parse(msg.data);
                const row = document.createElement('div');
                row.className = 'row';
                row.textContent = ev.type + ' ' + JSON.stringify(ev.data);
                if (feed.firstChild && feed.firstChild.className === 'empty') feed.innerHTML = '';
                feed.prepend(row);
                if (ev.type === 'return_decision') loadQueue();
            };
            ws.onclose = () => setTimeout(connect, 3000);
        }

        loadQueue();
        loadStats();
        setInterval(loadQueue, 15000);
        setInterval(loadStats, 15000);
        connect();
    </script>
</body>
</html>`

// dashboardHandler serves the analyst review dashboard
func dashboardHandler(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, dashboardHTML)
}
