package web

// Single-page dashboard: portfolio header, per-symbol lot tables, live trade
// feed over SSE, and the command forms.
const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>gridbot</title>
  <style>
    :root {
      --bg:#0d1117;
      --panel:#161b22;
      --border:#30363d;
      --ink:#e6edf3;
      --ink-dim:#8b949e;
      --green:#3fb950;
      --red:#f85149;
      --accent:#58a6ff;
    }
    * { box-sizing:border-box; }
    body {
      margin:0;
      padding:1.5rem;
      background:var(--bg);
      color:var(--ink);
      font-family:ui-monospace,'SF Mono',Menlo,Consolas,monospace;
      font-size:14px;
    }
    h1 { font-size:1.1rem; margin:0; letter-spacing:.05em; }
    header {
      display:flex;
      justify-content:space-between;
      align-items:center;
      margin-bottom:1.5rem;
    }
    .badge {
      padding:.25rem .7rem;
      border:1px solid var(--border);
      border-radius:1rem;
      font-size:.75rem;
      color:var(--ink-dim);
    }
    .badge.live { color:var(--green); border-color:var(--green); }
    .badge.dry { color:var(--accent); border-color:var(--accent); }
    .badge.closed { color:var(--red); border-color:var(--red); }
    .stats {
      display:grid;
      grid-template-columns:repeat(auto-fit, minmax(160px, 1fr));
      gap:.8rem;
      margin-bottom:1.5rem;
    }
    .stat {
      background:var(--panel);
      border:1px solid var(--border);
      border-radius:6px;
      padding:.8rem 1rem;
    }
    .stat .label { font-size:.7rem; color:var(--ink-dim); text-transform:uppercase; letter-spacing:.1em; }
    .stat .value { font-size:1.2rem; margin-top:.3rem; }
    .layout { display:grid; grid-template-columns:2fr 1fr; gap:1.2rem; }
    @media (max-width:900px) { .layout { grid-template-columns:1fr; } }
    .panel {
      background:var(--panel);
      border:1px solid var(--border);
      border-radius:6px;
      padding:1rem;
      margin-bottom:1.2rem;
    }
    .panel h2 { font-size:.8rem; margin:0 0 .8rem; color:var(--ink-dim); text-transform:uppercase; letter-spacing:.1em; }
    table { width:100%; border-collapse:collapse; font-size:.8rem; }
    th, td { text-align:right; padding:.35rem .5rem; border-bottom:1px solid var(--border); }
    th:first-child, td:first-child { text-align:left; }
    th { color:var(--ink-dim); font-weight:normal; }
    .pos { color:var(--green); }
    .neg { color:var(--red); }
    .sym-row { cursor:pointer; }
    .sym-row td:first-child { color:var(--accent); }
    .lot-table { display:none; }
    .lot-table.open { display:table-row-group; }
    .lot-table td { color:var(--ink-dim); font-size:.75rem; }
    .controls input, .controls select {
      background:var(--bg);
      border:1px solid var(--border);
      color:var(--ink);
      border-radius:4px;
      padding:.4rem .6rem;
      font-family:inherit;
      font-size:.8rem;
      width:100%;
      margin-bottom:.5rem;
    }
    .controls button {
      background:var(--bg);
      border:1px solid var(--accent);
      color:var(--accent);
      border-radius:4px;
      padding:.4rem .8rem;
      font-family:inherit;
      font-size:.8rem;
      cursor:pointer;
      margin-right:.4rem;
      margin-bottom:.4rem;
    }
    .controls button:hover { background:var(--accent); color:var(--bg); }
    .controls button.danger { border-color:var(--red); color:var(--red); }
    .controls button.danger:hover { background:var(--red); color:var(--bg); }
    #tradeFeed { max-height:420px; overflow-y:auto; font-size:.75rem; }
    .trade { padding:.3rem 0; border-bottom:1px solid var(--border); }
    .trade .buy { color:var(--green); }
    .trade .sell { color:var(--red); }
    .trade .ts { color:var(--ink-dim); float:right; }
  </style>
</head>
<body>
  <header>
    <h1>gridbot</h1>
    <div>
      <span id="modeBadge" class="badge">…</span>
      <span id="marketBadge" class="badge">…</span>
    </div>
  </header>

  <div class="stats">
    <div class="stat"><div class="label">Equity</div><div class="value" id="equity">—</div></div>
    <div class="stat"><div class="label">Cash</div><div class="value" id="cash">—</div></div>
    <div class="stat"><div class="label">Cost basis</div><div class="value" id="basis">—</div></div>
    <div class="stat"><div class="label">Market value</div><div class="value" id="marketValue">—</div></div>
    <div class="stat"><div class="label">Allocation</div><div class="value" id="allocation">—</div></div>
  </div>

  <div class="layout">
    <div>
      <section class="panel">
        <h2>Positions</h2>
        <table>
          <thead>
            <tr><th>Symbol</th><th>Price</th><th>Lots</th><th>Basis</th><th>Value</th></tr>
          </thead>
          <tbody id="positions"></tbody>
        </table>
      </section>
      <section class="panel controls">
        <h2>Controls</h2>
        <input id="symbolInput" placeholder="symbol, e.g. AAPL" />
        <button onclick="addSymbol()">Add symbol</button>
        <button onclick="removeSymbol()">Remove symbol</button>
        <button onclick="addAllSymbols()">Add all tradeable</button>
        <select id="stakeMode">
          <option value="fixed">fixed stake</option>
          <option value="percent">percent of equity</option>
        </select>
        <input id="stakeAmount" placeholder="amount" type="number" step="0.01" />
        <button onclick="setStake()">Set stake</button>
        <hr style="border-color:var(--border)" />
        <button class="danger" onclick="cancelOrders()">Cancel all orders</button>
        <button class="danger" onclick="closePositions()">Close all positions</button>
      </section>
    </div>
    <div>
      <section class="panel">
        <h2>Trades</h2>
        <div id="tradeFeed"></div>
      </section>
    </div>
  </div>

<script>
const fmt = (v, cur) => v + (cur ? ' ' + cur : '');
let currency = '';

async function refresh(){
  try {
    const res = await fetch('/api/data');
    const data = await res.json();
    currency = data.currency || '';

    document.getElementById('equity').textContent = fmt(data.equity, currency);
    document.getElementById('cash').textContent = fmt(data.cash, currency);
    document.getElementById('basis').textContent = fmt(data.total_basis, currency);
    document.getElementById('marketValue').textContent = fmt(data.market_value, currency);
    document.getElementById('allocation').textContent = data.allocation_pct + '%';

    const mode = document.getElementById('modeBadge');
    mode.textContent = data.dry_run ? 'DRY RUN' : 'LIVE';
    mode.className = 'badge ' + (data.dry_run ? 'dry' : 'live');

    const market = document.getElementById('marketBadge');
    market.textContent = data.market_open ? 'MARKET OPEN' : 'MARKET CLOSED';
    market.className = 'badge ' + (data.market_open ? 'live' : 'closed');

    renderPositions(data.symbols || []);
  } catch (err) {
    console.error('refresh failed', err);
  }
}

function renderPositions(symbols){
  const body = document.getElementById('positions');
  body.innerHTML = '';
  for (const s of symbols){
    const row = document.createElement('tr');
    row.className = 'sym-row';
    const lotCount = (s.lots || []).length;
    row.innerHTML = '<td>' + s.symbol + '</td><td>' + s.price + '</td><td>' +
      lotCount + '</td><td>' + s.cost_basis + '</td><td>' + s.market_value + '</td>';
    body.appendChild(row);

    if (lotCount > 0){
      const lotBody = document.createElement('tbody');
      lotBody.className = 'lot-table';
      for (const lot of s.lots){
        const pct = parseFloat(lot.profit_pct);
        const cls = pct >= 0 ? 'pos' : 'neg';
        const tr = document.createElement('tr');
        tr.innerHTML = '<td>&nbsp;&nbsp;lot</td><td>' + lot.buy_price + '</td><td>' +
          lot.quantity + '</td><td>' + lot.cost_basis +
          '</td><td class="' + cls + '">' + lot.profit_pct + '%</td>';
        lotBody.appendChild(tr);
      }
      row.addEventListener('click', () => lotBody.classList.toggle('open'));
      body.appendChild(lotBody);
    }
  }
}

function appendTrade(trade){
  const feed = document.getElementById('tradeFeed');
  const div = document.createElement('div');
  div.className = 'trade';
  const ts = trade.time ? new Date(trade.time).toLocaleTimeString([], {hour12:false}) : '';
  const tag = trade.dry_run ? ' [dry]' : '';
  div.innerHTML = '<span class="' + trade.side + '">' + trade.side.toUpperCase() + '</span> ' +
    trade.quantity + ' ' + trade.symbol + ' @ ' + trade.price + tag +
    '<span class="ts">' + ts + '</span>';
  feed.insertBefore(div, feed.firstChild);
  while (feed.children.length > 200){
    feed.removeChild(feed.lastChild);
  }
}

function connectTrades(){
  const source = new EventSource('/trades/stream');
  source.addEventListener('trade', (event) => {
    try { appendTrade(JSON.parse(event.data)); }
    catch (err) { console.error('trade parse', err); }
  });
  source.addEventListener('error', () => {
    source.close();
    setTimeout(connectTrades, 2000);
  });
}

async function post(url, body){
  const res = await fetch(url, {
    method:'POST',
    headers:{'Content-Type':'application/json'},
    body: body ? JSON.stringify(body) : null
  });
  if (!res.ok){
    alert(await res.text());
    return;
  }
  refresh();
}

function addSymbol(){
  const symbol = document.getElementById('symbolInput').value;
  if (symbol) post('/api/symbols/add', {symbol});
}
function removeSymbol(){
  const symbol = document.getElementById('symbolInput').value;
  if (symbol) post('/api/symbols/remove', {symbol});
}
function addAllSymbols(){
  if (confirm('Add every tradeable symbol to the watch list?')) post('/api/symbols/add-all');
}
function setStake(){
  const mode = document.getElementById('stakeMode').value;
  const amount = parseFloat(document.getElementById('stakeAmount').value);
  if (!amount || amount <= 0) { alert('enter a positive amount'); return; }
  const body = {mode};
  if (mode === 'fixed') body.fixed_amount = amount; else body.percent_amount = amount;
  post('/api/stake', body);
}
function cancelOrders(){
  if (confirm('Cancel all open orders?')) post('/api/orders/cancel');
}
function closePositions(){
  if (confirm('Close ALL positions and wipe the lot book?')) post('/api/positions/close');
}

connectTrades();
refresh();
setInterval(refresh, 5000);
</script>
</body>
</html>`
