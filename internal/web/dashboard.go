package web

const dashboardHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>miner status</title>
<style>
body { font-family: monospace; background: #111; color: #ddd; margin: 2em; }
h1 { font-size: 1.2em; color: #8fc; }
table { border-collapse: collapse; margin-top: 1em; }
td, th { padding: 4px 12px; text-align: left; border-bottom: 1px solid #333; }
th { color: #8fc; }
.stat { display: inline-block; margin-right: 2.5em; }
.stat .v { font-size: 1.4em; color: #fff; }
.stat .l { color: #888; font-size: 0.85em; }
.hash { color: #6af; }
</style>
</head>
<body>
<h1>block mining worker</h1>
<div id="stats"></div>
<h1>recent blocks</h1>
<table>
<thead><tr><th>hash</th><th>nonce</th><th>txs</th><th>took</th><th>when</th></tr></thead>
<tbody id="blocks"></tbody>
</table>
<script>
function fmtRate(r) {
  if (r > 1e6) return (r/1e6).toFixed(2) + ' MH/s';
  if (r > 1e3) return (r/1e3).toFixed(2) + ' kH/s';
  return r.toFixed(0) + ' H/s';
}
function stat(label, value) {
  return '<span class="stat"><span class="v">' + value + '</span><br><span class="l">' + label + '</span></span>';
}
async function refresh() {
  const res = await fetch('/api/status');
  const d = await res.json();
  document.getElementById('stats').innerHTML =
    stat('address', d.miner_address) +
    stat('difficulty', d.difficulty) +
    stat('workers', d.workers) +
    stat('hashrate', fmtRate(d.local_hashrate)) +
    stat('rounds', d.rounds_completed) +
    stat('skipped', d.rounds_skipped) +
    stat('blocks', d.blocks_mined) +
    stat('uptime', Math.floor(d.uptime_secs/60) + 'm');
  let rows = '';
  for (const b of (d.recent_blocks || [])) {
    rows += '<tr><td class="hash">' + b.hash.slice(0, 24) + '…</td><td>' + b.nonce +
      '</td><td>' + b.tx_count + (b.reward_only ? ' (reward)' : '') +
      '</td><td>' + b.duration_ms + 'ms</td><td>' +
      new Date(b.timestamp * 1000).toLocaleTimeString() + '</td></tr>';
  }
  document.getElementById('blocks').innerHTML = rows || '<tr><td colspan="5">none yet</td></tr>';
}
refresh();
setInterval(refresh, 5000);
</script>
</body>
</html>
`
