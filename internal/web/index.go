// Package web embeds the control page served at /.
package web

// IndexHTML is the single-page UI: sign-in, the dual 14-band slider bank,
// the transport button, and the live noise meter.
var IndexHTML = []byte(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>equalizerd</title>
<style>
  :root { --bg:#101418; --panel:#1a2028; --fg:#d7dee8; --accent:#4db6ac; --dim:#5c6773; }
  body { margin:0; background:var(--bg); color:var(--fg); font:14px/1.5 system-ui, sans-serif; }
  main { max-width: 960px; margin: 0 auto; padding: 24px; }
  h1 { font-size: 18px; letter-spacing: 2px; color: var(--accent); }
  .panel { background: var(--panel); border-radius: 8px; padding: 16px; margin-bottom: 16px; }
  .hidden { display: none; }
  input[type=email], input[type=password] {
    background:#0c1014; color:var(--fg); border:1px solid var(--dim);
    border-radius:4px; padding:8px; margin:4px 0; width:240px; display:block;
  }
  button {
    background:var(--accent); color:#08110f; border:none; border-radius:4px;
    padding:8px 16px; margin:8px 4px 0 0; cursor:pointer; font-weight:600;
  }
  button.secondary { background:var(--dim); color:var(--fg); }
  .bank { display:flex; gap:4px; align-items:flex-end; }
  .band { display:flex; flex-direction:column; align-items:center; width:32px; }
  .band input[type=range] {
    writing-mode: vertical-lr; direction: rtl;
    height:140px; width:24px; accent-color: var(--accent);
  }
  .band label { font-size:9px; color:var(--dim); margin-top:4px; }
  .band output { font-size:9px; }
  #meter-bar { height:12px; background:#0c1014; border-radius:6px; overflow:hidden; }
  #meter-fill { height:100%; width:0%; background:var(--accent); transition:width .1s linear; }
  #status-line, #meter-text { color: var(--dim); font-size: 12px; }
  .err { color:#ef5350; font-size:12px; min-height:16px; }
  h2 { font-size:13px; color:var(--dim); text-transform:uppercase; letter-spacing:1px; }
</style>
</head>
<body>
<main>
  <h1>EQUALIZERD</h1>

  <section id="auth" class="panel">
    <h2>Sign in</h2>
    <input id="email" type="email" placeholder="email" autocomplete="username">
    <input id="password" type="password" placeholder="password" autocomplete="current-password">
    <div class="err" id="auth-err"></div>
    <button onclick="signIn()">Sign in</button>
    <button class="secondary" onclick="signUp()">Create account</button>
    <button class="secondary" onclick="signInProvider()">Sign in with provider</button>
  </section>

  <section id="deck" class="hidden">
    <div class="panel">
      <h2>Transport</h2>
      <button id="toggle" onclick="toggleTransport()">...</button>
      <button class="secondary" onclick="signOut()">Sign out</button>
      <div id="status-line"></div>
    </div>

    <div class="panel">
      <h2>Channel A</h2>
      <div class="bank" id="bank-a"></div>
    </div>
    <div class="panel">
      <h2>Channel B</h2>
      <div class="bank" id="bank-b"></div>
    </div>

    <div class="panel">
      <h2>Noise meter</h2>
      <div id="meter-bar"><div id="meter-fill"></div></div>
      <div id="meter-text"></div>
    </div>

    <div class="panel">
      <h2>Monitor</h2>
      <audio controls src="/stream"></audio>
    </div>
  </section>
</main>

<script>
const FREQS = [32,45,63,90,125,180,250,500,1000,2000,4000,8000,12000,16000];
const FLOOR_DB = -96;

function fmtHz(f) { return f >= 1000 ? (f/1000)+'k' : ''+f; }

function buildBank(el, channel) {
  FREQS.forEach((f, band) => {
    const wrap = document.createElement('div');
    wrap.className = 'band';
    const s = document.createElement('input');
    s.type = 'range'; s.min = -12; s.max = 12; s.step = 0.5; s.value = 0;
    s.dataset.channel = channel; s.dataset.band = band;
    const out = document.createElement('output');
    out.textContent = '0';
    s.oninput = () => { out.textContent = s.value; setBand(channel, band, parseFloat(s.value)); };
    const lbl = document.createElement('label');
    lbl.textContent = fmtHz(f);
    wrap.append(s, out, lbl);
    el.append(wrap);
  });
}
buildBank(document.getElementById('bank-a'), 0);
buildBank(document.getElementById('bank-b'), 1);

async function api(path, body) {
  const opts = body === undefined ? {} : {
    method: 'POST',
    headers: {'Content-Type': 'application/json'},
    body: JSON.stringify(body),
  };
  const res = await fetch(path, opts);
  if (!res.ok) throw new Error(await res.text());
  return res.status === 204 ? null : res.json();
}

function showDeck(on) {
  document.getElementById('auth').classList.toggle('hidden', on);
  document.getElementById('deck').classList.toggle('hidden', !on);
}

async function signIn() { await auth('/api/signin'); }
async function signUp() { await auth('/api/signup'); }
async function auth(path) {
  const err = document.getElementById('auth-err');
  err.textContent = '';
  try {
    await api(path, {
      email: document.getElementById('email').value,
      password: document.getElementById('password').value,
    });
    await api('/api/session/attach', {});
    await refreshGains();
    showDeck(true);
  } catch (e) { err.textContent = e.message; }
}
async function signInProvider() {
  const err = document.getElementById('auth-err');
  err.textContent = '';
  const token = prompt('Provider token:');
  try {
    await api('/api/signin/token', {token: token || ''});
    await api('/api/session/attach', {});
    await refreshGains();
    showDeck(true);
  } catch (e) { err.textContent = e.message; }
}
async function signOut() {
  try { await api('/api/signout', {}); } finally { showDeck(false); }
}

async function setBand(channel, band, gain) {
  try { await api('/api/eq/band', {channel, band, gain}); } catch (e) {}
}

async function refreshGains() {
  const g = await api('/api/eq');
  document.querySelectorAll('.band input').forEach(s => {
    const idx = parseInt(s.dataset.channel) * 14 + parseInt(s.dataset.band);
    s.value = g.gains[idx];
    s.nextElementSibling.textContent = g.gains[idx];
  });
}

async function toggleTransport() {
  try { await api('/api/transport/toggle', {}); } catch (e) {}
}

async function poll() {
  try {
    const st = await api('/api/status');
    showDeck(st.screen === 'main');
    const eng = st.engine;
    const btn = document.getElementById('toggle');
    btn.textContent = eng.mode === 'playback'
      ? (eng.state === 'playing' ? 'Pause' : 'Play')
      : (eng.state === 'recording' ? 'Stop' : 'Record');
    let line = eng.mode + ' / ' + eng.state + ' / ' + eng.layout;
    if (eng.mode === 'playback') {
      line += ' ' + eng.position_sec.toFixed(1) + 's / ' + eng.duration_sec.toFixed(1) + 's';
    }
    if (st.store_error) line += ' -- save pending retry';
    document.getElementById('status-line').textContent = line;

    const m = st.meter;
    const pct = Math.max(0, Math.min(100, (m.level_db - FLOOR_DB) / -FLOOR_DB * 100));
    document.getElementById('meter-fill').style.width = pct + '%';
    document.getElementById('meter-text').textContent =
      m.level_db.toFixed(1) + ' dB (peak ' + m.peak_db.toFixed(1) +
      ', mean ' + m.mean_db.toFixed(1) + ')';
  } catch (e) {}
}
setInterval(poll, 250);
poll();
</script>
</body>
</html>
`)
