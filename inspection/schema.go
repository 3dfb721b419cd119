package inspection

// Relational layout for one inspection: a header row plus child rows per
// page section. Code-list columns store JSON arrays; they are opaque to SQL
// and only decoded at derivation and read time. Timestamps are milliseconds
// since epoch.
const schema = `
CREATE TABLE IF NOT EXISTS usuarios (
	id     INTEGER PRIMARY KEY AUTOINCREMENT,
	login  TEXT NOT NULL UNIQUE,
	nome   TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS empresas (
	id    INTEGER PRIMARY KEY AUTOINCREMENT,
	nome  TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS contratos (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	empresa_id  INTEGER REFERENCES empresas(id),
	nome        TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS correias (
	id    INTEGER PRIMARY KEY AUTOINCREMENT,
	code  TEXT NOT NULL UNIQUE,
	nome  TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS catalogos (
	code   TEXT PRIMARY KEY,
	label  TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS inspecoes (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	inspetor      TEXT,
	data          TEXT,
	equip         TEXT,
	area          TEXT,
	lat           REAL,
	lng           REAL,
	gps_accuracy  REAL,
	usuario_id    INTEGER REFERENCES usuarios(id),
	empresa_id    INTEGER REFERENCES empresas(id),
	contrato_id   INTEGER REFERENCES contratos(id),
	criado_em     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_inspecoes_empresa ON inspecoes (empresa_id, data);

CREATE TABLE IF NOT EXISTS pagina1_rolos (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	inspecao_id   INTEGER NOT NULL REFERENCES inspecoes(id) ON DELETE CASCADE,
	equip         TEXT,
	baliza        TEXT,
	limp          TEXT NOT NULL DEFAULT '',
	critic        TEXT NOT NULL DEFAULT '',
	carga_E       TEXT NOT NULL DEFAULT '[]',
	carga_C       TEXT NOT NULL DEFAULT '[]',
	carga_D       TEXT NOT NULL DEFAULT '[]',
	impacto_E     TEXT NOT NULL DEFAULT '[]',
	impacto_C     TEXT NOT NULL DEFAULT '[]',
	impacto_D     TEXT NOT NULL DEFAULT '[]',
	retorno_RB    TEXT NOT NULL DEFAULT '[]',
	retorno_RP    TEXT NOT NULL DEFAULT '[]',
	retorno_RT    TEXT NOT NULL DEFAULT '[]',
	verticais_EC  TEXT NOT NULL DEFAULT '[]',
	verticais_DC  TEXT NOT NULL DEFAULT '[]',
	verticais_ER  TEXT NOT NULL DEFAULT '[]',
	verticais_DR  TEXT NOT NULL DEFAULT '[]',
	suportes_CAR  TEXT NOT NULL DEFAULT '[]',
	suportes_AAC  TEXT NOT NULL DEFAULT '[]',
	suportes_RET  TEXT NOT NULL DEFAULT '[]',
	suportes_AAR  TEXT NOT NULL DEFAULT '[]',
	suportes_CAL  TEXT NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_p1_inspecao ON pagina1_rolos (inspecao_id);

CREATE TABLE IF NOT EXISTS pagina2_calhas (
	id                   INTEGER PRIMARY KEY AUTOINCREMENT,
	inspecao_id          INTEGER NOT NULL REFERENCES inspecoes(id) ON DELETE CASCADE,
	equip                TEXT,
	ponto_transferencia  INTEGER,
	letra                TEXT,
	pontos               TEXT NOT NULL DEFAULT '[]',
	item                 TEXT NOT NULL DEFAULT '[]',
	dano                 TEXT NOT NULL DEFAULT '[]',
	servico              TEXT NOT NULL DEFAULT '[]',
	critic               TEXT NOT NULL DEFAULT '',
	limpeza              TEXT NOT NULL DEFAULT '',
	andaime              TEXT NOT NULL DEFAULT '',
	obs                  TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_p2c_inspecao ON pagina2_calhas (inspecao_id);

CREATE TABLE IF NOT EXISTS pagina2_vedacao (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	inspecao_id  INTEGER NOT NULL REFERENCES inspecoes(id) ON DELETE CASCADE,
	equip        TEXT,
	ponto_carga  TEXT NOT NULL DEFAULT '',
	critic       TEXT NOT NULL DEFAULT '',
	dano         TEXT NOT NULL DEFAULT '[]',
	item         TEXT NOT NULL DEFAULT '[]',
	servico      TEXT NOT NULL DEFAULT '[]',
	posicao      TEXT NOT NULL DEFAULT '[]',
	limpeza      TEXT NOT NULL DEFAULT '',
	andaime      TEXT NOT NULL DEFAULT '',
	obs          TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_p2v_inspecao ON pagina2_vedacao (inspecao_id);

CREATE TABLE IF NOT EXISTS pagina2_raspadores (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	inspecao_id  INTEGER NOT NULL REFERENCES inspecoes(id) ON DELETE CASCADE,
	equip        TEXT,
	ponto_baliza TEXT NOT NULL DEFAULT '',
	critic       TEXT NOT NULL DEFAULT '',
	dano         TEXT NOT NULL DEFAULT '[]',
	item         TEXT NOT NULL DEFAULT '[]',
	servico      TEXT NOT NULL DEFAULT '[]',
	posicao      TEXT NOT NULL DEFAULT '[]',
	limpeza      TEXT NOT NULL DEFAULT '',
	andaime      TEXT NOT NULL DEFAULT '',
	obs          TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_p2r_inspecao ON pagina2_raspadores (inspecao_id);

CREATE TABLE IF NOT EXISTS pagina2_mesas (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	inspecao_id  INTEGER NOT NULL REFERENCES inspecoes(id) ON DELETE CASCADE,
	equip        TEXT,
	ponto_carga  TEXT NOT NULL DEFAULT '',
	critic       TEXT NOT NULL DEFAULT '',
	dano         TEXT NOT NULL DEFAULT '[]',
	item         TEXT NOT NULL DEFAULT '[]',
	servico      TEXT NOT NULL DEFAULT '[]',
	posicao      TEXT NOT NULL DEFAULT '[]',
	limpeza      TEXT NOT NULL DEFAULT '',
	andaime      TEXT NOT NULL DEFAULT '',
	modelo       TEXT NOT NULL DEFAULT '',
	obs          TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_p2m_inspecao ON pagina2_mesas (inspecao_id);

CREATE TABLE IF NOT EXISTS pagina3_correia (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	inspecao_id       INTEGER NOT NULL REFERENCES inspecoes(id) ON DELETE CASCADE,
	equip             TEXT,
	baliza            TEXT,
	tramo             TEXT NOT NULL DEFAULT '',
	lado              TEXT NOT NULL DEFAULT '',
	tipo              TEXT NOT NULL DEFAULT '',
	dano              TEXT NOT NULL DEFAULT '[]',
	servico           TEXT NOT NULL DEFAULT '[]',
	critic            TEXT NOT NULL DEFAULT '',
	limpeza           TEXT NOT NULL DEFAULT '',
	andaime           TEXT NOT NULL DEFAULT '',
	eh_emenda         INTEGER NOT NULL DEFAULT 0,
	tipo_emenda       TEXT NOT NULL DEFAULT '',
	cond_emenda       TEXT NOT NULL DEFAULT '',
	grampos_faltando  INTEGER NOT NULL DEFAULT 0,
	desalinhada       TEXT NOT NULL DEFAULT '',
	obs               TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_p3_inspecao ON pagina3_correia (inspecao_id);

CREATE TABLE IF NOT EXISTS pagina4_tambores (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	inspecao_id       INTEGER NOT NULL REFERENCES inspecoes(id) ON DELETE CASCADE,
	equip             TEXT,
	tambor            TEXT NOT NULL DEFAULT '',
	critic            TEXT NOT NULL DEFAULT '',
	revest_dano       TEXT NOT NULL DEFAULT '[]',
	revest_servico    TEXT NOT NULL DEFAULT '[]',
	carcaca_dano      TEXT NOT NULL DEFAULT '[]',
	carcaca_servico   TEXT NOT NULL DEFAULT '[]',
	mancais_sintomas  TEXT NOT NULL DEFAULT '[]',
	mancais_causas    TEXT NOT NULL DEFAULT '[]',
	obs               TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_p4_inspecao ON pagina4_tambores (inspecao_id);

CREATE TABLE IF NOT EXISTS pagina5_estrutura (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	inspecao_id  INTEGER NOT NULL REFERENCES inspecoes(id) ON DELETE CASCADE,
	equip        TEXT,
	parte        TEXT NOT NULL DEFAULT '',
	elementos    TEXT NOT NULL DEFAULT '[]',
	dano         TEXT NOT NULL DEFAULT '[]',
	servico      TEXT NOT NULL DEFAULT '[]',
	critic       TEXT NOT NULL DEFAULT '',
	limpeza      TEXT NOT NULL DEFAULT '',
	andaime      TEXT NOT NULL DEFAULT '',
	local        TEXT NOT NULL DEFAULT '',
	obs          TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_p5_inspecao ON pagina5_estrutura (inspecao_id);

CREATE TABLE IF NOT EXISTS evidencias (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	inspecao_id    INTEGER NOT NULL REFERENCES inspecoes(id) ON DELETE CASCADE,
	pagina         INTEGER NOT NULL,
	secao          TEXT NOT NULL,
	tipo           TEXT NOT NULL DEFAULT 'imagem',
	baliza         TEXT,
	ponto          TEXT,
	linha          TEXT,
	coluna         TEXT,
	codes_json     TEXT NOT NULL DEFAULT '[]',
	original_name  TEXT NOT NULL DEFAULT '',
	file_path      TEXT NOT NULL DEFAULT '',
	mime_type      TEXT NOT NULL DEFAULT 'image/jpeg',
	tamanho_bytes  INTEGER,
	criado_em      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_evid_inspecao ON evidencias (inspecao_id, pagina, secao);

CREATE TABLE IF NOT EXISTS inspecao_oportunidades (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	inspecao_id  INTEGER NOT NULL REFERENCES inspecoes(id) ON DELETE CASCADE,
	correia_id   INTEGER REFERENCES correias(id),
	pagina       INTEGER NOT NULL,
	registro_id  INTEGER NOT NULL,
	equip        TEXT NOT NULL DEFAULT '',
	titulo       TEXT NOT NULL DEFAULT '',
	descricao    TEXT NOT NULL DEFAULT '',
	critic       TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'aberta',
	criado_em    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_oport_inspecao ON inspecao_oportunidades (inspecao_id);
CREATE INDEX IF NOT EXISTS idx_oport_correia ON inspecao_oportunidades (correia_id);
`
