// Package inspection owns the server-side model: the relational schema for
// the five inspection pages, the transactional writer, opportunity
// derivation and the read endpoints.
package inspection

import "encoding/json"

// Text is a TEXT-bound wire field that accepts both JSON strings and JSON
// numbers. The capture UI sends positional anchors like baliza as numbers
// on some pages and as strings on others; both land here as the string
// form and are stored as TEXT.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*t = Text(n.String())
	return nil
}

// Submission is the wire payload of one inspection. Field names follow the
// JSON contract the field app already speaks; they are Portuguese because
// the domain is.
type Submission struct {
	Inspetor    string   `json:"inspetor,omitempty"`
	Data        string   `json:"data,omitempty"`
	Equip       string   `json:"equip,omitempty"`
	Area        string   `json:"area,omitempty"`
	Lat         *float64 `json:"lat,omitempty"`
	Lng         *float64 `json:"lng,omitempty"`
	GPSAccuracy *float64 `json:"gpsAccuracy,omitempty"`
	UsuarioID   *int64   `json:"usuario_id,omitempty"`
	EmpresaID   *int64   `json:"empresa_id,omitempty"`
	ContratoID  *int64   `json:"contrato_id,omitempty"`

	Pagina1 Pagina1 `json:"pagina1,omitempty"`
	Pagina2 Pagina2 `json:"pagina2,omitempty"`
	Pagina3 Pagina3 `json:"pagina3,omitempty"`
	Pagina4 Pagina4 `json:"pagina4,omitempty"`
	Pagina5 Pagina5 `json:"pagina5,omitempty"`

	Evidencias []Evidencia `json:"evidencias,omitempty"`
}

// Pagina1 covers the roller survey. Either the flat Rolos list (single
// equipment) or MultiEquipRolos (per-equipment batches) is populated.
type Pagina1 struct {
	Rolos           []Rolo      `json:"rolos,omitempty"`
	MultiEquipRolos []RoloBatch `json:"multiEquipRolos,omitempty"`
}

// RoloBatch groups roller rows under one equipment code. An empty Equip
// falls back to the submission header equipment.
type RoloBatch struct {
	Equip string `json:"equip,omitempty"`
	Rolos []Rolo `json:"rolos,omitempty"`
}

// Rolo is one roller station row. The positional groups hold defect codes
// resolved against the label catalog at derivation time.
type Rolo struct {
	Baliza Text   `json:"baliza,omitempty"`
	Limp   string `json:"limp,omitempty"`
	Critic string `json:"critic,omitempty"`

	CargaE []string `json:"carga_E,omitempty"`
	CargaC []string `json:"carga_C,omitempty"`
	CargaD []string `json:"carga_D,omitempty"`

	ImpactoE []string `json:"impacto_E,omitempty"`
	ImpactoC []string `json:"impacto_C,omitempty"`
	ImpactoD []string `json:"impacto_D,omitempty"`

	RetornoRB []string `json:"retorno_RB,omitempty"`
	RetornoRP []string `json:"retorno_RP,omitempty"`
	RetornoRT []string `json:"retorno_RT,omitempty"`

	VerticaisEC []string `json:"verticais_EC,omitempty"`
	VerticaisDC []string `json:"verticais_DC,omitempty"`
	VerticaisER []string `json:"verticais_ER,omitempty"`
	VerticaisDR []string `json:"verticais_DR,omitempty"`

	SuportesCAR []string `json:"suportes_CAR,omitempty"`
	SuportesAAC []string `json:"suportes_AAC,omitempty"`
	SuportesRET []string `json:"suportes_RET,omitempty"`
	SuportesAAR []string `json:"suportes_AAR,omitempty"`
	SuportesCAL []string `json:"suportes_CAL,omitempty"`
}

// Pagina2 covers transfer points: chutes, sealing, scrapers and impact
// tables.
type Pagina2 struct {
	Calhas     []Calha    `json:"calhas,omitempty"`
	Vedacao    []Vedacao  `json:"vedacao,omitempty"`
	Raspadores []Raspador `json:"raspadores,omitempty"`
	Mesas      []Mesa     `json:"mesas,omitempty"`

	MultiEquip []Pagina2Batch `json:"multiEquip,omitempty"`
}

// Pagina2Batch groups page-2 sections under one equipment code.
type Pagina2Batch struct {
	Equip      string     `json:"equip,omitempty"`
	Calhas     []Calha    `json:"calhas,omitempty"`
	Vedacao    []Vedacao  `json:"vedacao,omitempty"`
	Raspadores []Raspador `json:"raspadores,omitempty"`
	Mesas      []Mesa     `json:"mesas,omitempty"`
}

// Calha is one transfer chute row.
type Calha struct {
	Ponto   *int     `json:"ponto,omitempty"`
	Letra   string   `json:"letra,omitempty"`
	Pontos  []string `json:"pontos,omitempty"`
	Item    []string `json:"item,omitempty"`
	Dano    []string `json:"dano,omitempty"`
	Servico []string `json:"servico,omitempty"`
	Critic  string   `json:"critic,omitempty"`
	Limpeza string   `json:"limpeza,omitempty"`
	Andaime string   `json:"andaime,omitempty"`
	Obs     string   `json:"obs,omitempty"`
}

// Vedacao is one sealing row.
type Vedacao struct {
	Ponto   string   `json:"ponto,omitempty"`
	Critic  string   `json:"critic,omitempty"`
	Dano    []string `json:"dano,omitempty"`
	Item    []string `json:"item,omitempty"`
	Servico []string `json:"servico,omitempty"`
	Posicao []string `json:"posicao,omitempty"`
	Limpeza string   `json:"limpeza,omitempty"`
	Andaime string   `json:"andaime,omitempty"`
	Obs     string   `json:"obs,omitempty"`
}

// Raspador is one belt-scraper row.
type Raspador struct {
	Ponto   string   `json:"ponto,omitempty"`
	Critic  string   `json:"critic,omitempty"`
	Dano    []string `json:"dano,omitempty"`
	Item    []string `json:"item,omitempty"`
	Servico []string `json:"servico,omitempty"`
	Posicao []string `json:"posicao,omitempty"`
	Limpeza string   `json:"limpeza,omitempty"`
	Andaime string   `json:"andaime,omitempty"`
	Obs     string   `json:"obs,omitempty"`
}

// Mesa is one impact-table row.
type Mesa struct {
	Ponto   string   `json:"ponto,omitempty"`
	Critic  string   `json:"critic,omitempty"`
	Dano    []string `json:"dano,omitempty"`
	Item    []string `json:"item,omitempty"`
	Servico []string `json:"servico,omitempty"`
	Posicao []string `json:"posicao,omitempty"`
	Limpeza string   `json:"limpeza,omitempty"`
	Andaime string   `json:"andaime,omitempty"`
	Modelo  string   `json:"modelo,omitempty"`
	Obs     string   `json:"obs,omitempty"`
}

// Pagina3 covers the belt itself.
type Pagina3 struct {
	Correias           []Correia      `json:"correias,omitempty"`
	MultiEquipCorreias []CorreiaBatch `json:"multiEquipCorreias,omitempty"`
}

// CorreiaBatch groups belt rows under one equipment code.
type CorreiaBatch struct {
	Equip    string    `json:"equip,omitempty"`
	Correias []Correia `json:"correias,omitempty"`
}

// Correia is one belt segment row.
type Correia struct {
	Baliza  Text     `json:"baliza,omitempty"`
	Tramo   string   `json:"tramo,omitempty"`
	Lado    string   `json:"lado,omitempty"`
	Tipo    string   `json:"tipo,omitempty"`
	Dano    []string `json:"dano,omitempty"`
	Servico []string `json:"servico,omitempty"`
	Critic  string   `json:"critic,omitempty"`
	Limpeza string   `json:"limpeza,omitempty"`
	Andaime string   `json:"andaime,omitempty"`

	EhEmenda        bool   `json:"eh_emenda,omitempty"`
	TipoEmenda      string `json:"tipo_emenda,omitempty"`
	CondEmenda      string `json:"cond_emenda,omitempty"`
	GramposFaltando int    `json:"grampos_faltando,omitempty"`
	Desalinhada     string `json:"desalinhada,omitempty"`
	Obs             string `json:"obs,omitempty"`
}

// Pagina4 covers pulleys. Equip is the single-equipment fallback used when
// MultiEquip is empty.
type Pagina4 struct {
	Equip      string        `json:"equip,omitempty"`
	Tambores   []Tambor      `json:"tambores,omitempty"`
	MultiEquip []TamborBatch `json:"multiEquip,omitempty"`
}

// TamborBatch groups pulley rows under one equipment code.
type TamborBatch struct {
	Equip    string   `json:"equip,omitempty"`
	Tambores []Tambor `json:"tambores,omitempty"`
}

// Tambor is one pulley row.
type Tambor struct {
	Tambor string `json:"tambor,omitempty"`
	Critic string `json:"critic,omitempty"`

	RevestDano      []string `json:"revestDano,omitempty"`
	RevestServico   []string `json:"revestServico,omitempty"`
	CarcacaDano     []string `json:"carcacaDano,omitempty"`
	CarcacaServico  []string `json:"carcacaServico,omitempty"`
	MancaisSintomas []string `json:"mancaisSintomas,omitempty"`
	MancaisCausas   []string `json:"mancaisCausas,omitempty"`

	Obs string `json:"obs,omitempty"`
}

// Pagina5 covers structure. Equip is the single-equipment fallback used
// when MultiEquip is empty.
type Pagina5 struct {
	Equip      string           `json:"equip,omitempty"`
	Estrutura  []Estrutura      `json:"estrutura,omitempty"`
	MultiEquip []EstruturaBatch `json:"multiEquip,omitempty"`
}

// EstruturaBatch groups structure rows under one equipment code.
type EstruturaBatch struct {
	Equip     string      `json:"equip,omitempty"`
	Estrutura []Estrutura `json:"estrutura,omitempty"`
}

// Estrutura is one structure row.
type Estrutura struct {
	Parte     string   `json:"parte,omitempty"`
	Elementos []string `json:"elementos,omitempty"`
	Danos     []string `json:"danos,omitempty"`
	Servicos  []string `json:"servicos,omitempty"`
	Critic    string   `json:"critic,omitempty"`
	Limpeza   string   `json:"limpeza,omitempty"`
	Andaime   string   `json:"andaime,omitempty"`
	Local     string   `json:"local,omitempty"`
	Obs       string   `json:"obs,omitempty"`
}

// Evidencia is one captured photo or video, carried inline as a base64
// data URI and anchored to the form cell it documents.
type Evidencia struct {
	DataURL string `json:"dataUrl,omitempty"`

	Pagina *int   `json:"pagina,omitempty"`
	Secao  string `json:"secao,omitempty"`
	Tipo   string `json:"tipo,omitempty"`

	Baliza *Text `json:"baliza,omitempty"`
	Ponto  *Text `json:"ponto,omitempty"`
	Linha  *Text `json:"linha,omitempty"`
	Coluna *Text `json:"coluna,omitempty"`

	Codes     []string `json:"codes,omitempty"`
	FileName  string   `json:"fileName,omitempty"`
	PhotoName string   `json:"photoName,omitempty"`
}
