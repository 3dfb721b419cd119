package inspection

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/LucaslFerrari/App-Inspecao/dataurl"
	"github.com/LucaslFerrari/App-Inspecao/storage"
)

// Config configures a Store.
type Config struct {
	// Storage receives decoded evidence blobs. Required.
	Storage storage.Storage
	// Logger overrides the default slog logger.
	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Store persists inspections and derived opportunities.
type Store struct {
	db      *sql.DB
	storage storage.Storage
	logger  *slog.Logger
}

// New creates a Store. Call EnsureSchema once at startup.
func New(db *sql.DB, cfg Config) *Store {
	cfg.defaults()
	return &Store{db: db, storage: cfg.Storage, logger: cfg.Logger}
}

// EnsureSchema creates all tables and indexes if they don't exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// SaveInspection writes one submission in a single transaction: header row,
// page sections, evidence rows, then opportunity derivation. Any failure
// rolls the whole submission back.
//
// Retried submissions are not deduplicated: a client that re-sends after a
// timeout that actually committed creates a second inspection. The capture
// flow is user-confirmed, so the window is narrow.
func (s *Store) SaveInspection(ctx context.Context, sub Submission) (int64, error) {
	// Evidence anchors are validated up front so nothing is uploaded for a
	// submission that is going to be refused anyway.
	parsed, err := s.parseEvidencias(sub.Evidencias)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UnixMilli()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO inspecoes
			(inspetor, data, equip, area, lat, lng, gps_accuracy,
			 usuario_id, empresa_id, contrato_id, criado_em)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		nullStr(sub.Inspetor), nullStr(sub.Data), nullStr(sub.Equip), nullStr(sub.Area),
		sub.Lat, sub.Lng, sub.GPSAccuracy,
		sub.UsuarioID, sub.EmpresaID, sub.ContratoID, now,
	)
	if err != nil {
		return 0, fmt.Errorf("insert inspecao: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert inspecao id: %w", err)
	}

	if err := s.insertPagina1(ctx, tx, id, sub); err != nil {
		return 0, err
	}
	if err := s.insertPagina2(ctx, tx, id, sub); err != nil {
		return 0, err
	}
	if err := s.insertPagina3(ctx, tx, id, sub); err != nil {
		return 0, err
	}
	if err := s.insertPagina4(ctx, tx, id, sub); err != nil {
		return 0, err
	}
	if err := s.insertPagina5(ctx, tx, id, sub); err != nil {
		return 0, err
	}
	if err := s.insertEvidencias(ctx, tx, id, parsed, now); err != nil {
		return 0, err
	}

	if _, err := s.deriveTx(ctx, tx, id, sub.Equip); err != nil {
		return 0, fmt.Errorf("derive opportunities: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	s.logger.Info("inspection saved", "id", id, "equip", sub.Equip, "evidencias", len(parsed))
	return id, nil
}

func (s *Store) insertPagina1(ctx context.Context, tx *sql.Tx, id int64, sub Submission) error {
	insert := func(equip string, rolos []Rolo) error {
		for _, r := range rolos {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO pagina1_rolos
					(inspecao_id, equip, baliza, limp, critic,
					 carga_E, carga_C, carga_D,
					 impacto_E, impacto_C, impacto_D,
					 retorno_RB, retorno_RP, retorno_RT,
					 verticais_EC, verticais_DC, verticais_ER, verticais_DR,
					 suportes_CAR, suportes_AAC, suportes_RET, suportes_AAR, suportes_CAL)
				VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
				id, nullStr(equip), r.Baliza, r.Limp, r.Critic,
				jsonList(r.CargaE), jsonList(r.CargaC), jsonList(r.CargaD),
				jsonList(r.ImpactoE), jsonList(r.ImpactoC), jsonList(r.ImpactoD),
				jsonList(r.RetornoRB), jsonList(r.RetornoRP), jsonList(r.RetornoRT),
				jsonList(r.VerticaisEC), jsonList(r.VerticaisDC), jsonList(r.VerticaisER), jsonList(r.VerticaisDR),
				jsonList(r.SuportesCAR), jsonList(r.SuportesAAC), jsonList(r.SuportesRET), jsonList(r.SuportesAAR), jsonList(r.SuportesCAL),
			)
			if err != nil {
				return fmt.Errorf("insert pagina1_rolos: %w", err)
			}
		}
		return nil
	}

	if len(sub.Pagina1.MultiEquipRolos) > 0 {
		for _, b := range sub.Pagina1.MultiEquipRolos {
			if err := insert(fallback(b.Equip, sub.Equip), b.Rolos); err != nil {
				return err
			}
		}
		return nil
	}
	return insert(sub.Equip, sub.Pagina1.Rolos)
}

func (s *Store) insertPagina2(ctx context.Context, tx *sql.Tx, id int64, sub Submission) error {
	insert := func(equip string, b Pagina2Batch) error {
		for _, c := range b.Calhas {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO pagina2_calhas
					(inspecao_id, equip, ponto_transferencia, letra, pontos, item, dano, servico, critic, limpeza, andaime, obs)
				VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
				id, nullStr(equip), c.Ponto, nullStr(c.Letra),
				jsonList(c.Pontos), jsonList(c.Item), jsonList(c.Dano), jsonList(c.Servico),
				c.Critic, c.Limpeza, c.Andaime, c.Obs,
			)
			if err != nil {
				return fmt.Errorf("insert pagina2_calhas: %w", err)
			}
		}
		for _, v := range b.Vedacao {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO pagina2_vedacao
					(inspecao_id, equip, ponto_carga, critic, dano, item, servico, posicao, limpeza, andaime, obs)
				VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
				id, nullStr(equip), v.Ponto, v.Critic,
				jsonList(v.Dano), jsonList(v.Item), jsonList(v.Servico), jsonList(v.Posicao),
				v.Limpeza, v.Andaime, v.Obs,
			)
			if err != nil {
				return fmt.Errorf("insert pagina2_vedacao: %w", err)
			}
		}
		for _, r := range b.Raspadores {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO pagina2_raspadores
					(inspecao_id, equip, ponto_baliza, critic, dano, item, servico, posicao, limpeza, andaime, obs)
				VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
				id, nullStr(equip), r.Ponto, r.Critic,
				jsonList(r.Dano), jsonList(r.Item), jsonList(r.Servico), jsonList(r.Posicao),
				r.Limpeza, r.Andaime, r.Obs,
			)
			if err != nil {
				return fmt.Errorf("insert pagina2_raspadores: %w", err)
			}
		}
		for _, m := range b.Mesas {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO pagina2_mesas
					(inspecao_id, equip, ponto_carga, critic, dano, item, servico, posicao, limpeza, andaime, modelo, obs)
				VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
				id, nullStr(equip), m.Ponto, m.Critic,
				jsonList(m.Dano), jsonList(m.Item), jsonList(m.Servico), jsonList(m.Posicao),
				m.Limpeza, m.Andaime, m.Modelo, m.Obs,
			)
			if err != nil {
				return fmt.Errorf("insert pagina2_mesas: %w", err)
			}
		}
		return nil
	}

	if len(sub.Pagina2.MultiEquip) > 0 {
		for _, b := range sub.Pagina2.MultiEquip {
			if err := insert(fallback(b.Equip, sub.Equip), b); err != nil {
				return err
			}
		}
		return nil
	}
	return insert(sub.Equip, Pagina2Batch{
		Calhas:     sub.Pagina2.Calhas,
		Vedacao:    sub.Pagina2.Vedacao,
		Raspadores: sub.Pagina2.Raspadores,
		Mesas:      sub.Pagina2.Mesas,
	})
}

func (s *Store) insertPagina3(ctx context.Context, tx *sql.Tx, id int64, sub Submission) error {
	insert := func(equip string, correias []Correia) error {
		for _, c := range correias {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO pagina3_correia
					(inspecao_id, equip, baliza, tramo, lado, tipo, dano, servico, critic, limpeza, andaime,
					 eh_emenda, tipo_emenda, cond_emenda, grampos_faltando, desalinhada, obs)
				VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
				id, nullStr(equip), c.Baliza, c.Tramo, c.Lado, c.Tipo,
				jsonList(c.Dano), jsonList(c.Servico),
				c.Critic, c.Limpeza, c.Andaime,
				boolInt(c.EhEmenda), c.TipoEmenda, c.CondEmenda, c.GramposFaltando, c.Desalinhada, c.Obs,
			)
			if err != nil {
				return fmt.Errorf("insert pagina3_correia: %w", err)
			}
		}
		return nil
	}

	if len(sub.Pagina3.MultiEquipCorreias) > 0 {
		for _, b := range sub.Pagina3.MultiEquipCorreias {
			if err := insert(fallback(b.Equip, sub.Equip), b.Correias); err != nil {
				return err
			}
		}
		return nil
	}
	return insert(sub.Equip, sub.Pagina3.Correias)
}

func (s *Store) insertPagina4(ctx context.Context, tx *sql.Tx, id int64, sub Submission) error {
	insert := func(equip string, tambores []Tambor) error {
		for _, t := range tambores {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO pagina4_tambores
					(inspecao_id, equip, tambor, critic, revest_dano, revest_servico,
					 carcaca_dano, carcaca_servico, mancais_sintomas, mancais_causas, obs)
				VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
				id, nullStr(equip), t.Tambor, t.Critic,
				jsonList(t.RevestDano), jsonList(t.RevestServico),
				jsonList(t.CarcacaDano), jsonList(t.CarcacaServico),
				jsonList(t.MancaisSintomas), jsonList(t.MancaisCausas), t.Obs,
			)
			if err != nil {
				return fmt.Errorf("insert pagina4_tambores: %w", err)
			}
		}
		return nil
	}

	if len(sub.Pagina4.MultiEquip) > 0 {
		for _, b := range sub.Pagina4.MultiEquip {
			if err := insert(fallback(b.Equip, sub.Equip), b.Tambores); err != nil {
				return err
			}
		}
		return nil
	}
	return insert(fallback(sub.Pagina4.Equip, sub.Equip), sub.Pagina4.Tambores)
}

func (s *Store) insertPagina5(ctx context.Context, tx *sql.Tx, id int64, sub Submission) error {
	insert := func(equip string, estrutura []Estrutura) error {
		for _, e := range estrutura {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO pagina5_estrutura
					(inspecao_id, equip, parte, elementos, dano, servico, critic, limpeza, andaime, local, obs)
				VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
				id, nullStr(equip), e.Parte,
				jsonList(e.Elementos), jsonList(e.Danos), jsonList(e.Servicos),
				e.Critic, e.Limpeza, e.Andaime, e.Local, e.Obs,
			)
			if err != nil {
				return fmt.Errorf("insert pagina5_estrutura: %w", err)
			}
		}
		return nil
	}

	if len(sub.Pagina5.MultiEquip) > 0 {
		for _, b := range sub.Pagina5.MultiEquip {
			if err := insert(fallback(b.Equip, sub.Equip), b.Estrutura); err != nil {
				return err
			}
		}
		return nil
	}
	return insert(fallback(sub.Pagina5.Equip, sub.Equip), sub.Pagina5.Estrutura)
}

// parsedEvidencia is an Evidencia whose data URI decoded successfully.
type parsedEvidencia struct {
	Evidencia
	mime string
	data []byte
}

// parseEvidencias decodes data URIs and validates anchors. Undecodable
// entries are skipped with a warning; an entry without pagina or secao
// refuses the whole submission.
func (s *Store) parseEvidencias(evs []Evidencia) ([]parsedEvidencia, error) {
	var out []parsedEvidencia
	for i, ev := range evs {
		if ev.DataURL == "" {
			continue
		}
		mime, data, ok := dataurl.Parse(ev.DataURL)
		if !ok {
			s.logger.Warn("evidencia with undecodable data URI skipped", "index", i)
			continue
		}
		if ev.Pagina == nil || ev.Secao == "" {
			return nil, fmt.Errorf("%w: evidencia sem 'pagina' ou 'secao'", ErrValidation)
		}
		out = append(out, parsedEvidencia{Evidencia: ev, mime: mime, data: data})
	}
	return out, nil
}

func (s *Store) insertEvidencias(ctx context.Context, tx *sql.Tx, id int64, evs []parsedEvidencia, now int64) error {
	for _, ev := range evs {
		stored, err := s.storage.Upload(ctx, storage.Upload{Data: ev.data, MimeType: ev.mime})
		if err != nil {
			return fmt.Errorf("upload evidencia: %w", err)
		}

		name := ev.FileName
		if name == "" {
			name = ev.PhotoName
		}
		if name == "" {
			name = stored.FileName
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO evidencias
				(inspecao_id, pagina, secao, tipo, baliza, ponto, linha, coluna,
				 codes_json, original_name, file_path, mime_type, tamanho_bytes, criado_em)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			id, *ev.Pagina, ev.Secao, fallback(ev.Tipo, "imagem"),
			ev.Baliza, ev.Ponto, ev.Linha, ev.Coluna,
			jsonList(ev.Codes), name, stored.URL, ev.mime, len(ev.data), now,
		)
		if err != nil {
			return fmt.Errorf("insert evidencia: %w", err)
		}
	}
	return nil
}

func jsonList(v []string) string {
	if len(v) == 0 {
		return "[]"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func fallback(s, def string) string {
	if s != "" {
		return s
	}
	return def
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
