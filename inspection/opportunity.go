package inspection

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Opportunity statuses. The derivation writes "aberta"; field supervisors
// flip rows to "executada" as the work gets done.
const (
	StatusAberta    = "aberta"
	StatusExecutada = "executada"
)

// Opportunity is one actionable maintenance item derived from a critical
// section row.
type Opportunity struct {
	ID         int64  `json:"id"`
	InspecaoID int64  `json:"inspecao_id"`
	CorreiaID  *int64 `json:"correia_id"`
	Pagina     int    `json:"pagina"`
	RegistroID int64  `json:"registro_id"`
	Equip      string `json:"equip"`
	Titulo     string `json:"titulo"`
	Descricao  string `json:"descricao"`
	Critic     string `json:"critic"`
	Status     string `json:"status"`
	CriadoEm   int64  `json:"criado_em"`
}

// isCritical decides whether a section row yields an opportunity: the
// criticality must be non-empty and not the "no action" sentinels OK / 0.
func isCritical(critic string) bool {
	c := strings.TrimSpace(critic)
	if c == "" {
		return false
	}
	lower := strings.ToLower(c)
	return lower != "ok" && lower != "0"
}

// NormalizeStatus maps the loose wire representations (bool, mixed-case
// string) onto the two canonical statuses. Anything unrecognised is
// "aberta".
func NormalizeStatus(v any) string {
	switch t := v.(type) {
	case bool:
		if t {
			return StatusExecutada
		}
		return StatusAberta
	case string:
		if strings.ToLower(t) == StatusExecutada {
			return StatusExecutada
		}
	}
	return StatusAberta
}

// deriveTx regenerates the opportunities of one inspection inside the given
// transaction. Existing statuses survive the rebuild: the old rows are
// snapshotted by (pagina, registro_id) before the delete, and a re-derived
// row for the same section keeps its snapshot status. Re-entrant.
func (s *Store) deriveTx(ctx context.Context, tx *sql.Tx, inspecaoID int64, equipPadrao string) (int, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT pagina, registro_id, status
		  FROM inspecao_oportunidades
		 WHERE inspecao_id = ?`, inspecaoID)
	if err != nil {
		return 0, fmt.Errorf("snapshot statuses: %w", err)
	}
	statusMap := map[string]string{}
	for rows.Next() {
		var pagina int
		var registroID int64
		var status string
		if err := rows.Scan(&pagina, &registroID, &status); err != nil {
			rows.Close()
			return 0, fmt.Errorf("snapshot scan: %w", err)
		}
		statusMap[fmt.Sprintf("%d:%d", pagina, registroID)] = NormalizeStatus(status)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM inspecao_oportunidades WHERE inspecao_id = ?`, inspecaoID,
	); err != nil {
		return 0, fmt.Errorf("clear opportunities: %w", err)
	}

	oportunidades, err := s.collect(ctx, tx, inspecaoID, equipPadrao)
	if err != nil {
		return 0, err
	}

	now := time.Now().UnixMilli()
	for _, o := range oportunidades {
		status := o.Status
		if prev, ok := statusMap[fmt.Sprintf("%d:%d", o.Pagina, o.RegistroID)]; ok {
			status = prev
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO inspecao_oportunidades
				(inspecao_id, correia_id, pagina, registro_id, equip, titulo, descricao, critic, status, criado_em)
			VALUES (?,?,?,?,?,?,?,?,?,?)`,
			o.InspecaoID, o.CorreiaID, o.Pagina, o.RegistroID,
			o.Equip, o.Titulo, o.Descricao, o.Critic, status, now,
		); err != nil {
			return 0, fmt.Errorf("insert opportunity: %w", err)
		}
	}
	return len(oportunidades), nil
}

// collect scans every section of the inspection and builds the opportunity
// list for its critical rows. Descriptions concatenate only populated
// fields; codes are resolved through the label catalog with raw-code
// fallback.
func (s *Store) collect(ctx context.Context, tx *sql.Tx, inspecaoID int64, equipPadrao string) ([]Opportunity, error) {
	labels, err := s.loadLabels(ctx, tx)
	if err != nil {
		return nil, err
	}
	beltCache := map[string]*int64{}
	var out []Opportunity

	add := func(pagina int, registroID int64, equip, titulo, descricao, critic string) error {
		eq := fallback(equip, equipPadrao)
		correiaID, err := s.resolveCorreia(ctx, tx, eq, beltCache)
		if err != nil {
			return err
		}
		out = append(out, Opportunity{
			InspecaoID: inspecaoID,
			CorreiaID:  correiaID,
			Pagina:     pagina,
			RegistroID: registroID,
			Equip:      eq,
			Titulo:     titulo,
			Descricao:  descricao,
			Critic:     strings.TrimSpace(critic),
			Status:     StatusAberta,
		})
		return nil
	}

	// Pagina 1 - rolos.
	{
		rows, err := tx.QueryContext(ctx, `
			SELECT id, equip, baliza, limp, critic,
			       carga_E, carga_C, carga_D,
			       impacto_E, impacto_C, impacto_D,
			       retorno_RB, retorno_RP, retorno_RT,
			       verticais_EC, verticais_DC, verticais_ER, verticais_DR,
			       suportes_CAR, suportes_AAC, suportes_RET, suportes_AAR, suportes_CAL
			  FROM pagina1_rolos WHERE inspecao_id = ?`, inspecaoID)
		if err != nil {
			return nil, fmt.Errorf("scan pagina1_rolos: %w", err)
		}
		type roloRow struct {
			id             int64
			equip, baliza  sql.NullString
			limp, critic   string
			grupos         [18]string
		}
		var rolos []roloRow
		for rows.Next() {
			var r roloRow
			dest := []any{&r.id, &r.equip, &r.baliza, &r.limp, &r.critic}
			for i := range r.grupos {
				dest = append(dest, &r.grupos[i])
			}
			if err := rows.Scan(dest...); err != nil {
				rows.Close()
				return nil, err
			}
			rolos = append(rolos, r)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()

		grupoLabels := []string{
			"Carga E", "Carga C", "Carga D",
			"Impacto E", "Impacto C", "Impacto D",
			"Retorno RB", "Retorno RP", "Retorno RT",
			"Verticais EC", "Verticais DC", "Verticais ER", "Verticais DR",
			"Suportes CAR", "Suportes AAC", "Suportes RET", "Suportes AAR", "Suportes CAL",
		}
		for _, r := range rolos {
			if !isCritical(r.critic) {
				continue
			}
			var parts []string
			if r.limp != "" {
				parts = append(parts, "Limpeza: "+labelFor(labels, r.limp))
			}
			for i, label := range grupoLabels {
				if joined := joinCodes(r.grupos[i], labels); joined != "" {
					parts = append(parts, label+": "+joined)
				}
			}
			titulo := "Rolos - baliza " + fallback(r.baliza.String, "-")
			if err := add(1, r.id, r.equip.String, titulo, strings.Join(parts, " | "), r.critic); err != nil {
				return nil, err
			}
		}
	}

	// Pagina 2 - calhas.
	if err := s.collectRows(ctx, tx,
		`SELECT id, equip, ponto_transferencia, letra, critic, limpeza
		   FROM pagina2_calhas WHERE inspecao_id = ?`, inspecaoID,
		func(scan func(...any) error) error {
			var id int64
			var equip sql.NullString
			var ponto sql.NullInt64
			var letra sql.NullString
			var critic, limpeza string
			if err := scan(&id, &equip, &ponto, &letra, &critic, &limpeza); err != nil {
				return err
			}
			if !isCritical(critic) {
				return nil
			}
			var parts []string
			if ponto.Valid {
				parts = append(parts, fmt.Sprintf("Ponto: %d", ponto.Int64))
			}
			if letra.String != "" {
				parts = append(parts, "Letra: "+letra.String)
			}
			if limpeza != "" {
				parts = append(parts, "Limpeza: "+limpeza)
			}
			return add(2, id, equip.String, "Calhas", strings.Join(parts, " | "), critic)
		},
	); err != nil {
		return nil, err
	}

	// Pagina 2 - vedacao.
	if err := s.collectRows(ctx, tx,
		`SELECT id, equip, ponto_carga, critic, dano, servico, posicao
		   FROM pagina2_vedacao WHERE inspecao_id = ?`, inspecaoID,
		func(scan func(...any) error) error {
			var id int64
			var equip sql.NullString
			var ponto, critic, dano, servico, posicao string
			if err := scan(&id, &equip, &ponto, &critic, &dano, &servico, &posicao); err != nil {
				return err
			}
			if !isCritical(critic) {
				return nil
			}
			parts := labeledParts(labels,
				part{"Ponto", ponto, false},
				part{"Dano", dano, true},
				part{"Servico", servico, true},
				part{"Posicao", posicao, true},
			)
			return add(2, id, equip.String, "Vedacao", parts, critic)
		},
	); err != nil {
		return nil, err
	}

	// Pagina 2 - raspadores.
	if err := s.collectRows(ctx, tx,
		`SELECT id, equip, ponto_baliza, critic, dano, servico, posicao
		   FROM pagina2_raspadores WHERE inspecao_id = ?`, inspecaoID,
		func(scan func(...any) error) error {
			var id int64
			var equip sql.NullString
			var ponto, critic, dano, servico, posicao string
			if err := scan(&id, &equip, &ponto, &critic, &dano, &servico, &posicao); err != nil {
				return err
			}
			if !isCritical(critic) {
				return nil
			}
			parts := labeledParts(labels,
				part{"Ponto", ponto, false},
				part{"Dano", dano, true},
				part{"Servico", servico, true},
				part{"Posicao", posicao, true},
			)
			return add(2, id, equip.String, "Raspadores", parts, critic)
		},
	); err != nil {
		return nil, err
	}

	// Pagina 2 - mesas.
	if err := s.collectRows(ctx, tx,
		`SELECT id, equip, ponto_carga, critic, dano, servico, posicao, modelo
		   FROM pagina2_mesas WHERE inspecao_id = ?`, inspecaoID,
		func(scan func(...any) error) error {
			var id int64
			var equip sql.NullString
			var ponto, critic, dano, servico, posicao, modelo string
			if err := scan(&id, &equip, &ponto, &critic, &dano, &servico, &posicao, &modelo); err != nil {
				return err
			}
			if !isCritical(critic) {
				return nil
			}
			parts := labeledParts(labels,
				part{"Ponto", ponto, false},
				part{"Modelo", modelo, false},
				part{"Dano", dano, true},
				part{"Servico", servico, true},
				part{"Posicao", posicao, true},
			)
			return add(2, id, equip.String, "Mesas", parts, critic)
		},
	); err != nil {
		return nil, err
	}

	// Pagina 3 - correia.
	if err := s.collectRows(ctx, tx,
		`SELECT id, equip, baliza, tramo, lado, tipo, critic, desalinhada, tipo_emenda, cond_emenda
		   FROM pagina3_correia WHERE inspecao_id = ?`, inspecaoID,
		func(scan func(...any) error) error {
			var id int64
			var equip, baliza sql.NullString
			var tramo, lado, tipo, critic, desalinhada, tipoEmenda, condEmenda string
			if err := scan(&id, &equip, &baliza, &tramo, &lado, &tipo, &critic, &desalinhada, &tipoEmenda, &condEmenda); err != nil {
				return err
			}
			if !isCritical(critic) {
				return nil
			}
			parts := labeledParts(labels,
				part{"Tramo", tramo, false},
				part{"Lado", lado, false},
				part{"Tipo", tipo, false},
				part{"Desalinhada", desalinhada, false},
				part{"Emenda", tipoEmenda, false},
				part{"Cond. emenda", condEmenda, false},
			)
			titulo := "Correia - baliza " + fallback(baliza.String, "-")
			return add(3, id, equip.String, titulo, parts, critic)
		},
	); err != nil {
		return nil, err
	}

	// Pagina 4 - tambores.
	if err := s.collectRows(ctx, tx,
		`SELECT id, equip, tambor, critic, revest_dano, carcaca_dano, mancais_sintomas
		   FROM pagina4_tambores WHERE inspecao_id = ?`, inspecaoID,
		func(scan func(...any) error) error {
			var id int64
			var equip sql.NullString
			var tambor, critic, revest, carcaca, mancais string
			if err := scan(&id, &equip, &tambor, &critic, &revest, &carcaca, &mancais); err != nil {
				return err
			}
			if !isCritical(critic) {
				return nil
			}
			parts := labeledParts(labels,
				part{"Tambor", tambor, false},
				part{"Revest.", revest, true},
				part{"Carcaca", carcaca, true},
				part{"Mancais", mancais, true},
			)
			return add(4, id, equip.String, "Tambores", parts, critic)
		},
	); err != nil {
		return nil, err
	}

	// Pagina 5 - estrutura.
	if err := s.collectRows(ctx, tx,
		`SELECT id, equip, parte, local, critic, elementos, dano, servico
		   FROM pagina5_estrutura WHERE inspecao_id = ?`, inspecaoID,
		func(scan func(...any) error) error {
			var id int64
			var equip sql.NullString
			var parte, local, critic, elementos, dano, servico string
			if err := scan(&id, &equip, &parte, &local, &critic, &elementos, &dano, &servico); err != nil {
				return err
			}
			if !isCritical(critic) {
				return nil
			}
			parts := labeledParts(labels,
				part{"Parte", parte, false},
				part{"Local", local, false},
				part{"Elementos", elementos, true},
				part{"Dano", dano, true},
				part{"Servico", servico, true},
			)
			return add(5, id, equip.String, "Estrutura", parts, critic)
		},
	); err != nil {
		return nil, err
	}

	return out, nil
}

// collectRows runs one section query and feeds each row to handle.
func (s *Store) collectRows(ctx context.Context, tx *sql.Tx, query string, inspecaoID int64, handle func(scan func(...any) error) error) error {
	rows, err := tx.QueryContext(ctx, query, inspecaoID)
	if err != nil {
		return fmt.Errorf("section query: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		if err := handle(rows.Scan); err != nil {
			return err
		}
	}
	return rows.Err()
}

// loadLabels reads the code → label catalog. A missing or broken catalog
// degrades to raw codes rather than failing the derivation.
func (s *Store) loadLabels(ctx context.Context, tx *sql.Tx) (map[string]string, error) {
	labels := map[string]string{}
	rows, err := tx.QueryContext(ctx, `SELECT code, label FROM catalogos`)
	if err != nil {
		s.logger.Warn("label catalog unavailable, using raw codes", "error", err)
		return labels, nil
	}
	defer rows.Close()
	for rows.Next() {
		var code, label string
		if err := rows.Scan(&code, &label); err != nil {
			return nil, err
		}
		if label == "" {
			label = code
		}
		labels[code] = label
	}
	return labels, rows.Err()
}

// resolveCorreia maps an equipment code to a belt id, caching per run.
// Unknown codes resolve to nil and stay nil for the rest of the run.
func (s *Store) resolveCorreia(ctx context.Context, tx *sql.Tx, equip string, cache map[string]*int64) (*int64, error) {
	key := strings.TrimSpace(equip)
	if key == "" {
		return nil, nil
	}
	if id, ok := cache[key]; ok {
		return id, nil
	}
	var id int64
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM correias WHERE code = ? LIMIT 1`, key,
	).Scan(&id)
	if err == sql.ErrNoRows {
		cache[key] = nil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve correia %q: %w", key, err)
	}
	cache[key] = &id
	return &id, nil
}

func labelFor(labels map[string]string, code string) string {
	if l, ok := labels[code]; ok {
		return l
	}
	return code
}

// joinCodes parses a JSON code array from a section column and joins the
// resolved labels. Malformed JSON counts as empty.
func joinCodes(raw string, labels map[string]string) string {
	if raw == "" || raw == "[]" {
		return ""
	}
	var codes []string
	if err := json.Unmarshal([]byte(raw), &codes); err != nil || len(codes) == 0 {
		return ""
	}
	resolved := make([]string, len(codes))
	for i, c := range codes {
		resolved[i] = labelFor(labels, c)
	}
	return strings.Join(resolved, ", ")
}

// part is one candidate description fragment: a label plus either a plain
// value or a JSON code list.
type part struct {
	label  string
	value  string
	isList bool
}

func labeledParts(labels map[string]string, parts ...part) string {
	var out []string
	for _, p := range parts {
		v := p.value
		if p.isList {
			v = joinCodes(p.value, labels)
		}
		if v != "" {
			out = append(out, p.label+": "+v)
		}
	}
	return strings.Join(out, " | ")
}

// ReprocessError records one inspection that failed to re-derive.
type ReprocessError struct {
	ID    int64  `json:"id"`
	Error string `json:"error"`
}

// ReprocessResult aggregates a bulk re-derivation run.
type ReprocessResult struct {
	InspecoesProcessadas int              `json:"inspecoesProcessadas"`
	OportunidadesCriadas int              `json:"oportunidadesCriadas"`
	Erros                []ReprocessError `json:"erros"`
}

// Reprocess re-derives opportunities for the given inspections, or for all
// of them when ids is empty. Each inspection runs in its own transaction;
// one failure is recorded and the run continues.
func (s *Store) Reprocess(ctx context.Context, ids []int64) (ReprocessResult, error) {
	type insp struct {
		id    int64
		equip string
	}
	var list []insp

	query := `SELECT id, COALESCE(equip, '') FROM inspecoes`
	args := []any{}
	if len(ids) > 0 {
		query += ` WHERE id IN (?` + strings.Repeat(",?", len(ids)-1) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return ReprocessResult{}, fmt.Errorf("list inspecoes: %w", err)
	}
	for rows.Next() {
		var i insp
		if err := rows.Scan(&i.id, &i.equip); err != nil {
			rows.Close()
			return ReprocessResult{}, err
		}
		list = append(list, i)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return ReprocessResult{}, err
	}
	rows.Close()

	res := ReprocessResult{Erros: []ReprocessError{}}
	for _, i := range list {
		n, err := s.reprocessOne(ctx, i.id, i.equip)
		if err != nil {
			s.logger.Warn("reprocess failed", "inspecao_id", i.id, "error", err)
			res.Erros = append(res.Erros, ReprocessError{ID: i.id, Error: err.Error()})
			continue
		}
		res.InspecoesProcessadas++
		res.OportunidadesCriadas += n
	}
	return res, nil
}

func (s *Store) reprocessOne(ctx context.Context, inspecaoID int64, equip string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	n, err := s.deriveTx(ctx, tx, inspecaoID, equip)
	if err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

// StatusUpdate is one requested status change. Status accepts the wire's
// loose forms: bool or string.
type StatusUpdate struct {
	ID     int64 `json:"id"`
	Status any   `json:"status"`
}

// UpdateOpportunityStatuses applies a batch of status changes in one
// transaction. Non-positive ids are skipped; unknown ids affect nothing.
// Returns the number of rows actually updated.
func (s *Store) UpdateOpportunityStatuses(ctx context.Context, updates []StatusUpdate) (int, error) {
	if len(updates) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	updated := 0
	for _, u := range updates {
		if u.ID <= 0 {
			continue
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE inspecao_oportunidades SET status = ? WHERE id = ?`,
			NormalizeStatus(u.Status), u.ID,
		)
		if err != nil {
			return 0, fmt.Errorf("update status %d: %w", u.ID, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			updated += int(n)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return updated, nil
}

// OpportunitiesByBelt lists the opportunities of one belt, most critical
// first, newest first within the same criticality.
func (s *Store) OpportunitiesByBelt(ctx context.Context, correiaID int64) ([]Opportunity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, inspecao_id, correia_id, pagina, registro_id, equip, titulo, descricao, critic, status, criado_em
		  FROM inspecao_oportunidades
		 WHERE correia_id = ?
		 ORDER BY CAST(critic AS INTEGER) ASC, criado_em DESC, id DESC`,
		correiaID,
	)
	if err != nil {
		return nil, fmt.Errorf("list opportunities: %w", err)
	}
	defer rows.Close()

	items := []Opportunity{}
	for rows.Next() {
		var o Opportunity
		var correia sql.NullInt64
		if err := rows.Scan(&o.ID, &o.InspecaoID, &correia, &o.Pagina, &o.RegistroID,
			&o.Equip, &o.Titulo, &o.Descricao, &o.Critic, &o.Status, &o.CriadoEm); err != nil {
			return nil, err
		}
		if correia.Valid {
			o.CorreiaID = &correia.Int64
		}
		items = append(items, o)
	}
	return items, rows.Err()
}
