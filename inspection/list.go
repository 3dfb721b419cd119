package inspection

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ListFilter narrows the inspection listing. EmpresaID is mandatory — the
// listing is always scoped to one company.
type ListFilter struct {
	EmpresaID  int64
	ContratoID *int64

	DataDe   string
	DataAte  string
	Equip    string
	Area     string
	Inspetor string

	Page     int
	PageSize int
}

// InspectionRow is one listing entry.
type InspectionRow struct {
	ID          int64    `json:"id"`
	Inspetor    *string  `json:"inspetor"`
	Data        *string  `json:"data"`
	Equip       *string  `json:"equip"`
	Area        *string  `json:"area"`
	CriadoEm    int64    `json:"criado_em"`
	Lat         *float64 `json:"lat"`
	Lng         *float64 `json:"lng"`
	GPSAccuracy *float64 `json:"gps_accuracy"`
	UsuarioID   *int64   `json:"usuario_id"`
	EmpresaID   *int64   `json:"empresa_id"`
	ContratoID  *int64   `json:"contrato_id"`

	UsuarioNome  *string `json:"usuario_nome"`
	UsuarioLogin *string `json:"usuario_login"`

	EvidenciasCount int `json:"evidencias_count"`
}

// ListResult is one page of the listing.
type ListResult struct {
	Items    []InspectionRow `json:"items"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"pageSize"`
}

// ListInspections returns a filtered, paginated listing, newest first.
func (s *Store) ListInspections(ctx context.Context, f ListFilter) (ListResult, error) {
	if f.EmpresaID <= 0 {
		return ListResult{}, fmt.Errorf("%w: empresa_id é obrigatório", ErrValidation)
	}

	page := f.Page
	if page < 1 {
		page = 1
	}
	size := f.PageSize
	if size < 1 {
		size = 20
	}
	if size > 100 {
		size = 100
	}

	where := []string{"i.empresa_id = ?"}
	args := []any{f.EmpresaID}
	if f.ContratoID != nil {
		where = append(where, "i.contrato_id = ?")
		args = append(args, *f.ContratoID)
	}
	if f.DataDe != "" {
		where = append(where, "i.data >= ?")
		args = append(args, f.DataDe)
	}
	if f.DataAte != "" {
		where = append(where, "i.data <= ?")
		args = append(args, f.DataAte)
	}
	for col, v := range map[string]string{"equip": f.Equip, "area": f.Area, "inspetor": f.Inspetor} {
		if v != "" {
			where = append(where, "i."+col+" LIKE ?")
			args = append(args, "%"+v+"%")
		}
	}
	whereSQL := "WHERE " + strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM inspecoes i `+whereSQL, args...,
	).Scan(&total); err != nil {
		return ListResult{}, fmt.Errorf("count inspecoes: %w", err)
	}

	query := `
		SELECT i.id, i.inspetor, i.data, i.equip, i.area, i.criado_em,
		       i.lat, i.lng, i.gps_accuracy,
		       i.usuario_id, i.empresa_id, i.contrato_id,
		       u.nome, u.login,
		       (SELECT COUNT(*) FROM evidencias e WHERE e.inspecao_id = i.id)
		  FROM inspecoes i
		  LEFT JOIN usuarios u ON u.id = i.usuario_id
		  ` + whereSQL + `
		 ORDER BY i.data DESC, i.id DESC
		 LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, query, append(args, size, (page-1)*size)...)
	if err != nil {
		return ListResult{}, fmt.Errorf("list inspecoes: %w", err)
	}
	defer rows.Close()

	items := []InspectionRow{}
	for rows.Next() {
		var r InspectionRow
		if err := rows.Scan(&r.ID, &r.Inspetor, &r.Data, &r.Equip, &r.Area, &r.CriadoEm,
			&r.Lat, &r.Lng, &r.GPSAccuracy,
			&r.UsuarioID, &r.EmpresaID, &r.ContratoID,
			&r.UsuarioNome, &r.UsuarioLogin, &r.EvidenciasCount); err != nil {
			return ListResult{}, err
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return ListResult{}, err
	}

	return ListResult{Items: items, Total: total, Page: page, PageSize: size}, nil
}

// Summary is the detail header of one inspection plus per-section counts
// and short samples.
type Summary struct {
	Inspecao InspectionRow  `json:"insp"`
	Totais   map[string]int `json:"totais"`

	AmostrasRolos     []SampleRow `json:"amostras_rolos"`
	AmostrasEstrutura []SampleRow `json:"amostras_estrutura"`
}

// SampleRow is a compact preview row for the summary.
type SampleRow struct {
	ID     int64   `json:"id"`
	Ref    *string `json:"ref"`
	Extra  string  `json:"extra"`
	Critic string  `json:"critic"`
}

// InspectionSummary loads the header, section row counts and a handful of
// sample rows for one inspection. Returns ErrNotFound for unknown ids.
func (s *Store) InspectionSummary(ctx context.Context, id int64) (Summary, error) {
	var r InspectionRow
	err := s.db.QueryRowContext(ctx, `
		SELECT i.id, i.inspetor, i.data, i.equip, i.area, i.criado_em,
		       i.lat, i.lng, i.gps_accuracy,
		       i.usuario_id, i.empresa_id, i.contrato_id,
		       u.nome, u.login,
		       (SELECT COUNT(*) FROM evidencias e WHERE e.inspecao_id = i.id)
		  FROM inspecoes i
		  LEFT JOIN usuarios u ON u.id = i.usuario_id
		 WHERE i.id = ?`, id,
	).Scan(&r.ID, &r.Inspetor, &r.Data, &r.Equip, &r.Area, &r.CriadoEm,
		&r.Lat, &r.Lng, &r.GPSAccuracy,
		&r.UsuarioID, &r.EmpresaID, &r.ContratoID,
		&r.UsuarioNome, &r.UsuarioLogin, &r.EvidenciasCount)
	if errors.Is(err, sql.ErrNoRows) {
		return Summary{}, ErrNotFound
	}
	if err != nil {
		return Summary{}, fmt.Errorf("load inspecao: %w", err)
	}

	totais := map[string]int{}
	for table, key := range map[string]string{
		"pagina1_rolos":          "pagina1_rolos",
		"pagina2_calhas":         "pagina2_calhas",
		"pagina2_vedacao":        "pagina2_vedacao",
		"pagina2_raspadores":     "pagina2_raspadores",
		"pagina2_mesas":          "pagina2_mesas",
		"pagina3_correia":        "pagina3_correia",
		"pagina4_tambores":       "pagina4_tambores",
		"pagina5_estrutura":      "pagina5_estrutura",
		"evidencias":             "evidencias",
		"inspecao_oportunidades": "oportunidades",
	} {
		var n int
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM `+table+` WHERE inspecao_id = ?`, id,
		).Scan(&n); err != nil {
			return Summary{}, fmt.Errorf("count %s: %w", table, err)
		}
		totais[key] = n
	}

	sum := Summary{Inspecao: r, Totais: totais}

	rolos, err := s.sampleRows(ctx,
		`SELECT id, baliza, limp, critic FROM pagina1_rolos
		  WHERE inspecao_id = ? ORDER BY baliza LIMIT 10`, id)
	if err != nil {
		return Summary{}, err
	}
	sum.AmostrasRolos = rolos

	estrutura, err := s.sampleRows(ctx,
		`SELECT id, parte, local, critic FROM pagina5_estrutura
		  WHERE inspecao_id = ? ORDER BY id LIMIT 10`, id)
	if err != nil {
		return Summary{}, err
	}
	sum.AmostrasEstrutura = estrutura

	return sum, nil
}

func (s *Store) sampleRows(ctx context.Context, query string, id int64) ([]SampleRow, error) {
	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("samples: %w", err)
	}
	defer rows.Close()

	out := []SampleRow{}
	for rows.Next() {
		var r SampleRow
		if err := rows.Scan(&r.ID, &r.Ref, &r.Extra, &r.Critic); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
