// Package draft keeps the in-progress form state of a field session, one
// draft per equipment code. Switching equipment snapshots the outgoing
// draft so nothing typed so far is lost, and the merged result of every
// equipment goes out as one multi-equipment submission.
package draft

import (
	"sync"

	"github.com/LucaslFerrari/App-Inspecao/inspection"
)

// Pages holds the five page sections of one equipment's draft.
type Pages struct {
	Rolos      []inspection.Rolo      `json:"rolos,omitempty"`
	Calhas     []inspection.Calha     `json:"calhas,omitempty"`
	Vedacao    []inspection.Vedacao   `json:"vedacao,omitempty"`
	Raspadores []inspection.Raspador  `json:"raspadores,omitempty"`
	Mesas      []inspection.Mesa      `json:"mesas,omitempty"`
	Correias   []inspection.Correia   `json:"correias,omitempty"`
	Tambores   []inspection.Tambor    `json:"tambores,omitempty"`
	Estrutura  []inspection.Estrutura `json:"estrutura,omitempty"`
}

// Empty reports whether the draft carries no rows at all.
func (p Pages) Empty() bool {
	return len(p.Rolos) == 0 && len(p.Calhas) == 0 && len(p.Vedacao) == 0 &&
		len(p.Raspadores) == 0 && len(p.Mesas) == 0 && len(p.Correias) == 0 &&
		len(p.Tambores) == 0 && len(p.Estrutura) == 0
}

// Set holds the drafts of one capture session keyed by equipment code,
// remembering insertion order so merged submissions are stable.
type Set struct {
	mu     sync.Mutex
	active string
	order  []string
	pages  map[string]Pages
}

// NewSet creates an empty draft set.
func NewSet() *Set {
	return &Set{pages: map[string]Pages{}}
}

// Active returns the currently selected equipment code.
func (s *Set) Active() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Codes lists every equipment with a stored draft, in first-seen order.
func (s *Set) Codes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Save stores the draft of one equipment.
func (s *Set) Save(code string, p Pages) {
	if code == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store(code, p)
}

// Get returns the stored draft for code (zero value if none).
func (s *Set) Get(code string) Pages {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pages[code]
}

// Switch snapshots the outgoing draft under the currently active code,
// makes code active, and returns its stored draft (zero value the first
// time an equipment is visited).
func (s *Set) Switch(code string, outgoing Pages) Pages {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != "" {
		s.store(s.active, outgoing)
	}
	s.active = code
	return s.pages[code]
}

// store expects s.mu held.
func (s *Set) store(code string, p Pages) {
	if _, seen := s.pages[code]; !seen {
		s.order = append(s.order, code)
	}
	s.pages[code] = p
}

// MergeForSubmit folds every non-empty draft into the header submission as
// per-equipment page batches. The header equipment stays whatever the
// caller set; batches carry their own codes.
func (s *Set) MergeForSubmit(header inspection.Submission) inspection.Submission {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, code := range s.order {
		p := s.pages[code]
		if p.Empty() {
			continue
		}
		if len(p.Rolos) > 0 {
			header.Pagina1.MultiEquipRolos = append(header.Pagina1.MultiEquipRolos,
				inspection.RoloBatch{Equip: code, Rolos: p.Rolos})
		}
		if len(p.Calhas) > 0 || len(p.Vedacao) > 0 || len(p.Raspadores) > 0 || len(p.Mesas) > 0 {
			header.Pagina2.MultiEquip = append(header.Pagina2.MultiEquip,
				inspection.Pagina2Batch{
					Equip:      code,
					Calhas:     p.Calhas,
					Vedacao:    p.Vedacao,
					Raspadores: p.Raspadores,
					Mesas:      p.Mesas,
				})
		}
		if len(p.Correias) > 0 {
			header.Pagina3.MultiEquipCorreias = append(header.Pagina3.MultiEquipCorreias,
				inspection.CorreiaBatch{Equip: code, Correias: p.Correias})
		}
		if len(p.Tambores) > 0 {
			header.Pagina4.MultiEquip = append(header.Pagina4.MultiEquip,
				inspection.TamborBatch{Equip: code, Tambores: p.Tambores})
		}
		if len(p.Estrutura) > 0 {
			header.Pagina5.MultiEquip = append(header.Pagina5.MultiEquip,
				inspection.EstruturaBatch{Equip: code, Estrutura: p.Estrutura})
		}
	}
	return header
}

// Clear drops every draft and the active selection.
func (s *Set) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = ""
	s.order = nil
	s.pages = map[string]Pages{}
}
