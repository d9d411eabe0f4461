package entity

import (
	"time"

	"github.com/Kodanda10/iConnect-sub000/internal/dates"
)

// Person is one roster entry. Dob and Anniversary are recurring: only the
// month and day matter.
type Person struct {
	ID            string      `json:"id" db:"id"`
	Name          string      `json:"name" db:"name"`
	Mobile        string      `json:"mobile" db:"mobile"`
	Dob           dates.Value `json:"dob" db:"dob"`
	Anniversary   dates.Value `json:"anniversary" db:"anniversary"`
	Ward          string      `json:"ward" db:"ward"`
	Block         string      `json:"block" db:"block"`
	GramPanchayat string      `json:"gram_panchayat" db:"gram_panchayat"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at" db:"updated_at"`
}

// PersonIndex holds the month/day columns used for indexed roster lookups.
// A nil field means the source date is absent or invalid.
type PersonIndex struct {
	DobMonth         *int
	DobDay           *int
	AnniversaryMonth *int
	AnniversaryDay   *int
}

// Index recomputes the month/day index fields from the person's dates.
func (p *Person) Index(loc *time.Location) PersonIndex {
	var idx PersonIndex
	if md, ok := dates.Parse(p.Dob, loc); ok {
		idx.DobMonth, idx.DobDay = intPtr(int(md.Month)), intPtr(md.Day)
	}
	if md, ok := dates.Parse(p.Anniversary, loc); ok {
		idx.AnniversaryMonth, idx.AnniversaryDay = intPtr(int(md.Month)), intPtr(md.Day)
	}
	return idx
}

func intPtr(v int) *int { return &v }
