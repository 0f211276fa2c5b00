package visit

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
)

// MaxGuests caps the accompanying-guest count the facility accepts per visit.
const MaxGuests = 10

// Guest is one accompanying-guest entry on the visit manifest.
type Guest struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
}

// Guests is stored on the visit row as a JSON column.
type Guests []Guest

// Scan implements the Scanner interface for database deserialization.
func (g *Guests) Scan(value interface{}) error {
	if value == nil {
		*g = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}

	return json.Unmarshal(bytes, g)
}

// Value implements the driver Valuer interface for database serialization.
func (g Guests) Value() (driver.Value, error) {
	if g == nil {
		return nil, nil
	}
	return json.Marshal(g)
}

// NormalizeManifest converts caller-supplied guest data into a canonical
// manifest. It never errors: the count is clamped to [0, MaxGuests], entries
// with neither a name nor a contact are dropped, string fields are trimmed,
// excess entries are truncated, and when filtering leaves fewer entries than
// requested the count is lowered to match. The returned pair always
// satisfies len(guests) == count.
func NormalizeManifest(count int, guests []Guest) (int, Guests) {
	if count < 0 {
		count = 0
	}
	if count > MaxGuests {
		count = MaxGuests
	}
	if count == 0 {
		return 0, Guests{}
	}

	out := make(Guests, 0, count)
	for _, g := range guests {
		name := strings.TrimSpace(g.Name)
		contact := strings.TrimSpace(g.Contact)
		if name == "" && contact == "" {
			continue
		}
		out = append(out, Guest{Name: name, Contact: contact})
		if len(out) == count {
			break
		}
	}

	return len(out), out
}
