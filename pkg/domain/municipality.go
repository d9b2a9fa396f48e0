package domain

// Municipality is a municipality users belong to. Names are unique, compared
// case-insensitively. One configured name is the default municipality, which
// is never deleted.
type Municipality struct {
	ID           MunicipalityID `json:"id"`
	Municipality string         `json:"municipality"`
}
