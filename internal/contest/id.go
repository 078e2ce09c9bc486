package contest

import (
	"strconv"

	"github.com/google/uuid"
)

// IDProvider issues identifiers for engine-created rows.
type IDProvider interface {
	NewID() (string, error)
}

type uuidProvider struct{}

// NewUUIDProvider constructs an IDProvider that issues UUIDv7 identifiers.
func NewUUIDProvider() IDProvider {
	return &uuidProvider{}
}

func (p *uuidProvider) NewID() (string, error) {
	value, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return value.String(), nil
}

var resultNamespace = uuid.MustParse("6f1c9a52-3c1e-4c57-9d9b-2b7f4d0e8a11")

// ResultID derives the identifier of a prize slot. Regenerating the same slot yields the same id.
func ResultID(competitionID string, position int) string {
	return uuid.NewSHA1(resultNamespace, []byte(competitionID+"/"+strconv.Itoa(position))).String()
}
