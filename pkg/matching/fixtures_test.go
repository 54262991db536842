package matching

import (
	"testing"

	"go.uber.org/goleak"

	"github.com/Ramsey-B/clover/pkg/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func memberConfig() models.MatchConfiguration {
	return models.MatchConfiguration{
		Fields: []models.FieldSpec{
			{Field: "firstName", Type: models.FieldTypeText, Weight: 0.3},
			{Field: "lastName", Type: models.FieldTypeText, Weight: 0.3},
			{Field: "email", Type: models.FieldTypeEmail, Weight: 0.4},
		},
		Threshold: 0.85,
	}
}

func phoneConfig() models.MatchConfiguration {
	return models.MatchConfiguration{
		Fields: []models.FieldSpec{
			{Field: "firstName", Type: models.FieldTypeText, Weight: 0.3},
			{Field: "lastName", Type: models.FieldTypeText, Weight: 0.3},
			{Field: "phone", Type: models.FieldTypePhone, Weight: 0.4},
		},
		Threshold: 0.85,
	}
}

func member(id, first, last string, extra ...any) models.Record {
	fields := map[string]any{"firstName": first, "lastName": last}
	for i := 0; i+1 < len(extra); i += 2 {
		fields[extra[i].(string)] = extra[i+1]
	}
	return models.NewRecord(id, fields)
}
