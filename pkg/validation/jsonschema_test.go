package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_RecurringRule(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"daily", `{"title":"water plants","pattern":"daily","interval":2}`, false},
		{"weekly with days", `{"title":"gym","pattern":"weekly","days_of_week":[0,2]}`, false},
		{"monthly", `{"title":"rent","pattern":"monthly","day_of_month":31,"due_time":"09:30"}`, false},
		{"missing pattern", `{"title":"x"}`, true},
		{"unknown pattern", `{"title":"x","pattern":"yearly"}`, true},
		{"zero interval", `{"title":"x","pattern":"daily","interval":0}`, true},
		{"weekday out of range", `{"title":"x","pattern":"weekly","days_of_week":[7]}`, true},
		{"day of month out of range", `{"title":"x","pattern":"monthly","day_of_month":32}`, true},
		{"bad due time", `{"title":"x","pattern":"daily","due_time":"25:00"}`, true},
		{"not json", `{`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(SchemaRecurringRule, []byte(tt.body))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidate_TaskCreate(t *testing.T) {
	assert.NoError(t, Validate(SchemaTaskCreate, []byte(`{"title":"a","due_date":"2025-01-06","reminder":{"remind_date":"2025-01-05"}}`)))
	assert.Error(t, Validate(SchemaTaskCreate, []byte(`{"title":""}`)))
	assert.Error(t, Validate(SchemaTaskCreate, []byte(`{"title":"a","reminder":{}}`)))
}

func TestValidate_UnknownSchema(t *testing.T) {
	err := Validate("nope.json", []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown schema")
}
