package orchestrator

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_EmptyPatientID(t *testing.T) {
	v := NewValidator()
	err := v.Validate(&AnalyzeRequest{QueryText: "how am I doing?"})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.Contains(t, err.Error(), "patient_id")
}

func TestValidator_MalformedPatientID(t *testing.T) {
	v := NewValidator()
	err := v.Validate(&AnalyzeRequest{PatientID: "not-a-uuid", QueryText: "hi"})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestValidator_NoContent(t *testing.T) {
	v := NewValidator()
	err := v.Validate(&AnalyzeRequest{PatientID: uuid.New().String()})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestValidator_QueryTextSuffices(t *testing.T) {
	v := NewValidator()
	err := v.Validate(&AnalyzeRequest{
		PatientID: uuid.New().String(),
		QueryText: "how is my cholesterol?",
	})
	assert.NoError(t, err)
}

func TestValidator_DocumentSuffices(t *testing.T) {
	v := NewValidator()
	err := v.Validate(&AnalyzeRequest{
		PatientID:        uuid.New().String(),
		AttachedDocument: "Lab report: LDL 130 mg/dL",
	})
	assert.NoError(t, err)
}

func TestValidator_SymptomsSuffice(t *testing.T) {
	v := NewValidator()
	err := v.Validate(&AnalyzeRequest{
		PatientID: uuid.New().String(),
		Symptoms:  []string{"headache", "fatigue"},
	})
	assert.NoError(t, err)
}

func TestValidator_WhitespaceOnlyContentRejected(t *testing.T) {
	v := NewValidator()
	err := v.Validate(&AnalyzeRequest{
		PatientID:        uuid.New().String(),
		QueryText:        "   ",
		AttachedDocument: "\n\t",
	})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}
