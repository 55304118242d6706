package generation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResult_Message(t *testing.T) {
	ok := Result{Text: "- File Form 84.", Model: "gpt-4"}
	assert.True(t, ok.OK())
	assert.Equal(t, "- File Form 84.", ok.Message())

	failed := Failed(errors.New("status code: 401"))
	assert.False(t, failed.OK())
	assert.Equal(t, "Error calling LLM: status code: 401", failed.Message())
}
