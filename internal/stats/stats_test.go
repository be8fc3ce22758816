package stats

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInsertInitialRowHasFortyFivePlaceholders(t *testing.T) {
	assert.Contains(t, insertInitialRow, "$45")
	assert.Contains(t, insertInitialRow, "ON CONFLICT (call_id) DO NOTHING")
}

func TestInsertInitialRowColumnCountMatchesPlaceholders(t *testing.T) {
	open := strings.Index(insertInitialRow, "(")
	closeParen := strings.Index(insertInitialRow, ") VALUES")
	columns := strings.Split(insertInitialRow[open+1:closeParen], ",")
	assert.Len(t, columns, 45)
}

func TestUpdateOutcomeRowTargetsCallID(t *testing.T) {
	assert.Contains(t, updateOutcomeRow, "WHERE call_id = $24")
}
