package db

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/finsight-ai/finsight/internal/core"
)

func TestFilterClause_Empty(t *testing.T) {
	where, args := filterClause(core.SearchFilter{}, []any{"seed"})
	assert.Equal(t, "", where)
	assert.Equal(t, []any{"seed"}, args)
}

func TestFilterClause_SingleField(t *testing.T) {
	where, args := filterClause(core.SearchFilter{StockID: 7}, []any{"seed"})
	assert.Equal(t, "WHERE stock_id = $2", where)
	assert.Equal(t, []any{"seed", 7}, args)
}

func TestFilterClause_AllFields(t *testing.T) {
	f := core.SearchFilter{
		DocID:      "abc123",
		StockID:    7,
		FiscalYear: 2024,
		ReportType: "annual",
	}
	where, args := filterClause(f, []any{"seed"})
	assert.Equal(t, "WHERE doc_id = $2 AND stock_id = $3 AND fiscal_year = $4 AND report_type = $5", where)
	assert.Equal(t, []any{"seed", "abc123", 7, 2024, "annual"}, args)
}

func TestFilterClause_PlaceholdersContinueArgs(t *testing.T) {
	where, args := filterClause(core.SearchFilter{FiscalYear: 2023}, []any{"a", "b", "c"})
	assert.Equal(t, "WHERE fiscal_year = $4", where)
	assert.Len(t, args, 4)
}
