package ingestion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSelectQuery(t *testing.T) {
	tests := []struct {
		name     string
		table    string
		limit    int
		expected string
		wantErr  bool
	}{
		{name: "简单表名", table: "sentencing", expected: `SELECT * FROM "sentencing"`},
		{name: "带schema", table: "court.sentencing", limit: 100, expected: `SELECT * FROM "court"."sentencing" LIMIT 100`},
		{name: "转义引号", table: `bad"name`, expected: `SELECT * FROM "bad""name"`},
		{name: "空表名", table: "  ", wantErr: true},
		{name: "层级过多", table: "a.b.c", wantErr: true},
		{name: "空段", table: "court.", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, err := BuildSelectQuery(tt.table, tt.limit)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, query)
		})
	}
}
