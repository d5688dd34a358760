package allocation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveSubcategory(t *testing.T) {
	tests := []struct {
		category string
		pct      string
		want     Subcategory
		kind     Kind
	}{
		{"A", "10", SubcategoryA10, ""},
		{"A", "25", SubcategoryA25, ""},
		{"A", "50", SubcategoryA50, ""},
		{"A", "75", SubcategoryA75, ""},
		{"A", "0", SubcategoryA0, ""},
		{"A", "10.00", SubcategoryA10, ""},
		{"A", "15", 0, KindInvalidConcessionTier},
		{"A", "100", 0, KindInvalidConcessionTier},
		{"B", "0", SubcategoryB, ""},
		{"B", "37", SubcategoryB, ""},
		{"C", "10", 0, KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.category+"/"+tt.pct, func(t *testing.T) {
			got, err := ResolveSubcategory(tt.category, pct(tt.pct))
			if tt.kind != "" {
				require.Error(t, err)
				assert.Equal(t, tt.kind, KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSubcategoryValid(t *testing.T) {
	assert.False(t, Subcategory(0).Valid())
	assert.True(t, SubcategoryA10.Valid())
	assert.True(t, SubcategoryB.Valid())
	assert.False(t, Subcategory(7).Valid())
	assert.Equal(t, "sub_cat_6", SubcategoryB.String())
}
