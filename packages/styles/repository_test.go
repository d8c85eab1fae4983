package styles_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vogtb/go-spreadsheet/packages/styles"
)

func TestInternReturnsCanonicalPointer(t *testing.T) {
	t.Parallel()

	repo := styles.NewRepository()
	assert.Equal(t, 1, repo.Len())

	bold := styles.Default
	bold.Font.Bold = true
	a := repo.Intern(bold)
	b := repo.Intern(bold)
	assert.Same(t, a, b)
	assert.Equal(t, 2, repo.Len())
	assert.Same(t, repo.Default(), repo.Intern(styles.Default))

	other := bold
	other.Border.Left = styles.BorderSide{Style: 1, Color: "FF000000"}
	assert.NotSame(t, a, repo.Intern(other))
	assert.Equal(t, 3, repo.Len())
}

func TestRepositoriesAreIndependent(t *testing.T) {
	t.Parallel()

	r1 := styles.NewRepository()
	r2 := styles.NewRepository()
	assert.NotSame(t, r1.Default(), r2.Default())
}

func TestFieldsDoNotRunTogether(t *testing.T) {
	t.Parallel()

	repo := styles.NewRepository()
	a := styles.Default
	a.Fill = styles.Fill{Pattern: "ab", Color: "c"}
	b := styles.Default
	b.Fill = styles.Fill{Pattern: "a", Color: "bc"}
	assert.NotSame(t, repo.Intern(a), repo.Intern(b))
}

func TestDateFormats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code string
		want bool
	}{
		{"General", false},
		{"0.00", false},
		{"#,##0", false},
		{"mm-dd-yy", true},
		{"yyyy-mm-dd hh:mm:ss", true},
		{"[h]:mm:ss", true},
		{`"day"0`, false},
		{`\d0`, false},
		{"[Red]0.00", false},
		{"@", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, styles.IsDateFormat(tt.code), tt.code)
	}

	s := styles.Default
	s.NumberFormat.ID = 14
	assert.True(t, s.IsDate())
	assert.Equal(t, "mm-dd-yy", s.FormatCode())
	s.NumberFormat.Code = "0.0"
	assert.False(t, s.IsDate())
}
