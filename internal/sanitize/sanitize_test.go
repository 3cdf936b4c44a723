package sanitize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubjectToken(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercase preserved", "matter-2024-001", "matter-2024-001"},
		{"uppercase folded", "Matter-ACME", "matter-acme"},
		{"dots replaced", "acme.v.initech", "acme_v_initech"},
		{"spaces replaced", "In Re Acme", "in_re_acme"},
		{"wildcards replaced", "matter.*.>", "matter"},
		{"runs collapsed", "a...b", "a_b"},
		{"empty", "", "default"},
		{"only invalid chars", "!!!", "default"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SubjectToken(tt.input))
		})
	}
}

func TestSubjectTokenTruncatesLongInput(t *testing.T) {
	long := strings.Repeat("a", 200)
	got := SubjectToken(long)

	assert.LessOrEqual(t, len(got), MaxIdentifierLength)
	// Hash suffix keeps distinct long inputs distinct.
	other := SubjectToken(strings.Repeat("a", 199) + "b")
	assert.NotEqual(t, got, other)
}

func TestValidateMatterID(t *testing.T) {
	assert.NoError(t, ValidateMatterID(""))
	assert.NoError(t, ValidateMatterID("matter-2024-001"))
	assert.NoError(t, ValidateMatterID("acme_v_initech"))

	for _, bad := range []string{"Matter-1", "a/b", `a\b`, "..", "a.b", "has space", "-leading"} {
		assert.ErrorIs(t, ValidateMatterID(bad), ErrInvalidMatterID, "input %q", bad)
	}
}

func TestValidateDocumentID(t *testing.T) {
	assert.NoError(t, ValidateDocumentID(""))
	assert.NoError(t, ValidateDocumentID("doc-001"))
	assert.ErrorIs(t, ValidateDocumentID("../etc/passwd"), ErrInvalidDocumentID)
}

func TestSafeFilename(t *testing.T) {
	got, err := SafeFilename("memo.txt")
	require.NoError(t, err)
	assert.Equal(t, "memo.txt", got)

	got, err = SafeFilename("/uploads/memo.txt")
	require.NoError(t, err)
	assert.Equal(t, "memo.txt", got)

	_, err = SafeFilename("../../etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidFilename)

	_, err = SafeFilename("")
	assert.ErrorIs(t, err, ErrInvalidFilename)
}
